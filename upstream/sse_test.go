package upstream

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEDecoder_SingleEvent(t *testing.T) {
	d := newSSEDecoder(strings.NewReader("event: content\ndata: {\"a\":1}\n\n"))

	ev, err := d.next()
	require.NoError(t, err)
	assert.Equal(t, "content", ev.eventType)
	assert.Equal(t, `{"a":1}`, ev.data)
}

func TestSSEDecoder_MultiLineData(t *testing.T) {
	d := newSSEDecoder(strings.NewReader("data: line one\ndata: line two\n\n"))

	ev, err := d.next()
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", ev.data)
}

func TestSSEDecoder_CRLF(t *testing.T) {
	d := newSSEDecoder(strings.NewReader("event: done\r\ndata: {}\r\n\r\n"))

	ev, err := d.next()
	require.NoError(t, err)
	assert.Equal(t, "done", ev.eventType)
	assert.Equal(t, "{}", ev.data)
}

func TestSSEDecoder_CrossChunkBoundary(t *testing.T) {
	r1, w1 := io.Pipe()
	d := newSSEDecoder(r1)

	go func() {
		w1.Write([]byte("event: cont"))
		w1.Write([]byte("ent\ndata: hel"))
		w1.Write([]byte("lo\n\n"))
		w1.Close()
	}()

	ev, err := d.next()
	require.NoError(t, err)
	assert.Equal(t, "content", ev.eventType)
	assert.Equal(t, "hello", ev.data)
}

func TestSSEDecoder_MultipleEventsSequentially(t *testing.T) {
	d := newSSEDecoder(strings.NewReader("data: one\n\ndata: two\n\n"))

	first, err := d.next()
	require.NoError(t, err)
	assert.Equal(t, "one", first.data)

	second, err := d.next()
	require.NoError(t, err)
	assert.Equal(t, "two", second.data)

	_, err = d.next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestInterpret_MessagePartUpdatedDelta(t *testing.T) {
	raw := rawEvent{data: `{"type":"message.part.updated","properties":{"sessionID":"s1","delta":"hel"}}`}

	ev, ok := interpret(raw, "s1")
	require.True(t, ok)
	assert.Equal(t, StreamContent, ev.Kind)
	assert.Equal(t, "hel", ev.Text)
}

func TestInterpret_MessagePartUpdatedContentFallback(t *testing.T) {
	raw := rawEvent{data: `{"type":"message.part.updated","properties":{"part":{"sessionID":"s1","content":"whole"}}}`}

	ev, ok := interpret(raw, "s1")
	require.True(t, ok)
	assert.Equal(t, StreamContent, ev.Kind)
	assert.Equal(t, "whole", ev.Text)
}

func TestInterpret_MessagePartUpdatedEmptySuppressed(t *testing.T) {
	raw := rawEvent{data: `{"type":"message.part.updated","properties":{"sessionID":"s1"}}`}

	_, ok := interpret(raw, "s1")
	assert.False(t, ok)
}

func TestInterpret_SessionIdle(t *testing.T) {
	raw := rawEvent{data: `{"type":"session.idle","properties":{"sessionID":"s1"}}`}

	ev, ok := interpret(raw, "s1")
	require.True(t, ok)
	assert.Equal(t, StreamDone, ev.Kind)
}

func TestInterpret_SessionError(t *testing.T) {
	raw := rawEvent{data: `{"type":"session.error","properties":{"sessionID":"s1","error":{"message":"boom"}}}`}

	ev, ok := interpret(raw, "s1")
	require.True(t, ok)
	assert.Equal(t, StreamError, ev.Kind)
	assert.Equal(t, "boom", ev.ErrorMessage)
}

func TestInterpret_UnknownType(t *testing.T) {
	raw := rawEvent{eventType: "weird", data: `{"type":"something.else","properties":{}}`}

	ev, ok := interpret(raw, "s1")
	require.True(t, ok)
	assert.Equal(t, StreamUnknown, ev.Kind)
	assert.Equal(t, "weird", ev.EventType)
}

func TestInterpret_FilteredByOtherSession(t *testing.T) {
	raw := rawEvent{data: `{"type":"message.part.updated","properties":{"sessionID":"other","delta":"x"}}`}

	_, ok := interpret(raw, "s1")
	assert.False(t, ok)
}
