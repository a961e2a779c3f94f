package upstream

import (
	"bufio"
	"io"
	"strings"
)

// sseDecoder turns a byte stream into a sequence of raw SSE events: lines
// are buffered until a blank line completes an event, tolerating both CRLF
// and LF line endings and data: lines split across several frames. This
// mirrors the line-buffering shape of the upstream bridge's own SSE
// decoder, adapted to Go's bufio.Reader instead of an async byte stream.
type sseDecoder struct {
	r         *bufio.Reader
	eventType string
	data      strings.Builder
}

func newSSEDecoder(r io.Reader) *sseDecoder {
	return &sseDecoder{r: bufio.NewReader(r)}
}

// next reads until one complete event is decoded, io.EOF is reached with
// no pending event, or an error occurs.
func (d *sseDecoder) next() (rawEvent, error) {
	for {
		line, err := d.r.ReadString('\n')
		if len(line) == 0 && err != nil {
			return rawEvent{}, err
		}

		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if d.data.Len() > 0 {
				ev := rawEvent{eventType: d.eventType, data: d.data.String()}
				d.eventType = ""
				d.data.Reset()
				return ev, nil
			}
			if err != nil {
				return rawEvent{}, err
			}
		case strings.HasPrefix(line, "event:"):
			d.eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if d.data.Len() > 0 {
				d.data.WriteByte('\n')
			}
			d.data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}

		if err != nil && d.data.Len() == 0 {
			return rawEvent{}, err
		}
	}
}
