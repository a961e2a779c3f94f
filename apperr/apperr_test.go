package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, NotFound, KindOf(NotFoundf("block %s", "x")))
	assert.Equal(t, BadRequest, KindOf(BadRequestf("bad")))
	assert.Equal(t, Internal, KindOf(errors.New("plain driver error")))
}

func TestWrapPreservesCauseAndKind(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstreamf(cause, "sending message")

	assert.Equal(t, Upstream, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsMatchesByKindNotMessage(t *testing.T) {
	a := NotFoundf("journal %s not found", "j1")
	b := NotFoundf("block %s not found", "b1")

	assert.True(t, errors.Is(a, b))
	assert.True(t, errors.Is(a, ErrNotFound))
	assert.False(t, errors.Is(a, BadRequestf("nope")))
}

func TestErrorAsRoundTrip(t *testing.T) {
	wrapped := fmt.Errorf("loading journal: %w", NotFoundf("journal %s", "j1"))

	var appErr *Error
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, NotFound, appErr.Kind)
}
