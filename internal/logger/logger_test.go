package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = orig })
	return &buf
}

func TestForRequestAddsRequestID(t *testing.T) {
	buf := captureLogger(t)

	ctx := WithRequestID(context.Background(), "abc12345")
	ForRequest(ctx).Error().Msg("boom")

	assert.Contains(t, buf.String(), `"requestId":"abc12345"`)
	assert.Contains(t, buf.String(), `"message":"boom"`)
}

func TestForRequestWithoutIDUsesBaseLogger(t *testing.T) {
	buf := captureLogger(t)

	ForRequest(context.Background()).Info().Msg("plain")

	assert.NotContains(t, buf.String(), "requestId")
	assert.Contains(t, buf.String(), `"message":"plain"`)
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "xyz")
	assert.Equal(t, "xyz", RequestIDFromContext(ctx))
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}

func TestNewRequestIDShape(t *testing.T) {
	id := NewRequestID()
	assert.Len(t, id, 8)
	assert.NotEqual(t, id, NewRequestID())
}
