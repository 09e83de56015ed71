package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestIDContext(t *testing.T) {
	t.Run("stores and retrieves request ID", func(t *testing.T) {
		ctx := context.Background()
		ctx = WithRequestID(ctx, "req-123")

		result := RequestIDFromContext(ctx)
		assert.Equal(t, "req-123", result)
	})

	t.Run("returns empty string when not set", func(t *testing.T) {
		ctx := context.Background()
		result := RequestIDFromContext(ctx)
		assert.Equal(t, "", result)
	})
}

func TestClientIPContext(t *testing.T) {
	t.Run("stores and retrieves client IP", func(t *testing.T) {
		ctx := context.Background()
		ctx = WithClientIP(ctx, "203.0.113.9")

		result := ClientIPFromContext(ctx)
		assert.Equal(t, "203.0.113.9", result)
	})

	t.Run("returns empty string when not set", func(t *testing.T) {
		ctx := context.Background()
		result := ClientIPFromContext(ctx)
		assert.Equal(t, "", result)
	})
}

func TestContextChaining(t *testing.T) {
	ctx := context.Background()

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithClientIP(ctx, "198.51.100.4")

	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "198.51.100.4", ClientIPFromContext(ctx))
}

func TestContextOverwrite(t *testing.T) {
	ctx := context.Background()

	// Set initial values
	ctx = WithRequestID(ctx, "req-1")

	// Overwrite with new values
	ctx = WithRequestID(ctx, "req-2")

	// Should have new value
	assert.Equal(t, "req-2", RequestIDFromContext(ctx))
}
