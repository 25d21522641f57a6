package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnavailableError(t *testing.T) {
	cause := errors.New("connection refused")
	err := UnavailableError("database unavailable", cause)

	assert.Equal(t, TypeUnavailable, err.Type)
	assert.NotNil(t, err.Context)
	assert.Equal(t, http.StatusServiceUnavailable, err.HTTPStatus())
	assert.Equal(t, "unavailable: database unavailable: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestInternalError(t *testing.T) {
	cause := fmt.Errorf("pool closed")
	err := InternalError("failed to query", cause)

	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus())
	assert.Contains(t, err.Error(), "pool closed")
}

func TestWithContext(t *testing.T) {
	err := UnavailableError("postgres unavailable", errors.New("refused")).WithContext("failed_check", "postgres")

	resp := err.ToResponse()
	assert.Equal(t, "postgres", err.Context["failed_check"])
	assert.Equal(t, "postgres unavailable", resp.Error)
	assert.Equal(t, TypeUnavailable, resp.Type)
	assert.Equal(t, "postgres", resp.Context["failed_check"])
}

func TestWithContext_NilMap(t *testing.T) {
	err := &Error{Type: TypeInternal, Message: "boom"}
	err.WithContext("a", 1)
	assert.Equal(t, 1, err.Context["a"])
}

func TestAsStructuredError(t *testing.T) {
	assert.Nil(t, AsStructuredError(nil))

	original := UnavailableError("postgres unavailable", nil)
	wrapped := fmt.Errorf("handler: %w", original)
	assert.Same(t, original, AsStructuredError(wrapped))

	plain := errors.New("plain")
	structured := AsStructuredError(plain)
	require.NotNil(t, structured)
	assert.Equal(t, TypeInternal, structured.Type)
	assert.Equal(t, "internal server error", structured.Message)
	assert.ErrorIs(t, structured, plain)
}
