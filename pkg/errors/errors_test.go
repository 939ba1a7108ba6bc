package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("loading communes: %w", ErrDatasetLoad), http.StatusServiceUnavailable},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrTimeout, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
		{New(ErrInternal, http.StatusTeapot, "brew"), http.StatusTeapot},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatusCode(tt.err), tt.err.Error())
	}
}

func TestAppErrorWrapsSentinel(t *testing.T) {
	err := BadRequest("limit must be a positive integer")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "limit must be a positive integer", Message(err))
	assert.Equal(t, "invalid input: limit must be a positive integer", err.Error())

	wrapped := fmt.Errorf("handler: %w", NotFound("commune %s", "99999"))
	assert.Equal(t, http.StatusNotFound, HTTPStatusCode(wrapped))
	assert.Equal(t, "commune 99999", Message(wrapped))
}
