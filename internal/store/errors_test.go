package store_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Mopip77/pasteV/internal/store"
)

func TestError_Error(t *testing.T) {
	err := &store.Error{Code: http.StatusNotFound, Message: "not found"}
	assert.Equal(t, "not found", err.Error())
}

func TestError_ErrorWithCause(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := &store.Error{Code: http.StatusInternalServerError, Message: "write failed", Err: cause}

	assert.Contains(t, err.Error(), "write failed")
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.Equal(t, cause, err.Unwrap())
}

func TestError_HTTPCode(t *testing.T) {
	assert.Equal(t, http.StatusConflict, store.ErrAlreadyExists.HTTPCode())
	assert.Equal(t, http.StatusNotFound, store.ErrNotFound.HTTPCode())
}

func TestError_WithMessage(t *testing.T) {
	custom := store.ErrNotFound.WithMessage("no blob for key")

	assert.Equal(t, "no blob for key", custom.Message)
	assert.Equal(t, http.StatusNotFound, custom.Code)
	assert.Equal(t, "entry not found", store.ErrNotFound.Message)
}

func TestSentinelErrors_Is(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), store.ErrAlreadyExists)
	assert.ErrorIs(t, wrapped, store.ErrAlreadyExists)
	assert.NotErrorIs(t, wrapped, store.ErrNotFound)
}
