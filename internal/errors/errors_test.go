package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := ProviderUnavailable(context.DeadlineExceeded, "ocr")

	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.NotErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "bad regex", Validation("bad regex").Error())
	assert.Equal(t, "insert entry: disk full",
		StorageUnavailable(errors.New("disk full"), "insert entry").Error())
}

func TestCode_HTTPStatus(t *testing.T) {
	tests := map[Code]int{
		CodeNotFound:            http.StatusNotFound,
		CodeAlreadyExists:       http.StatusConflict,
		CodeValidation:          http.StatusBadRequest,
		CodeProviderUnavailable: http.StatusBadGateway,
		CodeStorageUnavailable:  http.StatusServiceUnavailable,
		CodeInternal:            http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, code.HTTPStatus(), string(code))
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("enrich k1: %w", ProviderUnavailable(errors.New("503"), "embed"))

	assert.Equal(t, CodeProviderUnavailable, CodeOf(wrapped))
	assert.Equal(t, "embed", Provider(wrapped))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.Equal(t, "", Provider(Validation("x")))
}

func TestValidationWithDetails(t *testing.T) {
	err := ValidationWithDetails("invalid size", map[string]string{"size": "too large"})

	assert.NotNil(t, err.Details)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
}
