package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mopip77/pasteV/internal/domain"
	domainerrors "github.com/Mopip77/pasteV/internal/errors"
	"github.com/Mopip77/pasteV/internal/validation"
)

type providerRequest struct {
	APIHost string `json:"apiHost" validate:"omitempty,url"`
	Model   string `json:"model" validate:"required,max=64"`
	Secret  string `json:"-" validate:"omitempty,min=4"`
}

func TestValidator_ValidFilter(t *testing.T) {
	v := validation.New()

	assert.NoError(t, v.Validate(domain.Filter{}))
	assert.NoError(t, v.Validate(domain.Filter{Type: domain.EntryTypeImage, Tags: []string{"go"}, Size: 200}))
}

func TestValidator_FilterErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name    string
		filter  domain.Filter
		field   string
		message string
	}{
		{"unknown type", domain.Filter{Type: "video"}, "type", "must be one of: text image file"},
		{"size too large", domain.Filter{Size: 500}, "size", "must be less than or equal to 200"},
		{"negative size", domain.Filter{Size: -1}, "size", "must be greater than or equal to 0"},
		{"too many tags", domain.Filter{Tags: make21Tags()}, "tags", "must not exceed 20 items"},
		{"blank tag", domain.Filter{Tags: []string{"ok", ""}}, "tags[1]", "is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.filter)
			require.Error(t, err)
			assert.ErrorIs(t, err, domainerrors.ErrValidation)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tt.message, details[tt.field])
			assert.Contains(t, domainErr.Message, tt.field)
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	err := v.Validate(providerRequest{APIHost: "not a url"})
	require.Error(t, err)

	assert.Contains(t, err.Error(), "apiHost")
	assert.Contains(t, err.Error(), "model")
	assert.NotContains(t, err.Error(), "APIHost")
}

func TestValidator_FieldErrors(t *testing.T) {
	v := validation.New()

	assert.Empty(t, v.FieldErrors(providerRequest{Model: "gpt-4o-mini"}))

	fields := v.FieldErrors(providerRequest{Model: "gpt-4o-mini", APIHost: "ftp//broken"})
	assert.Equal(t, map[string]string{"apiHost": "must be a valid URL"}, fields)
}

func make21Tags() []string {
	tags := make([]string, 21)
	for i := range tags {
		tags[i] = "t"
	}
	return tags
}
