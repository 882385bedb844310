package session

import (
	"testing"

	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare host", "example.com", "https://example.com"},
		{"keeps https", "https://example.com/path", "https://example.com/path"},
		{"keeps http", "http://example.org", "http://example.org"},
		{"trims whitespace", "  example.net/a/b  ", "https://example.net/a/b"},
		{"subdomain", "docs.example.co.uk", "https://docs.example.co.uk"},
		{"trailing slash", "example.com/", "https://example.com/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeURLInvalid(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
	}{
		{"empty", "", msgEmptyURL},
		{"blank", "   ", msgEmptyURL},
		{"spaces", "not a url", msgInvalidURL},
		{"no tld", "localhost", msgInvalidURL},
		{"ftp scheme", "ftp://example.com", msgInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeURL(tt.input)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			assert.Contains(t, apperr.Message(err), tt.message)
		})
	}
}
