package session

import (
	"regexp"
	"strings"

	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/apperr"
)

// urlPattern is permissive: a dotted host with a 2-6 letter
// final segment, optional path, optional scheme. Uppercase hosts, ports and
// query strings do not match.
var urlPattern = regexp.MustCompile(`^(https?://)?([\da-z.-]+)\.([a-z.]{2,6})([/\w .-]*)*/?$`)

const (
	msgEmptyURL   = "Enter a valid URL"
	msgInvalidURL = "Invalid URL format"
)

// NormalizeURL prepends https:// when the input has no http(s) scheme and
// checks the result against the URL shape pattern.
func NormalizeURL(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", apperr.Validation("session.url", msgEmptyURL)
	}

	normalized := input
	if !strings.HasPrefix(normalized, "http://") && !strings.HasPrefix(normalized, "https://") {
		normalized = "https://" + normalized
	}

	if !urlPattern.MatchString(normalized) {
		return "", apperr.Validationf("session.url", "%s: %s", msgInvalidURL, input)
	}
	return normalized, nil
}
