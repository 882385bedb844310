package persistence

import (
	"math"
	"regexp"

	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/domain/device"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/domain/session"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/apperr"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/types"
)

// ExportFilename is the suggested download name for an exported bundle
const ExportFilename = "matrix-config.json"

var resolutionPattern = regexp.MustCompile(`^\d+x\d+$`)

// Rules is what imported and loaded documents are checked against
type Rules interface {
	HasStrategy(name string) bool
	Catalog() device.Catalog
}

// Pointer fields tell an absent key apart from a zero value
type sessionDoc struct {
	ID          *int64  `json:"id"`
	Platform    string  `json:"platform"`
	Brand       string  `json:"brand"`
	Model       string  `json:"model"`
	OSVersion   string  `json:"osVersion"`
	Version     string  `json:"version"`
	Resolution  string  `json:"resolution"`
	UserAgent   string  `json:"userAgent"`
	Fingerprint string  `json:"fingerprint"`
	URL         string  `json:"url"`
	IsLoading   bool    `json:"isLoading"`
	Error       *string `json:"error"`
}

type settingsDoc struct {
	DefaultURL       *string  `json:"defaultUrl"`
	DeviceStrategy   *string  `json:"deviceStrategy"`
	AutoSaveInterval *float64 `json:"autoSaveInterval"`
}

type bundleDoc struct {
	Windows  *[]sessionDoc `json:"windows"`
	Settings *settingsDoc  `json:"settings"`
}

const opImport = "persistence.import"

// checkSession turns a decoded entry into a session. i is only used in messages.
func checkSession(rules Rules, i int, d sessionDoc) (types.Session, error) {
	if d.ID == nil {
		return types.Session{}, apperr.Validationf(opImport, "window %d: missing id", i)
	}

	platform := types.Platform(d.Platform)
	if !platform.Valid() {
		return types.Session{}, apperr.Validationf(opImport, "window %d: unknown platform %q", i, d.Platform)
	}

	catalog := rules.Catalog()
	switch platform {
	case types.PlatformAndroid:
		if d.Brand == "" || d.OSVersion == "" {
			return types.Session{}, apperr.Validationf(opImport, "window %d: android device needs brand and osVersion", i)
		}
		if d.Version != "" {
			return types.Session{}, apperr.Validationf(opImport, "window %d: android device cannot carry an ios version", i)
		}
		if !catalog.HasAndroidModel(d.Brand, d.Model) {
			return types.Session{}, apperr.Validationf(opImport, "window %d: model %q is not a %s device", i, d.Model, d.Brand)
		}
	case types.PlatformIOS:
		if d.Version == "" {
			return types.Session{}, apperr.Validationf(opImport, "window %d: ios device needs version", i)
		}
		if d.Brand != "" || d.OSVersion != "" {
			return types.Session{}, apperr.Validationf(opImport, "window %d: ios device cannot carry brand or osVersion", i)
		}
		if !catalog.HasIOSModel(d.Model) {
			return types.Session{}, apperr.Validationf(opImport, "window %d: unknown ios model %q", i, d.Model)
		}
	}

	if !resolutionPattern.MatchString(d.Resolution) {
		return types.Session{}, apperr.Validationf(opImport, "window %d: resolution must look like 1080x2400", i)
	}
	if d.UserAgent == "" || d.Fingerprint == "" {
		return types.Session{}, apperr.Validationf(opImport, "window %d: missing userAgent or fingerprint", i)
	}

	url, err := session.NormalizeURL(d.URL)
	if err != nil {
		return types.Session{}, apperr.Validationf(opImport, "window %d: %s", i, apperr.Message(err))
	}

	return types.Session{
		ID: *d.ID,
		DeviceProfile: types.DeviceProfile{
			Platform:    platform,
			Brand:       d.Brand,
			Model:       d.Model,
			OSVersion:   d.OSVersion,
			Version:     d.Version,
			Resolution:  d.Resolution,
			UserAgent:   d.UserAgent,
			Fingerprint: d.Fingerprint,
		},
		URL:       url,
		IsLoading: d.IsLoading,
		Error:     d.Error,
	}, nil
}

// mergeSettings shallow-merges the present fields of d over base
func mergeSettings(rules Rules, op string, d *settingsDoc, base types.Settings) (types.Settings, error) {
	out := base
	if d == nil {
		return out, nil
	}

	if d.DefaultURL != nil {
		url, err := session.NormalizeURL(*d.DefaultURL)
		if err != nil {
			return base, apperr.Validationf(op, "defaultUrl: %s", apperr.Message(err))
		}
		out.DefaultURL = url
	}
	if d.DeviceStrategy != nil {
		if !rules.HasStrategy(*d.DeviceStrategy) {
			return base, apperr.Validationf(op, "deviceStrategy: unknown strategy %q", *d.DeviceStrategy)
		}
		out.DeviceStrategy = *d.DeviceStrategy
	}
	if d.AutoSaveInterval != nil {
		v := *d.AutoSaveInterval
		if v <= 0 || v != math.Trunc(v) || v > math.MaxInt32 {
			return base, apperr.Validation(op, "autoSaveInterval must be a positive whole number of seconds")
		}
		out.AutoSaveInterval = int(v)
	}
	return out, nil
}

// ValidateSettings checks a complete settings value and returns it with the
// default url normalized
func ValidateSettings(rules Rules, s types.Settings) (types.Settings, error) {
	url := s.DefaultURL
	strategy := s.DeviceStrategy
	interval := float64(s.AutoSaveInterval)

	return mergeSettings(rules, "persistence.settings", &settingsDoc{
		DefaultURL:       &url,
		DeviceStrategy:   &strategy,
		AutoSaveInterval: &interval,
	}, s)
}
