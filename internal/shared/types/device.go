package types

// Platform identifies the simulated operating system family
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

// Valid reports whether p is a known platform
func (p Platform) Valid() bool {
	return p == PlatformAndroid || p == PlatformIOS
}

// DeviceProfile is a synthetic device identity.
//
// Android profiles carry Brand and OSVersion, iOS profiles carry Version.
// The unused fields stay empty and are omitted from JSON.
type DeviceProfile struct {
	Platform    Platform `json:"platform"`
	Brand       string   `json:"brand,omitempty"`
	Model       string   `json:"model"`
	OSVersion   string   `json:"osVersion,omitempty"`
	Version     string   `json:"version,omitempty"`
	Resolution  string   `json:"resolution"`
	UserAgent   string   `json:"userAgent"`
	Fingerprint string   `json:"fingerprint"`
}
