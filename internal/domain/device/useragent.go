package device

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// Chrome major versions embedded in android user-agents, [min, max)
const (
	chromeMajorMin = 95
	chromeMajorMax = 108
)

const (
	fingerprintSeparator = "_"
	fingerprintSuffixLen = 8
	iosFingerprintBrand  = "Apple"
	base36Alphabet       = "0123456789abcdefghijklmnopqrstuvwxyz"
)

func androidUserAgent(brand, model, osVersion string, chromeMajor int) string {
	return fmt.Sprintf(
		"Mozilla/5.0 (Linux; Android %s; %s %s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%d Mobile Safari/537.36",
		osVersion, brand, model, chromeMajor,
	)
}

// iosUserAgent rewrites the first '.' of the version to '_' in the OS token only
func iosUserAgent(model, version string) string {
	return fmt.Sprintf(
		"Mozilla/5.0 (%s; CPU iPhone OS %s like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/%s Mobile/15E148 Safari/604.1",
		model, strings.Replace(version, ".", "_", 1), version,
	)
}

func randomChromeMajor(r *rand.Rand) int {
	return chromeMajorMin + r.Intn(chromeMajorMax-chromeMajorMin)
}

// fingerprint builds platform_brand_model_<ts36>_<rand36>
func fingerprint(r *rand.Rand, now time.Time, platform, brand, model string) string {
	suffix := make([]byte, fingerprintSuffixLen)
	for i := range suffix {
		suffix[i] = base36Alphabet[r.Intn(len(base36Alphabet))]
	}
	return strings.Join([]string{
		platform,
		brand,
		model,
		strconv.FormatInt(now.UnixMilli(), 36),
		string(suffix),
	}, fingerprintSeparator)
}
