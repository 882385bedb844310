package device

import (
	"errors"
	"fmt"
	"slices"
)

// ErrEmptyCatalog is returned when a catalog list required for generation is empty
var ErrEmptyCatalog = errors.New("device catalog is empty")

// AndroidCatalog lists android brands and the per-brand model lists
type AndroidCatalog struct {
	Brands      []string            `json:"brands" yaml:"brands" toml:"brands"`
	Models      map[string][]string `json:"models" yaml:"models" toml:"models"`
	OSVersions  []string            `json:"osVersions" yaml:"osVersions" toml:"osVersions"`
	Resolutions []string            `json:"resolutions" yaml:"resolutions" toml:"resolutions"`
}

// IOSCatalog lists iPhone models, iOS versions and resolutions
type IOSCatalog struct {
	Models      []string `json:"models" yaml:"models" toml:"models"`
	Versions    []string `json:"versions" yaml:"versions" toml:"versions"`
	Resolutions []string `json:"resolutions" yaml:"resolutions" toml:"resolutions"`
}

// Catalog is the full set of values a generator may draw from
type Catalog struct {
	Android AndroidCatalog `json:"android" yaml:"android" toml:"android"`
	IOS     IOSCatalog     `json:"ios" yaml:"ios" toml:"ios"`
}

// DefaultCatalog returns the built-in device catalog
func DefaultCatalog() Catalog {
	return Catalog{
		Android: AndroidCatalog{
			Brands: []string{"HUAWEI", "HONOR", "OPPO", "vivo", "Xiaomi", "SAMSUNG", "OnePlus"},
			Models: map[string][]string{
				"HUAWEI":  {"P40", "P30", "Mate 30", "Nova 7"},
				"HONOR":   {"V30", "X10", "30", "20"},
				"OPPO":    {"Reno6", "Find X3", "A93", "R17"},
				"vivo":    {"X60", "Y73", "V21", "S9"},
				"Xiaomi":  {"Mi 11", "Redmi K40", "POCO F3", "Note 10"},
				"SAMSUNG": {"Galaxy S21", "A52", "M32", "F62"},
				"OnePlus": {"9 Pro", "8T", "Nord", "7T"},
			},
			OSVersions:  []string{"10", "11", "12", "13"},
			Resolutions: []string{"1080x2400", "1440x3200", "1080x2340", "1440x3088"},
		},
		IOS: IOSCatalog{
			Models:      []string{"iPhone 12", "iPhone 13", "iPhone 14", "iPhone 15"},
			Versions:    []string{"14.0", "15.0", "16.0", "17.0"},
			Resolutions: []string{"1170x2532", "1284x2778", "1125x2436"},
		},
	}
}

// Validate checks that every list a generation can reach is non-empty
func (c Catalog) Validate() error {
	if len(c.Android.Brands) == 0 {
		return fmt.Errorf("%w: android brands", ErrEmptyCatalog)
	}
	for _, brand := range c.Android.Brands {
		if len(c.Android.Models[brand]) == 0 {
			return fmt.Errorf("%w: android models for brand %q", ErrEmptyCatalog, brand)
		}
	}
	if len(c.Android.OSVersions) == 0 {
		return fmt.Errorf("%w: android os versions", ErrEmptyCatalog)
	}
	if len(c.Android.Resolutions) == 0 {
		return fmt.Errorf("%w: android resolutions", ErrEmptyCatalog)
	}
	if len(c.IOS.Models) == 0 {
		return fmt.Errorf("%w: ios models", ErrEmptyCatalog)
	}
	if len(c.IOS.Versions) == 0 {
		return fmt.Errorf("%w: ios versions", ErrEmptyCatalog)
	}
	if len(c.IOS.Resolutions) == 0 {
		return fmt.Errorf("%w: ios resolutions", ErrEmptyCatalog)
	}
	return nil
}

// HasAndroidModel reports whether model belongs to brand's model list
func (c Catalog) HasAndroidModel(brand, model string) bool {
	return slices.Contains(c.Android.Models[brand], model)
}

// HasIOSModel reports whether model belongs to the iOS model list
func (c Catalog) HasIOSModel(model string) bool {
	return slices.Contains(c.IOS.Models, model)
}

// clone copies the catalog so a generator never shares slices with its caller
func (c Catalog) clone() Catalog {
	models := make(map[string][]string, len(c.Android.Models))
	for brand, list := range c.Android.Models {
		models[brand] = slices.Clone(list)
	}
	return Catalog{
		Android: AndroidCatalog{
			Brands:      slices.Clone(c.Android.Brands),
			Models:      models,
			OSVersions:  slices.Clone(c.Android.OSVersions),
			Resolutions: slices.Clone(c.Android.Resolutions),
		},
		IOS: IOSCatalog{
			Models:      slices.Clone(c.IOS.Models),
			Versions:    slices.Clone(c.IOS.Versions),
			Resolutions: slices.Clone(c.IOS.Resolutions),
		},
	}
}
