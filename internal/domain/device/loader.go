package device

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-yaml"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pelletier/go-toml/v2"
)

// ErrUnsupportedFormat is returned for catalog files with an unknown extension
var ErrUnsupportedFormat = errors.New("unsupported catalog format")

// Format identifies a catalog encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the catalog format from a file extension
func FormatFromPath(p string) (Format, error) {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(p))
	}
}

// ParseCatalog decodes and validates a catalog document
func ParseCatalog(data []byte, format Format) (Catalog, error) {
	var c Catalog
	var err error
	switch format {
	case FormatJSON:
		err = sonic.ConfigStd.Unmarshal(data, &c)
	case FormatYAML:
		err = yaml.Unmarshal(data, &c)
	case FormatTOML:
		err = toml.Unmarshal(data, &c)
	default:
		return Catalog{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to decode %s catalog: %w", format, err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// LoadFile reads a catalog from disk, format chosen by extension
func LoadFile(p string) (Catalog, error) {
	format, err := FormatFromPath(p)
	if err != nil {
		return Catalog{}, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to read catalog %s: %w", p, err)
	}
	return ParseCatalog(data, format)
}

// NewFetchClient returns a resty client for remote catalogs
func NewFetchClient() *resty.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil

	// retries happen in the retryablehttp round tripper
	client := resty.NewWithClient(retryClient.StandardClient())
	client.
		SetTimeout(15*time.Second).
		SetHeader("User-Agent", "DeviceMatrix-Catalog/1.0")
	return client
}

// Fetch downloads a catalog. The format comes from the URL path extension and
// falls back to JSON.
func Fetch(ctx context.Context, client *resty.Client, rawURL string) (Catalog, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Catalog{}, fmt.Errorf("invalid catalog url: %w", err)
	}
	format, err := FormatFromPath(path.Base(u.Path))
	if err != nil {
		format = FormatJSON
	}

	resp, err := client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	if resp.IsError() {
		return Catalog{}, fmt.Errorf("failed to fetch catalog: status %d", resp.StatusCode())
	}
	return ParseCatalog(resp.Body(), format)
}
