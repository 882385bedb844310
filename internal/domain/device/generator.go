package device

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/types"
)

// ErrUnknownStrategy is returned when Generate is asked for an unregistered strategy
var ErrUnknownStrategy = errors.New("unknown device strategy")

// Generator produces device profiles from a validated catalog
type Generator struct {
	catalog    Catalog
	strategies map[string]Strategy
	now        func() time.Time
	metrics    *monitoring.Metrics

	mu  sync.Mutex // Protects rng
	rng *rand.Rand
}

// Option configures a Generator
type Option func(*Generator)

// WithSource replaces the random source (deterministic tests)
func WithSource(src rand.Source) Option {
	return func(g *Generator) {
		g.rng = rand.New(src)
	}
}

// WithClock replaces the clock used for fingerprint timestamps
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// WithStrategy registers an additional strategy, replacing any with the same name
func WithStrategy(s Strategy) Option {
	return func(g *Generator) {
		g.strategies[s.Name()] = s
	}
}

// NewGenerator validates the catalog and builds a generator
func NewGenerator(catalog Catalog, opts ...Option) (*Generator, error) {
	if err := catalog.Validate(); err != nil {
		return nil, err
	}

	g := &Generator{
		catalog:    catalog.clone(),
		strategies: map[string]Strategy{StrategyRandom: randomStrategy{}},
		now:        time.Now,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// MustNewGenerator is NewGenerator that panics on an invalid catalog
func MustNewGenerator(catalog Catalog, opts ...Option) *Generator {
	g, err := NewGenerator(catalog, opts...)
	if err != nil {
		panic(err)
	}
	return g
}

// WithMetrics adds metrics tracking to the generator
func (g *Generator) WithMetrics(metrics *monitoring.Metrics) *Generator {
	g.metrics = metrics
	return g
}

// Catalog returns a copy of the catalog the generator draws from
func (g *Generator) Catalog() Catalog {
	return g.catalog.clone()
}

// Strategies returns the registered strategy names, sorted
func (g *Generator) Strategies() []string {
	names := make([]string, 0, len(g.strategies))
	for name := range g.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasStrategy reports whether name is registered
func (g *Generator) HasStrategy(name string) bool {
	_, ok := g.strategies[name]
	return ok
}

// Generate produces one profile. An empty strategy name means StrategyRandom.
func (g *Generator) Generate(ctx context.Context, strategy string) (types.DeviceProfile, error) {
	if err := ctx.Err(); err != nil {
		return types.DeviceProfile{}, err
	}
	if strategy == "" {
		strategy = StrategyRandom
	}
	s, ok := g.strategies[strategy]
	if !ok {
		return types.DeviceProfile{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	g.mu.Lock()
	var profile types.DeviceProfile
	switch s.Platform(g.rng) {
	case types.PlatformAndroid:
		profile = g.android()
	default:
		profile = g.ios()
	}
	g.mu.Unlock()

	if g.metrics != nil {
		g.metrics.RecordProfileGenerated(string(profile.Platform))
	}
	return profile, nil
}

// android must be called with mu held
func (g *Generator) android() types.DeviceProfile {
	c := g.catalog.Android
	brand := pick(g.rng, c.Brands)
	model := pick(g.rng, c.Models[brand])
	osVersion := pick(g.rng, c.OSVersions)

	return types.DeviceProfile{
		Platform:    types.PlatformAndroid,
		Brand:       brand,
		Model:       model,
		OSVersion:   osVersion,
		Resolution:  pick(g.rng, c.Resolutions),
		UserAgent:   androidUserAgent(brand, model, osVersion, randomChromeMajor(g.rng)),
		Fingerprint: fingerprint(g.rng, g.now(), string(types.PlatformAndroid), brand, model),
	}
}

// ios must be called with mu held
func (g *Generator) ios() types.DeviceProfile {
	c := g.catalog.IOS
	model := pick(g.rng, c.Models)
	version := pick(g.rng, c.Versions)

	return types.DeviceProfile{
		Platform:    types.PlatformIOS,
		Model:       model,
		Version:     version,
		Resolution:  pick(g.rng, c.Resolutions),
		UserAgent:   iosUserAgent(model, version),
		Fingerprint: fingerprint(g.rng, g.now(), string(types.PlatformIOS), iosFingerprintBrand, model),
	}
}

func pick(r *rand.Rand, list []string) string {
	return list[r.Intn(len(list))]
}
