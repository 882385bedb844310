package device

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/DeviceMatrix/backend/internal/shared/types"
)

// StrategyRandom picks android or ios with equal probability
const StrategyRandom = "random"

// Strategy decides which platform the next profile is generated for
type Strategy interface {
	Name() string
	Platform(r *rand.Rand) types.Platform
}

type randomStrategy struct{}

func (randomStrategy) Name() string { return StrategyRandom }

func (randomStrategy) Platform(r *rand.Rand) types.Platform {
	if r.Intn(2) == 0 {
		return types.PlatformAndroid
	}
	return types.PlatformIOS
}

// WeightedStrategy picks android with probability AndroidWeight
type WeightedStrategy struct {
	StrategyName  string
	AndroidWeight float64 // 0..1
}

// Name returns the registered strategy name
func (w WeightedStrategy) Name() string { return w.StrategyName }

// Platform draws a platform according to the configured weight
func (w WeightedStrategy) Platform(r *rand.Rand) types.Platform {
	if r.Float64() < w.AndroidWeight {
		return types.PlatformAndroid
	}
	return types.PlatformIOS
}

// FixedStrategy always returns the same platform
type FixedStrategy struct {
	StrategyName string
	Target       types.Platform
}

// Name returns the registered strategy name
func (f FixedStrategy) Name() string { return f.StrategyName }

// Platform returns the configured platform
func (f FixedStrategy) Platform(*rand.Rand) types.Platform { return f.Target }

// ErrInvalidStrategy is returned by ParseStrategy for a malformed definition
var ErrInvalidStrategy = errors.New("invalid device strategy")

// ParseStrategy builds a named strategy from its configured value. A platform
// name ("android" or "ios") pins every profile to that platform; a number in
// [0, 1] is the probability of android. The built-in random strategy cannot be
// redefined.
func ParseStrategy(name, value string) (Strategy, error) {
	name = strings.TrimSpace(name)
	value = strings.ToLower(strings.TrimSpace(value))
	if name == "" || name == StrategyRandom {
		return nil, fmt.Errorf("%w: name %q is reserved or empty", ErrInvalidStrategy, name)
	}

	if p := types.Platform(value); p.Valid() {
		return FixedStrategy{StrategyName: name, Target: p}, nil
	}

	weight, err := strconv.ParseFloat(value, 64)
	if err != nil || weight < 0 || weight > 1 {
		return nil, fmt.Errorf("%w: %s=%q must be android, ios or a weight in [0, 1]", ErrInvalidStrategy, name, value)
	}
	return WeightedStrategy{StrategyName: name, AndroidWeight: weight}, nil
}

// StrategyOptions parses name=value definitions into generator options, in name
// order
func StrategyOptions(defs map[string]string) ([]Option, error) {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	opts := make([]Option, 0, len(names))
	for _, name := range names {
		s, err := ParseStrategy(name, defs[name])
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithStrategy(s))
	}
	return opts, nil
}
