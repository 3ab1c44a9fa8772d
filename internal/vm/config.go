package vm

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

const (
	DefaultClockSpeed = 540 // Hz
	DefaultTickRate   = 60  // Hz
)

type Config struct {
	ClockSpeed int // Instructions per second
	TickRate   int // Tick calls per second; timers count down at this rate
	Quirks     Quirks

	// Random supplies CXNN bytes. SystemRandom is used when nil.
	Random RandomSource
}

func DefaultConfig() Config {
	return Config{
		ClockSpeed: DefaultClockSpeed,
		TickRate:   DefaultTickRate,
	}
}

// CyclesPerTick is the number of instructions executed by one Tick.
func (cfg Config) CyclesPerTick() int {
	if cfg.TickRate <= 0 {
		return 0
	}
	return cfg.ClockSpeed / cfg.TickRate
}

func (cfg Config) validate() error {
	if cfg.TickRate <= 0 {
		return fmt.Errorf("%w: tick rate must be positive, got %d", ErrInvalidConfig, cfg.TickRate)
	}
	if cfg.ClockSpeed < 0 {
		return fmt.Errorf("%w: clock speed must not be negative, got %d", ErrInvalidConfig, cfg.ClockSpeed)
	}
	return nil
}

// Quirks selects between behaviours that differ across CHIP-8 interpreters.
// The zero value is the canonical behaviour.
type Quirks struct {
	// 8XY6/8XYE shift VY into VX instead of shifting VX in place.
	ShiftUsesVY bool

	// FX55/FX65 leave I pointing past the last register transferred.
	LoadStoreIncrementsIndex bool

	// DXYN wraps pixels past the screen edge instead of clipping them.
	WrapSprites bool
}

var quirkPresets = map[string]Quirks{
	"canonical": {},
	"cosmac": {
		ShiftUsesVY:              true,
		LoadStoreIncrementsIndex: true,
	},
}

// QuirksFor returns a named quirk preset.
func QuirksFor(name string) (Quirks, error) {
	q, ok := quirkPresets[name]
	if !ok {
		return Quirks{}, fmt.Errorf("%w: unknown quirk preset %q", ErrInvalidConfig, name)
	}
	return q, nil
}

func QuirkPresets() []string {
	names := make([]string, 0, len(quirkPresets))
	for name := range quirkPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type RandomSource interface {
	Byte() uint8
}

// RandomFunc adapts a function to RandomSource.
type RandomFunc func() uint8

func (f RandomFunc) Byte() uint8 {
	return f()
}

// SystemRandom draws from the math/rand/v2 global generator.
type SystemRandom struct{}

func (SystemRandom) Byte() uint8 {
	return uint8(rand.UintN(256))
}

type seededRandom struct {
	rng *rand.Rand
}

// NewSeededRandom returns a reproducible RandomSource.
func NewSeededRandom(seed uint64) RandomSource {
	return &seededRandom{
		rng: rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)),
	}
}

func (r *seededRandom) Byte() uint8 {
	return uint8(r.rng.UintN(256))
}
