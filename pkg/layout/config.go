package layout

import (
	"errors"
	"fmt"
	"math"

	"github.com/Sumatoshi-tech/lanepack/pkg/lane"
)

// Default engine settings.
const (
	DefaultPitch               = 1.0
	DefaultHardLaneLimit       = 1000
	DefaultOversizeWidth       = 20000
	DefaultLinearScanThreshold = lane.DefaultLinearScanThreshold
)

// Configuration errors.
var (
	ErrInvalidPitch     = errors.New("pitch must be a finite number >= 1")
	ErrInvalidLaneLimit = errors.New("hard lane limit must be positive")
	ErrInvalidMode      = errors.New("unknown display mode")
	ErrInvalidOversize  = errors.New("oversize width must not be negative")
)

// Mode selects how the engine places items.
type Mode string

// Display modes.
const (
	// ModeNormal searches for the lowest lane range clear of collisions.
	ModeNormal Mode = "normal"
	// ModeCollapse stacks every item at lane 0 without searching.
	ModeCollapse Mode = "collapse"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeNormal, ModeCollapse:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Config holds engine construction parameters.
type Config struct {
	// Pitch is the quantization step: coordinates are floor-divided by it.
	Pitch float64
	// HardLaneLimit bounds the lane search and lane materialization.
	HardLaneLimit int
	Mode          Mode
	Backend       lane.Backend
	// MergeEpsilon is the widest gap, in quantized units, bridged on insert.
	MergeEpsilon int64
	MergePolicy  lane.MergePolicy
	// OversizeWidth is the quantized width above which an item degrades its
	// lanes to fully occupied. Zero disables the degradation.
	OversizeWidth       int64
	LinearScanThreshold int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Pitch:               DefaultPitch,
		HardLaneLimit:       DefaultHardLaneLimit,
		Mode:                ModeNormal,
		Backend:             lane.BackendArray,
		MergePolicy:         lane.MergeAny,
		OversizeWidth:       DefaultOversizeWidth,
		LinearScanThreshold: DefaultLinearScanThreshold,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if math.IsNaN(c.Pitch) || math.IsInf(c.Pitch, 0) || c.Pitch < 1 {
		return fmt.Errorf("%w: %v", ErrInvalidPitch, c.Pitch)
	}

	if c.HardLaneLimit <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLaneLimit, c.HardLaneLimit)
	}

	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}

	if _, err := lane.ParseBackend(string(c.Backend)); err != nil {
		return err
	}

	if c.OversizeWidth < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidOversize, c.OversizeWidth)
	}

	return c.laneOptions().Validate()
}

func (c Config) laneOptions() lane.Options {
	opts := lane.DefaultOptions()
	opts.MergeEpsilon = c.MergeEpsilon
	opts.LinearScanThreshold = c.LinearScanThreshold

	if c.MergePolicy != "" {
		opts.MergePolicy = c.MergePolicy
	}

	return opts
}
