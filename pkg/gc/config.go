package gc

import (
	"fmt"
	"strconv"
	"strings"
)

// ZealMode is one bit of the debug-only perturbation regime. Modes are
// combined as a bitmask so several can be active at once.
type ZealMode uint32

const (
	ZealAllocTrigger     ZealMode = 1 << iota // GC every N allocations
	ZealVerifyPreBarrier                      // assert the pre-barrier invariant after every barrier call
	ZealMultiSliceIGC                         // force multiple slices even when a budget would finish in one
	ZealShrinkingGC                           // always decommit empty regions, even below the normal threshold
	ZealCompactEveryN                         // force a compacting phase every N collections
)

// Config carries every tunable the core needs. It has no file format: a
// host either builds one with DefaultConfig and overrides fields, or (in
// cmd/cellheapdemo) parses it from flags; configuration loading is an
// external-I/O concern this core does not own.
type Config struct {
	// NurserySize is the nursery's bump-allocation capacity in bytes.
	NurserySize uint32
	// GenerationalGC disables the nursery entirely when false: every
	// allocation takes the tenured path and minor GC becomes a no-op.
	GenerationalGC bool
	// StoreBufferCapacity bounds the store buffer before it forces an
	// immediate minor GC on overflow.
	StoreBufferCapacity int
	// MarkStackMax bounds the marker's geometric growth before it spills
	// to the delayed-children list.
	MarkStackMax int
	// RopeDepthCap bounds inline rope-walk recursion.
	RopeDepthCap int

	// Zeal holds the debug perturbation bitmask and its frequency
	// argument.
	Zeal      ZealMode
	ZealFreq  int

	// Logger receives diagnostic lines (slice transitions, sweep-group
	// order, OOM retries). Defaults to a no-op.
	Logger func(format string, args ...any)
}

// DefaultConfig returns the knob set new GC instances use unless
// overridden.
func DefaultConfig() Config {
	return Config{
		NurserySize:         defaultNurserySize,
		GenerationalGC:      true,
		StoreBufferCapacity: 4096,
		MarkStackMax:        1 << 20,
		RopeDepthCap:        100,
		Logger:              func(string, ...any) {},
	}
}

func (c *Config) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger(format, args...)
	}
}

// ParseZealSpec parses a "mode[,mode...][:frequency]" string into a
// ZealMode bitmask and frequency. Accepted mode names are the lowercase,
// hyphenated form of the ZealMode constants (e.g. "alloc-trigger",
// "verify-pre-barrier").
func ParseZealSpec(spec string) (ZealMode, int, error) {
	if spec == "" {
		return 0, 0, nil
	}
	parts := strings.SplitN(spec, ":", 2)
	modeList := strings.Split(parts[0], ",")
	freq := 1
	if len(parts) == 2 {
		f, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, fmt.Errorf("gc: invalid zeal frequency %q: %w", parts[1], err)
		}
		freq = f
	}
	var mask ZealMode
	for _, name := range modeList {
		m, ok := zealNameTable[strings.TrimSpace(name)]
		if !ok {
			return 0, 0, fmt.Errorf("gc: unknown zeal mode %q", name)
		}
		mask |= m
	}
	return mask, freq, nil
}

var zealNameTable = map[string]ZealMode{
	"alloc-trigger":      ZealAllocTrigger,
	"verify-pre-barrier":  ZealVerifyPreBarrier,
	"multi-slice-igc":     ZealMultiSliceIGC,
	"shrinking-gc":        ZealShrinkingGC,
	"compact-every-n":     ZealCompactEveryN,
}

func (m ZealMode) has(bit ZealMode) bool { return m&bit != 0 }
