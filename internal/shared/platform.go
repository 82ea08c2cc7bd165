package shared

import (
	"fmt"
	"strings"
)

// Platform reports which side effects the current process may perform.
//
// [Interactive] is the normal client: persistent storage, timers and the CSRF bootstrap are available.
// [Headless] mirrors a pre-rendering context where none of those exist; components given a headless
// platform turn their storage, timer and bootstrap work into no-ops.
type Platform int

const (
	Interactive Platform = iota
	Headless
)

// IsInteractive reports whether storage, timers and network bootstrap are available.
func (p Platform) IsInteractive() bool {
	return p == Interactive
}

func (p Platform) String() string {
	switch p {
	case Interactive:
		return "interactive"
	case Headless:
		return "headless"
	default:
		return fmt.Sprintf("platform(%d)", int(p))
	}
}

// ParsePlatform converts a config value into a [Platform]. The empty string is interactive.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "interactive":
		return Interactive, nil
	case "headless":
		return Headless, nil
	default:
		return Interactive, fmt.Errorf("%w: unknown platform %q", ErrInvalidConfig, s)
	}
}
