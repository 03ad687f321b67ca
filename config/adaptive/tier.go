package adaptive

import "fmt"

// Tier is a coarse classification of a device's performance headroom.
type Tier int

const (
	TierLow Tier = iota
	TierMedium
	TierHigh
)

func (t Tier) String() string {
	switch t {
	case TierLow:
		return "low"
	case TierMedium:
		return "medium"
	case TierHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Downgraded returns the tier one step below t, saturating at TierLow.
func (t Tier) Downgraded() Tier {
	if t <= TierLow {
		return TierLow
	}
	return t - 1
}

// Tier override values accepted in configuration. OverrideAuto defers to
// hardware detection; the others force a specific tier.
const (
	OverrideAuto   = "auto"
	OverrideLow    = "low"
	OverrideMedium = "medium"
	OverrideHigh   = "high"
)

// ParseTier converts a tier name into a Tier. It accepts the non-auto
// override values.
func ParseTier(s string) (Tier, error) {
	switch s {
	case OverrideLow:
		return TierLow, nil
	case OverrideMedium:
		return TierMedium, nil
	case OverrideHigh:
		return TierHigh, nil
	default:
		return TierMedium, fmt.Errorf("unknown tier %q", s)
	}
}
