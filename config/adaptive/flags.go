package adaptive

// FeatureFlags is the set of visual-quality switches the host UI consumes.
// A flag set is always replaced wholesale; callers must not mutate fields of
// a shared instance.
type FeatureFlags struct {
	Particles  bool    `json:"particles"`
	Animations bool    `json:"animations"`
	Blur       bool    `json:"blur"`
	Shadows    bool    `json:"shadows"`
	Complexity float64 `json:"complexity"` // animation complexity multiplier in [0,1]
}

// FlagsForTier maps a capability tier to its feature-flag set. The mapping is
// a pure function of the tier.
func FlagsForTier(tier Tier) FeatureFlags {
	switch tier {
	case TierLow:
		return FeatureFlags{
			Particles:  false,
			Animations: false,
			Blur:       false,
			Shadows:    false,
			Complexity: 0.3,
		}
	case TierHigh:
		return FeatureFlags{
			Particles:  true,
			Animations: true,
			Blur:       true,
			Shadows:    true,
			Complexity: 1.0,
		}
	default:
		return FeatureFlags{
			Particles:  false,
			Animations: true,
			Blur:       false,
			Shadows:    true,
			Complexity: 0.7,
		}
	}
}
