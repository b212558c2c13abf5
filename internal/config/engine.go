package config

import "time"

// SlotClass groups slots by how quickly their values go stale. Trust for
// volatile slots decays faster than for stable ones.
type SlotClass string

const (
	SlotStable   SlotClass = "stable"
	SlotStandard SlotClass = "standard"
	SlotVolatile SlotClass = "volatile"
)

// TrustConfig holds every tunable of the trust scorer. It is constructed
// once and passed in; the scorer never reads ambient global state.
type TrustConfig struct {
	// Period is the unit of elapsed time for decay exponentiation.
	Period time.Duration
	// DecayRates is the per-period retention factor by slot class.
	DecayRates map[SlotClass]float64
	// ConfirmationIncrement is added on explicit reaffirmation, capped at 1.
	ConfirmationIncrement float64
	// OverrideBoost moves the winning item's trust this fraction of the
	// way toward 1.0 on OVERRIDE.
	OverrideBoost float64
	// ConflictPenalty is subtracted from the losing item's trust on
	// OVERRIDE, floored at 0.
	ConflictPenalty float64
}

func DefaultTrustConfig() TrustConfig {
	return TrustConfig{
		Period: 24 * time.Hour,
		DecayRates: map[SlotClass]float64{
			SlotStable:   0.999,
			SlotStandard: 0.995,
			SlotVolatile: 0.98,
		},
		ConfirmationIncrement: 0.05,
		OverrideBoost:         0.5,
		ConflictPenalty:       0.2,
	}
}

// RateFor returns the decay rate for a slot class, defaulting to standard.
func (c TrustConfig) RateFor(class SlotClass) float64 {
	if r, ok := c.DecayRates[class]; ok {
		return r
	}
	return c.DecayRates[SlotStandard]
}

// SlotConfig is the shared slot vocabulary: which slots exist, which are
// mutually exclusive, which tolerate refinement without conflict, and how
// fast each decays.
type SlotConfig struct {
	Exclusive    map[string]bool
	NonExclusive map[string]bool
	Classes      map[string]SlotClass
}

func DefaultSlotConfig() SlotConfig {
	return SlotConfig{
		Exclusive: map[string]bool{
			"name":     true,
			"age":      true,
			"employer": true,
			"location": true,
			"role":     true,
		},
		NonExclusive: map[string]bool{
			"hobby": true,
			"skill": true,
		},
		Classes: map[string]SlotClass{
			"name":     SlotStable,
			"age":      SlotStable,
			"employer": SlotStandard,
			"location": SlotStandard,
			"role":     SlotStandard,
			"hobby":    SlotVolatile,
			"skill":    SlotVolatile,
		},
	}
}

func (c SlotConfig) IsExclusive(slot string) bool    { return c.Exclusive[slot] }
func (c SlotConfig) IsNonExclusive(slot string) bool { return c.NonExclusive[slot] }

func (c SlotConfig) ClassOf(slot string) SlotClass {
	if cl, ok := c.Classes[slot]; ok {
		return cl
	}
	return SlotStandard
}

// ClassifierConfig holds the deterministic classifier thresholds.
type ClassifierConfig struct {
	// NumericThreshold is the relative numeric drift above which a
	// revision is flagged. Strictly greater-than: exactly the threshold
	// does not flag.
	NumericThreshold float64
	// SemanticThreshold is the embedding drift above which the advisory
	// tier may surface a soft conflict, and then only with advisory
	// agreement. Semantic drift alone never flags.
	SemanticThreshold float64
	// AdvisoryProbabilityFloor is the minimum advisory probability before
	// the verdict counts as agreement in the last tier.
	AdvisoryProbabilityFloor float64
}

func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		NumericThreshold:         0.20,
		SemanticThreshold:        0.5,
		AdvisoryProbabilityFloor: 0.85,
	}
}

// PolicyConfig holds the policy engine tunables.
type PolicyConfig struct {
	// TrustMargin is the trust gap above which one side is considered
	// clearly stronger; smaller gaps on a hard assertion clash go to the
	// user.
	TrustMargin float64
	// AdvisoryAuthoritative allows the advisory action to replace the
	// deterministic one, and then only when both already agree above
	// AdvisoryProbabilityFloor.
	AdvisoryAuthoritative    bool
	AdvisoryProbabilityFloor float64
}

func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		TrustMargin:              0.25,
		AdvisoryAuthoritative:    false,
		AdvisoryProbabilityFloor: 0.85,
	}
}

// PolicyConfigFromEnv builds the policy config from loaded env vars.
func PolicyConfigFromEnv() PolicyConfig {
	cfg := DefaultPolicyConfig()
	cfg.AdvisoryAuthoritative = AdvisoryAuthoritative()
	cfg.AdvisoryProbabilityFloor = AdvisoryProbabilityFloor()
	return cfg
}

// GateConfig selects how the query gate degrades on open hard conflicts.
type GateConfig struct {
	// AskClarify switches the degraded mode from uncertain (present both
	// values) to ask_clarify (emit the entry's resolution question).
	AskClarify bool
}

func GateConfigFromEnv() GateConfig {
	return GateConfig{AskClarify: GateAskClarify()}
}
