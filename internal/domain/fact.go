package domain

type FactTier string

const (
	TierDirectCorrection FactTier = "direct_correction"
	TierHedgedCorrection FactTier = "hedged_correction"
	TierDeclaration      FactTier = "declaration"
)

// IsCorrection reports whether the tier carries an explicit old-value hint.
func (t FactTier) IsCorrection() bool {
	return t == TierDirectCorrection || t == TierHedgedCorrection
}

// Confidence returns the extraction-time certainty assigned to this tier.
// Distinct from trust, which evolves after creation.
func (t FactTier) Confidence() float64 {
	switch t {
	case TierDirectCorrection:
		return 0.95
	case TierHedgedCorrection:
		return 0.8
	default:
		return 0.7
	}
}

// ExtractedFact is one candidate (slot, value) produced from a raw
// statement. OldHint is only set by correction tiers and names the value
// the speaker claims to be replacing.
type ExtractedFact struct {
	Slot    string   `json:"slot"`
	Value   string   `json:"value"`
	OldHint string   `json:"old_hint,omitempty"`
	RawText string   `json:"raw_text"`
	Tier    FactTier `json:"tier"`
}

type DriftKind string

const (
	DriftNumeric  DriftKind = "numeric"
	DriftLexical  DriftKind = "lexical"
	DriftSemantic DriftKind = "semantic"
	DriftNone     DriftKind = "none"
)

// Drift is the dissimilarity between an old and new value for a slot.
// Computed is false when no tier could produce evidence (non-numeric
// values with the embedding provider unavailable, or a zero baseline);
// the classifier must then fall through, never assume a verdict.
type Drift struct {
	Score    float64   `json:"score"`
	Kind     DriftKind `json:"kind"`
	Computed bool      `json:"computed"`
	Subsumes bool      `json:"subsumes,omitempty"`
}
