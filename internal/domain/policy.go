package domain

import "github.com/google/uuid"

type PolicyAction string

const (
	ActionOverride PolicyAction = "OVERRIDE"
	ActionPreserve PolicyAction = "PRESERVE"
	ActionAskUser  PolicyAction = "ASK_USER"
)

type DecisionSource string

const (
	SourceHeuristic       DecisionSource = "heuristic"
	SourceLearnedAdvisory DecisionSource = "learned_advisory"
)

// PolicyDecision is the outcome of resolving one classified conflict.
// Transient: it is not persisted beyond the ledger fields it populates,
// but the advisory comparison is kept for audit logging.
type PolicyDecision struct {
	Slot      string         `json:"slot"`
	Action    PolicyAction   `json:"action"`
	Source    DecisionSource `json:"source"`
	Score     float64        `json:"score"`
	Rationale string         `json:"rationale"`

	AdvisoryAction      *PolicyAction `json:"advisory_action,omitempty"`
	AdvisoryProbability float64       `json:"advisory_probability,omitempty"`
	AdvisoryDisagrees   bool          `json:"advisory_disagrees,omitempty"`

	Question string `json:"question,omitempty"`
}

type AnswerMode string

const (
	ModeQuick      AnswerMode = "quick"
	ModeUncertain  AnswerMode = "uncertain"
	ModeAskClarify AnswerMode = "ask_clarify"
)

// SlotAnswer is the gated result of a slot query. Value is only set in
// quick mode; BothValues carries the two sides of an open hard conflict.
type SlotAnswer struct {
	ThreadID   string       `json:"thread_id"`
	Slot       string       `json:"slot"`
	Mode       AnswerMode   `json:"mode"`
	Value      *MemoryItem  `json:"value,omitempty"`
	BothValues []MemoryItem `json:"both_values,omitempty"`
	Question   string       `json:"question,omitempty"`
	Conflicts  []uuid.UUID  `json:"open_conflicts,omitempty"`
	Citations  []uuid.UUID  `json:"citations"`
}

// AdvisoryFeatures is the feature vector sent to the optional learned
// advisory model.
type AdvisoryFeatures struct {
	Slot          string    `json:"slot"`
	OldValue      string    `json:"old_value"`
	NewValue      string    `json:"new_value"`
	Tier          FactTier  `json:"tier"`
	DriftScore    float64   `json:"drift_score"`
	DriftKind     DriftKind `json:"drift_kind"`
	OldTrust      float64   `json:"old_trust"`
	NewConfidence float64   `json:"new_confidence"`
}

// AdvisoryVerdict is the model's suggestion. Advisory only: it never
// changes engine behavior unless the deterministic path already agrees.
type AdvisoryVerdict struct {
	Category    ConflictType `json:"category"`
	Policy      PolicyAction `json:"policy"`
	Probability float64      `json:"probability"`
}
