package domain

import (
	"time"

	"github.com/google/uuid"
)

type Source string

const (
	SourceUser         Source = "user"
	SourceAssistant    Source = "assistant_inferred"
	SourceExternalTool Source = "external_tool"
	SourceSystem       Source = "system"
)

func ValidSource(s string) bool {
	switch Source(s) {
	case SourceUser, SourceAssistant, SourceExternalTool, SourceSystem:
		return true
	}
	return false
}

// InitialTrust is the starting belief strength for an item from this source.
func (s Source) InitialTrust() float64 {
	switch s {
	case SourceUser:
		return 0.9
	case SourceExternalTool:
		return 0.8
	case SourceAssistant:
		return 0.6
	case SourceSystem:
		return 0.5
	default:
		return 0.5
	}
}

type MemoryStatus string

const (
	StatusActive     MemoryStatus = "active"
	StatusSuperseded MemoryStatus = "superseded"
	StatusDeprecated MemoryStatus = "deprecated"
)

func ValidMemoryStatus(s string) bool {
	switch MemoryStatus(s) {
	case StatusActive, StatusSuperseded, StatusDeprecated:
		return true
	}
	return false
}

// MemoryItem is one versioned fact observation for a (thread, slot) pair.
// Items are never physically deleted; supersession and deprecation only
// transition Status and record a reason.
type MemoryItem struct {
	ID                uuid.UUID    `json:"id"`
	ThreadID          string       `json:"thread_id"`
	Slot              string       `json:"slot"`
	Value             string       `json:"value"`
	RawText           string       `json:"raw_text"`
	Source            Source       `json:"source"`
	Confidence        float64      `json:"confidence"`
	Trust             float64      `json:"trust"`
	Status            MemoryStatus `json:"status"`
	SupersedesID      *uuid.UUID   `json:"supersedes_id,omitempty"`
	DeprecationReason *string      `json:"deprecation_reason,omitempty"`
	Conflicting       bool         `json:"conflicting,omitempty"`
	ValueEmbedding    []float32    `json:"-"`
	CreatedAt         time.Time    `json:"created_at"`
	TrustUpdatedAt    time.Time    `json:"trust_updated_at"`
}

type TrustReason string

const (
	TrustDecay            TrustReason = "decay"
	TrustConfirmation     TrustReason = "confirmation"
	TrustConflictOverride TrustReason = "conflict_override"
	TrustConflictPreserve TrustReason = "conflict_preserve"
	TrustManual           TrustReason = "manual"
)

// TrustHistoryRow is one entry of the append-only trust audit trail.
type TrustHistoryRow struct {
	MemoryID   uuid.UUID   `json:"memory_id"`
	Timestamp  time.Time   `json:"timestamp"`
	TrustValue float64     `json:"trust_value"`
	Delta      float64     `json:"delta"`
	Reason     TrustReason `json:"reason"`
}
