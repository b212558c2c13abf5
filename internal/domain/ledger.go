package domain

import (
	"time"

	"github.com/google/uuid"
)

type ConflictType string

const (
	ConflictRefinement ConflictType = "REFINEMENT"
	ConflictRevision   ConflictType = "REVISION"
	ConflictTemporal   ConflictType = "TEMPORAL"
	ConflictAssertion  ConflictType = "CONFLICT"
)

func ValidConflictType(s string) bool {
	switch ConflictType(s) {
	case ConflictRefinement, ConflictRevision, ConflictTemporal, ConflictAssertion:
		return true
	}
	return false
}

type Severity string

const (
	SeveritySoft Severity = "soft"
	SeverityHard Severity = "hard"
)

type LedgerStatus string

const (
	LedgerOpen      LedgerStatus = "open"
	LedgerResolved  LedgerStatus = "resolved"
	LedgerAccepted  LedgerStatus = "accepted"
	LedgerDismissed LedgerStatus = "dismissed"
)

func ValidLedgerStatus(s string) bool {
	switch LedgerStatus(s) {
	case LedgerOpen, LedgerResolved, LedgerAccepted, LedgerDismissed:
		return true
	}
	return false
}

// Terminal reports whether the status is final. Terminal entries never
// re-open; a later clashing statement creates a new entry instead.
func (s LedgerStatus) Terminal() bool {
	return s == LedgerResolved || s == LedgerAccepted || s == LedgerDismissed
}

type ResolutionMethod string

const (
	ResolutionUserClarified ResolutionMethod = "user_clarified"
	ResolutionOverride      ResolutionMethod = "override"
	ResolutionPreserve      ResolutionMethod = "preserve"
	ResolutionFalsePositive ResolutionMethod = "false_positive"
)

func ValidResolutionMethod(s string) bool {
	switch ResolutionMethod(s) {
	case ResolutionUserClarified, ResolutionOverride, ResolutionPreserve, ResolutionFalsePositive:
		return true
	}
	return false
}

// LedgerEntry is the durable record of one detected conflict between two
// memory items for the same slot. Entries are never deleted, only
// transitioned through the ledger state machine.
type LedgerEntry struct {
	ID                 uuid.UUID         `json:"id"`
	ThreadID           string            `json:"thread_id"`
	Slot               string            `json:"slot"`
	OldMemoryID        uuid.UUID         `json:"old_memory_id"`
	NewMemoryID        uuid.UUID         `json:"new_memory_id"`
	Type               ConflictType      `json:"type"`
	Severity           Severity          `json:"severity"`
	DriftScore         float64           `json:"drift_score"`
	Status             LedgerStatus      `json:"status"`
	ResolutionMethod   *ResolutionMethod `json:"resolution_method,omitempty"`
	ResolutionQuestion *string           `json:"resolution_question,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	ResolvedAt         *time.Time        `json:"resolved_at,omitempty"`
}

// LedgerReport aggregates a thread's ledger by conflict type and status.
type LedgerReport struct {
	ThreadID string               `json:"thread_id"`
	Total    int                  `json:"total"`
	Open     int                  `json:"open"`
	ByType   map[ConflictType]int `json:"by_type"`
	ByStatus map[LedgerStatus]int `json:"by_status"`
}
