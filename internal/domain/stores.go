package domain

import (
	"context"

	"github.com/google/uuid"
)

// MemoryStore is append-only versioned storage of fact items. Items are
// never physically removed; Supersede and Deprecate only transition status.
type MemoryStore interface {
	Create(ctx context.Context, m *MemoryItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*MemoryItem, error)
	// Current returns the active item with highest trust for the slot,
	// ties broken by most recent created_at.
	Current(ctx context.Context, threadID, slot string) (*MemoryItem, error)
	// History returns every item ever recorded for the slot, oldest first.
	History(ctx context.Context, threadID, slot string) ([]MemoryItem, error)
	ListActive(ctx context.Context, threadID, slot string) ([]MemoryItem, error)
	// Supersede marks the old item superseded with a reason, atomically
	// with respect to concurrent readers of the slot.
	Supersede(ctx context.Context, oldID, newID uuid.UUID, reason string) error
	Deprecate(ctx context.Context, id uuid.UUID, reason string) error
	UpdateTrust(ctx context.Context, id uuid.UUID, trust float64) error
	SetConflicting(ctx context.Context, id uuid.UUID, conflicting bool) error
	// Decay sweep support
	ListDistinctThreadIDs(ctx context.Context) ([]string, error)
	// ListForDecay returns active items eligible for trust decay: items
	// referenced by an open ledger entry are excluded (their trust is
	// frozen pending resolution).
	ListForDecay(ctx context.Context, threadID string) ([]MemoryItem, error)
}

type LedgerStore interface {
	// Create inserts the entry unless one already exists for the same
	// (old_memory_id, new_memory_id) pair.
	Create(ctx context.Context, e *LedgerEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*LedgerEntry, error)
	GetByPair(ctx context.Context, oldID, newID uuid.UUID) (*LedgerEntry, error)
	// NextOpen returns the highest-priority open entry for the thread,
	// severity desc then age. Empty slot matches any slot.
	NextOpen(ctx context.Context, threadID, slot string) (*LedgerEntry, error)
	ListOpen(ctx context.Context, threadID string) ([]LedgerEntry, error)
	Resolve(ctx context.Context, id uuid.UUID, method ResolutionMethod, status LedgerStatus) error
	// Dismiss closes an open entry as a false positive and persists the
	// diagnostic note on the row so the audit trail survives log rotation.
	Dismiss(ctx context.Context, id uuid.UUID, note string) error
	Report(ctx context.Context, threadID string) (*LedgerReport, error)
}

type TrustHistoryStore interface {
	Append(ctx context.Context, row *TrustHistoryRow) error
	ListByMemory(ctx context.Context, memoryID uuid.UUID) ([]TrustHistoryRow, error)
}

type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// AdvisoryClient is the optional learned-model advisory interface. It is
// always dispensable: a nil verdict with no error means the model
// abstained, and callers must behave identically without it.
type AdvisoryClient interface {
	Advise(ctx context.Context, f AdvisoryFeatures) (*AdvisoryVerdict, error)
}
