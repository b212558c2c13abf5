package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mnemolabs/mnemo/internal/config"
	"github.com/mnemolabs/mnemo/internal/domain"
	"github.com/mnemolabs/mnemo/internal/extract"
	"github.com/mnemolabs/mnemo/internal/store"
	"go.uber.org/zap"
)

// ErrStoreUnavailable is the one fatal query condition: the memory store
// could not produce an answer value. It surfaces to the caller instead of
// a fabricated answer.
var ErrStoreUnavailable = errors.New("memory store unavailable")

// GateService is the enforcement point before any slot value is handed
// to a response generator. A confident (quick) answer is never produced
// while a relevant hard conflict is open, and internal faults degrade to
// uncertain, never to quick.
type GateService struct {
	memories  domain.MemoryStore
	ledger    domain.LedgerStore
	extractor *extract.Extractor
	cfg       config.GateConfig
	logger    *zap.Logger
}

func NewGateService(ms domain.MemoryStore, ls domain.LedgerStore, ex *extract.Extractor, cfg config.GateConfig, logger *zap.Logger) *GateService {
	return &GateService{memories: ms, ledger: ls, extractor: ex, cfg: cfg, logger: logger}
}

// QuerySlot gates one slot lookup.
func (g *GateService) QuerySlot(ctx context.Context, threadID, slot string) (*domain.SlotAnswer, error) {
	if threadID == "" {
		return nil, ErrThreadIDMissing
	}
	if slot == "" {
		return nil, ErrSlotMissing
	}

	answer := &domain.SlotAnswer{ThreadID: threadID, Slot: slot}

	entry, err := g.nextOpenEntry(ctx, threadID, slot)
	if err != nil {
		// Ledger faults fail safe: no confident answer without a clean
		// look at the conflict state.
		g.logger.Error("ledger unavailable during gate evaluation, degrading to uncertain",
			zap.String("thread_id", threadID),
			zap.String("slot", slot),
			zap.Error(err))
		answer.Mode = domain.ModeUncertain
		return answer, nil
	}

	if entry != nil && entry.Severity == domain.SeverityHard {
		return g.degraded(ctx, answer, entry)
	}

	current, err := g.memories.Current(ctx, threadID, slot)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	answer.Mode = domain.ModeQuick
	if current != nil {
		answer.Value = current
		answer.Citations = []uuid.UUID{current.ID}
	}
	if entry != nil {
		// Soft conflicts annotate but do not block.
		answer.Conflicts = []uuid.UUID{entry.ID}
	}
	return answer, nil
}

// Query infers the relevant slots from free text, using the same slot
// vocabulary the extractor writes into, and gates each one.
func (g *GateService) Query(ctx context.Context, threadID, text string) ([]domain.SlotAnswer, error) {
	if threadID == "" {
		return nil, ErrThreadIDMissing
	}
	slots := g.extractor.InferSlots(text)
	answers := make([]domain.SlotAnswer, 0, len(slots))
	for _, slot := range slots {
		a, err := g.QuerySlot(ctx, threadID, slot)
		if err != nil {
			return answers, err
		}
		answers = append(answers, *a)
	}
	return answers, nil
}

// degraded builds the answer for an open hard conflict: uncertain with
// both values, or ask_clarify with the stored resolution question.
func (g *GateService) degraded(ctx context.Context, answer *domain.SlotAnswer, entry *domain.LedgerEntry) (*domain.SlotAnswer, error) {
	answer.Conflicts = []uuid.UUID{entry.ID}

	if g.cfg.AskClarify {
		answer.Mode = domain.ModeAskClarify
		if entry.ResolutionQuestion != nil {
			answer.Question = *entry.ResolutionQuestion
		} else {
			answer.Question = fmt.Sprintf("I have conflicting values for your %s. Which is current?", entry.Slot)
		}
		return answer, nil
	}

	answer.Mode = domain.ModeUncertain
	for _, id := range []uuid.UUID{entry.OldMemoryID, entry.NewMemoryID} {
		item, err := g.memories.GetByID(ctx, id)
		if err != nil {
			g.logger.Warn("could not load conflict side for uncertain answer",
				zap.String("memory_id", id.String()),
				zap.Error(err))
			continue
		}
		answer.BothValues = append(answer.BothValues, *item)
		answer.Citations = append(answer.Citations, item.ID)
	}
	return answer, nil
}

// nextOpenEntry fetches the highest-priority open entry for the slot,
// dismissing entries that reference missing memories instead of letting
// them silently wedge the gate.
func (g *GateService) nextOpenEntry(ctx context.Context, threadID, slot string) (*domain.LedgerEntry, error) {
	for {
		entry, err := g.ledger.NextOpen(ctx, threadID, slot)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}

		_, oldErr := g.memories.GetByID(ctx, entry.OldMemoryID)
		_, newErr := g.memories.GetByID(ctx, entry.NewMemoryID)
		if errors.Is(oldErr, store.ErrNotFound) || errors.Is(newErr, store.ErrNotFound) {
			diag := "ledger entry references a missing memory item"
			g.logger.Error(diag, zap.String("ledger_id", entry.ID.String()))
			if rerr := g.ledger.Dismiss(ctx, entry.ID, diag); rerr != nil {
				return nil, rerr
			}
			continue
		}
		if oldErr != nil || newErr != nil {
			// Store fault, not a missing row; let the caller fail safe.
			if oldErr != nil {
				return nil, oldErr
			}
			return nil, newErr
		}
		return entry, nil
	}
}
