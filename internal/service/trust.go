package service

import (
	"context"
	"math"
	"time"

	"github.com/mnemolabs/mnemo/internal/config"
	"github.com/mnemolabs/mnemo/internal/domain"
	"go.uber.org/zap"
)

// trustEpsilon is the smallest trust change worth persisting.
const trustEpsilon = 1e-4

// TrustScorer owns every trust mutation. Each change is clamped to [0,1]
// and appends one TrustHistoryRow; history is never overwritten.
type TrustScorer struct {
	memories domain.MemoryStore
	history  domain.TrustHistoryStore
	cfg      config.TrustConfig
	slots    config.SlotConfig
	logger   *zap.Logger

	now func() time.Time
}

func NewTrustScorer(ms domain.MemoryStore, hs domain.TrustHistoryStore, cfg config.TrustConfig, slots config.SlotConfig, logger *zap.Logger) *TrustScorer {
	return &TrustScorer{
		memories: ms,
		history:  hs,
		cfg:      cfg,
		slots:    slots,
		logger:   logger,
		now:      time.Now,
	}
}

// Decay applies exponential time decay: trust *= rate^elapsedPeriods,
// with the rate chosen by the slot's class. Returns the new trust.
func (s *TrustScorer) Decay(ctx context.Context, item *domain.MemoryItem) (float64, error) {
	elapsed := s.now().Sub(item.TrustUpdatedAt)
	if elapsed <= 0 {
		return item.Trust, nil
	}
	periods := elapsed.Seconds() / s.cfg.Period.Seconds()
	rate := s.cfg.RateFor(s.slots.ClassOf(item.Slot))
	decayed := item.Trust * math.Pow(rate, periods)

	if math.Abs(decayed-item.Trust) < trustEpsilon {
		return item.Trust, nil
	}
	if err := s.set(ctx, item, decayed, domain.TrustDecay); err != nil {
		return item.Trust, err
	}
	return item.Trust, nil
}

// Confirm applies the bounded reaffirmation increment, capped at 1.0.
func (s *TrustScorer) Confirm(ctx context.Context, item *domain.MemoryItem) error {
	return s.set(ctx, item, item.Trust+s.cfg.ConfirmationIncrement, domain.TrustConfirmation)
}

// ApplyOverride raises the winner's trust toward 1.0 and penalizes the
// loser by the fixed conflict penalty, never below 0.
func (s *TrustScorer) ApplyOverride(ctx context.Context, winner, loser *domain.MemoryItem) error {
	boosted := winner.Trust + s.cfg.OverrideBoost*(1-winner.Trust)
	if err := s.set(ctx, winner, boosted, domain.TrustConflictOverride); err != nil {
		return err
	}
	return s.set(ctx, loser, loser.Trust-s.cfg.ConflictPenalty, domain.TrustConflictOverride)
}

// ApplyPreserve leaves both sides' trust to decay independently; the only
// write is the audit row recording that the conflict preserved them.
func (s *TrustScorer) ApplyPreserve(ctx context.Context, kept, challenger *domain.MemoryItem) error {
	if err := s.set(ctx, kept, kept.Trust, domain.TrustConflictPreserve); err != nil {
		return err
	}
	return s.set(ctx, challenger, challenger.Trust, domain.TrustConflictPreserve)
}

// SetManual applies an operator-driven trust change.
func (s *TrustScorer) SetManual(ctx context.Context, item *domain.MemoryItem, trust float64) error {
	return s.set(ctx, item, trust, domain.TrustManual)
}

func (s *TrustScorer) set(ctx context.Context, item *domain.MemoryItem, trust float64, reason domain.TrustReason) error {
	trust = clampTrust(trust)
	delta := trust - item.Trust

	if err := s.memories.UpdateTrust(ctx, item.ID, trust); err != nil {
		return err
	}
	row := &domain.TrustHistoryRow{
		MemoryID:   item.ID,
		TrustValue: trust,
		Delta:      delta,
		Reason:     reason,
	}
	if err := s.history.Append(ctx, row); err != nil {
		// The trust write landed but the audit row did not; surface it
		// loudly rather than failing the turn.
		s.logger.Error("failed to append trust history row",
			zap.String("memory_id", item.ID.String()),
			zap.Error(err))
	}

	s.logger.Debug("trust updated",
		zap.String("memory_id", item.ID.String()),
		zap.String("slot", item.Slot),
		zap.Float64("old_trust", item.Trust),
		zap.Float64("new_trust", trust),
		zap.String("reason", string(reason)))

	item.Trust = trust
	item.TrustUpdatedAt = s.now()
	return nil
}

func clampTrust(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
