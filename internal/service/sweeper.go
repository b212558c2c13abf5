package service

import (
	"context"
	"sync"
	"time"

	"github.com/mnemolabs/mnemo/internal/domain"
	"go.uber.org/zap"
)

const defaultSweepInterval = 1 * time.Hour

type SweepResult struct {
	ThreadsSwept int `json:"threads_swept"`
	ItemsDecayed int `json:"items_decayed"`
}

// DecayService is the background trust decay sweep. It runs beside the
// online read/write path and only ever updates trust and appends history
// rows. It never touches ledger state, item status, or supersession
// links, and it skips items referenced by an open ledger entry (their
// trust is frozen pending resolution).
type DecayService struct {
	memories domain.MemoryStore
	trust    *TrustScorer
	logger   *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewDecayService(ms domain.MemoryStore, ts *TrustScorer, logger *zap.Logger) *DecayService {
	return &DecayService{
		memories: ms,
		trust:    ts,
		logger:   logger,
		interval: defaultSweepInterval,
		stopCh:   make(chan struct{}),
	}
}

func (s *DecayService) SetInterval(d time.Duration) {
	s.interval = d
}

func (s *DecayService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("trust decay worker started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				s.RunSweep(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("trust decay worker stopped")
				return
			}
		}
	}()
}

func (s *DecayService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *DecayService) RunSweep(ctx context.Context) *SweepResult {
	result := &SweepResult{}

	threadIDs, err := s.memories.ListDistinctThreadIDs(ctx)
	if err != nil {
		s.logger.Error("failed to list threads for decay", zap.Error(err))
		return result
	}

	for _, threadID := range threadIDs {
		decayed, err := s.sweepThread(ctx, threadID)
		if err != nil {
			s.logger.Error("decay sweep failed for thread",
				zap.String("thread_id", threadID),
				zap.Error(err))
			continue
		}
		result.ThreadsSwept++
		result.ItemsDecayed += decayed

		if decayed > 0 {
			s.logger.Info("decay sweep complete for thread",
				zap.String("thread_id", threadID),
				zap.Int("items_decayed", decayed))
		}
	}

	return result
}

func (s *DecayService) sweepThread(ctx context.Context, threadID string) (int, error) {
	items, err := s.memories.ListForDecay(ctx, threadID)
	if err != nil {
		return 0, err
	}

	decayed := 0
	for i := range items {
		item := &items[i]
		before := item.Trust
		after, err := s.trust.Decay(ctx, item)
		if err != nil {
			s.logger.Warn("failed to decay item trust",
				zap.String("memory_id", item.ID.String()),
				zap.Error(err))
			continue
		}
		if after != before {
			decayed++
		}
	}
	return decayed, nil
}
