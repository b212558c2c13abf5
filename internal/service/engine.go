package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mnemolabs/mnemo/internal/domain"
	"github.com/mnemolabs/mnemo/internal/extract"
	"github.com/mnemolabs/mnemo/internal/store"
	"go.uber.org/zap"
)

var (
	ErrThreadIDMissing         = errors.New("thread_id is required")
	ErrStatementEmpty          = errors.New("statement text is required")
	ErrInvalidSource           = errors.New("invalid statement source")
	ErrSlotMissing             = errors.New("slot is required")
	ErrUnknownMemoryID         = errors.New("unknown memory id")
	ErrUnknownLedgerEntry      = errors.New("unknown ledger entry")
	ErrInvalidResolutionStatus = errors.New("resolution status must be resolved, accepted, or dismissed")
	ErrInvalidResolutionMethod = errors.New("invalid resolution method")
)

// Statement processing outcomes.
const (
	OutcomeCreated     = "created"
	OutcomeReinforced  = "reinforced"
	OutcomeOverridden  = "overridden"
	OutcomePreserved   = "preserved"
	OutcomePendingUser = "pending_user"
	OutcomeSkipped     = "skipped"
)

// StatementEvent describes what happened to one extracted fact.
type StatementEvent struct {
	Fact     domain.ExtractedFact   `json:"fact"`
	Outcome  string                 `json:"outcome"`
	Memory   *domain.MemoryItem     `json:"memory_event,omitempty"`
	Ledger   *domain.LedgerEntry    `json:"ledger_event,omitempty"`
	Decision *domain.PolicyDecision `json:"decision,omitempty"`
	Note     string                 `json:"note,omitempty"`
}

// EngineService is the write path: statement in, memory and ledger events
// out. Statements from one thread are processed strictly in arrival
// order; threads are independent.
type EngineService struct {
	memories  domain.MemoryStore
	ledger    domain.LedgerStore
	history   domain.TrustHistoryStore
	extractor *extract.Extractor
	classify  *Classifier
	trust     *TrustScorer
	policy    *PolicyEngine
	embedder  domain.EmbeddingClient
	logger    *zap.Logger

	mu          sync.Mutex
	threadLocks map[string]*sync.Mutex
}

func NewEngineService(
	ms domain.MemoryStore,
	ls domain.LedgerStore,
	hs domain.TrustHistoryStore,
	ex *extract.Extractor,
	cl *Classifier,
	ts *TrustScorer,
	pe *PolicyEngine,
	ec domain.EmbeddingClient,
	logger *zap.Logger,
) *EngineService {
	return &EngineService{
		memories:    ms,
		ledger:      ls,
		history:     hs,
		extractor:   ex,
		classify:    cl,
		trust:       ts,
		policy:      pe,
		embedder:    ec,
		logger:      logger,
		threadLocks: make(map[string]*sync.Mutex),
	}
}

// threadLock returns the single-writer lock for a thread. Conflict
// detection depends on ordered history, so serialization per thread is a
// correctness requirement, not an optimization.
func (s *EngineService) threadLock(threadID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.threadLocks[threadID]
	if !ok {
		l = &sync.Mutex{}
		s.threadLocks[threadID] = l
	}
	return l
}

// SubmitStatement ingests one raw statement: extraction, contradiction
// classification, ledger bookkeeping, policy application, trust updates.
// Extraction and classification faults never abort the turn; they degrade
// to skipped events. Storage failure is the only fatal condition.
func (s *EngineService) SubmitStatement(ctx context.Context, threadID, text string) ([]StatementEvent, error) {
	return s.SubmitStatementFrom(ctx, threadID, text, domain.SourceUser)
}

// SubmitStatementFrom ingests a statement attributed to a specific source.
// Source shapes initial trust and how an exclusive-slot clash is graded: a
// user declaration asserts current state, anything else is a competing claim.
func (s *EngineService) SubmitStatementFrom(ctx context.Context, threadID, text string, source domain.Source) ([]StatementEvent, error) {
	if threadID == "" {
		return nil, ErrThreadIDMissing
	}
	if text == "" {
		return nil, ErrStatementEmpty
	}
	if !domain.ValidSource(string(source)) {
		return nil, ErrInvalidSource
	}

	lock := s.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	facts := s.extractor.Extract(text)
	events := make([]StatementEvent, 0, len(facts))
	for _, fact := range facts {
		event, err := s.processFact(ctx, threadID, fact, source)
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
	return events, nil
}

func (s *EngineService) processFact(ctx context.Context, threadID string, fact domain.ExtractedFact, source domain.Source) (StatementEvent, error) {
	event := StatementEvent{Fact: fact}

	value, err := s.extractor.Normalize(fact.Slot, fact.Value)
	if err != nil {
		// Malformed value: reject the write, log, continue the turn.
		s.logger.Warn("slot value normalization failed",
			zap.String("thread_id", threadID),
			zap.String("slot", fact.Slot),
			zap.String("raw_value", fact.Value))
		event.Outcome = OutcomeSkipped
		event.Note = "value could not be normalized"
		return event, nil
	}

	current, err := s.memories.Current(ctx, threadID, fact.Slot)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return event, fmt.Errorf("lookup current %s/%s: %w", threadID, fact.Slot, err)
	}

	// First observation for the slot.
	if current == nil {
		item, err := s.createItem(ctx, threadID, fact, value, source, nil)
		if err != nil {
			return event, err
		}
		event.Outcome = OutcomeCreated
		event.Memory = item
		return event, nil
	}

	// Correction whose old-value hint does not name the stored value:
	// the pattern fired but the slot does not match. Demote to a plain
	// declaration and keep going; the remaining tiers still apply.
	if fact.Tier.IsCorrection() {
		hint, herr := s.extractor.Normalize(fact.Slot, fact.OldHint)
		if herr != nil || !hintMatches(current.Value, hint) {
			s.logger.Info("correction pattern fired but old-value hint mismatched stored value",
				zap.String("slot", fact.Slot),
				zap.String("hint", fact.OldHint),
				zap.String("stored", current.Value))
			fact.Tier = domain.TierDeclaration
			event.Fact.Tier = domain.TierDeclaration
			event.Note = "correction hint mismatched stored value; treated as declaration"
		}
	}

	verdict := s.classify.Classify(ctx, current, fact, value, source)

	// Identical restatement: reaffirmation strengthens trust, nothing
	// else changes. Submitting the same statement twice never creates a
	// second item or ledger entry.
	if !verdict.Conflict && current.Value == value {
		if err := s.trust.Confirm(ctx, current); err != nil {
			return event, err
		}
		event.Outcome = OutcomeReinforced
		event.Memory = current
		event.Note = verdict.Rationale
		return event, nil
	}

	// Benign change: no conflict but a different value (small numeric
	// move, refinement on a non-exclusive slot). The new value becomes
	// current; the old one is superseded, never deleted.
	if !verdict.Conflict {
		item, err := s.createItem(ctx, threadID, fact, value, source, current)
		if err != nil {
			return event, err
		}
		if err := s.supersede(ctx, current.ID, item.ID, verdict.Rationale); err != nil {
			return event, err
		}
		event.Outcome = OutcomeOverridden
		event.Memory = item
		event.Note = verdict.Rationale
		return event, nil
	}

	return s.applyConflict(ctx, threadID, fact, value, source, current, verdict, event)
}

func (s *EngineService) applyConflict(ctx context.Context, threadID string, fact domain.ExtractedFact, value string, source domain.Source, current *domain.MemoryItem, verdict Verdict, event StatementEvent) (StatementEvent, error) {
	candidate, err := s.createItem(ctx, threadID, fact, value, source, current)
	if err != nil {
		return event, err
	}
	event.Memory = candidate

	decision := s.policy.Decide(ctx, verdict, current, candidate)
	event.Decision = &decision

	entry := &domain.LedgerEntry{
		ThreadID:    threadID,
		Slot:        fact.Slot,
		OldMemoryID: current.ID,
		NewMemoryID: candidate.ID,
		Type:        verdict.Type,
		Severity:    verdict.Severity,
		DriftScore:  verdict.Drift.Score,
		Status:      domain.LedgerOpen,
	}
	if decision.Question != "" {
		entry.ResolutionQuestion = &decision.Question
	}
	if err := s.ledger.Create(ctx, entry); err != nil {
		return event, fmt.Errorf("record ledger entry: %w", err)
	}
	event.Ledger = entry

	switch decision.Action {
	case domain.ActionOverride:
		if err := s.supersede(ctx, current.ID, candidate.ID, decision.Rationale); err != nil {
			return event, err
		}
		if err := s.trust.ApplyOverride(ctx, candidate, current); err != nil {
			return event, err
		}
		if err := s.resolveEntry(ctx, entry, domain.ResolutionOverride, domain.LedgerResolved); err != nil {
			return event, err
		}
		event.Outcome = OutcomeOverridden

	case domain.ActionPreserve:
		// The stored value stands. The challenger is kept in history as
		// superseded, and both sides carry the conflicting flag.
		if err := s.supersede(ctx, candidate.ID, current.ID, decision.Rationale); err != nil {
			return event, err
		}
		if err := s.flagConflicting(ctx, current.ID, candidate.ID, true); err != nil {
			return event, err
		}
		if err := s.trust.ApplyPreserve(ctx, current, candidate); err != nil {
			return event, err
		}
		if err := s.resolveEntry(ctx, entry, domain.ResolutionPreserve, domain.LedgerResolved); err != nil {
			return event, err
		}
		event.Outcome = OutcomePreserved

	default: // ASK_USER
		// Both items stay active-but-flagged until the user answers.
		// Their trust is frozen: the decay sweep skips items referenced
		// by an open entry.
		if err := s.flagConflicting(ctx, current.ID, candidate.ID, true); err != nil {
			return event, err
		}
		event.Outcome = OutcomePendingUser
	}

	return event, nil
}

// ResolveContradiction finishes a ledger entry on behalf of the user (or
// an operator). Already-terminal entries are a no-op, not an error.
func (s *EngineService) ResolveContradiction(ctx context.Context, id uuid.UUID, method domain.ResolutionMethod, status domain.LedgerStatus) (*domain.LedgerEntry, error) {
	if !domain.ValidResolutionMethod(string(method)) {
		return nil, ErrInvalidResolutionMethod
	}
	if !domain.ValidLedgerStatus(string(status)) || !status.Terminal() {
		return nil, ErrInvalidResolutionStatus
	}

	entry, err := s.ledger.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownLedgerEntry
		}
		return nil, err
	}
	if entry.Status.Terminal() {
		return entry, nil
	}

	lock := s.threadLock(entry.ThreadID)
	lock.Lock()
	defer lock.Unlock()

	oldItem, oldErr := s.memories.GetByID(ctx, entry.OldMemoryID)
	newItem, newErr := s.memories.GetByID(ctx, entry.NewMemoryID)
	if oldErr != nil || newErr != nil {
		// The entry references a missing memory: dismiss with a
		// diagnostic rather than hiding it.
		diag := "ledger entry references a missing memory item"
		s.logger.Error(diag,
			zap.String("ledger_id", entry.ID.String()),
			zap.NamedError("old_err", oldErr),
			zap.NamedError("new_err", newErr))
		if err := s.ledger.Dismiss(ctx, entry.ID, diag); err != nil {
			return nil, err
		}
		return s.ledger.GetByID(ctx, entry.ID)
	}

	// Resolution retroactively applies the frozen conflict outcome.
	keepNew := status != domain.LedgerDismissed && method != domain.ResolutionPreserve && method != domain.ResolutionFalsePositive
	if keepNew {
		if oldItem.Status == domain.StatusActive {
			if err := s.supersede(ctx, oldItem.ID, newItem.ID, "resolved by "+string(method)); err != nil {
				return nil, err
			}
		}
		if err := s.trust.ApplyOverride(ctx, newItem, oldItem); err != nil {
			return nil, err
		}
	} else {
		if newItem.Status == domain.StatusActive {
			if err := s.supersede(ctx, newItem.ID, oldItem.ID, "resolved by "+string(method)); err != nil {
				return nil, err
			}
		}
		if err := s.trust.ApplyPreserve(ctx, oldItem, newItem); err != nil {
			return nil, err
		}
	}
	if err := s.flagConflicting(ctx, oldItem.ID, newItem.ID, false); err != nil {
		return nil, err
	}

	if err := s.ledger.Resolve(ctx, entry.ID, method, status); err != nil {
		return nil, err
	}
	return s.ledger.GetByID(ctx, entry.ID)
}

// ListOpenContradictions returns the thread's open ledger entries,
// severity desc then age.
func (s *EngineService) ListOpenContradictions(ctx context.Context, threadID string) ([]domain.LedgerEntry, error) {
	if threadID == "" {
		return nil, ErrThreadIDMissing
	}
	return s.ledger.ListOpen(ctx, threadID)
}

func (s *EngineService) Report(ctx context.Context, threadID string) (*domain.LedgerReport, error) {
	if threadID == "" {
		return nil, ErrThreadIDMissing
	}
	return s.ledger.Report(ctx, threadID)
}

// History returns the full slot history, oldest first. Nothing is ever
// removed from it.
func (s *EngineService) History(ctx context.Context, threadID, slot string) ([]domain.MemoryItem, error) {
	if threadID == "" {
		return nil, ErrThreadIDMissing
	}
	if slot == "" {
		return nil, ErrSlotMissing
	}
	return s.memories.History(ctx, threadID, slot)
}

// TrustHistory answers "why did trust change" for one item.
func (s *EngineService) TrustHistory(ctx context.Context, memoryID uuid.UUID) ([]domain.TrustHistoryRow, error) {
	if _, err := s.memories.GetByID(ctx, memoryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownMemoryID
		}
		return nil, err
	}
	return s.history.ListByMemory(ctx, memoryID)
}

// DeprecateMemory handles a deletion request: the item is marked
// deprecated with an explicit reason and stays in history forever.
func (s *EngineService) DeprecateMemory(ctx context.Context, id uuid.UUID, reason string) error {
	if reason == "" {
		reason = "deprecated by request"
	}
	if err := s.memories.Deprecate(ctx, id, reason); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownMemoryID
		}
		return err
	}
	return nil
}

func (s *EngineService) createItem(ctx context.Context, threadID string, fact domain.ExtractedFact, value string, source domain.Source, prior *domain.MemoryItem) (*domain.MemoryItem, error) {
	item := &domain.MemoryItem{
		ThreadID:   threadID,
		Slot:       fact.Slot,
		Value:      value,
		RawText:    fact.RawText,
		Source:     source,
		Confidence: fact.Tier.Confidence(),
		Status:     domain.StatusActive,
	}
	item.Trust = item.Source.InitialTrust()
	if prior != nil {
		item.SupersedesID = &prior.ID
	}
	if s.embedder != nil {
		// Best effort: a missing embedding only disables stored-side
		// reuse in the drift engine.
		ectx, cancel := context.WithTimeout(ctx, 2*time.Second)
		vec, err := s.embedder.Embed(ectx, value)
		cancel()
		if err != nil {
			s.logger.Debug("value embedding unavailable at write time", zap.Error(err))
		} else {
			item.ValueEmbedding = vec
		}
	}
	if err := s.memories.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create memory item: %w", err)
	}
	return item, nil
}

func (s *EngineService) supersede(ctx context.Context, oldID, newID uuid.UUID, reason string) error {
	if err := s.memories.Supersede(ctx, oldID, newID, reason); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownMemoryID
		}
		return err
	}
	return nil
}

func (s *EngineService) flagConflicting(ctx context.Context, a, b uuid.UUID, conflicting bool) error {
	if err := s.memories.SetConflicting(ctx, a, conflicting); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if err := s.memories.SetConflicting(ctx, b, conflicting); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

func (s *EngineService) resolveEntry(ctx context.Context, entry *domain.LedgerEntry, method domain.ResolutionMethod, status domain.LedgerStatus) error {
	if err := s.ledger.Resolve(ctx, entry.ID, method, status); err != nil {
		return err
	}
	refreshed, err := s.ledger.GetByID(ctx, entry.ID)
	if err != nil {
		return err
	}
	*entry = *refreshed
	return nil
}
