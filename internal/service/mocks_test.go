package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mnemolabs/mnemo/internal/domain"
	"github.com/mnemolabs/mnemo/internal/store"
	"go.uber.org/zap"
)

// mockMemoryStore implements domain.MemoryStore for testing.
type mockMemoryStore struct {
	items map[uuid.UUID]*domain.MemoryItem
	seq   map[uuid.UUID]int
	next  int

	// ledger, when set, lets ListForDecay exclude items referenced by an
	// open entry, matching the production query.
	ledger *mockLedgerStore

	currentErr error
	getByIDErr error
}

func newMockMemoryStore() *mockMemoryStore {
	return &mockMemoryStore{
		items: make(map[uuid.UUID]*domain.MemoryItem),
		seq:   make(map[uuid.UUID]int),
	}
}

func (m *mockMemoryStore) Create(ctx context.Context, item *domain.MemoryItem) error {
	item.ID = uuid.New()
	if item.Status == "" {
		item.Status = domain.StatusActive
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	if item.TrustUpdatedAt.IsZero() {
		item.TrustUpdatedAt = item.CreatedAt
	}
	m.next++
	m.seq[item.ID] = m.next
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *mockMemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.MemoryItem, error) {
	if m.getByIDErr != nil {
		return nil, m.getByIDErr
	}
	item, ok := m.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (m *mockMemoryStore) Current(ctx context.Context, threadID, slot string) (*domain.MemoryItem, error) {
	if m.currentErr != nil {
		return nil, m.currentErr
	}
	var best *domain.MemoryItem
	for _, item := range m.items {
		if item.ThreadID != threadID || item.Slot != slot || item.Status != domain.StatusActive {
			continue
		}
		if best == nil || item.Trust > best.Trust ||
			(item.Trust == best.Trust && m.seq[item.ID] > m.seq[best.ID]) {
			best = item
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *mockMemoryStore) History(ctx context.Context, threadID, slot string) ([]domain.MemoryItem, error) {
	var out []domain.MemoryItem
	for _, item := range m.items {
		if item.ThreadID == threadID && item.Slot == slot {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.seq[out[i].ID] < m.seq[out[j].ID] })
	return out, nil
}

func (m *mockMemoryStore) ListActive(ctx context.Context, threadID, slot string) ([]domain.MemoryItem, error) {
	var out []domain.MemoryItem
	for _, item := range m.items {
		if item.ThreadID == threadID && item.Slot == slot && item.Status == domain.StatusActive {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return m.seq[out[i].ID] < m.seq[out[j].ID] })
	return out, nil
}

func (m *mockMemoryStore) Supersede(ctx context.Context, oldID, newID uuid.UUID, reason string) error {
	old, ok := m.items[oldID]
	if !ok {
		return store.ErrNotFound
	}
	old.Status = domain.StatusSuperseded
	r := reason
	old.DeprecationReason = &r
	if newItem, ok := m.items[newID]; ok && newItem.SupersedesID == nil {
		id := oldID
		newItem.SupersedesID = &id
	}
	return nil
}

func (m *mockMemoryStore) Deprecate(ctx context.Context, id uuid.UUID, reason string) error {
	item, ok := m.items[id]
	if !ok {
		return store.ErrNotFound
	}
	item.Status = domain.StatusDeprecated
	r := reason
	item.DeprecationReason = &r
	return nil
}

func (m *mockMemoryStore) UpdateTrust(ctx context.Context, id uuid.UUID, trust float64) error {
	item, ok := m.items[id]
	if !ok {
		return store.ErrNotFound
	}
	item.Trust = trust
	item.TrustUpdatedAt = time.Now()
	return nil
}

func (m *mockMemoryStore) SetConflicting(ctx context.Context, id uuid.UUID, conflicting bool) error {
	item, ok := m.items[id]
	if !ok {
		return store.ErrNotFound
	}
	item.Conflicting = conflicting
	return nil
}

func (m *mockMemoryStore) ListDistinctThreadIDs(ctx context.Context) ([]string, error) {
	threads := make(map[string]bool)
	for _, item := range m.items {
		threads[item.ThreadID] = true
	}
	var out []string
	for t := range threads {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

func (m *mockMemoryStore) ListForDecay(ctx context.Context, threadID string) ([]domain.MemoryItem, error) {
	var out []domain.MemoryItem
	for _, item := range m.items {
		if item.ThreadID != threadID || item.Status != domain.StatusActive {
			continue
		}
		if m.ledger != nil && m.ledger.hasOpenReference(item.ID) {
			continue
		}
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return m.seq[out[i].ID] < m.seq[out[j].ID] })
	return out, nil
}

// mockLedgerStore implements domain.LedgerStore for testing.
type mockLedgerStore struct {
	entries map[uuid.UUID]*domain.LedgerEntry
	seq     map[uuid.UUID]int
	next    int

	nextOpenErr error
}

func newMockLedgerStore() *mockLedgerStore {
	return &mockLedgerStore{
		entries: make(map[uuid.UUID]*domain.LedgerEntry),
		seq:     make(map[uuid.UUID]int),
	}
}

func (m *mockLedgerStore) Create(ctx context.Context, e *domain.LedgerEntry) error {
	for _, existing := range m.entries {
		if existing.OldMemoryID == e.OldMemoryID && existing.NewMemoryID == e.NewMemoryID {
			*e = *existing
			return nil
		}
	}
	e.ID = uuid.New()
	if e.Status == "" {
		e.Status = domain.LedgerOpen
	}
	e.CreatedAt = time.Now()
	m.next++
	m.seq[e.ID] = m.next
	cp := *e
	m.entries[e.ID] = &cp
	return nil
}

func (m *mockLedgerStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockLedgerStore) GetByPair(ctx context.Context, oldID, newID uuid.UUID) (*domain.LedgerEntry, error) {
	for _, e := range m.entries {
		if e.OldMemoryID == oldID && e.NewMemoryID == newID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockLedgerStore) NextOpen(ctx context.Context, threadID, slot string) (*domain.LedgerEntry, error) {
	if m.nextOpenErr != nil {
		return nil, m.nextOpenErr
	}
	var open []*domain.LedgerEntry
	for _, e := range m.entries {
		if e.ThreadID != threadID || e.Status != domain.LedgerOpen {
			continue
		}
		if slot != "" && e.Slot != slot {
			continue
		}
		open = append(open, e)
	}
	if len(open) == 0 {
		return nil, store.ErrNotFound
	}
	sort.Slice(open, func(i, j int) bool {
		if open[i].Severity != open[j].Severity {
			return open[i].Severity == domain.SeverityHard
		}
		return m.seq[open[i].ID] < m.seq[open[j].ID]
	})
	cp := *open[0]
	return &cp, nil
}

func (m *mockLedgerStore) ListOpen(ctx context.Context, threadID string) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for _, e := range m.entries {
		if e.ThreadID == threadID && e.Status == domain.LedgerOpen {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity == domain.SeverityHard
		}
		return m.seq[out[i].ID] < m.seq[out[j].ID]
	})
	return out, nil
}

func (m *mockLedgerStore) Resolve(ctx context.Context, id uuid.UUID, method domain.ResolutionMethod, status domain.LedgerStatus) error {
	e, ok := m.entries[id]
	if !ok {
		return store.ErrNotFound
	}
	if e.Status != domain.LedgerOpen {
		return nil
	}
	e.Status = status
	me := method
	e.ResolutionMethod = &me
	now := time.Now()
	e.ResolvedAt = &now
	return nil
}

func (m *mockLedgerStore) Dismiss(ctx context.Context, id uuid.UUID, note string) error {
	e, ok := m.entries[id]
	if !ok {
		return store.ErrNotFound
	}
	if e.Status != domain.LedgerOpen {
		return nil
	}
	e.Status = domain.LedgerDismissed
	me := domain.ResolutionFalsePositive
	e.ResolutionMethod = &me
	n := note
	e.ResolutionQuestion = &n
	now := time.Now()
	e.ResolvedAt = &now
	return nil
}

func (m *mockLedgerStore) Report(ctx context.Context, threadID string) (*domain.LedgerReport, error) {
	report := &domain.LedgerReport{
		ThreadID: threadID,
		ByType:   make(map[domain.ConflictType]int),
		ByStatus: make(map[domain.LedgerStatus]int),
	}
	for _, e := range m.entries {
		if e.ThreadID != threadID {
			continue
		}
		report.Total++
		report.ByType[e.Type]++
		report.ByStatus[e.Status]++
		if e.Status == domain.LedgerOpen {
			report.Open++
		}
	}
	return report, nil
}

func (m *mockLedgerStore) hasOpenReference(memoryID uuid.UUID) bool {
	for _, e := range m.entries {
		if e.Status == domain.LedgerOpen && (e.OldMemoryID == memoryID || e.NewMemoryID == memoryID) {
			return true
		}
	}
	return false
}

// mockTrustHistoryStore implements domain.TrustHistoryStore for testing.
type mockTrustHistoryStore struct {
	rows []domain.TrustHistoryRow
}

func newMockTrustHistoryStore() *mockTrustHistoryStore {
	return &mockTrustHistoryStore{}
}

func (m *mockTrustHistoryStore) Append(ctx context.Context, row *domain.TrustHistoryRow) error {
	row.Timestamp = time.Now()
	m.rows = append(m.rows, *row)
	return nil
}

func (m *mockTrustHistoryStore) ListByMemory(ctx context.Context, memoryID uuid.UUID) ([]domain.TrustHistoryRow, error) {
	var out []domain.TrustHistoryRow
	for _, row := range m.rows {
		if row.MemoryID == memoryID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *mockTrustHistoryStore) rowsFor(memoryID uuid.UUID) []domain.TrustHistoryRow {
	out, _ := m.ListByMemory(context.Background(), memoryID)
	return out
}

// mockEmbeddingClient implements domain.EmbeddingClient for testing.
type mockEmbeddingClient struct {
	vectors map[string][]float32
	err     error
}

func (m *mockEmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	if v, ok := m.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}
