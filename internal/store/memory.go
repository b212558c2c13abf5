package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mnemolabs/mnemo/internal/domain"
	pgvector "github.com/pgvector/pgvector-go"
)

const memoryColumns = `id, thread_id, slot, value, raw_text, source, confidence, trust, status, supersedes_id, deprecation_reason, conflicting, created_at, trust_updated_at`

type MemoryStore struct {
	db *pgxpool.Pool
}

func NewMemoryStore(db *pgxpool.Pool) *MemoryStore {
	return &MemoryStore{db: db}
}

func (s *MemoryStore) Create(ctx context.Context, m *domain.MemoryItem) error {
	var embedding *pgvector.Vector
	if len(m.ValueEmbedding) > 0 {
		v := pgvector.NewVector(m.ValueEmbedding)
		embedding = &v
	}

	if m.Status == "" {
		m.Status = domain.StatusActive
	}
	if m.Trust == 0 {
		m.Trust = m.Source.InitialTrust()
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO memories (thread_id, slot, value, raw_text, source, confidence, trust, status, supersedes_id, value_embedding, trust_updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		 RETURNING id, created_at, trust_updated_at`,
		m.ThreadID, m.Slot, m.Value, m.RawText, m.Source, m.Confidence, m.Trust, m.Status, m.SupersedesID, embedding,
	).Scan(&m.ID, &m.CreatedAt, &m.TrustUpdatedAt)
}

func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.MemoryItem, error) {
	m, err := scanMemory(s.db.QueryRow(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *MemoryStore) Current(ctx context.Context, threadID, slot string) (*domain.MemoryItem, error) {
	m, err := scanMemory(s.db.QueryRow(ctx,
		`SELECT `+memoryColumns+`
		 FROM memories
		 WHERE thread_id = $1 AND slot = $2 AND status = 'active'
		 ORDER BY trust DESC, created_at DESC
		 LIMIT 1`,
		threadID, slot,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *MemoryStore) History(ctx context.Context, threadID, slot string) ([]domain.MemoryItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+memoryColumns+`
		 FROM memories
		 WHERE thread_id = $1 AND slot = $2
		 ORDER BY created_at ASC`,
		threadID, slot,
	)
	if err != nil {
		return nil, fmt.Errorf("history query: %w", err)
	}
	defer rows.Close()
	return collectMemories(rows)
}

func (s *MemoryStore) ListActive(ctx context.Context, threadID, slot string) ([]domain.MemoryItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+memoryColumns+`
		 FROM memories
		 WHERE thread_id = $1 AND slot = $2 AND status = 'active'
		 ORDER BY trust DESC, created_at DESC`,
		threadID, slot,
	)
	if err != nil {
		return nil, fmt.Errorf("list active query: %w", err)
	}
	defer rows.Close()
	return collectMemories(rows)
}

// Supersede marks the old item superseded inside one transaction, locking
// the row so concurrent readers of the slot see either the old state or
// the new one, never a half-applied transition.
func (s *MemoryStore) Supersede(ctx context.Context, oldID, newID uuid.UUID, reason string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin supersede: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status domain.MemoryStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM memories WHERE id = $1 FOR UPDATE`, oldID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE memories SET status = 'superseded', deprecation_reason = $2 WHERE id = $1`,
		oldID, reason,
	); err != nil {
		return err
	}
	// Link the surviving item back to the one it replaced, unless it
	// already carries a lineage pointer from creation.
	if _, err := tx.Exec(ctx,
		`UPDATE memories SET supersedes_id = COALESCE(supersedes_id, $2) WHERE id = $1`,
		newID, oldID,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *MemoryStore) Deprecate(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE memories SET status = 'deprecated', deprecation_reason = $2 WHERE id = $1`,
		id, reason,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MemoryStore) UpdateTrust(ctx context.Context, id uuid.UUID, trust float64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE memories SET trust = $2, trust_updated_at = NOW() WHERE id = $1`,
		id, trust,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MemoryStore) SetConflicting(ctx context.Context, id uuid.UUID, conflicting bool) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE memories SET conflicting = $2 WHERE id = $1`,
		id, conflicting,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MemoryStore) ListDistinctThreadIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT thread_id FROM memories`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var threadIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		threadIDs = append(threadIDs, id)
	}
	return threadIDs, rows.Err()
}

// ListForDecay returns active items whose trust is free to decay. Items
// referenced by an open ledger entry are excluded: their trust is frozen
// until the entry resolves.
func (s *MemoryStore) ListForDecay(ctx context.Context, threadID string) ([]domain.MemoryItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+memoryColumns+`
		 FROM memories m
		 WHERE m.thread_id = $1 AND m.status = 'active'
		   AND NOT EXISTS (
		     SELECT 1 FROM contradiction_ledger l
		     WHERE l.status = 'open'
		       AND (l.old_memory_id = m.id OR l.new_memory_id = m.id)
		   )`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("list for decay query: %w", err)
	}
	defer rows.Close()
	return collectMemories(rows)
}

func scanMemory(row pgx.Row) (*domain.MemoryItem, error) {
	m := &domain.MemoryItem{}
	err := row.Scan(
		&m.ID, &m.ThreadID, &m.Slot, &m.Value, &m.RawText, &m.Source,
		&m.Confidence, &m.Trust, &m.Status, &m.SupersedesID,
		&m.DeprecationReason, &m.Conflicting, &m.CreatedAt, &m.TrustUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func collectMemories(rows pgx.Rows) ([]domain.MemoryItem, error) {
	var items []domain.MemoryItem
	for rows.Next() {
		m := domain.MemoryItem{}
		if err := rows.Scan(
			&m.ID, &m.ThreadID, &m.Slot, &m.Value, &m.RawText, &m.Source,
			&m.Confidence, &m.Trust, &m.Status, &m.SupersedesID,
			&m.DeprecationReason, &m.Conflicting, &m.CreatedAt, &m.TrustUpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
