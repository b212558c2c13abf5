package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mnemolabs/mnemo/internal/domain"
)

const ledgerColumns = `id, thread_id, slot, old_memory_id, new_memory_id, type, severity, drift_score, status, resolution_method, resolution_question, created_at, resolved_at`

type LedgerStore struct {
	db *pgxpool.Pool
}

func NewLedgerStore(db *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{db: db}
}

// Create inserts the entry; the unique (old_memory_id, new_memory_id)
// constraint makes repeated detection of the same pair a no-op.
func (s *LedgerStore) Create(ctx context.Context, e *domain.LedgerEntry) error {
	if e.Status == "" {
		e.Status = domain.LedgerOpen
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO contradiction_ledger (thread_id, slot, old_memory_id, new_memory_id, type, severity, drift_score, status, resolution_question)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (old_memory_id, new_memory_id) DO NOTHING
		 RETURNING id, created_at`,
		e.ThreadID, e.Slot, e.OldMemoryID, e.NewMemoryID, e.Type, e.Severity, e.DriftScore, e.Status, e.ResolutionQuestion,
	).Scan(&e.ID, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict path: the pair already has an entry.
		existing, gerr := s.GetByPair(ctx, e.OldMemoryID, e.NewMemoryID)
		if gerr != nil {
			return gerr
		}
		*e = *existing
		return nil
	}
	return err
}

func (s *LedgerStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	e, err := scanLedgerEntry(s.db.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM contradiction_ledger WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *LedgerStore) GetByPair(ctx context.Context, oldID, newID uuid.UUID) (*domain.LedgerEntry, error) {
	e, err := scanLedgerEntry(s.db.QueryRow(ctx,
		`SELECT `+ledgerColumns+`
		 FROM contradiction_ledger
		 WHERE old_memory_id = $1 AND new_memory_id = $2`,
		oldID, newID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// NextOpen returns the highest-priority open entry: hard before soft,
// oldest first within a severity. Empty slot matches any slot.
func (s *LedgerStore) NextOpen(ctx context.Context, threadID, slot string) (*domain.LedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + `
		 FROM contradiction_ledger
		 WHERE thread_id = $1 AND status = 'open'`
	args := []any{threadID}
	if slot != "" {
		query += ` AND slot = $2`
		args = append(args, slot)
	}
	query += `
		 ORDER BY CASE severity WHEN 'hard' THEN 0 ELSE 1 END, created_at ASC
		 LIMIT 1`

	e, err := scanLedgerEntry(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *LedgerStore) ListOpen(ctx context.Context, threadID string) ([]domain.LedgerEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+ledgerColumns+`
		 FROM contradiction_ledger
		 WHERE thread_id = $1 AND status = 'open'
		 ORDER BY CASE severity WHEN 'hard' THEN 0 ELSE 1 END, created_at ASC`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("list open query: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e := domain.LedgerEntry{}
		if err := rows.Scan(
			&e.ID, &e.ThreadID, &e.Slot, &e.OldMemoryID, &e.NewMemoryID,
			&e.Type, &e.Severity, &e.DriftScore, &e.Status,
			&e.ResolutionMethod, &e.ResolutionQuestion, &e.CreatedAt, &e.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Resolve transitions an open entry to a terminal status. Entries already
// terminal are left untouched (rows affected is zero and the caller
// treats that as a no-op, not an error).
func (s *LedgerStore) Resolve(ctx context.Context, id uuid.UUID, method domain.ResolutionMethod, status domain.LedgerStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE contradiction_ledger
		 SET status = $2, resolution_method = $3, resolved_at = NOW()
		 WHERE id = $1 AND status = 'open'`,
		id, status, method,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish missing from already-terminal.
		if _, gerr := s.GetByID(ctx, id); gerr != nil {
			return gerr
		}
	}
	return nil
}

// Dismiss closes an open entry as a false positive and records the
// diagnostic note in resolution_question.
func (s *LedgerStore) Dismiss(ctx context.Context, id uuid.UUID, note string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE contradiction_ledger
		 SET status = 'dismissed', resolution_method = $2, resolution_question = $3, resolved_at = NOW()
		 WHERE id = $1 AND status = 'open'`,
		id, domain.ResolutionFalsePositive, note,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, gerr := s.GetByID(ctx, id); gerr != nil {
			return gerr
		}
	}
	return nil
}

func (s *LedgerStore) Report(ctx context.Context, threadID string) (*domain.LedgerReport, error) {
	rows, err := s.db.Query(ctx,
		`SELECT type, status, COUNT(*)
		 FROM contradiction_ledger
		 WHERE thread_id = $1
		 GROUP BY type, status`,
		threadID,
	)
	if err != nil {
		return nil, fmt.Errorf("report query: %w", err)
	}
	defer rows.Close()

	report := &domain.LedgerReport{
		ThreadID: threadID,
		ByType:   make(map[domain.ConflictType]int),
		ByStatus: make(map[domain.LedgerStatus]int),
	}
	for rows.Next() {
		var ct domain.ConflictType
		var st domain.LedgerStatus
		var n int
		if err := rows.Scan(&ct, &st, &n); err != nil {
			return nil, err
		}
		report.Total += n
		report.ByType[ct] += n
		report.ByStatus[st] += n
		if st == domain.LedgerOpen {
			report.Open += n
		}
	}
	return report, rows.Err()
}

func scanLedgerEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{}
	err := row.Scan(
		&e.ID, &e.ThreadID, &e.Slot, &e.OldMemoryID, &e.NewMemoryID,
		&e.Type, &e.Severity, &e.DriftScore, &e.Status,
		&e.ResolutionMethod, &e.ResolutionQuestion, &e.CreatedAt, &e.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}
