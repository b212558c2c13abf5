package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mnemolabs/mnemo/internal/domain"
)

type TrustHistoryStore struct {
	db *pgxpool.Pool
}

func NewTrustHistoryStore(db *pgxpool.Pool) *TrustHistoryStore {
	return &TrustHistoryStore{db: db}
}

// Append adds one audit row. The table has no update or delete path.
func (s *TrustHistoryStore) Append(ctx context.Context, row *domain.TrustHistoryRow) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO trust_history (memory_id, trust_value, delta, reason)
		 VALUES ($1, $2, $3, $4)
		 RETURNING ts`,
		row.MemoryID, row.TrustValue, row.Delta, row.Reason,
	).Scan(&row.Timestamp)
}

func (s *TrustHistoryStore) ListByMemory(ctx context.Context, memoryID uuid.UUID) ([]domain.TrustHistoryRow, error) {
	rows, err := s.db.Query(ctx,
		`SELECT memory_id, ts, trust_value, delta, reason
		 FROM trust_history
		 WHERE memory_id = $1
		 ORDER BY ts ASC`,
		memoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("trust history query: %w", err)
	}
	defer rows.Close()

	var result []domain.TrustHistoryRow
	for rows.Next() {
		var r domain.TrustHistoryRow
		if err := rows.Scan(&r.MemoryID, &r.Timestamp, &r.TrustValue, &r.Delta, &r.Reason); err != nil {
			return nil, fmt.Errorf("scan trust history row: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
