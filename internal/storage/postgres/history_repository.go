package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

type historyRepository struct {
	db *sql.DB
}

// NewHistoryRepository создаёт PostgreSQL-реализацию HistoryRepository.
func NewHistoryRepository(store *Store) domain.HistoryRepository {
	return &historyRepository{db: store.DB()}
}

// Append пишет все записи одной транзакцией.
func (r *historyRepository) Append(ctx context.Context, entries ...domain.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, entry := range entries {
		if entry.Occurred.IsZero() {
			entry.Occurred = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_history (order_id, field, from_value, to_value, actor, occurred_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, entry.OrderID, string(entry.Field), entry.From, entry.To, entry.Actor, entry.Occurred); err != nil {
			return fmt.Errorf("append order history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order history: %w", err)
	}
	return nil
}

func (r *historyRepository) List(ctx context.Context, orderID int64) ([]domain.HistoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, field, from_value, to_value, actor, occurred_at
		FROM order_history
		WHERE order_id = $1
		ORDER BY occurred_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order history: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.HistoryEntry, 0)
	for rows.Next() {
		var (
			entry domain.HistoryEntry
			field string
		)
		if err := rows.Scan(&entry.OrderID, &field, &entry.From, &entry.To, &entry.Actor, &entry.Occurred); err != nil {
			return nil, fmt.Errorf("scan order history: %w", err)
		}
		entry.Field = domain.HistoryField(field)
		entry.Occurred = entry.Occurred.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order history: %w", err)
	}

	return entries, nil
}

var _ domain.HistoryRepository = (*historyRepository)(nil)
