// Package store persists positions in PostgreSQL. The engine never
// touches the store directly; the execution layer records opens and
// closes here and feeds ListOpen into evaluation ticks.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/KaidenAngle/TomKingTrading-sub003/internal/position"
)

// Schema is the positions table DDL, applied by migration tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS positions (
	id                UUID PRIMARY KEY,
	symbol            TEXT NOT NULL,
	strategy          INT NOT NULL,
	correlation_group TEXT NOT NULL,
	legs              JSONB NOT NULL,
	entry_time        TIMESTAMPTZ NOT NULL,
	entry_credit      DOUBLE PRECISION NOT NULL,
	status            INT NOT NULL,
	closed_at         TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_positions_status ON positions (status);
CREATE INDEX IF NOT EXISTS idx_positions_symbol ON positions (symbol);
`

// PositionRepo is the persistence boundary for positions.
type PositionRepo interface {
	Open(ctx context.Context, p *position.Position) error
	Close(ctx context.Context, id string, closedAt time.Time) error
	Get(ctx context.Context, id string) (*position.Position, error)
	ListOpen(ctx context.Context) ([]*position.Position, error)
}

type positionRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPositionRepo creates a PostgreSQL position repository. timeout
// bounds each statement.
func NewPositionRepo(db *sqlx.DB, timeout time.Duration) PositionRepo {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &positionRepo{db: db, timeout: timeout}
}

// positionRow mirrors the table; legs travel as JSONB.
type positionRow struct {
	ID          string         `db:"id"`
	Symbol      string         `db:"symbol"`
	Strategy    int            `db:"strategy"`
	Group       string         `db:"correlation_group"`
	Legs        []byte         `db:"legs"`
	EntryTime   time.Time      `db:"entry_time"`
	EntryCredit float64        `db:"entry_credit"`
	Status      int            `db:"status"`
	ClosedAt    sql.NullTime   `db:"closed_at"`
}

func (r *positionRepo) Open(ctx context.Context, p *position.Position) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	legsJSON, err := json.Marshal(p.Legs)
	if err != nil {
		return fmt.Errorf("marshal legs: %w", err)
	}

	query := `
		INSERT INTO positions (id, symbol, strategy, correlation_group, legs, entry_time, entry_credit, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.ExecContext(ctx, query,
		p.ID, p.Symbol, int(p.Strategy), p.Group, legsJSON,
		p.EntryTime, p.EntryCredit, int(p.Status))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("position %s already recorded: %w", p.ID, err)
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

func (r *positionRepo) Close(ctx context.Context, id string, closedAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `UPDATE positions SET status = $1, closed_at = $2 WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query,
		int(position.StatusClosed), closedAt, id, int(position.StatusOpen))
	if err != nil {
		return fmt.Errorf("close position %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("close position %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("close position %s: not found or already closed", id)
	}
	return nil
}

func (r *positionRepo) Get(ctx context.Context, id string) (*position.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row positionRow
	query := `SELECT id, symbol, strategy, correlation_group, legs, entry_time, entry_credit, status, closed_at
		FROM positions WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("position %s: %w", id, err)
		}
		return nil, fmt.Errorf("get position %s: %w", id, err)
	}
	return row.toPosition()
}

func (r *positionRepo) ListOpen(ctx context.Context) ([]*position.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rows []positionRow
	query := `SELECT id, symbol, strategy, correlation_group, legs, entry_time, entry_credit, status, closed_at
		FROM positions WHERE status = $1 ORDER BY entry_time`
	if err := r.db.SelectContext(ctx, &rows, query, int(position.StatusOpen)); err != nil {
		return nil, fmt.Errorf("list open positions: %w", err)
	}

	positions := make([]*position.Position, 0, len(rows))
	for _, row := range rows {
		p, err := row.toPosition()
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, nil
}

func (row positionRow) toPosition() (*position.Position, error) {
	var legs []position.Leg
	if err := json.Unmarshal(row.Legs, &legs); err != nil {
		return nil, fmt.Errorf("unmarshal legs for %s: %w", row.ID, err)
	}
	return &position.Position{
		ID:          row.ID,
		Symbol:      row.Symbol,
		Strategy:    position.StrategyKind(row.Strategy),
		Group:       row.Group,
		Legs:        legs,
		EntryTime:   row.EntryTime,
		EntryCredit: row.EntryCredit,
		Status:      position.Status(row.Status),
	}, nil
}
