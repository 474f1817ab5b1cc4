package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaidenAngle/TomKingTrading-sub003/internal/position"
)

func mockRepo(t *testing.T) (PositionRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPositionRepo(sqlx.NewDb(db, "postgres"), time.Second), mock
}

func samplePosition(t *testing.T) *position.Position {
	t.Helper()
	now := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)
	return position.New("SPY", position.Strangle, "equity-index", []position.Leg{
		{Side: position.Put, Strike: 450, Quantity: -1, Expiry: now.AddDate(0, 0, 45)},
		{Side: position.Call, Strike: 550, Quantity: -1, Expiry: now.AddDate(0, 0, 45)},
	}, 2.00, now)
}

func TestPositionRepo_Open(t *testing.T) {
	repo, mock := mockRepo(t)
	p := samplePosition(t)

	mock.ExpectExec("INSERT INTO positions").
		WithArgs(p.ID, "SPY", int(position.Strangle), "equity-index",
			sqlmock.AnyArg(), p.EntryTime, 2.00, int(position.StatusOpen)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Open(context.Background(), p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPositionRepo_Close(t *testing.T) {
	repo, mock := mockRepo(t)
	closedAt := time.Date(2026, 3, 20, 20, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE positions SET").
		WithArgs(int(position.StatusClosed), closedAt, "some-id", int(position.StatusOpen)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Close(context.Background(), "some-id", closedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPositionRepo_CloseMissingPosition(t *testing.T) {
	repo, mock := mockRepo(t)

	mock.ExpectExec("UPDATE positions SET").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Close(context.Background(), "gone", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found or already closed")
}

func TestPositionRepo_ListOpen(t *testing.T) {
	repo, mock := mockRepo(t)
	p := samplePosition(t)
	legsJSON, err := json.Marshal(p.Legs)
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{
		"id", "symbol", "strategy", "correlation_group", "legs",
		"entry_time", "entry_credit", "status", "closed_at",
	}).AddRow(p.ID, p.Symbol, int(p.Strategy), p.Group, legsJSON,
		p.EntryTime, p.EntryCredit, int(p.Status), nil)

	mock.ExpectQuery("SELECT (.+) FROM positions WHERE status").
		WithArgs(int(position.StatusOpen)).
		WillReturnRows(rows)

	got, err := repo.ListOpen(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, p.ID, got[0].ID)
	assert.Equal(t, position.Strangle, got[0].Strategy)
	require.Len(t, got[0].Legs, 2)
	assert.InDelta(t, 450.0, got[0].Legs[0].Strike, 1e-9)
	assert.Equal(t, position.StatusOpen, got[0].Status)
}

func TestPositionRepo_ListOpenBadLegs(t *testing.T) {
	repo, mock := mockRepo(t)

	rows := sqlmock.NewRows([]string{
		"id", "symbol", "strategy", "correlation_group", "legs",
		"entry_time", "entry_credit", "status", "closed_at",
	}).AddRow("id-1", "SPY", 0, "equity-index", []byte("{broken"),
		time.Now(), 2.0, 0, nil)

	mock.ExpectQuery("SELECT (.+) FROM positions WHERE status").
		WillReturnRows(rows)

	_, err := repo.ListOpen(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal legs")
}
