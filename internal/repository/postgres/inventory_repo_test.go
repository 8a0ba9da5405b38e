package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/casebros/case-engine/internal/errs"
)

func TestInventoryRepo_Sell_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewInventoryRepo(db)

	userID := uuid.Must(uuid.NewV4())
	invID := uuid.Must(uuid.NewV4())
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM inventory\s+WHERE id=\$1 AND user_id=\$2 FOR UPDATE`).
		WithArgs(invID, userID).
		WillReturnRows(pgxmock.NewRows([]string{"value_cents", "sold", "market_hash_name"}).
			AddRow(int64(5001), false, "AK-47 | Redline (Field-Tested)"))
	mock.ExpectQuery(`UPDATE users SET gems_cents = gems_cents \+ \$2 WHERE id=\$1 RETURNING gems_cents`).
		WithArgs(userID, int64(3000)). // floor(5001 * 0.6)
		WillReturnRows(pgxmock.NewRows([]string{"gems_cents"}).AddRow(int64(4300)))
	mock.ExpectExec(`UPDATE inventory SET sold=true`).
		WithArgs(invID, now, int64(3000)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO ledger`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	res, err := r.Sell(context.Background(), userID, invID, 0.60, now)
	require.NoError(t, err)
	require.Equal(t, int64(3000), res.SoldForCents)
	require.Equal(t, int64(4300), res.NewBalanceCents)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepo_Sell_AlreadySold(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewInventoryRepo(db)

	userID := uuid.Must(uuid.NewV4())
	invID := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM inventory\s+WHERE id=\$1 AND user_id=\$2 FOR UPDATE`).
		WithArgs(invID, userID).
		WillReturnRows(pgxmock.NewRows([]string{"value_cents", "sold", "market_hash_name"}).
			AddRow(int64(5000), true, "x"))
	mock.ExpectRollback()

	_, err := r.Sell(context.Background(), userID, invID, 0.60, time.Now())
	require.ErrorIs(t, err, errs.ErrAlreadySold)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInventoryRepo_Sell_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewInventoryRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM inventory\s+WHERE id=\$1 AND user_id=\$2 FOR UPDATE`).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := r.Sell(context.Background(), uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4()), 0.60, time.Now())
	require.ErrorIs(t, err, errs.ErrNotFound)
}
