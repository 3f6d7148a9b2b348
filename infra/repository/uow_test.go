package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	repo "github.com/amirasaad/ledgersync/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	dialector := postgres.New(postgres.Config{
		Conn:       mockDb,
		DriverName: "postgres",
	})
	db, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return db, mock
}

func TestUoW_Repositories(t *testing.T) {
	db, _ := newMockDB(t)
	uow := NewUoW(db)

	assert.IsType(t, &transactionRepository{}, uow.Transactions())
	assert.IsType(t, &tripRepository{}, uow.Trips())
}

func TestUoW_DoCommits(t *testing.T) {
	db, mock := newMockDB(t)
	uow := NewUoW(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	var inner repo.UnitOfWork
	err := uow.Do(context.Background(), func(u repo.UnitOfWork) error {
		inner = u
		return nil
	})
	require.NoError(t, err)
	assert.NotNil(t, inner.Transactions())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUoW_DoRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	uow := NewUoW(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := uow.Do(context.Background(), func(u repo.UnitOfWork) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCursorStore_GetMissingReadsZero(t *testing.T) {
	db, mock := newMockDB(t)
	cursors := NewCursorStore(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "cursors"`)).
		WillReturnError(gorm.ErrRecordNotFound)

	seq, err := cursors.Get(context.Background(), "user:u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)
}

func TestCursorStore_Get(t *testing.T) {
	db, mock := newMockDB(t)
	cursors := NewCursorStore(db)

	rows := sqlmock.NewRows([]string{"key", "seq"}).AddRow("user:u1", int64(42))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "cursors"`)).
		WillReturnRows(rows)

	seq, err := cursors.Get(context.Background(), "user:u1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), seq)
}

func TestLikePrefix(t *testing.T) {
	assert.Equal(t, `trip:u1:%`, likePrefix("trip:u1:"))
	assert.Equal(t, `a\%b\_c%`, likePrefix("a%b_c"))
}
