package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare-service/internal/storage"
)

func newMock(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewWithDB(db), mock
}

func TestGet(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv_store WHERE key=$1`)).
		WithArgs("appointment:7").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`{"appointment_id":7}`))

	v, err := s.Get(context.Background(), "appointment:7")
	require.NoError(t, err)
	assert.Equal(t, `{"appointment_id":7}`, v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNoRows(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv_store WHERE key=$1`)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrKeyNotFound)
}

func TestGetDriverErrorIsNotNotFound(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv_store WHERE key=$1`)).
		WithArgs("k").
		WillReturnError(errors.New("connection reset"))

	_, err := s.Get(context.Background(), "k")
	require.Error(t, err)
	assert.False(t, errors.Is(err, storage.ErrKeyNotFound))
}

func TestSetUpserts(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec("INSERT INTO kv_store").
		WithArgs("k", "v").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Set(context.Background(), "k", "v"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncr(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery("INSERT INTO kv_store").
		WithArgs("appointments:seq").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(42)))

	n, err := s.Incr(context.Background(), "appointments:seq")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestIncrNonIntegerValue(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery("INSERT INTO kv_store").
		WithArgs("therapists").
		WillReturnError(&pq.Error{Code: "22P02", Message: "invalid input syntax for type bigint"})

	_, err := s.Incr(context.Background(), "therapists")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not hold an integer")
}

func TestMigrate(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS kv_store").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
