package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockConnection(t *testing.T) (*Connection, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Connection{DB: db}, mock
}

func TestRunInTransaction_Commit(t *testing.T) {
	conn, mock := newMockConnection(t)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := conn.RunInTransaction(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.ExecContext(context.Background(), "CREATE TABLE IF NOT EXISTS x (id int)")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTransaction_Rollback(t *testing.T) {
	conn, mock := newMockConnection(t)
	failure := errors.New("falhou")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := conn.RunInTransaction(context.Background(), func(tx *sql.Tx) error {
		return failure
	})

	assert.ErrorIs(t, err, failure)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	conn := &Connection{DB: db}
	assert.Error(t, conn.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
