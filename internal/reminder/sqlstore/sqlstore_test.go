package sqlstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/internal/reminder"
	"github.com/agentcore/core/internal/reminder/sqlstore"
)

func newMockStore(t *testing.T) (*sqlstore.Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS reminders").WillReturnResult(sqlmock.NewResult(0, 0))

	store, err := sqlstore.New(db, "sqlite")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	return store, mock
}

func TestStoreAdd(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO reminders").
		WithArgs("r1", "pay rent", "", sqlmock.AnyArg(), string(reminder.StatusPending), false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Add(context.Background(), reminder.Reminder{
		ID:           "r1",
		Title:        "pay rent",
		ReminderTime: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreGetNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "title", "description", "reminder_time", "status", "notified", "created_at", "updated_at"})
	mock.ExpectQuery("SELECT id, title, description, reminder_time, status, notified, created_at, updated_at FROM reminders WHERE id = ").
		WithArgs("missing").
		WillReturnRows(rows)

	_, err := store.Get(context.Background(), "missing")
	require.Error(t, err)
	var notFound *reminder.ErrNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreDeleteNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM reminders WHERE id = ").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Delete(context.Background(), "missing")
	require.Error(t, err)
	var notFound *reminder.ErrNotFound
	require.ErrorAs(t, err, &notFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreMarkNotified(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE reminders SET notified = ").
		WithArgs(true, sqlmock.AnyArg(), "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.MarkNotified(context.Background(), []string{"r1"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
