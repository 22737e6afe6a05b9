package reminder_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/internal/reminder"
)

func newTestStore(t *testing.T) *reminder.FileStore {
	t.Helper()
	dir := t.TempDir()
	store, err := reminder.NewFileStore(filepath.Join(dir, "reminders.json"))
	require.NoError(t, err)
	return store
}

func TestFileStoreAddGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Add(ctx, reminder.Reminder{Title: "call mom", ReminderTime: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "call mom", all[0].Title)
	assert.Equal(t, reminder.StatusPending, all[0].Status)
	assert.False(t, all[0].Notified)

	got, err := store.Get(ctx, all[0].ID)
	require.NoError(t, err)
	assert.Equal(t, all[0].ID, got.ID)
}

func TestFileStoreGetOverdueSkipsNotified(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	require.NoError(t, store.Add(ctx, reminder.Reminder{Title: "overdue", ReminderTime: past}))
	require.NoError(t, store.Add(ctx, reminder.Reminder{Title: "future", ReminderTime: time.Now().Add(time.Hour)}))

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	overdue, err := store.GetOverdue(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "overdue", overdue[0].Title)

	require.NoError(t, store.MarkNotified(ctx, []string{overdue[0].ID}))

	overdueAfter, err := store.GetOverdue(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, overdueAfter)
}

func TestFileStoreDeleteNotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.Delete(context.Background(), "missing")
	require.Error(t, err)
	var nf *reminder.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestFileStoreUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, reminder.Reminder{Title: "original", ReminderTime: time.Now().Add(time.Hour)}))

	all, err := store.List(ctx)
	require.NoError(t, err)
	r := all[0]
	r.Title = "updated"
	r.Status = reminder.StatusCompleted
	require.NoError(t, store.Update(ctx, r))

	got, err := store.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Title)
	assert.Equal(t, reminder.StatusCompleted, got.Status)
}
