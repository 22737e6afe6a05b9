package reminder_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/internal/reminder"
)

func TestSchedulerMarksOverdueNotified(t *testing.T) {
	dir := t.TempDir()
	store, err := reminder.NewFileStore(filepath.Join(dir, "reminders.json"))
	require.NoError(t, err)

	ctx := t.Context()
	require.NoError(t, store.Add(ctx, reminder.Reminder{Title: "overdue", ReminderTime: time.Now().Add(-time.Minute)}))

	sched := reminder.NewScheduler(store, 20*time.Millisecond)
	sched.Start()
	defer sched.Stop()

	require.Eventually(t, func() bool {
		return sched.CurrentSummary() != ""
	}, 2*time.Second, 10*time.Millisecond)

	assert.Contains(t, sched.CurrentSummary(), "overdue")

	overdue, err := store.GetOverdue(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, overdue)
}

func TestSchedulerSecondStartIsNoOp(t *testing.T) {
	dir := t.TempDir()
	store, err := reminder.NewFileStore(filepath.Join(dir, "reminders.json"))
	require.NoError(t, err)

	sched := reminder.NewScheduler(store, time.Hour)
	sched.Start()
	sched.Start()
	sched.Stop()
}
