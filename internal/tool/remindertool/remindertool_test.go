package remindertool_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/internal/reminder"
	"github.com/agentcore/core/internal/tool"
	"github.com/agentcore/core/internal/tool/remindertool"
)

func newRegistry(t *testing.T) (*tool.Registry, reminder.Store) {
	t.Helper()
	store, err := reminder.NewFileStore(filepath.Join(t.TempDir(), "reminders.json"))
	require.NoError(t, err)
	registry := tool.NewRegistry()
	require.NoError(t, remindertool.New(store, nil).Register(registry))
	return registry, store
}

func callTool(t *testing.T, registry *tool.Registry, name, argsJSON string) string {
	t.Helper()
	return registry.ExecuteTool(context.Background(), name, argsJSON)
}

func TestReminderAddListComplete(t *testing.T) {
	registry, store := newRegistry(t)
	due := time.Now().Add(time.Hour).Format(time.RFC3339)

	addOut := callTool(t, registry, "reminder_add", `{"title":"pay rent","reminder_time":"`+due+`"}`)
	assert.Contains(t, addOut, "pay rent")

	all, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)

	listOut := callTool(t, registry, "reminder_list", `{}`)
	assert.Contains(t, listOut, "pay rent")
	assert.Contains(t, listOut, "pending")

	completeOut := callTool(t, registry, "reminder_complete", `{"id":"`+all[0].ID+`"}`)
	assert.Contains(t, completeOut, "completed")

	got, err := store.Get(context.Background(), all[0].ID)
	require.NoError(t, err)
	assert.Equal(t, reminder.StatusCompleted, got.Status)
}

func TestReminderAddInvalidTime(t *testing.T) {
	registry, _ := newRegistry(t)
	out := callTool(t, registry, "reminder_add", `{"title":"x","reminder_time":"not-a-time"}`)
	assert.Contains(t, out, "Ошибка")
}

func TestReminderGetSummaryReportsOverdue(t *testing.T) {
	registry, store := newRegistry(t)
	require.NoError(t, store.Add(context.Background(), reminder.Reminder{
		Title:        "overdue thing",
		ReminderTime: time.Now().Add(-time.Hour),
	}))

	out := callTool(t, registry, "reminder_get_summary", `{}`)
	assert.Contains(t, out, "overdue thing")
}

func TestReminderDelete(t *testing.T) {
	registry, store := newRegistry(t)
	require.NoError(t, store.Add(context.Background(), reminder.Reminder{Title: "to delete", ReminderTime: time.Now().Add(time.Hour)}))
	all, err := store.List(context.Background())
	require.NoError(t, err)

	out := callTool(t, registry, "reminder_delete", `{"id":"`+all[0].ID+`"}`)
	assert.Contains(t, out, "deleted")

	remaining, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
