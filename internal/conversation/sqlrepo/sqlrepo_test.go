package sqlrepo_test

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentcore/core/internal/conversation"
	"github.com/agentcore/core/internal/conversation/sqlrepo"
	"github.com/agentcore/core/internal/message"
)

func newTestRepo(t *testing.T) *sqlrepo.Repository {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo, err := sqlrepo.New(db, "sqlite")
	require.NoError(t, err)
	return repo
}

func TestInitConversationIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.InitConversation(ctx, "c1", "you are a helper"))
	require.NoError(t, repo.InitConversation(ctx, "c1", "a different prompt"))

	history, err := repo.GetHistory(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "you are a helper", history[0].Content)
}

func TestAddMessagesAndOrdering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.InitConversation(ctx, "c1", "sys"))

	require.NoError(t, repo.AddMessages(ctx, "c1", []message.Message{
		message.NewUser("first"),
		message.NewAssistant("second"),
	}))

	history, err := repo.GetHistory(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "first", history[1].Content)
	assert.Equal(t, "second", history[2].Content)
}

func TestReplaceHistoryTransactional(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.InitConversation(ctx, "c1", "sys"))
	require.NoError(t, repo.AddMessage(ctx, "c1", message.NewUser("hello")))

	newHistory := []message.Message{message.NewSystem("new sys"), message.NewUser("hi again")}
	require.NoError(t, repo.ReplaceHistory(ctx, "c1", newHistory))

	history, err := repo.GetHistory(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "new sys", history[0].Content)
	assert.Equal(t, "hi again", history[1].Content)
}

func TestUpdateSystemPromptNoOpWhenFirstMessageNotSystem(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.InitConversation(ctx, "c1", "sys"))
	require.NoError(t, repo.ReplaceHistory(ctx, "c1", []message.Message{message.NewUser("hi")}))

	require.NoError(t, repo.UpdateSystemPrompt(ctx, "c1", "should not apply"))

	history, err := repo.GetHistory(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "hi", history[0].Content)
}

func TestDeleteConversationNotFound(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.DeleteConversation(context.Background(), "missing")
	assert.Error(t, err)
	var notFound *conversation.ErrNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestSearchMessagesHighlightsMatch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.InitConversation(ctx, "c1", "sys"))
	require.NoError(t, repo.AddMessage(ctx, "c1", message.NewUser("the quick brown fox jumps over the lazy dog")))

	results, err := repo.SearchMessages(ctx, "brown fox")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Highlight, "brown fox")
}

func TestExportImportRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.InitConversation(ctx, "c1", "sys"))
	require.NoError(t, repo.AddMessage(ctx, "c1", message.NewUser("hello")))
	require.NoError(t, repo.SetFormat(ctx, "c1", conversation.FormatMarkdown))

	export, err := repo.ExportConversation(ctx, "c1")
	require.NoError(t, err)

	newID, err := repo.ImportConversation(ctx, *export)
	require.NoError(t, err)
	assert.NotEqual(t, "c1", newID)

	history, err := repo.GetHistory(ctx, newID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[1].Content)

	format, err := repo.GetFormat(ctx, newID)
	require.NoError(t, err)
	assert.Equal(t, conversation.FormatMarkdown, format)
}
