package history

import (
	"context"
	"os"
	"testing"

	"ai-study-portal-be/internal/model"
	"ai-study-portal-be/internal/repository/unitofwork"
	"ai-study-portal-be/pkg/database"
	"ai-study-portal-be/pkg/store"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	_ = godotenv.Load("../../../.env")

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.NewGormDBFromDSN(dsn, "silent")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.ChatSession{}, &model.ChatTurn{}))

	return NewArchive(unitofwork.NewRepositoryFactory(db))
}

func TestArchiveRoundTrip(t *testing.T) {
	archive := newTestArchive(t)
	ctx := context.Background()

	s := &store.Session{
		ID:            uuid.NewString(),
		Owner:         "integration",
		DocumentScope: []string{"d1"},
		Mode:          store.ModeChat,
	}
	require.NoError(t, archive.SaveSession(ctx, s))
	t.Cleanup(func() { _ = archive.DeleteSession(ctx, s.ID) })

	require.NoError(t, archive.AppendTurn(ctx, s.ID, 1, store.Turn{ID: uuid.NewString(), Role: store.RoleUser, Text: "hi"}))
	require.NoError(t, archive.AppendTurn(ctx, s.ID, 2, store.Turn{ID: uuid.NewString(), Role: store.RoleAssistant, Text: "hello"}))
	// replays of the same seq are ignored
	require.NoError(t, archive.AppendTurn(ctx, s.ID, 2, store.Turn{ID: uuid.NewString(), Role: store.RoleAssistant, Text: "dup"}))

	loaded, err := archive.LoadSession(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, []string{"d1"}, loaded.DocumentScope)
	require.Len(t, loaded.History, 2)
	assert.Equal(t, "hello", loaded.History[1].Text)

	require.NoError(t, archive.DeleteSession(ctx, s.ID))
	loaded, err = archive.LoadSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestArchiveIgnoresMalformedIDs(t *testing.T) {
	archive := NewArchive(nil)

	loaded, err := archive.LoadSession(context.Background(), "not-a-uuid")
	assert.NoError(t, err)
	assert.Nil(t, loaded)
	assert.NoError(t, archive.DeleteSession(context.Background(), "not-a-uuid"))
	assert.Error(t, archive.AppendTurn(context.Background(), "not-a-uuid", 1, store.Turn{}))
}
