package mapper

import (
	"testing"
	"time"

	"ai-study-portal-be/internal/model"
	"ai-study-portal-be/pkg/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatSessionRoundTrip(t *testing.T) {
	m := NewChatMapper()
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	s := &store.Session{
		ID:            uuid.NewString(),
		Owner:         "u1",
		DocumentScope: []string{"d1", "d2"},
		Mode:          store.ModeQuiz,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	row, err := m.ChatSessionToModel(s)
	require.NoError(t, err)
	assert.JSONEq(t, `["d1","d2"]`, string(row.DocumentScope))

	back, err := m.ChatSessionToStore(row)
	require.NoError(t, err)
	assert.Equal(t, s.ID, back.ID)
	assert.Equal(t, s.DocumentScope, back.DocumentScope)
	assert.Equal(t, store.ModeQuiz, back.Mode)
	assert.Empty(t, back.History)

	_, err = m.ChatSessionToModel(&store.Session{ID: "not-a-uuid"})
	assert.Error(t, err)
}

func TestChatSessionUnknownModeFallsBackToChat(t *testing.T) {
	back, err := NewChatMapper().ChatSessionToStore(&model.ChatSession{Id: uuid.New(), Mode: "essay"})
	require.NoError(t, err)
	assert.Equal(t, store.ModeChat, back.Mode)
	assert.Equal(t, []string{}, back.DocumentScope)
}

func TestChatTurnPayloads(t *testing.T) {
	m := NewChatMapper()
	sessionID := uuid.New()

	quizTurn := store.Turn{
		ID:   uuid.NewString(),
		Role: store.RoleAssistant,
		Kind: store.KindQuiz,
		Quiz: &store.Quiz{Title: "Cells", Items: []store.QuizItem{{Question: "Q", Options: []string{"a", "b", "c", "d"}, CorrectIndex: 1}}},
	}
	row, err := m.ChatTurnToModel(sessionID, 2, quizTurn)
	require.NoError(t, err)
	assert.Equal(t, 2, row.Seq)

	back, err := m.ChatTurnToStore(row)
	require.NoError(t, err)
	require.NotNil(t, back.Quiz)
	assert.Equal(t, 1, back.Quiz.Items[0].CorrectIndex)

	failTurn := store.Turn{ID: uuid.NewString(), Role: store.RoleAssistant, Kind: store.KindFailure, FailureKind: store.FailureNoContext, Text: "sorry"}
	row, err = m.ChatTurnToModel(sessionID, 3, failTurn)
	require.NoError(t, err)
	assert.Empty(t, row.Payload)

	back, err = m.ChatTurnToStore(row)
	require.NoError(t, err)
	assert.Equal(t, store.FailureNoContext, back.FailureKind)
	assert.Nil(t, back.Quiz)
	assert.Nil(t, back.StudyPlan)
}
