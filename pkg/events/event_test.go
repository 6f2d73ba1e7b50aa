package events

import (
	"testing"
	"time"

	"ai-study-portal-be/pkg/store"

	"github.com/stretchr/testify/assert"
)

func TestNewChatTurnAppended(t *testing.T) {
	at := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	evt := NewChatTurnAppended(store.TurnEvent{
		SessionID: "s1",
		Owner:     "u1",
		Turn:      store.Turn{ID: "t1", Kind: store.KindQuiz, Timestamp: at, Quiz: &store.Quiz{Title: "big"}},
		Result:    store.NewQuizResult(&store.Quiz{Title: "big"}),
	})

	assert.Equal(t, ChatTurnAppended, evt.EventType())
	assert.Equal(t, at, evt.Timestamp())
	assert.Equal(t, "s1", evt.Payload()["session_id"])
	assert.Equal(t, "quiz", evt.Payload()["turn_kind"])
	assert.Equal(t, "quiz", evt.Payload()["result_kind"])
	assert.NotContains(t, evt.Payload(), "quiz")
}
