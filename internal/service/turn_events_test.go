package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"ai-study-portal-be/pkg/events"
	"ai-study-portal-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDelivery struct {
	mu     sync.Mutex
	frames map[string][][]byte
}

func (d *recordingDelivery) Send(sessionID string, message []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames[sessionID] = append(d.frames[sessionID], message)
}

func (d *recordingDelivery) count(sessionID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.frames[sessionID])
}

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	return nil
}

func (b *recordingBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

func TestTurnEventsReachHubAndBus(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	delivery := &recordingDelivery{frames: map[string][][]byte{}}
	bus := &recordingBus{}
	consumer := NewConsumerService(pubSub, "chat.turn.appended", delivery, bus, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, consumer.Consume(ctx))

	publisher := NewPublisherService("chat.turn.appended", pubSub)
	turn := store.Turn{ID: "t1", Role: store.RoleAssistant, Text: "Chloroplasts."}
	require.NoError(t, publisher.PublishTurn(ctx, store.TurnEvent{
		SessionID: "s1",
		Owner:     "u1",
		Turn:      turn,
		Result:    store.NewChatReplyResult("Chloroplasts.", []string{"d1"}),
	}))

	require.Eventually(t, func() bool { return delivery.count("s1") == 1 && bus.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	var frame TurnFrame
	require.NoError(t, json.Unmarshal(delivery.frames["s1"][0], &frame))
	assert.Equal(t, "turn", frame.Type)
	assert.Equal(t, "t1", frame.Turn.ID)
	assert.Equal(t, store.ResultChatReply, frame.Result.Kind)

	assert.Equal(t, events.ChatTurnAppended, bus.events[0].EventType())
	assert.Equal(t, "s1", bus.events[0].Payload()["session_id"])
}
