package service

import (
	"context"
	"encoding/json"

	"ai-study-portal-be/internal/pkg/logger"
	"ai-study-portal-be/internal/pkg/metrics"
	"ai-study-portal-be/pkg/events"
	"ai-study-portal-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill/message"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// TurnDelivery pushes a serialized turn frame to a session's watchers.
// Implemented by the websocket hub.
type TurnDelivery interface {
	Send(sessionID string, message []byte)
}

// EventPublisher is the cross-service bus (NATS in production)
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// TurnFrame is what websocket clients receive for every completed turn
type TurnFrame struct {
	Type      string                  `json:"type"`
	SessionID string                  `json:"session_id"`
	Turn      store.Turn              `json:"turn"`
	Result    *store.GenerationResult `json:"result,omitempty"`
}

type consumerService struct {
	subscriber message.Subscriber
	topicName  string
	delivery   TurnDelivery
	bus        EventPublisher
	logger     logger.ILogger
	metrics    *metrics.Metrics
}

// NewConsumerService fans turn events out to websocket watchers and the
// event bus. delivery and bus may each be nil.
func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	delivery TurnDelivery,
	bus EventPublisher,
	log logger.ILogger,
	m *metrics.Metrics,
) IConsumerService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &consumerService{
		subscriber: subscriber,
		topicName:  topicName,
		delivery:   delivery,
		bus:        bus,
		logger:     log,
		metrics:    m,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()
	return nil
}

// processMessage always acks: delivery is best-effort and a redelivered
// turn would show up twice in the client.
func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var evt store.TurnEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		cs.logger.Error("TurnConsumer", "Failed to unmarshal turn event", map[string]interface{}{"error": err.Error()})
		return
	}

	if cs.delivery != nil {
		frame, err := json.Marshal(TurnFrame{Type: "turn", SessionID: evt.SessionID, Turn: evt.Turn, Result: evt.Result})
		if err != nil {
			cs.metrics.ObserveEvent("websocket", "error")
			return
		}
		cs.delivery.Send(evt.SessionID, frame)
		cs.metrics.ObserveEvent("websocket", "ok")
	}

	if cs.bus != nil {
		if err := cs.bus.Publish(ctx, events.NewChatTurnAppended(evt)); err != nil {
			cs.logger.Warn("TurnConsumer", "Failed to publish turn to event bus", map[string]interface{}{
				"session_id": evt.SessionID,
				"error":      err.Error(),
			})
			cs.metrics.ObserveEvent("nats", "error")
			return
		}
		cs.metrics.ObserveEvent("nats", "ok")
	}
}
