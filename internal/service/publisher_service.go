package service

import (
	"context"
	"encoding/json"

	"ai-study-portal-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// IPublisherService hands completed turns to the in-process event bus
type IPublisherService interface {
	PublishTurn(ctx context.Context, evt store.TurnEvent) error
}

type publisherService struct {
	topicName string
	publisher message.Publisher
}

func NewPublisherService(topicName string, publisher message.Publisher) IPublisherService {
	return &publisherService{
		topicName: topicName,
		publisher: publisher,
	}
}

func (ps *publisherService) PublishTurn(ctx context.Context, evt store.TurnEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("session_id", evt.SessionID)
	return ps.publisher.Publish(ps.topicName, msg)
}
