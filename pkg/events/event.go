package events

import (
	"time"

	"ai-study-portal-be/pkg/store"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "CHAT_TURN_APPENDED").
	EventType() string

	Payload() map[string]interface{}

	Timestamp() time.Time
}

const ChatTurnAppended = "CHAT_TURN_APPENDED"

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewChatTurnAppended summarises a completed turn for the event bus. The
// structured quiz or plan stays out of the payload; subscribers that need
// it read the session.
func NewChatTurnAppended(evt store.TurnEvent) BaseEvent {
	data := map[string]interface{}{
		"session_id":  evt.SessionID,
		"owner":       evt.Owner,
		"turn_id":     evt.Turn.ID,
		"turn_kind":   string(evt.Turn.Kind),
		"entity_type": "chat_session",
		"entity_id":   evt.SessionID,
		"occurred_at": evt.Turn.Timestamp,
	}
	if evt.Result != nil {
		data["result_kind"] = string(evt.Result.Kind)
	}
	return BaseEvent{
		Type:       ChatTurnAppended,
		Data:       data,
		OccurredAt: evt.Turn.Timestamp,
	}
}
