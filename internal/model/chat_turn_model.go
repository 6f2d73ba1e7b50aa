package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ChatTurn is one archived history entry. Seq is the 1-based position in
// the session and is unique per session.
type ChatTurn struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ChatSessionId uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_chat_turn_seq"`
	Seq           int            `gorm:"not null;uniqueIndex:idx_chat_turn_seq"`
	Role          string         `gorm:"type:varchar(20);not null"`
	Text          string         `gorm:"type:text;not null"`
	Kind          string         `gorm:"type:varchar(20)"`
	Payload       datatypes.JSON `gorm:"type:jsonb"`
	FailureKind   string         `gorm:"type:varchar(50)"`
	CreatedAt     time.Time
}

func (ChatTurn) TableName() string {
	return "chat_turns"
}
