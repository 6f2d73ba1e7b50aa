package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChatSession struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Owner         string         `gorm:"type:varchar(255);not null;index"`
	DocumentScope datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"`
	Mode          string         `gorm:"type:varchar(20);not null;default:'chat'"`
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}
