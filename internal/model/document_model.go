package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document is uploaded study material. ExtractedText is filled by the
// upload pipeline and only read here.
type Document struct {
	Id            uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId        uuid.UUID      `gorm:"type:uuid;not null;index"`
	Title         string         `gorm:"type:varchar(255);not null"`
	FileName      string         `gorm:"type:varchar(255)"`
	ExtractedText string         `gorm:"type:text"`
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

func (Document) TableName() string {
	return "documents"
}
