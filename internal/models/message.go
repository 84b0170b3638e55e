package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Category закрытый набор типов уведомлений
type Category string

const (
	CategoryInfo    Category = "info"
	CategoryWarning Category = "warning"
	CategoryIssue   Category = "issue"
	CategorySummary Category = "summary"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryInfo, CategoryWarning, CategoryIssue, CategorySummary:
		return true
	}
	return false
}

const (
	TitleMaxLen = 200
	BodyMaxLen  = 2000
)

type Message struct {
	ID           uuid.UUID                   `gorm:"type:uuid;primaryKey"`
	RecipientID  uuid.UUID                   `gorm:"not null;index"`
	SenderID     uuid.UUID                   `gorm:"not null"`
	Title        string                      `gorm:"size:200;not null"`
	Body         string                      `gorm:"size:2000;not null"`
	Category     Category                    `gorm:"size:16;not null"`
	ReferenceIDs datatypes.JSONSlice[string] `gorm:"column:reference_ids"`
	IsRead       bool                        `gorm:"not null;default:false;index"`
	ReadAt       *time.Time
	CreatedAt    time.Time
}

// BeforeCreate присваивает id до записи, чтобы он существовал до рассылки
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
