package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role определяет, кто может отправлять, а кто получать уведомления
type Role string

const (
	RoleUser     Role = "user"
	RoleOperator Role = "operator"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	Role         Role      `gorm:"size:16;not null;default:'user'"`
	LastSeenAt   time.Time
	CreatedAt    time.Time
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
