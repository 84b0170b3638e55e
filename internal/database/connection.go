package database

import (
	"errors"

	"github.com/thereayou/notiflow/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func (d *Database) Connect(dsn string) error {
	if dsn == "" {
		return errors.New("database dsn is not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return err
	}

	if err := Migrate(db); err != nil {
		return err
	}

	d.db = db

	return nil
}

// Migrate применяет схему; выделено отдельно для тестовой sqlite базы
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.Message{})
}
