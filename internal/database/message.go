package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/notiflow/internal/models"
)

// MessageFilter параметры выборки сообщений получателя
type MessageFilter struct {
	Category   *models.Category
	UnreadOnly bool
	Limit      int
	Before     *uuid.UUID
}

func (d *Database) SaveMessage(ctx context.Context, message *models.Message) error {
	return d.db.WithContext(ctx).Create(message).Error
}

func (d *Database) GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	var message models.Message
	if err := d.db.WithContext(ctx).First(&message, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

// ListMessages получает сообщения получателя с фильтрами и пагинацией
func (d *Database) ListMessages(ctx context.Context, recipientID uuid.UUID, filter MessageFilter) ([]models.Message, error) {
	var messages []models.Message

	query := d.db.WithContext(ctx).Where("recipient_id = ?", recipientID)

	if filter.Category != nil {
		query = query.Where("category = ?", *filter.Category)
	}

	if filter.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	// Если указан Before, получаем сообщения старше него
	if filter.Before != nil {
		var beforeMsg models.Message
		if err := d.db.WithContext(ctx).First(&beforeMsg, "id = ?", *filter.Before).Error; err == nil {
			query = query.Where("created_at < ?", beforeMsg.CreatedAt)
		}
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	err := query.
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error

	if err != nil {
		return nil, err
	}

	return messages, nil
}

func (d *Database) CountUnread(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	return count, err
}

// MarkMessageRead переводит сообщение в прочитанные. Переход одноразовый:
// выигрывает только первый вызов, повторный возвращает false без изменений.
func (d *Database) MarkMessageRead(ctx context.Context, id uuid.UUID, readAt time.Time) (bool, error) {
	result := d.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": readAt,
		})

	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}
