package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/thereayou/notiflow/internal/database"
	"github.com/thereayou/notiflow/internal/models"
)

// MessageDTO форма сообщения для транспорта, поля зеркалят сущность
type MessageDTO struct {
	ID           uuid.UUID       `json:"id"`
	RecipientID  uuid.UUID       `json:"recipient_id"`
	SenderID     uuid.UUID       `json:"sender_id"`
	Title        string          `json:"title"`
	Body         string          `json:"body"`
	Category     models.Category `json:"category"`
	ReferenceIDs []string        `json:"reference_ids,omitempty"`
	IsRead       bool            `json:"is_read"`
	ReadAt       *time.Time      `json:"read_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// SendInput входные данные отправки. SenderID берется из аутентифицированной
// сессии и никогда из тела запроса.
type SendInput struct {
	RecipientID  uuid.UUID
	SenderID     uuid.UUID
	Title        string
	Body         string
	Category     models.Category
	ReferenceIDs []string
}

// ListInput фильтры выборки сообщений получателя
type ListInput struct {
	Category   string
	UnreadOnly bool
	Limit      int
	Before     *uuid.UUID
}

// Dispatcher рассылает сохраненное сообщение в комнату получателя
type Dispatcher interface {
	Publish(message *MessageDTO)
}

// MessageService единая точка входа для отправки, выборки и отметки
// прочтения. Оба адаптера (WebSocket и HTTP) ходят через него.
type MessageService struct {
	db         *database.Database
	dispatcher Dispatcher
	log        *zap.Logger
}

func NewMessageService(db *database.Database, dispatcher Dispatcher, log *zap.Logger) *MessageService {
	return &MessageService{
		db:         db,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Send проверяет запрос, сохраняет сообщение и только после записи отдает его
// на рассылку. Ошибка записи прерывает отправку целиком: без записи нет push.
func (s *MessageService) Send(ctx context.Context, input SendInput) (*MessageDTO, error) {
	if err := s.validateSend(ctx, &input); err != nil {
		return nil, err
	}

	message := &models.Message{
		RecipientID:  input.RecipientID,
		SenderID:     input.SenderID,
		Title:        input.Title,
		Body:         input.Body,
		Category:     input.Category,
		ReferenceIDs: input.ReferenceIDs,
		IsRead:       false,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.db.SaveMessage(ctx, message); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	dto := toDTO(message)

	// Запись уже подтверждена, рассылка не влияет на результат отправки
	s.dispatcher.Publish(&dto)

	return &dto, nil
}

func (s *MessageService) validateSend(ctx context.Context, input *SendInput) error {
	if input.RecipientID == uuid.Nil {
		return fmt.Errorf("%w: recipient id is required", ErrValidation)
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Body = strings.TrimSpace(input.Body)

	if input.Title == "" || len([]rune(input.Title)) > models.TitleMaxLen {
		return fmt.Errorf("%w: title must be 1-%d characters", ErrValidation, models.TitleMaxLen)
	}

	if input.Body == "" || len([]rune(input.Body)) > models.BodyMaxLen {
		return fmt.Errorf("%w: body must be 1-%d characters", ErrValidation, models.BodyMaxLen)
	}

	if !input.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, input.Category)
	}

	exists, err := s.db.UserExists(ctx, input.RecipientID)
	if err != nil {
		return fmt.Errorf("check recipient: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: recipient does not exist", ErrValidation)
	}

	return nil
}

// MarkRead отмечает сообщение прочитанным. Идемпотентно: повторный вызов
// возвращает исходный readAt без изменений. Разрешено только получателю.
func (s *MessageService) MarkRead(ctx context.Context, messageID, requesterID uuid.UUID) (*MessageDTO, error) {
	message, err := s.db.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load message: %w", err)
	}

	if message.RecipientID != requesterID {
		s.log.Warn("mark read denied",
			zap.String("message_id", messageID.String()),
			zap.String("requester", requesterID.String()),
		)
		return nil, ErrForbidden
	}

	if message.IsRead {
		dto := toDTO(message)
		return &dto, nil
	}

	now := time.Now().UTC()
	won, err := s.db.MarkMessageRead(ctx, messageID, now)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}

	if !won {
		// Параллельный вызов успел раньше, возвращаем его readAt
		message, err = s.db.GetMessage(ctx, messageID)
		if err != nil {
			return nil, fmt.Errorf("reload message: %w", err)
		}
		dto := toDTO(message)
		return &dto, nil
	}

	message.IsRead = true
	message.ReadAt = &now

	dto := toDTO(message)
	return &dto, nil
}

// List выдает сообщения получателя из хранилища, новые первыми
func (s *MessageService) List(ctx context.Context, recipientID uuid.UUID, input ListInput) ([]MessageDTO, error) {
	filter := database.MessageFilter{
		UnreadOnly: input.UnreadOnly,
		Limit:      input.Limit,
		Before:     input.Before,
	}

	if input.Category != "" {
		category := models.Category(input.Category)
		if !category.Valid() {
			return nil, fmt.Errorf("%w: unknown category %q", ErrValidation, input.Category)
		}
		filter.Category = &category
	}

	messages, err := s.db.ListMessages(ctx, recipientID, filter)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	return lo.Map(messages, func(m models.Message, _ int) MessageDTO {
		return toDTO(&m)
	}), nil
}

func (s *MessageService) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	count, err := s.db.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func toDTO(m *models.Message) MessageDTO {
	return MessageDTO{
		ID:           m.ID,
		RecipientID:  m.RecipientID,
		SenderID:     m.SenderID,
		Title:        m.Title,
		Body:         m.Body,
		Category:     m.Category,
		ReferenceIDs: m.ReferenceIDs,
		IsRead:       m.IsRead,
		ReadAt:       m.ReadAt,
		CreatedAt:    m.CreatedAt,
	}
}
