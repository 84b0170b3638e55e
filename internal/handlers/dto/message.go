package dto

import "github.com/google/uuid"

// SendMessageRequest тело отправки, одинаковое для WebSocket и HTTP.
// Отправитель в теле не передается, он берется из сессии.
type SendMessageRequest struct {
	RecipientID  uuid.UUID `json:"recipient_id" binding:"required"`
	Title        string    `json:"title" binding:"required,max=200"`
	Body         string    `json:"body" binding:"required,max=2000"`
	Category     string    `json:"category" binding:"required,oneof=info warning issue summary"`
	ReferenceIDs []string  `json:"reference_ids,omitempty"`
}

// JoinRoomPayload запрос входа в комнату получателя
type JoinRoomPayload struct {
	RecipientID uuid.UUID `json:"recipient_id"`
}

// AckPayload подтверждение записи отправителю; это не подтверждение доставки
type AckPayload struct {
	MessageID uuid.UUID `json:"message_id"`
}
