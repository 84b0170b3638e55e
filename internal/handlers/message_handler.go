package handlers

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/thereayou/notiflow/internal/handlers/dto"
	"github.com/thereayou/notiflow/internal/models"
	"github.com/thereayou/notiflow/internal/service"
	"github.com/thereayou/notiflow/internal/ws"
)

// MessageHandler адаптер WebSocket событий к сервису сообщений.
// Валидация и сохранение общие с HTTP адаптером, здесь только разбор событий.
type MessageHandler struct {
	svc        *service.MessageService
	authorizer *ws.JoinAuthorizer
	hub        *ws.Hub
	log        *zap.Logger
}

func NewMessageHandler(svc *service.MessageService, authorizer *ws.JoinAuthorizer, hub *ws.Hub, log *zap.Logger) *MessageHandler {
	return &MessageHandler{
		svc:        svc,
		authorizer: authorizer,
		hub:        hub,
		log:        log,
	}
}

func (h *MessageHandler) HandleEvent(client *ws.Client, event *ws.Event) error {
	switch event.Type {
	case ws.EventRoomJoin:
		return h.handleRoomJoin(client, event)

	case ws.EventMessageSend:
		return h.handleSend(client, event)

	default:
		h.log.Debug("unknown event type", zap.String("type", string(event.Type)))
		return nil
	}
}

// handleRoomJoin вход в комнату. Отказ в доступе не отвечает в сеть:
// соединение остается открытым, но не в комнате.
func (h *MessageHandler) handleRoomJoin(client *ws.Client, event *ws.Event) error {
	var payload dto.JoinRoomPayload
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return ws.ErrInvalidEvent
	}

	key, err := h.authorizer.AuthorizeJoin(client.ID, payload.RecipientID, client.UserID)
	if err != nil {
		return nil
	}

	h.hub.JoinRoom(client, key)
	return nil
}

func (h *MessageHandler) handleSend(client *ws.Client, event *ws.Event) error {
	// Отправка доступна только операторам; отказ молчаливый, как и для комнат
	if client.Role != models.RoleOperator {
		h.log.Warn("send denied for non-operator",
			zap.String("conn_id", client.ID.String()),
			zap.String("user_id", client.UserID.String()),
		)
		return nil
	}

	var payload dto.SendMessageRequest
	if err := json.Unmarshal(event.Data, &payload); err != nil {
		return ws.ErrInvalidEvent
	}

	message, err := h.svc.Send(context.Background(), service.SendInput{
		RecipientID:  payload.RecipientID,
		SenderID:     client.UserID,
		Title:        payload.Title,
		Body:         payload.Body,
		Category:     models.Category(payload.Category),
		ReferenceIDs: payload.ReferenceIDs,
	})
	if err != nil {
		return err
	}

	// Ack только отправителю: запись подтверждена, доставка не гарантируется
	return client.SendEvent(ws.EventMessageAck, dto.AckPayload{MessageID: message.ID})
}
