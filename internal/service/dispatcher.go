package service

import (
	"go.uber.org/zap"

	"github.com/thereayou/notiflow/internal/ws"
)

// HubDispatcher толкает сохраненные сообщения в комнату получателя через hub.
// Пустая комната не ошибка: офлайн-получатель заберет сообщение запросом.
type HubDispatcher struct {
	hub *ws.Hub
	log *zap.Logger
}

func NewHubDispatcher(hub *ws.Hub, log *zap.Logger) *HubDispatcher {
	return &HubDispatcher{hub: hub, log: log}
}

func (d *HubDispatcher) Publish(message *MessageDTO) {
	payload, err := ws.NewEvent(ws.EventMessageReceived, message)
	if err != nil {
		d.log.Error("marshal message event", zap.Error(err))
		return
	}

	d.hub.Dispatch(message.RecipientID, payload)
}
