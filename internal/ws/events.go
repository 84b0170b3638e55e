package ws

import (
	"encoding/json"
	"time"
)

// EventType определяет типы событий на соединении
type EventType string

const (
	// Системные типы
	EventPing EventType = "ping"
	EventPong EventType = "pong"

	// Комнаты
	EventRoomJoin EventType = "room.join"

	// Сообщения
	EventMessageSend     EventType = "message.send"
	EventMessageReceived EventType = "message.received"
	EventMessageAck      EventType = "message.ack"

	EventError EventType = "error"
)

type Event struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent собирает событие с сериализованной полезной нагрузкой
func NewEvent(eventType EventType, data interface{}) ([]byte, error) {
	ev := Event{
		Type:      eventType,
		Timestamp: time.Now(),
	}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		ev.Data = raw
	}

	return json.Marshal(ev)
}
