package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/thereayou/notiflow/internal/models"
)

const (
	// Время ожидания записи
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Интервал отправки ping
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего события
	maxMessageSize = 64 * 1024

	sendQueueSize = 256
)

// EventHandler обрабатывает прикладные события соединения
type EventHandler interface {
	HandleEvent(client *Client, event *Event) error
}

// Client одно живое соединение. Владелец — Hub: после Unregister никто
// не удерживает ссылку дольше одного обращения.
type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Role   models.Role

	conn *websocket.Conn
	send chan []byte
	hub  *Hub
	log  *zap.Logger

	mu     sync.RWMutex
	room   uuid.UUID
	joined bool
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, role models.Role, log *zap.Logger) *Client {
	return &Client{
		ID:     uuid.New(),
		UserID: userID,
		Role:   role,
		conn:   conn,
		send:   make(chan []byte, sendQueueSize),
		hub:    hub,
		log:    log,
	}
}

// ReadPump читает события от клиента
func (c *Client) ReadPump(handler EventHandler) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var event Event
		err := c.conn.ReadJSON(&event)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read error", zap.Error(err))
			}
			break
		}

		if event.Type == EventPong {
			continue
		}

		if handler == nil {
			continue
		}

		// Ошибка обработки не закрывает соединение, только этот запрос
		if err := handler.HandleEvent(c, &event); err != nil {
			c.log.Warn("event handling failed",
				zap.String("event_type", string(event.Type)),
				zap.Error(err),
			)
			c.SendError(err.Error())
		}
	}
}

// WritePump отправляет события клиенту
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub закрыл канал
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendEvent ставит событие в очередь отправки этому соединению
func (c *Client) SendEvent(eventType EventType, data interface{}) error {
	payload, err := NewEvent(eventType, data)
	if err != nil {
		return err
	}
	return c.enqueue(payload)
}

func (c *Client) SendError(errorMsg string) {
	c.SendEvent(EventError, map[string]string{
		"error": errorMsg,
	})
}

func (c *Client) enqueue(payload []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClientQueueFull
	}

	select {
	case c.send <- payload:
		return nil
	default:
		return ErrClientQueueFull
	}
}

// InRoom состоит ли соединение в комнате получателя
func (c *Client) InRoom(recipientID uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.joined && c.room == recipientID
}

func (c *Client) currentRoom() (uuid.UUID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.room, c.joined
}

func (c *Client) setRoom(recipientID uuid.UUID) {
	c.mu.Lock()
	c.room = recipientID
	c.joined = true
	c.mu.Unlock()
}

func (c *Client) clearRoom() {
	c.mu.Lock()
	c.room = uuid.Nil
	c.joined = false
	c.mu.Unlock()
}

// closeSend вызывается только hub'ом при снятии с регистрации
func (c *Client) closeSend() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
}
