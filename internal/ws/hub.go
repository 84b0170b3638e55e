package ws

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const dispatchQueueSize = 256

// dispatchItem сохраненное сообщение, ожидающее рассылки в комнату
type dispatchItem struct {
	recipientID uuid.UUID
	payload     []byte
}

// Hub владеет всеми живыми соединениями и членством в комнатах.
// Комната создается при первом входе и удаляется с последним участником,
// никогда не сохраняется.
type Hub struct {
	clients map[uuid.UUID]*Client

	// Соединения в комнатах получателей
	rooms map[uuid.UUID]map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client

	// Очередь рассылки: один goroutine Run сохраняет порядок записи в хранилище
	dispatch chan dispatchItem

	mu  sync.RWMutex
	log *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[uuid.UUID]*Client),
		rooms:      make(map[uuid.UUID]map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		dispatch:   make(chan dispatchItem, dispatchQueueSize),
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run запускает hub
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case item := <-h.dispatch:
			h.fanOut(item)
		}
	}
}

// Stop останавливает hub и закрывает все соединения
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		client.closeSend()
		if client.conn != nil {
			client.conn.Close()
		}
	}
	h.clients = make(map[uuid.UUID]*Client)
	h.rooms = make(map[uuid.UUID]map[uuid.UUID]*Client)
}

func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client

	h.log.Debug("client registered",
		zap.String("conn_id", client.ID.String()),
		zap.String("user_id", client.UserID.String()),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		// Гонки при отключении ожидаемы, не ошибка
		return
	}

	h.removeFromRoomUnsafe(client)
	delete(h.clients, client.ID)
	client.closeSend()

	h.log.Debug("client unregistered",
		zap.String("conn_id", client.ID.String()),
		zap.String("user_id", client.UserID.String()),
	)
}

// JoinRoom добавляет соединение в комнату получателя. Повторный вход в ту же
// комнату no-op; вход в другую комнату заменяет текущее членство, соединение
// состоит максимум в одной комнате.
func (h *Hub) JoinRoom(client *Client, key RoomKey) {
	if key.IsZero() {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	current, joined := client.currentRoom()
	if joined {
		if current == key.recipient {
			return
		}
		h.removeFromRoomUnsafe(client)
	}

	if _, ok := h.rooms[key.recipient]; !ok {
		h.rooms[key.recipient] = make(map[uuid.UUID]*Client)
	}
	h.rooms[key.recipient][client.ID] = client
	client.setRoom(key.recipient)
}

// LeaveRoom удаляет соединение из комнаты
func (h *Hub) LeaveRoom(client *Client, key RoomKey) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, joined := client.currentRoom()
	if !joined || current != key.recipient {
		return
	}
	h.removeFromRoomUnsafe(client)
}

func (h *Hub) removeFromRoomUnsafe(client *Client) {
	current, joined := client.currentRoom()
	if !joined {
		return
	}

	if room, ok := h.rooms[current]; ok {
		delete(room, client.ID)
		if len(room) == 0 {
			delete(h.rooms, current)
		}
	}
	client.clearRoom()
}

// Members снимок соединений в комнате получателя
func (h *Hub) Members(recipientID uuid.UUID) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room, ok := h.rooms[recipientID]
	if !ok {
		return nil
	}

	members := make([]uuid.UUID, 0, len(room))
	for connID := range room {
		members = append(members, connID)
	}
	return members
}

// Dispatch ставит сохраненное сообщение в очередь рассылки.
// Вызывается только после успешной записи в хранилище.
func (h *Hub) Dispatch(recipientID uuid.UUID, payload []byte) {
	select {
	case h.dispatch <- dispatchItem{recipientID: recipientID, payload: payload}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) fanOut(item dispatchItem) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room, ok := h.rooms[item.recipientID]
	if !ok {
		// Получатель офлайн: сообщение уже в хранилище, заберет запросом
		return
	}

	for _, client := range room {
		if err := client.enqueue(item.payload); err != nil {
			h.log.Warn("client send queue full, dropping push",
				zap.String("conn_id", client.ID.String()),
			)
		}
	}
}
