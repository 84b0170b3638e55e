package wsclient

import (
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/thereayou/notiflow/internal/ws"
)

// State состояние контроллера соединения
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateJoined
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	default:
		return "disconnected"
	}
}

const (
	defaultMaxRetries  = 5
	defaultRetryDelay  = 2 * time.Second
	defaultJoinTimeout = 5 * time.Second
)

type Config struct {
	// URL точка подключения, например ws://localhost:8080/ws
	URL         string
	Token       string
	RecipientID uuid.UUID

	// Бюджет переподключений после обрыва; фиксированная пауза между попытками
	MaxRetries  int
	RetryDelay  time.Duration
	JoinTimeout time.Duration
}

var (
	ErrAlreadyStarted = errors.New("client already started")
	ErrClosed         = errors.New("client closed")
)

// Client держит соединение с сервером и после обрыва переподключается сам.
// Членство в комнате не переживает обрыв транспорта, поэтому после каждого
// успешного подключения вход в комнату выполняется заново.
type Client struct {
	cfg Config
	log *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	state   State
	started bool
	closed  bool

	subMu   sync.RWMutex
	subs    map[int]func(ws.Event)
	nextSub int
}

func New(cfg Config, log *zap.Logger) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = defaultJoinTimeout
	}

	return &Client{
		cfg:  cfg,
		log:  log,
		subs: make(map[int]func(ws.Event)),
	}
}

// Start подключается и входит в комнату. Это же явный вызов повторной
// инициализации после исчерпания бюджета переподключений.
func (c *Client) Start() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.state = StateConnecting
	c.mu.Unlock()

	conn, err := c.dial()
	if err != nil {
		c.setStopped(StateDisconnected)
		return err
	}

	c.setState(StateConnected)

	if err := c.join(conn); err != nil {
		conn.Close()
		c.setStopped(StateDisconnected)
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateJoined
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

// Close закрывает соединение по инициативе пользователя, без переподключения
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.state = StateDisconnected
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return conn.Close()
	}
	return nil
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscription подписка на входящие события с явной отменой
type Subscription struct {
	cancel func()
	once   sync.Once
}

func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// Listen подписывает обработчик на все входящие события
func (c *Client) Listen(fn func(ws.Event)) *Subscription {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	return &Subscription{
		cancel: func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		},
	}
}

func (c *Client) dial() (*websocket.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", c.cfg.Token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	return conn, err
}

// join заново заявляет членство в комнате; без ответа в пределах
// JoinTimeout попытка считается неудачной
func (c *Client) join(conn *websocket.Conn) error {
	payload, err := ws.NewEvent(ws.EventRoomJoin, map[string]string{
		"recipient_id": c.cfg.RecipientID.String(),
	})
	if err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(c.cfg.JoinTimeout))
	defer conn.SetWriteDeadline(time.Time{})

	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var event ws.Event
		if err := conn.ReadJSON(&event); err != nil {
			conn.Close()

			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()

			if closed {
				c.setStopped(StateDisconnected)
				return
			}

			c.log.Warn("connection lost, reconnecting", zap.Error(err))
			c.reconnect()
			return
		}

		c.deliver(event)
	}
}

// reconnect ограниченное число попыток с фиксированной паузой.
// Исчерпание бюджета оставляет клиента в Disconnected до явного Start.
func (c *Client) reconnect() {
	c.mu.Lock()
	c.state = StateDisconnected
	c.conn = nil
	c.mu.Unlock()

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		time.Sleep(c.cfg.RetryDelay)

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			c.setStopped(StateDisconnected)
			return
		}
		c.state = StateConnecting
		c.mu.Unlock()

		conn, err := c.dial()
		if err != nil {
			c.log.Warn("reconnect attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}

		c.setState(StateConnected)

		if err := c.join(conn); err != nil {
			c.log.Warn("rejoin failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			conn.Close()
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.state = StateJoined
		c.mu.Unlock()

		c.log.Info("reconnected", zap.Int("attempt", attempt))
		go c.readLoop(conn)
		return
	}

	c.log.Error("reconnect budget exhausted", zap.Int("attempts", c.cfg.MaxRetries))
	c.setStopped(StateDisconnected)
}

func (c *Client) deliver(event ws.Event) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, fn := range c.subs {
		fn(event)
	}
}

func (c *Client) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

func (c *Client) setStopped(state State) {
	c.mu.Lock()
	c.state = state
	c.started = false
	c.mu.Unlock()
}
