package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время, которое разрешено писать сообщение клиенту.
	writeWait = 10 * time.Second

	// Время, которое разрешено клиенту читать следующее сообщение.
	pongWait = 30 * time.Second

	// Периодичность отправки ping-сообщений клиенту.
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер сообщения. Сохранение ответа с длинным
	// списком вариантов не помещается в 512 байт.
	maxMessageSize = 4096

	// Размер буфера по умолчанию для каналов отправки сообщений клиенту
	defaultClientBufferSize = 128

	// Максимальное количество предупреждений о переполнении буфера до отключения
	maxBufferWarnings = 3
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// MessageHandler обрабатывает одно входящее сообщение клиента
type MessageHandler func(message []byte, client *Client) error

// ClientConfig содержит настройки для клиента
type ClientConfig struct {
	// BufferSize определяет размер буфера канала отправки сообщений
	BufferSize int

	// PingInterval определяет интервал между ping-сообщениями
	PingInterval time.Duration

	// PongWait определяет время ожидания pong-ответа
	PongWait time.Duration

	// WriteWait определяет тайм-аут для записи сообщений
	WriteWait time.Duration

	// MaxMessageSize определяет максимальный размер сообщения
	MaxMessageSize int64
}

// DefaultClientConfig возвращает конфигурацию клиента по умолчанию
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BufferSize:     defaultClientBufferSize,
		PingInterval:   pingPeriod,
		PongWait:       pongWait,
		WriteWait:      writeWait,
		MaxMessageSize: maxMessageSize,
	}
}

// Client является посредником между WebSocket соединением и hub.
// Соединение несет минимальное состояние: студента, его сессию
// и ID попытки, к которой оно сейчас привязано.
type Client struct {
	// ID студента
	StudentID uint

	// ID сессии, под которой выдан тикет
	SessionID string

	// Уникальный ID для каждого соединения
	ConnectionID string

	hub  *Hub
	conn *websocket.Conn

	// Буферизованный канал для исходящих сообщений
	send chan []byte

	// Флаг, указывающий что канал send закрыт (для предотвращения panic)
	sendClosed atomic.Bool

	// Время последней активности клиента (UnixNano)
	lastActivity atomic.Int64

	// Канал для ожидания завершения регистрации
	registrationComplete chan struct{}

	// ID попытки, к которой привязано соединение (0 если не привязано)
	currentAttemptID atomic.Uint64

	// Счетчик предупреждений о переполнении буфера
	bufferWarningCount atomic.Int32

	config ClientConfig
}

// NewClient создает нового клиента
func NewClient(hub *Hub, conn *websocket.Conn, studentID uint, sessionID string, config ClientConfig) *Client {
	if config.BufferSize <= 0 {
		config.BufferSize = defaultClientBufferSize
	}
	if config.PongWait <= 0 {
		config.PongWait = pongWait
	}
	if config.PingInterval <= 0 || config.PingInterval >= config.PongWait {
		config.PingInterval = (config.PongWait * 9) / 10
	}
	if config.WriteWait <= 0 {
		config.WriteWait = writeWait
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = maxMessageSize
	}

	c := &Client{
		hub:                  hub,
		conn:                 conn,
		send:                 make(chan []byte, config.BufferSize),
		StudentID:            studentID,
		SessionID:            sessionID,
		ConnectionID:         uuid.New().String(),
		registrationComplete: make(chan struct{}, 1),
		config:               config,
	}
	c.touch()
	return c
}

// SetAttemptID привязывает соединение к попытке
func (c *Client) SetAttemptID(attemptID uint) {
	c.currentAttemptID.Store(uint64(attemptID))
	log.Printf("[WebSocket] Student %d (Conn: %s) joined attempt %d", c.StudentID, c.ConnectionID, attemptID)
}

// GetAttemptID возвращает ID текущей попытки клиента
func (c *Client) GetAttemptID() uint {
	return uint(c.currentAttemptID.Load())
}

// ClearAttemptID отвязывает соединение от попытки, если она все еще текущая
func (c *Client) ClearAttemptID(attemptID uint) {
	c.currentAttemptID.CompareAndSwap(uint64(attemptID), 0)
}

// LastActivity возвращает время последней активности клиента
func (c *Client) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

func (c *Client) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// Send кладет сообщение в очередь отправки без блокировки.
// Возвращает false, если канал закрыт или буфер переполнен.
func (c *Client) Send(message []byte) (sent bool) {
	if c.sendClosed.Load() {
		return false
	}
	// Канал может закрыться между проверкой и отправкой
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()
	select {
	case c.send <- message:
		c.bufferWarningCount.Store(0)
		return true
	default:
		return false
	}
}

// SendJSON сериализует событие и отправляет его клиенту
func (c *Client) SendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message for student %d: %w", c.StudentID, err)
	}
	if !c.Send(data) {
		return fmt.Errorf("client %s send buffer is full or closed", c.ConnectionID)
	}
	return nil
}

// readPump читает сообщения от клиента и передает их обработчику
func (c *Client) readPump(messageHandler MessageHandler) {
	defer func() {
		log.Printf("[WebSocket] Read pump stopped for student %d, conn %s", c.StudentID, c.ConnectionID)
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		c.touch()
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WebSocket] Read error (student %d, conn %s): %v", c.StudentID, c.ConnectionID, err)
			}
			break
		}

		c.touch()

		if handlerErr := safeHandleMessage(message, c, messageHandler); handlerErr != nil {
			log.Printf("[WebSocket] Handler error (student %d, conn %s): %v. Closing connection.", c.StudentID, c.ConnectionID, handlerErr)
			break
		}
	}
}

// safeHandleMessage - обертка для вызова обработчика с recover
func safeHandleMessage(message []byte, client *Client, messageHandler MessageHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC recovered in message handler for student %d, conn %s. Panic: %v\nStack trace:\n%s",
				client.StudentID, client.ConnectionID, r, string(debug.Stack()))
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()
	message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
	if messageHandler == nil {
		log.Printf("Warning: No message handler registered for student %d", client.StudentID)
		return nil
	}
	return messageHandler(message, client)
}

// writePump отправляет сообщения клиенту из канала send
func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				return
			}
			if !ok {
				// Hub закрыл канал
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				log.Printf("[WebSocket] NextWriter error (student %d, conn %s): %v", c.StudentID, c.ConnectionID, err)
				return
			}
			if _, err := w.Write(message); err != nil {
				log.Printf("[WebSocket] Write error (student %d, conn %s): %v", c.StudentID, c.ConnectionID, err)
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[WebSocket] Ping error (student %d, conn %s): %v", c.StudentID, c.ConnectionID, err)
				return
			}
		}
	}
}

// StartPumps регистрирует клиента в hub и запускает горутины чтения и записи
func (c *Client) StartPumps(messageHandler MessageHandler) {
	if c.StudentID == 0 || c.hub == nil {
		log.Printf("[WebSocket] Client %s has no student or hub, closing", c.ConnectionID)
		c.conn.Close()
		return
	}

	c.hub.Register(c)

	select {
	case <-c.registrationComplete:
	case <-time.After(5 * time.Second):
		log.Printf("[WebSocket] Timeout waiting for student %d registration", c.StudentID)
		c.conn.Close()
		return
	}

	if !c.hub.IsRegistered(c) {
		log.Printf("[WebSocket] Student %d was unregistered before pumps started", c.StudentID)
		return
	}

	go c.writePump()
	go c.readPump(messageHandler)
}

// CloseSend безопасно закрывает канал send (только один раз).
// Возвращает true, если канал был закрыт этим вызовом.
func (c *Client) CloseSend() bool {
	if c.sendClosed.CompareAndSwap(false, true) {
		close(c.send)
		return true
	}
	return false
}

// IsSendClosed проверяет, закрыт ли канал send
func (c *Client) IsSendClosed() bool {
	return c.sendClosed.Load()
}
