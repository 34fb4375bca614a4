package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"
)

// HubConfig содержит настройки hub
type HubConfig struct {
	RegisterBuffer   int
	UnregisterBuffer int

	// CleanupInterval: период проверки неактивных клиентов (0 отключает очистку)
	CleanupInterval time.Duration
	// InactivityTimeout: после такого простоя клиент отключается
	InactivityTimeout time.Duration
	// ReplaceDelay: через сколько закрывается старое соединение студента,
	// когда он подключился заново
	ReplaceDelay time.Duration
}

// DefaultHubConfig возвращает настройки hub по умолчанию
func DefaultHubConfig() HubConfig {
	return HubConfig{
		RegisterBuffer:    100,
		UnregisterBuffer:  100,
		CleanupInterval:   time.Minute,
		InactivityTimeout: 2 * time.Minute,
		ReplaceDelay:      500 * time.Millisecond,
	}
}

// DisconnectFunc вызывается, когда текущее соединение студента оборвалось
type DisconnectFunc func(client *Client)

// Hub хранит соединения студентов. У студента одно активное соединение:
// новое подключение вытесняет старое.
type Hub struct {
	clients    sync.Map // *Client -> struct{}
	userMap    sync.Map // studentID (uint) -> *Client
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	closeOnce  sync.Once

	config       HubConfig
	metrics      *HubMetrics
	onDisconnect DisconnectFunc
}

// NewHub создает новый hub
func NewHub(config HubConfig) *Hub {
	defaults := DefaultHubConfig()
	if config.RegisterBuffer <= 0 {
		config.RegisterBuffer = defaults.RegisterBuffer
	}
	if config.UnregisterBuffer <= 0 {
		config.UnregisterBuffer = defaults.UnregisterBuffer
	}
	if config.InactivityTimeout <= 0 {
		config.InactivityTimeout = defaults.InactivityTimeout
	}
	if config.ReplaceDelay < 0 {
		config.ReplaceDelay = 0
	}

	return &Hub{
		register:   make(chan *Client, config.RegisterBuffer),
		unregister: make(chan *Client, config.UnregisterBuffer),
		done:       make(chan struct{}),
		config:     config,
		metrics:    NewHubMetrics(),
	}
}

// SetDisconnectHandler задает обработчик обрыва соединения.
// Должен вызываться до Run.
func (h *Hub) SetDisconnectHandler(fn DisconnectFunc) {
	h.onDisconnect = fn
}

// Run запускает цикл обработки регистраций hub
func (h *Hub) Run(ctx context.Context) {
	var cleanup <-chan time.Time
	if h.config.CleanupInterval > 0 {
		ticker := time.NewTicker(h.config.CleanupInterval)
		defer ticker.Stop()
		cleanup = ticker.C
	} else {
		log.Printf("[Hub] Очистка неактивных клиентов отключена (интервал <= 0)")
	}

	for {
		select {
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client, true)
		case <-cleanup:
			h.cleanupInactiveClients(h.config.InactivityTimeout)
		case <-ctx.Done():
			h.cleanupAllClients()
			return
		case <-h.done:
			h.cleanupAllClients()
			return
		}
	}
}

// Register ставит клиента в очередь на регистрацию
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister ставит клиента в очередь на удаление
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// IsRegistered проверяет, что соединение зарегистрировано
func (h *Hub) IsRegistered(client *Client) bool {
	_, ok := h.clients.Load(client)
	return ok
}

func (h *Hub) handleRegister(client *Client) {
	if existing, loaded := h.userMap.Swap(client.StudentID, client); loaded {
		if oldClient, ok := existing.(*Client); ok && oldClient != client {
			log.Printf("[Hub] Student %d reconnected, replacing conn %s with %s", client.StudentID, oldClient.ConnectionID, client.ConnectionID)
			h.metrics.replacedConnections.Add(1)
			// Старое соединение закрывается с задержкой, чтобы успели уйти
			// сообщения, уже поставленные в его очередь
			time.AfterFunc(h.config.ReplaceDelay, func() {
				h.handleUnregister(oldClient, false)
			})
		}
	}

	h.clients.Store(client, struct{}{})
	client.touch()
	h.metrics.totalConnections.Add(1)
	h.metrics.activeConnections.Add(1)

	log.Printf("[Hub] Student %d registered (conn %s)", client.StudentID, client.ConnectionID)

	select {
	case client.registrationComplete <- struct{}{}:
	default:
	}
}

// handleUnregister удаляет клиента. notify=false для вытесненных соединений:
// студент уже на связи через новое соединение.
func (h *Hub) handleUnregister(client *Client, notify bool) {
	if _, ok := h.clients.LoadAndDelete(client); !ok {
		return
	}
	current := h.userMap.CompareAndDelete(client.StudentID, client)

	if client.conn != nil {
		client.conn.Close()
	}
	client.CloseSend()
	h.metrics.activeConnections.Add(-1)

	log.Printf("[Hub] Student %d unregistered (conn %s)", client.StudentID, client.ConnectionID)

	if notify && current && h.onDisconnect != nil {
		go h.onDisconnect(client)
	}
}

// cleanupInactiveClients отключает клиентов без активности дольше timeout
func (h *Hub) cleanupInactiveClients(timeout time.Duration) {
	removed := 0
	h.clients.Range(func(key, _ interface{}) bool {
		client, ok := key.(*Client)
		if !ok {
			return true
		}
		if time.Since(client.LastActivity()) > timeout {
			log.Printf("[Hub Cleanup] Student %d (conn %s) inactive since %v, disconnecting",
				client.StudentID, client.ConnectionID, client.LastActivity())
			h.handleUnregister(client, true)
			removed++
		}
		return true
	})
	if removed > 0 {
		h.metrics.inactiveClientsRemoved.Add(int64(removed))
	}
}

// cleanupAllClients закрывает все соединения перед остановкой
func (h *Hub) cleanupAllClients() {
	h.clients.Range(func(key, _ interface{}) bool {
		if client, ok := key.(*Client); ok {
			h.handleUnregister(client, false)
		}
		return true
	})
	log.Printf("[Hub] All clients closed")
}

// SendToUser отправляет сообщение текущему соединению студента
func (h *Hub) SendToUser(studentID uint, message []byte) bool {
	client, ok := h.Client(studentID)
	if !ok {
		return false
	}

	if client.Send(message) {
		h.metrics.messagesSent.Add(1)
		return true
	}

	h.metrics.messagesDropped.Add(1)
	warnings := client.bufferWarningCount.Add(1)
	log.Printf("[Hub] Student %d (conn %s) buffer full, warning %d/%d", studentID, client.ConnectionID, warnings, maxBufferWarnings)
	if warnings >= maxBufferWarnings {
		log.Printf("[Hub] Student %d (conn %s) exceeded buffer warnings, disconnecting", studentID, client.ConnectionID)
		go h.Unregister(client)
	}
	return false
}

// SendJSONToUser сериализует событие и отправляет его студенту
func (h *Hub) SendJSONToUser(studentID uint, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message for student %d: %w", studentID, err)
	}
	if !h.SendToUser(studentID, data) {
		return fmt.Errorf("student %d is not connected or buffer is full", studentID)
	}
	return nil
}

// Client возвращает текущее соединение студента на этом экземпляре
func (h *Hub) Client(studentID uint) (*Client, bool) {
	value, ok := h.userMap.Load(studentID)
	if !ok {
		return nil, false
	}
	client, ok := value.(*Client)
	return client, ok
}

// IsConnected сообщает, есть ли у студента соединение на этом экземпляре
func (h *Hub) IsConnected(studentID uint) bool {
	_, ok := h.Client(studentID)
	return ok
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	return int(h.metrics.activeConnections.Load())
}

// GetMetrics возвращает метрики hub
func (h *Hub) GetMetrics() map[string]interface{} {
	return h.metrics.Snapshot()
}

// Close останавливает hub
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}
