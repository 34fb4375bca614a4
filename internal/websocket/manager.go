package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
)

// Event представляет сообщение в формате {type, data}
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// EventHandler обрабатывает данные события конкретного типа
type EventHandler func(data json.RawMessage, client *Client) error

// ErrCloseConnection возвращается обработчиком, когда соединение нужно закрыть
// после отправки ошибки клиенту
var ErrCloseConnection = errors.New("close connection")

// Manager маршрутизирует входящие события к обработчикам
type Manager struct {
	hub      HubInterface
	handlers map[string]EventHandler
	mu       sync.RWMutex
}

// NewManager создает новый менеджер
func NewManager(hub HubInterface) *Manager {
	return &Manager{
		hub:      hub,
		handlers: make(map[string]EventHandler),
	}
}

// RegisterHandler регистрирует обработчик для типа события
func (m *Manager) RegisterHandler(eventType string, handler EventHandler) {
	m.mu.Lock()
	m.handlers[eventType] = handler
	m.mu.Unlock()
	log.Printf("[WebSocketManager] Зарегистрирован обработчик для сообщений типа: %s", eventType)
}

// HandleMessage разбирает сообщение клиента и вызывает обработчик.
// Ошибки обработчиков уходят клиенту событием error, соединение остается открытым.
// Ошибка возвращается только для невалидного JSON, ошибок аутентификации
// и ErrCloseConnection: после нее соединение закрывается.
func (m *Manager) HandleMessage(message []byte, client *Client) error {
	var event struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message, &event); err != nil {
		log.Printf("[WebSocketManager] Failed to unmarshal message from student %d: %v", client.StudentID, err)
		m.sendError(client, apperrors.KindValidation, "Invalid JSON format")
		return err
	}

	m.mu.RLock()
	handler, ok := m.handlers[event.Type]
	m.mu.RUnlock()
	if !ok {
		m.sendError(client, apperrors.KindValidation, fmt.Sprintf("Unknown message type: %s", event.Type))
		return nil
	}

	if err := handler(event.Data, client); err != nil {
		m.SendErrorToClient(client, err)
		if errors.Is(err, ErrCloseConnection) || errors.Is(err, apperrors.ErrUnauthorized) {
			return err
		}
		log.Printf("[WebSocketManager] Handler for '%s' returned error for student %d: %v", event.Type, client.StudentID, err)
	}
	return nil
}

// SendErrorToClient отправляет клиенту событие error с видом ошибки.
// Текст внутренних ошибок клиенту не раскрывается.
func (m *Manager) SendErrorToClient(client *Client, err error) {
	kind := apperrors.Kind(err)
	message := err.Error()
	if apperrors.IsInternal(err) {
		if errors.Is(err, ErrCloseConnection) {
			return
		}
		log.Printf("[WebSocketManager] Internal error for student %d: %v", client.StudentID, err)
		message = "Internal server error"
	}
	m.sendError(client, kind, message)
}

func (m *Manager) sendError(client *Client, kind, message string) {
	event := Event{Type: EventError, Data: ErrorPayload{Kind: kind, Message: message}}
	if err := client.SendJSON(event); err != nil {
		log.Printf("[WebSocketManager] ERROR sending error to student %d: %v", client.StudentID, err)
	}
}

// Reply отправляет событие конкретному соединению
func (m *Manager) Reply(client *Client, eventType string, data interface{}) error {
	return client.SendJSON(Event{Type: eventType, Data: data})
}

// SendEventToUser отправляет событие текущему соединению студента
func (m *Manager) SendEventToUser(studentID uint, eventType string, data interface{}) error {
	return m.hub.SendJSONToUser(studentID, Event{Type: eventType, Data: data})
}

// GetMetrics возвращает метрики hub
func (m *Manager) GetMetrics() map[string]interface{} {
	metrics := m.hub.GetMetrics()
	metrics["client_count"] = m.hub.ClientCount()
	return metrics
}
