package websocket

// HubInterface объединяет возможности hub, нужные Manager
type HubInterface interface {
	// SendJSONToUser отправляет структуру JSON конкретному студенту
	SendJSONToUser(studentID uint, v interface{}) error

	// SendToUser отправляет байтовое сообщение конкретному студенту
	SendToUser(studentID uint, message []byte) bool

	// GetMetrics возвращает метрики hub
	GetMetrics() map[string]interface{}

	// ClientCount возвращает количество подключенных клиентов
	ClientCount() int
}

var _ HubInterface = (*Hub)(nil)
