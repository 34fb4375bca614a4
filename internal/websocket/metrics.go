package websocket

import (
	"sync/atomic"
	"time"
)

// HubMetrics содержит счетчики WebSocket-сервера
type HubMetrics struct {
	totalConnections       atomic.Int64
	activeConnections      atomic.Int64
	messagesSent           atomic.Int64
	messagesDropped        atomic.Int64
	replacedConnections    atomic.Int64
	inactiveClientsRemoved atomic.Int64
	startTime              time.Time
}

// NewHubMetrics создает новый экземпляр метрик Hub
func NewHubMetrics() *HubMetrics {
	return &HubMetrics{startTime: time.Now()}
}

// Snapshot возвращает текущие значения метрик
func (m *HubMetrics) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"total_connections":        m.totalConnections.Load(),
		"active_connections":       m.activeConnections.Load(),
		"messages_sent":            m.messagesSent.Load(),
		"messages_dropped":         m.messagesDropped.Load(),
		"replaced_connections":     m.replacedConnections.Load(),
		"inactive_clients_removed": m.inactiveClientsRemoved.Load(),
		"uptime_seconds":           int64(time.Since(m.startTime).Seconds()),
	}
}
