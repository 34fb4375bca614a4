package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// DefaultAttemptEventsChannel - канал Redis для событий закрытия попыток
const DefaultAttemptEventsChannel = "examprep:attempt-events"

// AttemptEvent сообщает экземплярам кластера, что попытка закрыта.
// Экземпляр, держащий соединение студента, доставляет Event клиенту
// и снимает свой таймер истечения.
type AttemptEvent struct {
	InstanceID string    `json:"instance_id"`
	AttemptID  uint      `json:"attempt_id"`
	StudentID  uint      `json:"student_id"`
	Reason     string    `json:"reason"`
	Event      *Event    `json:"event,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// AttemptEventHandler обрабатывает событие с другого экземпляра
type AttemptEventHandler func(event AttemptEvent)

// ClusterBus рассылает события попыток между экземплярами API
type ClusterBus struct {
	provider   PubSubProvider
	channel    string
	instanceID string
}

// NewClusterBus создает шину. Пустой instanceID заменяется сгенерированным,
// nil provider - на NoOpPubSub.
func NewClusterBus(provider PubSubProvider, channel, instanceID string) *ClusterBus {
	if provider == nil {
		log.Println("[ClusterBus] Провайдер Pub/Sub не предоставлен, используется NoOpPubSub")
		provider = &NoOpPubSub{}
	}
	if channel == "" {
		channel = DefaultAttemptEventsChannel
	}
	if instanceID == "" {
		instanceID = "instance_" + uuid.NewString()
		log.Printf("[ClusterBus] Instance ID не задан, сгенерирован: %s", instanceID)
	}
	return &ClusterBus{provider: provider, channel: channel, instanceID: instanceID}
}

// InstanceID возвращает ID текущего экземпляра
func (b *ClusterBus) InstanceID() string {
	return b.instanceID
}

// Publish отправляет событие остальным экземплярам
func (b *ClusterBus) Publish(event AttemptEvent) error {
	event.InstanceID = b.instanceID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal attempt event %d: %w", event.AttemptID, err)
	}
	return b.provider.Publish(b.channel, data)
}

// Listen читает события других экземпляров до отмены ctx.
// Собственные события экземпляра пропускаются.
func (b *ClusterBus) Listen(ctx context.Context, handler AttemptEventHandler) error {
	msgCh, err := b.provider.Subscribe(ctx, b.channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to attempt events: %w", err)
	}

	go func() {
		for raw := range msgCh {
			b.dispatch(raw, handler)
		}
		log.Printf("[ClusterBus] Listener for '%s' stopped", b.channel)
	}()
	return nil
}

func (b *ClusterBus) dispatch(raw []byte, handler AttemptEventHandler) {
	var event AttemptEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		log.Printf("[ClusterBus] Invalid attempt event: %v", err)
		return
	}
	if event.InstanceID == b.instanceID {
		return
	}
	handler(event)
}
