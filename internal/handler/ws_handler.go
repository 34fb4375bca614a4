package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/handler/dto"
	"github.com/yourusername/examprep-api/internal/handler/helper"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
	"github.com/yourusername/examprep-api/internal/service"
	"github.com/yourusername/examprep-api/internal/service/attemptmanager"
	"github.com/yourusername/examprep-api/internal/websocket"
	"github.com/yourusername/examprep-api/pkg/auth"
)

// Время на обработку одного события клиента
const wsOperationTimeout = 10 * time.Second

// originKey помечает контекст операции, запущенной конкретным соединением
type originKey struct{}

func withOrigin(ctx context.Context, connectionID string) context.Context {
	return context.WithValue(ctx, originKey{}, connectionID)
}

func originOf(ctx context.Context) string {
	origin, _ := ctx.Value(originKey{}).(string)
	return origin
}

// WSHandlerConfig содержит настройки WebSocket-обработчика
type WSHandlerConfig struct {
	AllowedOrigins []string
	Client         websocket.ClientConfig
}

// WSHandler обрабатывает WebSocket соединения экзамена и публикует
// события закрытия попыток подключенным студентам
type WSHandler struct {
	hub        *websocket.Hub
	wsManager  *websocket.Manager
	attempts   RealtimeAttempts
	sessions   SessionValidator
	jwtService *auth.JWTService
	bus        *websocket.ClusterBus
	scheduler  *attemptmanager.ExpiryScheduler

	upgrader     gorillaws.Upgrader
	clientConfig websocket.ClientConfig
}

// NewWSHandler создает новый обработчик WebSocket.
// ctx ограничивает жизнь таймеров истечения попыток.
func NewWSHandler(
	ctx context.Context,
	hub *websocket.Hub,
	wsManager *websocket.Manager,
	attempts RealtimeAttempts,
	sessions SessionValidator,
	jwtService *auth.JWTService,
	bus *websocket.ClusterBus,
	config WSHandlerConfig,
) *WSHandler {
	if bus == nil {
		bus = websocket.NewClusterBus(nil, "", "")
	}
	h := &WSHandler{
		hub:          hub,
		wsManager:    wsManager,
		attempts:     attempts,
		sessions:     sessions,
		jwtService:   jwtService,
		bus:          bus,
		clientConfig: config.Client,
	}
	h.scheduler = attemptmanager.NewExpiryScheduler(ctx, h.onAttemptTimer)
	h.upgrader = gorillaws.Upgrader{
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		CheckOrigin:       originChecker(config.AllowedOrigins),
		EnableCompression: true,
	}

	// Регистрируем обработчики сообщений один раз при создании обработчика
	h.registerMessageHandlers()
	hub.SetDisconnectHandler(h.onDisconnect)

	return h
}

// originChecker пропускает клиентов без Origin (мобильные приложения)
// и браузеры с разрешенных доменов
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] || set[origin] {
			return true
		}
		log.Printf("[WSHandler] Rejected unauthorized origin: %s", origin)
		return false
	}
}

// Listen подписывается на события попыток с других экземпляров
func (h *WSHandler) Listen(ctx context.Context) error {
	return h.bus.Listen(ctx, h.onClusterEvent)
}

// Stop отменяет все таймеры истечения
func (h *WSHandler) Stop() {
	h.scheduler.Stop()
}

// HandleConnection обрабатывает входящее WebSocket соединение
func (h *WSHandler) HandleConnection(c *gin.Context) {
	// Тикет передается в ?ticket=..., его нельзя логировать
	ticket := c.Query("ticket")
	if ticket == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing authentication ticket parameter", "kind": apperrors.KindUnauthorized})
		return
	}

	claims, err := h.jwtService.ParseWSTicket(ticket)
	if err != nil {
		log.Printf("[WSHandler] Invalid or expired ticket: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired ticket", "kind": apperrors.KindUnauthorized})
		return
	}

	// Тикет, выданный до нового входа, уже не действует
	if err := h.sessions.Validate(c.Request.Context(), claims.UserID, claims.SessionID); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": err.Error(), "kind": apperrors.Kind(err)})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrader уже записал ответ с ошибкой
		log.Printf("[WSHandler] Error upgrading connection for student %d: %v", claims.UserID, err)
		return
	}

	client := websocket.NewClient(h.hub, conn, claims.UserID, claims.SessionID, h.clientConfig)
	client.StartPumps(h.wsManager.HandleMessage)
}

// registerMessageHandlers регистрирует обработчики для различных типов сообщений
func (h *WSHandler) registerMessageHandlers() {
	h.wsManager.RegisterHandler(websocket.EventJoinAttempt, h.handleJoinAttempt)
	h.wsManager.RegisterHandler(websocket.EventSyncTime, h.handleSyncTime)
	h.wsManager.RegisterHandler(websocket.EventSaveAnswer, h.handleSaveAnswer)
	h.wsManager.RegisterHandler(websocket.EventExamViolation, h.handleExamViolation)
	h.wsManager.RegisterHandler(websocket.EventSubmitAttempt, h.handleSubmitAttempt)
	h.wsManager.RegisterHandler(websocket.EventHeartbeat, h.handleHeartbeat)
}

func (h *WSHandler) handleJoinAttempt(data json.RawMessage, client *websocket.Client) error {
	var req dto.AttemptRef
	if err := decodePayload(data, &req); err != nil {
		return err
	}
	ctx, cancel := h.operationContext(client)
	defer cancel()

	if err := h.sessions.Validate(ctx, client.StudentID, client.SessionID); err != nil {
		return err
	}

	attempt, _, err := h.attempts.ExpireCheck(ctx, client.StudentID, req.AttemptID)
	if err != nil {
		return err
	}
	if attempt.Status.IsTerminal() {
		if attempt.Status == entity.AttemptSubmitted {
			return service.ErrAlreadySubmitted
		}
		return h.replyClosed(client, attempt)
	}

	client.SetAttemptID(attempt.ID)
	h.scheduler.Schedule(attempt.ID, attempt.Deadline())

	return h.wsManager.Reply(client, websocket.EventAttemptJoined, h.clock(attempt))
}

func (h *WSHandler) handleSyncTime(data json.RawMessage, client *websocket.Client) error {
	var req dto.AttemptRef
	if err := decodePayload(data, &req); err != nil {
		return err
	}
	ctx, cancel := h.operationContext(client)
	defer cancel()

	if err := h.sessions.Validate(ctx, client.StudentID, client.SessionID); err != nil {
		return err
	}

	attempt, info, err := h.attempts.TimeStatus(ctx, client.StudentID, req.AttemptID)
	if err != nil {
		return err
	}
	if attempt.Status.IsTerminal() {
		return h.replyClosed(client, attempt)
	}

	return h.wsManager.Reply(client, websocket.EventTimeSync, dto.AttemptClock{
		AttemptID:     attempt.ID,
		ServerTime:    info.ServerTime,
		TimeRemaining: info.TimeRemaining,
		TimeElapsed:   info.TimeElapsed,
		Deadline:      info.Deadline,
	})
}

func (h *WSHandler) handleSaveAnswer(data json.RawMessage, client *websocket.Client) error {
	var req dto.WSSaveAnswer
	if err := decodePayload(data, &req); err != nil {
		return err
	}
	ctx, cancel := h.operationContext(client)
	defer cancel()

	if err := h.sessions.Validate(ctx, client.StudentID, client.SessionID); err != nil {
		return err
	}

	_, err := h.attempts.SaveAnswer(ctx, client.StudentID, req.AttemptID, service.SaveAnswerInput{
		QuestionID:        req.QuestionID,
		SelectedOptions:   req.SelectedOptions,
		IsMarkedForReview: req.IsMarkedForReview,
		TimeSpent:         req.TimeSpent,
		Section:           req.Section,
	})
	if err != nil {
		if errors.Is(err, service.ErrAttemptExpired) {
			h.replyClosedByID(ctx, client, req.AttemptID)
		}
		return err
	}

	return h.wsManager.Reply(client, websocket.EventAnswerSaved, dto.AnswerSaved{
		AttemptID:  req.AttemptID,
		QuestionID: req.QuestionID,
	})
}

func (h *WSHandler) handleExamViolation(data json.RawMessage, client *websocket.Client) error {
	var req dto.WSViolation
	if err := decodePayload(data, &req); err != nil {
		return err
	}
	ctx, cancel := h.operationContext(client)
	defer cancel()

	if err := h.sessions.Validate(ctx, client.StudentID, client.SessionID); err != nil {
		return err
	}

	outcome, err := h.attempts.RecordViolation(ctx, client.StudentID, req.AttemptID, entity.ViolationType(req.ViolationType), req.Details)
	if err != nil {
		if errors.Is(err, service.ErrAttemptExpired) {
			h.replyClosedByID(ctx, client, req.AttemptID)
		}
		return err
	}

	remaining := outcome.Threshold - outcome.Count
	if remaining < 0 {
		remaining = 0
	}
	if err := h.wsManager.Reply(client, websocket.EventViolationWarning, dto.ViolationWarning{
		AttemptID:     req.AttemptID,
		ViolationType: req.ViolationType,
		Count:         outcome.Count,
		Threshold:     outcome.Threshold,
		Remaining:     remaining,
		Terminated:    outcome.Terminated,
	}); err != nil {
		return err
	}

	if outcome.Terminated {
		return h.replyClosed(client, outcome.Attempt)
	}
	return nil
}

func (h *WSHandler) handleSubmitAttempt(data json.RawMessage, client *websocket.Client) error {
	var req dto.AttemptRef
	if err := decodePayload(data, &req); err != nil {
		return err
	}
	ctx, cancel := h.operationContext(client)
	defer cancel()

	if err := h.sessions.Validate(ctx, client.StudentID, client.SessionID); err != nil {
		return err
	}

	attempt, err := h.attempts.Submit(ctx, client.StudentID, req.AttemptID, nil)
	if err != nil {
		return err
	}
	client.ClearAttemptID(attempt.ID)

	return h.wsManager.Reply(client, websocket.EventAttemptSubmitted,
		helper.ToAttemptResult(attempt, string(service.CloseReasonOf(attempt))))
}

func (h *WSHandler) handleHeartbeat(_ json.RawMessage, client *websocket.Client) error {
	if err := h.wsManager.Reply(client, websocket.EventHeartbeatAck, dto.HeartbeatAck{ServerTime: h.attempts.Now()}); err != nil {
		log.Printf("[WSHandler] WARNING: Ошибка при отправке heartbeat_ack студенту %d: %v", client.StudentID, err)
	}
	return nil
}

// AttemptClosed вызывается движком после закрытия попытки любым путем.
// Снимает таймер, оповещает другие экземпляры и подключенного студента.
// Соединение, чья операция закрыла попытку, отвечает само.
func (h *WSHandler) AttemptClosed(ctx context.Context, attempt *entity.Attempt, reason service.CloseReason) {
	h.scheduler.Cancel(attempt.ID)

	event := closedEvent(attempt, reason)
	if err := h.bus.Publish(websocket.AttemptEvent{
		AttemptID: attempt.ID,
		StudentID: attempt.StudentID,
		Reason:    string(reason),
		Event:     &event,
	}); err != nil {
		log.Printf("[WSHandler] Не удалось опубликовать закрытие попытки #%d: %v", attempt.ID, err)
	}

	client, ok := h.hub.Client(attempt.StudentID)
	if !ok {
		return
	}
	client.ClearAttemptID(attempt.ID)
	if originOf(ctx) == client.ConnectionID {
		return
	}
	if err := client.SendJSON(event); err != nil {
		log.Printf("[WSHandler] Не удалось отправить %s студенту %d: %v", event.Type, attempt.StudentID, err)
	}
}

// onClusterEvent обрабатывает закрытие попытки на другом экземпляре
func (h *WSHandler) onClusterEvent(e websocket.AttemptEvent) {
	h.scheduler.Cancel(e.AttemptID)

	client, ok := h.hub.Client(e.StudentID)
	if !ok {
		return
	}
	client.ClearAttemptID(e.AttemptID)
	if e.Event != nil {
		if err := client.SendJSON(e.Event); err != nil {
			log.Printf("[WSHandler] Не удалось доставить событие кластера студенту %d: %v", e.StudentID, err)
		}
	}
}

// onAttemptTimer срабатывает в дедлайн присоединенной попытки
func (h *WSHandler) onAttemptTimer(ctx context.Context, attemptID uint) {
	attempt, closed, err := h.attempts.AutoSubmitIfExpired(ctx, attemptID)
	if err != nil {
		log.Printf("[WSHandler] Ошибка автосдачи попытки #%d по таймеру: %v", attemptID, err)
		return
	}
	if !closed && attempt.Status == entity.AttemptInProgress {
		// Таймер сработал чуть раньше серверного дедлайна
		h.scheduler.Schedule(attempt.ID, attempt.Deadline().Add(100*time.Millisecond))
	}
}

// onDisconnect фиксирует обрыв соединения во время попытки.
// Попытка не сдается: истечение определяется только временем.
func (h *WSHandler) onDisconnect(client *websocket.Client) {
	attemptID := client.GetAttemptID()
	if attemptID == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), wsOperationTimeout)
	defer cancel()
	if err := h.attempts.RecordDisconnect(ctx, client.StudentID, attemptID); err != nil {
		log.Printf("[WSHandler] Не удалось записать обрыв связи попытки #%d: %v", attemptID, err)
	}
}

func (h *WSHandler) operationContext(client *websocket.Client) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), wsOperationTimeout)
	return withOrigin(ctx, client.ConnectionID), cancel
}

func (h *WSHandler) clock(attempt *entity.Attempt) dto.AttemptClock {
	info := service.NewTimeInfo(attempt, h.attempts.Now())
	return dto.AttemptClock{
		AttemptID:     attempt.ID,
		ServerTime:    info.ServerTime,
		TimeRemaining: info.TimeRemaining,
		TimeElapsed:   info.TimeElapsed,
		Deadline:      info.Deadline,
	}
}

// replyClosed отправляет соединению итог закрытой попытки
func (h *WSHandler) replyClosed(client *websocket.Client, attempt *entity.Attempt) error {
	client.ClearAttemptID(attempt.ID)
	event := closedEvent(attempt, service.CloseReasonOf(attempt))
	return h.wsManager.Reply(client, event.Type, event.Data)
}

func (h *WSHandler) replyClosedByID(ctx context.Context, client *websocket.Client, attemptID uint) {
	attempt, err := h.attempts.GetAttempt(ctx, client.StudentID, attemptID)
	if err != nil {
		log.Printf("[WSHandler] Не удалось загрузить закрытую попытку #%d: %v", attemptID, err)
		return
	}
	if err := h.replyClosed(client, attempt); err != nil {
		log.Printf("[WSHandler] Не удалось отправить итог попытки #%d: %v", attemptID, err)
	}
}

// closedEvent выбирает событие по причине закрытия
func closedEvent(attempt *entity.Attempt, reason service.CloseReason) websocket.Event {
	eventType := websocket.EventAttemptSubmitted
	switch reason {
	case service.CloseExpired:
		eventType = websocket.EventAttemptExpired
	case service.CloseViolation:
		eventType = websocket.EventForceSubmit
	}
	return websocket.Event{Type: eventType, Data: helper.ToAttemptResult(attempt, string(reason))}
}

// decodePayload разбирает и проверяет data события
func decodePayload(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid event payload: %w", apperrors.ErrValidation)
	}
	if err := dto.Validate.Struct(v); err != nil {
		return fmt.Errorf("%s: %w", dto.ValidationMessage(err), apperrors.ErrValidation)
	}
	return nil
}

var _ service.AttemptEventPublisher = (*WSHandler)(nil)
