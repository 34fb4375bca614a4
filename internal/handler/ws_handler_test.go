package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/handler/dto"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
	"github.com/yourusername/examprep-api/internal/service"
	"github.com/yourusername/examprep-api/internal/websocket"
	"github.com/yourusername/examprep-api/pkg/auth"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

type wsTestEnv struct {
	handler  *WSHandler
	hub      *websocket.Hub
	attempts *MockAttemptAPI
	sessions *MockSessionValidator
	jwt      *auth.JWTService
	server   *httptest.Server
	now      time.Time
}

type wsEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newWSTestEnv(t *testing.T) *wsTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dto.RegisterGinValidators()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := websocket.NewHub(websocket.HubConfig{ReplaceDelay: time.Millisecond})
	go hub.Run(ctx)

	jwtService, err := auth.NewJWTService(testJWTSecret, "examprep-test", 1, 60)
	require.NoError(t, err)

	env := &wsTestEnv{
		hub:      hub,
		attempts: new(MockAttemptAPI),
		sessions: new(MockSessionValidator),
		jwt:      jwtService,
		now:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	env.attempts.On("Now").Return(env.now).Maybe()

	env.handler = NewWSHandler(ctx, hub, websocket.NewManager(hub), env.attempts, env.sessions, jwtService, nil, WSHandlerConfig{})
	t.Cleanup(env.handler.Stop)

	router := gin.New()
	router.GET("/ws", env.handler.HandleConnection)
	env.server = httptest.NewServer(router)
	t.Cleanup(env.server.Close)
	return env
}

func (e *wsTestEnv) dial(t *testing.T, studentID uint, sessionID string) (*gorillaws.Conn, *http.Response, error) {
	t.Helper()
	ticket, err := e.jwt.GenerateWSTicket(studentID, "student@example.com", entity.RoleStudent, sessionID)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?ticket=" + ticket
	return gorillaws.DefaultDialer.Dial(url, nil)
}

// connect подключает студента и ждет регистрации соединения в hub
func (e *wsTestEnv) connect(t *testing.T, studentID uint) *gorillaws.Conn {
	t.Helper()
	conn, _, err := e.dial(t, studentID, "sid-1")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return e.hub.IsConnected(studentID) }, time.Second, 5*time.Millisecond,
		"Соединение должно зарегистрироваться в hub")
	return conn
}

func send(t *testing.T, conn *gorillaws.Conn, eventType string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(websocket.Event{Type: eventType, Data: data}))
}

func receive(t *testing.T, conn *gorillaws.Conn) wsEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event wsEvent
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func (e *wsTestEnv) inProgressAttempt(id, studentID uint) *entity.Attempt {
	return &entity.Attempt{
		ID:        id,
		StudentID: studentID,
		TestID:    3,
		Status:    entity.AttemptInProgress,
		StartTime: e.now.Add(-10 * time.Minute),
		Duration:  60,
		IsValid:   true,
	}
}

func submittedAttempt(id, studentID uint, status entity.AttemptStatus, valid bool) *entity.Attempt {
	end := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	return &entity.Attempt{
		ID:          id,
		StudentID:   studentID,
		TestID:      3,
		Status:      status,
		StartTime:   end.Add(-30 * time.Minute),
		Duration:    60,
		EndTime:     &end,
		SubmittedAt: &end,
		Score:       8,
		Percentage:  80,
		IsValid:     valid,
	}
}

func TestWSHandler_RejectsMissingTicket(t *testing.T) {
	// Arrange
	env := newWSTestEnv(t)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ws", nil)

	// Act
	env.handler.HandleConnection(c)

	// Assert
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWSHandler_RejectsRevokedSession(t *testing.T) {
	// Arrange
	env := newWSTestEnv(t)
	env.sessions.On("Validate", mock.Anything, uint(7), "old-session").Return(service.ErrSessionRevoked)

	// Act
	_, resp, err := env.dial(t, 7, "old-session")

	// Assert
	require.Error(t, err, "Подключение со старой сессией должно отклоняться")
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.False(t, env.hub.IsConnected(7))
}

func TestWSHandler_JoinAttemptSendsServerClock(t *testing.T) {
	// Arrange
	env := newWSTestEnv(t)
	env.sessions.On("Validate", mock.Anything, uint(7), "sid-1").Return(nil)
	attempt := env.inProgressAttempt(11, 7)
	env.attempts.On("ExpireCheck", mock.Anything, uint(7), uint(11)).Return(attempt, false, nil)
	env.attempts.On("RecordDisconnect", mock.Anything, uint(7), uint(11)).Return(nil).Maybe()
	conn := env.connect(t, 7)

	// Act
	send(t, conn, websocket.EventJoinAttempt, dto.AttemptRef{AttemptID: 11})
	event := receive(t, conn)

	// Assert
	require.Equal(t, websocket.EventAttemptJoined, event.Type)
	var clock dto.AttemptClock
	require.NoError(t, json.Unmarshal(event.Data, &clock))
	assert.Equal(t, uint(11), clock.AttemptID)
	assert.Equal(t, int64(50*60), clock.TimeRemaining, "Остаток считается от startTime на сервере")
	assert.Equal(t, int64(10*60), clock.TimeElapsed)
	assert.True(t, clock.Deadline.Equal(attempt.Deadline()))

	client, ok := env.hub.Client(7)
	require.True(t, ok)
	assert.Equal(t, uint(11), client.GetAttemptID())
	assert.True(t, env.handler.scheduler.IsScheduled(11), "Таймер истечения должен быть запланирован")
}

func TestWSHandler_JoinExpiredAttemptReturnsResult(t *testing.T) {
	// Arrange
	env := newWSTestEnv(t)
	env.sessions.On("Validate", mock.Anything, uint(7), "sid-1").Return(nil)
	closed := submittedAttempt(11, 7, entity.AttemptAutoSubmitted, true)
	env.attempts.On("ExpireCheck", mock.Anything, uint(7), uint(11)).Return(closed, true, nil)
	conn := env.connect(t, 7)

	// Act
	send(t, conn, websocket.EventJoinAttempt, dto.AttemptRef{AttemptID: 11})
	event := receive(t, conn)

	// Assert
	require.Equal(t, websocket.EventAttemptExpired, event.Type)
	var result dto.AttemptResult
	require.NoError(t, json.Unmarshal(event.Data, &result))
	assert.Equal(t, uint(11), result.ID)
	assert.Equal(t, string(service.CloseExpired), result.Reason)
	assert.False(t, env.handler.scheduler.IsScheduled(11))
}

func TestWSHandler_JoinSubmittedAttemptIsRejected(t *testing.T) {
	// Arrange
	env := newWSTestEnv(t)
	env.sessions.On("Validate", mock.Anything, uint(7), "sid-1").Return(nil)
	env.attempts.On("ExpireCheck", mock.Anything, uint(7), uint(11)).
		Return(submittedAttempt(11, 7, entity.AttemptSubmitted, true), false, nil)
	conn := env.connect(t, 7)

	// Act
	send(t, conn, websocket.EventJoinAttempt, dto.AttemptRef{AttemptID: 11})
	event := receive(t, conn)

	// Assert
	require.Equal(t, websocket.EventError, event.Type)
	var payload websocket.ErrorPayload
	require.NoError(t, json.Unmarshal(event.Data, &payload))
	assert.Equal(t, apperrors.KindInvalidState, payload.Kind)
}

func TestWSHandler_SaveAnswerValidationKeepsConnection(t *testing.T) {
	// Arrange
	env := newWSTestEnv(t)
	env.sessions.On("Validate", mock.Anything, uint(7), "sid-1").Return(nil)
	conn := env.connect(t, 7)

	// Act
	send(t, conn, websocket.EventSaveAnswer, map[string]interface{}{"attemptId": 11})
	errEvent := receive(t, conn)
	send(t, conn, websocket.EventHeartbeat, nil)
	ack := receive(t, conn)

	// Assert
	require.Equal(t, websocket.EventError, errEvent.Type)
	var payload websocket.ErrorPayload
	require.NoError(t, json.Unmarshal(errEvent.Data, &payload))
	assert.Equal(t, apperrors.KindValidation, payload.Kind)
	assert.Contains(t, payload.Message, "questionId")
	assert.Equal(t, websocket.EventHeartbeatAck, ack.Type, "Соединение должно остаться открытым")
	env.attempts.AssertNotCalled(t, "SaveAnswer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWSHandler_SaveAnswerAcknowledged(t *testing.T) {
	// Arrange
	env := newWSTestEnv(t)
	env.sessions.On("Validate", mock.Anything, uint(7), "sid-1").Return(nil)
	input := service.SaveAnswerInput{QuestionID: 5, SelectedOptions: []string{"b"}, TimeSpent: 12, Section: "Math"}
	env.attempts.On("SaveAnswer", mock.Anything, uint(7), uint(11), input).Return(env.inProgressAttempt(11, 7), nil)
	conn := env.connect(t, 7)

	// Act
	send(t, conn, websocket.EventSaveAnswer, dto.WSSaveAnswer{
		AttemptID: 11, QuestionID: 5, SelectedOptions: []string{"b"}, TimeSpent: 12, Section: "Math",
	})
	event := receive(t, conn)

	// Assert
	require.Equal(t, websocket.EventAnswerSaved, event.Type)
	var saved dto.AnswerSaved
	require.NoError(t, json.Unmarshal(event.Data, &saved))
	assert.Equal(t, dto.AnswerSaved{AttemptID: 11, QuestionID: 5}, saved)
	env.attempts.AssertExpectations(t)
}

func TestWSHandler_SaveAnswerAfterDeadlineSendsExpiredResult(t *testing.T) {
	// Arrange
	env := newWSTestEnv(t)
	env.sessions.On("Validate", mock.Anything, uint(7), "sid-1").Return(nil)
	env.attempts.On("SaveAnswer", mock.Anything, uint(7), uint(11), mock.Anything).Return(nil, service.ErrAttemptExpired)
	env.attempts.On("GetAttempt", mock.Anything, uint(7), uint(11)).
		Return(submittedAttempt(11, 7, entity.AttemptAutoSubmitted, true), nil)
	conn := env.connect(t, 7)

	// Act
	send(t, conn, websocket.EventSaveAnswer, dto.WSSaveAnswer{AttemptID: 11, QuestionID: 5})
	first := receive(t, conn)
	second := receive(t, conn)

	// Assert
	assert.Equal(t, websocket.EventAttemptExpired, first.Type, "Сначала клиент получает итог автосдачи")
	require.Equal(t, websocket.EventError, second.Type)
	var payload websocket.ErrorPayload
	require.NoError(t, json.Unmarshal(second.Data, &payload))
	assert.Equal(t, apperrors.KindExpired, payload.Kind)
}

func TestWSHandler_ViolationLimitSendsWarningThenForceSubmit(t *testing.T) {
	// Arrange
	env := newWSTestEnv(t)
	env.sessions.On("Validate", mock.Anything, uint(7), "sid-1").Return(nil)
	terminated := submittedAttempt(11, 7, entity.AttemptAutoSubmitted, false)
	env.attempts.On("RecordViolation", mock.Anything, uint(7), uint(11), entity.ViolationTabSwitch, "").
		Return(&service.ViolationOutcome{Attempt: terminated, Count: 3, Threshold: 3, Terminated: true}, nil)
	conn := env.connect(t, 7)

	// Act
	send(t, conn, websocket.EventExamViolation, dto.WSViolation{AttemptID: 11, ViolationType: string(entity.ViolationTabSwitch)})
	warningEvent := receive(t, conn)
	forceEvent := receive(t, conn)

	// Assert
	require.Equal(t, websocket.EventViolationWarning, warningEvent.Type)
	var warning dto.ViolationWarning
	require.NoError(t, json.Unmarshal(warningEvent.Data, &warning))
	assert.Equal(t, 3, warning.Count)
	assert.Equal(t, 0, warning.Remaining)
	assert.True(t, warning.Terminated)

	require.Equal(t, websocket.EventForceSubmit, forceEvent.Type)
	var result dto.AttemptResult
	require.NoError(t, json.Unmarshal(forceEvent.Data, &result))
	assert.False(t, result.IsValid, "Попытка, закрытая за нарушения, недействительна")
	assert.Equal(t, string(service.CloseViolation), result.Reason)
}

func TestWSHandler_UnknownViolationTypeRejected(t *testing.T) {
	// Arrange
	env := newWSTestEnv(t)
	env.sessions.On("Validate", mock.Anything, uint(7), "sid-1").Return(nil)
	conn := env.connect(t, 7)

	// Act
	send(t, conn, websocket.EventExamViolation, dto.WSViolation{AttemptID: 11, ViolationType: "screenshot"})
	event := receive(t, conn)

	// Assert
	require.Equal(t, websocket.EventError, event.Type)
	env.attempts.AssertNotCalled(t, "RecordViolation", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWSHandler_SubmitAttempt(t *testing.T) {
	// Arrange
	env := newWSTestEnv(t)
	env.sessions.On("Validate", mock.Anything, uint(7), "sid-1").Return(nil)
	env.attempts.On("Submit", mock.Anything, uint(7), uint(11), []service.SaveAnswerInput(nil)).
		Return(submittedAttempt(11, 7, entity.AttemptSubmitted, true), nil)
	conn := env.connect(t, 7)

	// Act
	send(t, conn, websocket.EventSubmitAttempt, dto.AttemptRef{AttemptID: 11})
	event := receive(t, conn)

	// Assert
	require.Equal(t, websocket.EventAttemptSubmitted, event.Type)
	var result dto.AttemptResult
	require.NoError(t, json.Unmarshal(event.Data, &result))
	assert.Equal(t, 80, result.Percentage)
	assert.Equal(t, string(service.CloseManual), result.Reason)
}

func TestWSHandler_RevokedSessionClosesConnection(t *testing.T) {
	// Arrange
	env := newWSTestEnv(t)
	env.sessions.On("Validate", mock.Anything, uint(7), "sid-1").Return(nil).Once()
	env.sessions.On("Validate", mock.Anything, uint(7), "sid-1").Return(service.ErrSessionRevoked)
	conn := env.connect(t, 7)

	// Act
	send(t, conn, websocket.EventSubmitAttempt, dto.AttemptRef{AttemptID: 11})
	event := receive(t, conn)

	// Assert
	require.Equal(t, websocket.EventError, event.Type)
	var payload websocket.ErrorPayload
	require.NoError(t, json.Unmarshal(event.Data, &payload))
	assert.Equal(t, apperrors.KindUnauthorized, payload.Kind)
	assert.Eventually(t, func() bool { return !env.hub.IsConnected(7) }, time.Second, 5*time.Millisecond,
		"Соединение со старой сессией должно закрыться")
	env.attempts.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWSHandler_AttemptClosedSkipsOriginConnection(t *testing.T) {
	// Arrange
	env := newWSTestEnv(t)
	env.sessions.On("Validate", mock.Anything, uint(7), "sid-1").Return(nil)
	conn := env.connect(t, 7)
	client, ok := env.hub.Client(7)
	require.True(t, ok)
	client.SetAttemptID(11)

	// Act
	originCtx := withOrigin(context.Background(), client.ConnectionID)
	env.handler.AttemptClosed(originCtx, submittedAttempt(11, 7, entity.AttemptSubmitted, true), service.CloseManual)
	env.handler.AttemptClosed(context.Background(), submittedAttempt(12, 7, entity.AttemptAutoSubmitted, true), service.CloseExpired)
	event := receive(t, conn)

	// Assert
	assert.Equal(t, websocket.EventAttemptExpired, event.Type,
		"Соединение, закрывшее попытку, не получает повторное событие")
	assert.Equal(t, uint(0), client.GetAttemptID(), "Привязка к закрытой попытке снимается")
}

func TestWSHandler_ClusterEventDeliveredToLocalClient(t *testing.T) {
	// Arrange
	env := newWSTestEnv(t)
	env.sessions.On("Validate", mock.Anything, uint(7), "sid-1").Return(nil)
	conn := env.connect(t, 7)
	client, _ := env.hub.Client(7)
	client.SetAttemptID(11)
	env.handler.scheduler.Schedule(11, time.Now().Add(time.Hour))

	closed := closedEvent(submittedAttempt(11, 7, entity.AttemptAutoSubmitted, true), service.CloseExpired)

	// Act
	env.handler.onClusterEvent(websocket.AttemptEvent{
		InstanceID: "other",
		AttemptID:  11,
		StudentID:  7,
		Reason:     string(service.CloseExpired),
		Event:      &closed,
	})
	event := receive(t, conn)

	// Assert
	assert.Equal(t, websocket.EventAttemptExpired, event.Type)
	assert.False(t, env.handler.scheduler.IsScheduled(11), "Таймер другого экземпляра снимается")
	assert.Equal(t, uint(0), client.GetAttemptID())
}

func TestWSHandler_TimerAutoSubmitsAtDeadline(t *testing.T) {
	// Arrange
	env := newWSTestEnv(t)
	fired := make(chan uint, 1)
	env.attempts.On("AutoSubmitIfExpired", mock.Anything, uint(11)).
		Run(func(args mock.Arguments) { fired <- args.Get(1).(uint) }).
		Return(submittedAttempt(11, 7, entity.AttemptAutoSubmitted, true), true, nil)

	// Act
	env.handler.scheduler.Schedule(11, time.Now().Add(20*time.Millisecond))

	// Assert
	select {
	case id := <-fired:
		assert.Equal(t, uint(11), id)
	case <-time.After(2 * time.Second):
		t.Fatal("Таймер истечения не сработал")
	}
}

func TestWSHandler_DisconnectRecordedWithoutSubmit(t *testing.T) {
	// Arrange
	env := newWSTestEnv(t)
	env.sessions.On("Validate", mock.Anything, uint(7), "sid-1").Return(nil)
	env.attempts.On("ExpireCheck", mock.Anything, uint(7), uint(11)).Return(env.inProgressAttempt(11, 7), false, nil)
	recorded := make(chan struct{})
	env.attempts.On("RecordDisconnect", mock.Anything, uint(7), uint(11)).
		Run(func(mock.Arguments) { close(recorded) }).
		Return(nil)
	conn := env.connect(t, 7)
	send(t, conn, websocket.EventJoinAttempt, dto.AttemptRef{AttemptID: 11})
	receive(t, conn)

	// Act
	require.NoError(t, conn.Close())

	// Assert
	select {
	case <-recorded:
	case <-time.After(2 * time.Second):
		t.Fatal("Обрыв соединения не записан")
	}
	env.attempts.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.True(t, env.handler.scheduler.IsScheduled(11), "Время попытки продолжает идти после обрыва")
}

func TestDecodePayload(t *testing.T) {
	dto.RegisterGinValidators()

	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{name: "валидный payload", data: `{"attemptId": 5}`},
		{name: "пустой payload", data: ``, wantErr: true},
		{name: "null", data: `null`, wantErr: true},
		{name: "неверный тип поля", data: `{"attemptId": "five"}`, wantErr: true},
		{name: "битый JSON", data: `{"attemptId":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ref dto.AttemptRef
			err := decodePayload(json.RawMessage(tt.data), &ref)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint(5), ref.AttemptID)
		})
	}
}
