package websocket

// События, которые присылает клиент
const (
	// EventJoinAttempt привязывает соединение к попытке
	EventJoinAttempt = "joinAttempt"

	// EventSyncTime запрашивает серверное время попытки
	EventSyncTime = "syncTime"

	// EventSaveAnswer сохраняет ответ на вопрос
	EventSaveAnswer = "saveAnswer"

	// EventExamViolation сообщает о нарушении прокторинга
	EventExamViolation = "examViolation"

	// EventSubmitAttempt завершает попытку
	EventSubmitAttempt = "submitAttempt"

	// EventHeartbeat поддерживает соединение
	EventHeartbeat = "heartbeat"
)

// События, которые отправляет сервер
const (
	EventAttemptJoined    = "attemptJoined"
	EventAttemptExpired   = "attemptExpired"
	EventTimeSync         = "timeSync"
	EventAnswerSaved      = "answerSaved"
	EventViolationWarning = "violationWarning"
	EventForceSubmit      = "forceSubmit"
	EventAttemptSubmitted = "attemptSubmitted"
	EventHeartbeatAck     = "heartbeat_ack"

	// EventError несет машиночитаемый вид ошибки и сообщение
	EventError = "error"
)

// ErrorPayload - данные события error
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
