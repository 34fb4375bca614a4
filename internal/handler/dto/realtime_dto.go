package dto

import "time"

// Payload событий WebSocket. Имена полей в camelCase, как ждет клиент экзамена.

// AttemptRef - событие, адресованное попытке
type AttemptRef struct {
	AttemptID uint `json:"attemptId" binding:"required"`
}

// WSSaveAnswer - payload события saveAnswer
type WSSaveAnswer struct {
	AttemptID         uint     `json:"attemptId" binding:"required"`
	QuestionID        uint     `json:"questionId" binding:"required"`
	SelectedOptions   []string `json:"selectedOptions" binding:"max=20,dive,max=500"`
	IsMarkedForReview bool     `json:"isMarkedForReview"`
	TimeSpent         int      `json:"timeSpent" binding:"min=0"`
	Section           string   `json:"section" binding:"max=100"`
}

// WSViolation - payload события examViolation
type WSViolation struct {
	AttemptID     uint   `json:"attemptId" binding:"required"`
	ViolationType string `json:"violationType" binding:"required,violation_type"`
	Details       string `json:"details" binding:"max=2000"`
}

// AttemptClock - время попытки в ответах attemptJoined и timeSync
type AttemptClock struct {
	AttemptID     uint      `json:"attemptId"`
	ServerTime    time.Time `json:"serverTime"`
	TimeRemaining int64     `json:"timeRemaining"`
	TimeElapsed   int64     `json:"timeElapsed"`
	Deadline      time.Time `json:"deadline"`
}

// AnswerSaved - подтверждение сохранения ответа
type AnswerSaved struct {
	AttemptID  uint `json:"attemptId"`
	QuestionID uint `json:"questionId"`
}

// ViolationWarning - предупреждение о нарушении
type ViolationWarning struct {
	AttemptID     uint   `json:"attemptId"`
	ViolationType string `json:"violationType"`
	Count         int    `json:"count"`
	Threshold     int    `json:"threshold"`
	Remaining     int    `json:"remaining"`
	Terminated    bool   `json:"terminated"`
}

// HeartbeatAck - ответ на heartbeat
type HeartbeatAck struct {
	ServerTime time.Time `json:"serverTime"`
}
