package service

import (
	"context"
	"time"

	"github.com/yourusername/examprep-api/internal/domain/entity"
)

// CloseReason - почему попытка перешла в терминальное состояние
type CloseReason string

const (
	CloseManual    CloseReason = "manual"
	CloseExpired   CloseReason = "time_expired"
	CloseViolation CloseReason = "violation_limit"
)

// CloseReasonOf восстанавливает причину закрытия по сохраненной попытке
func CloseReasonOf(a *entity.Attempt) CloseReason {
	switch {
	case !a.IsValid:
		return CloseViolation
	case a.Status == entity.AttemptAutoSubmitted:
		return CloseExpired
	}
	return CloseManual
}

// SaveAnswerInput - данные одного ответа от любого канала
type SaveAnswerInput struct {
	QuestionID        uint
	SelectedOptions   []string
	IsMarkedForReview bool
	TimeSpent         int
	Section           string
}

// TimeInfo - серверный расчет времени попытки
type TimeInfo struct {
	ServerTime    time.Time `json:"serverTime"`
	TimeRemaining int64     `json:"timeRemaining"` // секунды
	TimeElapsed   int64     `json:"timeElapsed"`   // секунды
	Deadline      time.Time `json:"deadline"`
}

// NewTimeInfo считает оставшееся и прошедшее время от startTime и duration попытки
func NewTimeInfo(attempt *entity.Attempt, now time.Time) TimeInfo {
	return TimeInfo{
		ServerTime:    now,
		TimeRemaining: int64(attempt.TimeRemaining(now) / time.Second),
		TimeElapsed:   int64(attempt.TimeElapsed(now) / time.Second),
		Deadline:      attempt.Deadline(),
	}
}

// ReviewItem - вопрос с правильными идентификаторами и ответом студента
type ReviewItem struct {
	QuestionID         uint     `json:"question_id"`
	Section            string   `json:"section"`
	Type               string   `json:"type"`
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectIdentifiers []string `json:"correct_identifiers"`
	SelectedOptions    []string `json:"selected_options"`
	IsCorrect          *bool    `json:"is_correct"`
	MarksAwarded       float64  `json:"marks_awarded"`
	IsMarkedForReview  bool     `json:"is_marked_for_review"`
}

// AttemptReview - разбор завершенной попытки
type AttemptReview struct {
	Attempt *entity.Attempt `json:"attempt"`
	Items   []ReviewItem    `json:"items"`
}

// TestCatalog поставляет определение теста с вопросами
type TestCatalog interface {
	GetTestDefinition(ctx context.Context, testID uint) (*entity.Test, error)
}

// AccessChecker решает, может ли студент проходить платный тест
type AccessChecker interface {
	CanAttempt(ctx context.Context, studentID uint, test *entity.Test) (bool, error)
}

// AttemptEventPublisher получает уведомления о закрытии попыток
// (отмена таймеров истечения, уведомления в реальном времени)
type AttemptEventPublisher interface {
	AttemptClosed(ctx context.Context, attempt *entity.Attempt, reason CloseReason)
}

// ResultNotifier отправляет студенту итог попытки
type ResultNotifier interface {
	NotifyResult(ctx context.Context, attempt *entity.Attempt, test *entity.Test)
}
