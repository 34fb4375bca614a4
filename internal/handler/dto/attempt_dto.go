package dto

import (
	"time"

	"github.com/yourusername/examprep-api/internal/domain/entity"
)

// LaunchAttemptRequest - тело запроса на запуск попытки
type LaunchAttemptRequest struct {
	DeviceInfo map[string]interface{} `json:"device_info"`
}

// SaveAnswerRequest - сохранение ответа на один вопрос
type SaveAnswerRequest struct {
	QuestionID        uint     `json:"question_id" binding:"required"`
	SelectedOptions   []string `json:"selected_options" binding:"max=20,dive,max=500"`
	IsMarkedForReview bool     `json:"is_marked_for_review"`
	TimeSpent         int      `json:"time_spent" binding:"min=0"`
	Section           string   `json:"section" binding:"max=100"`
}

// SubmitAttemptRequest - финальные ответы, отправляемые вместе со сдачей
type SubmitAttemptRequest struct {
	Answers []SaveAnswerRequest `json:"answers" binding:"omitempty,max=500,dive"`
}

// ViolationRequest - нарушение прокторинга
type ViolationRequest struct {
	ViolationType string `json:"violation_type" binding:"required,violation_type"`
	Details       string `json:"details" binding:"max=2000"`
}

// AttemptResponse - попытка для ответа клиенту
type AttemptResponse struct {
	ID                  uint                  `json:"id"`
	StudentID           uint                  `json:"student_id"`
	TestID              uint                  `json:"test_id"`
	Status              string                `json:"status"`
	StartTime           time.Time             `json:"start_time"`
	Duration            int                   `json:"duration"`
	EndTime             *time.Time            `json:"end_time"`
	SubmittedAt         *time.Time            `json:"submitted_at"`
	Answers             []AnswerResponse      `json:"answers,omitempty"`
	TotalQuestions      int                   `json:"total_questions"`
	AttemptedQuestions  int                   `json:"attempted_questions"`
	CorrectAnswers      int                   `json:"correct_answers"`
	IncorrectAnswers    int                   `json:"incorrect_answers"`
	UnansweredQuestions int                   `json:"unanswered_questions"`
	Score               float64               `json:"score"`
	Percentage          int                   `json:"percentage"`
	IsPassed            bool                  `json:"is_passed"`
	SectionWiseScore    []entity.SectionScore `json:"section_wise_score"`
	Rank                *int                  `json:"rank"`
	Percentile          *int                  `json:"percentile"`
	ViolationCount      int                   `json:"violation_count"`
	IsValid             bool                  `json:"is_valid"`
}

// AnswerResponse - ответ студента внутри попытки.
// Правильность раскрывается только в разборе завершенной попытки.
type AnswerResponse struct {
	QuestionID        uint      `json:"question_id"`
	SelectedOptions   []string  `json:"selected_options"`
	IsMarkedForReview bool      `json:"is_marked_for_review"`
	TimeSpent         int       `json:"time_spent"`
	Section           string    `json:"section"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// AttemptTimeResponse - серверный расчет времени
type AttemptTimeResponse struct {
	AttemptID     uint      `json:"attempt_id"`
	Status        string    `json:"status"`
	ServerTime    time.Time `json:"server_time"`
	TimeRemaining int64     `json:"time_remaining"`
	TimeElapsed   int64     `json:"time_elapsed"`
	Deadline      time.Time `json:"deadline"`
	Expired       bool      `json:"expired"`
}

// LaunchAttemptResponse - итог запуска попытки
type LaunchAttemptResponse struct {
	Attempt AttemptResponse     `json:"attempt"`
	Resumed bool                `json:"resumed"`
	Time    AttemptTimeResponse `json:"time"`
}

// ViolationResponse - итог записи нарушения
type ViolationResponse struct {
	AttemptID  uint   `json:"attempt_id"`
	Count      int    `json:"count"`
	Threshold  int    `json:"threshold"`
	Terminated bool   `json:"terminated"`
	Status     string `json:"status"`
}

// AttemptResult - итог закрытой попытки для событий реального времени
type AttemptResult struct {
	ID                  uint                  `json:"attemptId"`
	Status              string                `json:"status"`
	Reason              string                `json:"reason,omitempty"`
	Score               float64               `json:"score"`
	Percentage          int                   `json:"percentage"`
	IsPassed            bool                  `json:"isPassed"`
	IsValid             bool                  `json:"isValid"`
	CorrectAnswers      int                   `json:"correctAnswers"`
	IncorrectAnswers    int                   `json:"incorrectAnswers"`
	UnansweredQuestions int                   `json:"unansweredQuestions"`
	Rank                *int                  `json:"rank"`
	Percentile          *int                  `json:"percentile"`
	SubmittedAt         *time.Time            `json:"submittedAt"`
	SectionWiseScore    []entity.SectionScore `json:"sectionWiseScore"`
}
