package dto

import "time"

// CreateTestRequest - создание теста администратором
type CreateTestRequest struct {
	Title           string                  `json:"title" binding:"required,notblank,max=200"`
	Description     string                  `json:"description"`
	IsActive        *bool                   `json:"is_active"`
	ValidFrom       *time.Time              `json:"valid_from"`
	ValidUntil      *time.Time              `json:"valid_until"`
	IsPaid          bool                    `json:"is_paid"`
	AttemptsAllowed int                     `json:"attempts_allowed" binding:"min=0,max=100"`
	Duration        int                     `json:"duration" binding:"min=0,max=1440"`
	TotalMarks      float64                 `json:"total_marks" binding:"min=0"`
	PassingMarks    float64                 `json:"passing_marks" binding:"min=0,max=100"`
	Sections        []CreateSectionRequest  `json:"sections" binding:"omitempty,max=20,dive"`
	Questions       []CreateQuestionRequest `json:"questions" binding:"required,min=1,max=500,dive"`
}

// AddQuestionsRequest - вопросы, дописываемые в неактивный тест
type AddQuestionsRequest struct {
	Questions []CreateQuestionRequest `json:"questions" binding:"required,min=1,max=500,dive"`
}

// CreateSectionRequest - секция теста
type CreateSectionRequest struct {
	Name     string `json:"name" binding:"required,notblank,max=100"`
	Duration int    `json:"duration" binding:"min=0,max=1440"`
}

// CreateQuestionRequest - вопрос теста с вариантами
type CreateQuestionRequest struct {
	Section       string                `json:"section" binding:"max=100"`
	Type          string                `json:"type" binding:"required,question_type"`
	Text          string                `json:"text" binding:"required,notblank"`
	Options       []CreateOptionRequest `json:"options" binding:"required,min=1,max=20,dive"`
	Marks         float64               `json:"marks" binding:"min=0"`
	NegativeMarks float64               `json:"negative_marks" binding:"min=0"`
}

// CreateOptionRequest - вариант ответа
type CreateOptionRequest struct {
	Text      string `json:"text" binding:"max=500"`
	IsCorrect bool   `json:"is_correct"`
}

// GrantEnrollmentRequest - выдача доступа к платному тесту
type GrantEnrollmentRequest struct {
	StudentID uint       `json:"student_id" binding:"required"`
	TestID    uint       `json:"test_id" binding:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// TestResponse - определение теста для студента, без правильных ответов
type TestResponse struct {
	ID              uint               `json:"id"`
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	IsPaid          bool               `json:"is_paid"`
	AttemptsAllowed int                `json:"attempts_allowed"`
	Duration        int                `json:"duration"`
	TotalMarks      float64            `json:"total_marks"`
	PassingMarks    float64            `json:"passing_marks"`
	ValidFrom       *time.Time         `json:"valid_from,omitempty"`
	ValidUntil      *time.Time         `json:"valid_until,omitempty"`
	Sections        []SectionResponse  `json:"sections"`
	Questions       []QuestionResponse `json:"questions"`
}

// SectionResponse - секция теста
type SectionResponse struct {
	Name     string `json:"name"`
	Duration int    `json:"duration"`
}

// QuestionResponse - вопрос без признаков правильности
type QuestionResponse struct {
	ID            uint     `json:"id"`
	Section       string   `json:"section"`
	Type          string   `json:"type"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	Marks         float64  `json:"marks"`
	NegativeMarks float64  `json:"negative_marks"`
}
