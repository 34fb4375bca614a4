package entity

import (
	"time"
)

// Test представляет определение теста (пробного экзамена)
type Test struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	Title           string        `gorm:"size:200;not null" json:"title"`
	Description     string        `gorm:"type:text;not null;default:''" json:"description"`
	IsActive        bool          `gorm:"not null;default:true" json:"is_active"`
	ValidFrom       *time.Time    `json:"valid_from,omitempty"`
	ValidUntil      *time.Time    `json:"valid_until,omitempty"`
	IsPaid          bool          `gorm:"not null;default:false" json:"is_paid"`
	AttemptsAllowed int           `gorm:"not null;default:1" json:"attempts_allowed"`
	Duration        int           `gorm:"not null;default:0" json:"duration"`      // минуты, если нет секций
	TotalMarks      float64       `gorm:"not null;default:0" json:"total_marks"`   // знаменатель процента
	PassingMarks    float64       `gorm:"not null;default:0" json:"passing_marks"` // на самом деле порог в процентах
	Sections        []TestSection `gorm:"foreignKey:TestID" json:"sections,omitempty"`
	Questions       []Question    `gorm:"foreignKey:TestID" json:"questions,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Test) TableName() string {
	return "tests"
}

// TestSection - именованная группа вопросов со своей длительностью
type TestSection struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	TestID   uint   `gorm:"not null;index" json:"test_id"`
	Name     string `gorm:"size:100;not null" json:"name"`
	Duration int    `gorm:"not null;default:0" json:"duration"` // минуты
	Position int    `gorm:"not null;default:0" json:"position"`
}

// TableName определяет имя таблицы для GORM
func (TestSection) TableName() string {
	return "test_sections"
}

// TotalDuration возвращает длительность теста в минутах: сумма длительностей
// секций, либо Duration, если секции не заданы.
func (t *Test) TotalDuration() int {
	total := 0
	for _, s := range t.Sections {
		total += s.Duration
	}
	if total == 0 {
		return t.Duration
	}
	return total
}

// IsAvailable проверяет, что тест активен и находится в окне доступности
func (t *Test) IsAvailable(now time.Time) bool {
	if !t.IsActive {
		return false
	}
	if t.ValidFrom != nil && now.Before(*t.ValidFrom) {
		return false
	}
	if t.ValidUntil != nil && now.After(*t.ValidUntil) {
		return false
	}
	return true
}

// SumOfMarks возвращает сумму баллов всех вопросов
func (t *Test) SumOfMarks() float64 {
	var sum float64
	for i := range t.Questions {
		sum += t.Questions[i].MarksOrDefault()
	}
	return sum
}
