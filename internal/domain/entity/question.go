package entity

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// QuestionType определяет, как проверяется ответ на вопрос
type QuestionType string

const (
	QuestionSingle    QuestionType = "single"
	QuestionMultiple  QuestionType = "multiple"
	QuestionNumerical QuestionType = "numerical"
)

// IsValid проверяет, что тип вопроса известен
func (t QuestionType) IsValid() bool {
	switch t {
	case QuestionSingle, QuestionMultiple, QuestionNumerical:
		return true
	}
	return false
}

// Option - вариант ответа на вопрос
type Option struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// OptionIdentifier возвращает идентификатор варианта: текст, а для
// вариантов без текста позиционный "option_<index>". Пробелы по краям
// текста в идентификатор не входят.
// Это единственное место, где определяется идентичность варианта.
func OptionIdentifier(text string, index int) string {
	if trimmed := strings.TrimSpace(text); trimmed != "" {
		return trimmed
	}
	return fmt.Sprintf("option_%d", index)
}

// Identifier возвращает идентификатор варианта с позицией index
func (o Option) Identifier(index int) string {
	return OptionIdentifier(o.Text, index)
}

// OptionList - варианты ответа, хранятся в JSONB
type OptionList []Option

// Scan реализует интерфейс sql.Scanner для OptionList
func (o *OptionList) Scan(value interface{}) error {
	return scanJSONB(value, o, func() { *o = OptionList{} })
}

// Value реализует интерфейс driver.Valuer для OptionList
func (o OptionList) Value() (driver.Value, error) {
	return jsonbArray([]Option(o), len(o))
}

// Question представляет вопрос теста
type Question struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	TestID        uint         `gorm:"not null;index:idx_questions_test_position" json:"test_id"`
	Position      int          `gorm:"not null;default:0;index:idx_questions_test_position" json:"position"`
	Section       string       `gorm:"size:100;not null;default:''" json:"section"`
	Type          QuestionType `gorm:"size:20;not null;default:'single'" json:"type"`
	Text          string       `gorm:"type:text;not null" json:"text"`
	Options       OptionList   `gorm:"type:jsonb;not null" json:"options"`
	Marks         float64      `gorm:"not null;default:1" json:"marks"`
	NegativeMarks float64      `gorm:"not null;default:0" json:"negative_marks"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Question) TableName() string {
	return "questions"
}

// MarksOrDefault возвращает баллы за правильный ответ (по умолчанию 1)
func (q *Question) MarksOrDefault() float64 {
	if q.Marks <= 0 {
		return 1
	}
	return q.Marks
}

// Penalty возвращает штраф за неправильный ответ (по умолчанию 0)
func (q *Question) Penalty() float64 {
	if q.NegativeMarks < 0 {
		return -q.NegativeMarks
	}
	return q.NegativeMarks
}

// CorrectIdentifiers возвращает идентификаторы правильных вариантов в порядке вариантов
func (q *Question) CorrectIdentifiers() []string {
	ids := make([]string, 0, 1)
	for i, opt := range q.Options {
		if opt.IsCorrect {
			ids = append(ids, opt.Identifier(i))
		}
	}
	return ids
}

// Identifiers возвращает идентификаторы всех вариантов
func (q *Question) Identifiers() []string {
	ids := make([]string, len(q.Options))
	for i, opt := range q.Options {
		ids[i] = opt.Identifier(i)
	}
	return ids
}
