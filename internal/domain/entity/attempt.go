package entity

import (
	"database/sql/driver"
	"time"

	"gorm.io/datatypes"
)

// AttemptStatus - состояние попытки
type AttemptStatus string

const (
	AttemptInProgress    AttemptStatus = "in-progress"
	AttemptSubmitted     AttemptStatus = "submitted"
	AttemptAutoSubmitted AttemptStatus = "auto-submitted"
	AttemptExpired       AttemptStatus = "expired"
)

// IsTerminal сообщает, что из этого состояния переходов нет
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptSubmitted || s == AttemptAutoSubmitted || s == AttemptExpired
}

// ViolationType - вид нарушения прокторинга
type ViolationType string

const (
	ViolationTabSwitch  ViolationType = "tab-switch"
	ViolationBlur       ViolationType = "blur"
	ViolationCopyPaste  ViolationType = "copy-paste"
	ViolationRightClick ViolationType = "right-click"
	ViolationDevTools   ViolationType = "dev-tools"
	ViolationDisconnect ViolationType = "disconnect"
)

// ViolationTypes перечисляет допустимые виды нарушений
var ViolationTypes = []ViolationType{
	ViolationTabSwitch, ViolationBlur, ViolationCopyPaste,
	ViolationRightClick, ViolationDevTools, ViolationDisconnect,
}

// IsValid проверяет, что вид нарушения известен
func (v ViolationType) IsValid() bool {
	for _, t := range ViolationTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Violation - запись журнала нарушений с серверным временем
type Violation struct {
	Type      ViolationType `json:"type"`
	Details   string        `json:"details,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// ViolationLog - журнал нарушений, только дополняется
type ViolationLog []Violation

// Scan реализует интерфейс sql.Scanner для ViolationLog
func (v *ViolationLog) Scan(value interface{}) error {
	return scanJSONB(value, v, func() { *v = ViolationLog{} })
}

// Value реализует интерфейс driver.Valuer для ViolationLog
func (v ViolationLog) Value() (driver.Value, error) {
	return jsonbArray([]Violation(v), len(v))
}

// CountTowardsLimit возвращает число нарушений, учитываемых порогом.
// Обрыв соединения фиксируется, но в порог не входит.
func (v ViolationLog) CountTowardsLimit() int {
	n := 0
	for _, item := range v {
		if item.Type != ViolationDisconnect {
			n++
		}
	}
	return n
}

// SectionScore - итог по одной секции
type SectionScore struct {
	Section            string  `json:"section"`
	TotalQuestions     int     `json:"total_questions"`
	AttemptedQuestions int     `json:"attempted_questions"`
	CorrectAnswers     int     `json:"correct_answers"`
	IncorrectAnswers   int     `json:"incorrect_answers"`
	Score              float64 `json:"score"`
	TimeSpent          int     `json:"time_spent"`
}

// SectionScores - разбивка по секциям в порядке первого появления
type SectionScores []SectionScore

// Scan реализует интерфейс sql.Scanner для SectionScores
func (s *SectionScores) Scan(value interface{}) error {
	return scanJSONB(value, s, func() { *s = SectionScores{} })
}

// Value реализует интерфейс driver.Valuer для SectionScores
func (s SectionScores) Value() (driver.Value, error) {
	return jsonbArray([]SectionScore(s), len(s))
}

// Attempt представляет одну попытку одного студента по одному тесту
type Attempt struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	StudentID uint          `gorm:"not null;index:idx_attempts_student_test" json:"student_id"`
	TestID    uint          `gorm:"not null;index:idx_attempts_student_test;index:idx_attempts_test_status" json:"test_id"`
	Status    AttemptStatus `gorm:"size:20;not null;default:'in-progress';index:idx_attempts_test_status" json:"status"`

	StartTime   time.Time  `gorm:"not null" json:"start_time"`
	Duration    int        `gorm:"not null" json:"duration"` // минуты, скопированы из теста при запуске
	EndTime     *time.Time `json:"end_time"`
	SubmittedAt *time.Time `json:"submitted_at"`

	Answers []AttemptAnswer `gorm:"foreignKey:AttemptID" json:"answers"`

	TotalQuestions      int     `gorm:"not null;default:0" json:"total_questions"`
	AttemptedQuestions  int     `gorm:"not null;default:0" json:"attempted_questions"`
	CorrectAnswers      int     `gorm:"not null;default:0" json:"correct_answers"`
	IncorrectAnswers    int     `gorm:"not null;default:0" json:"incorrect_answers"`
	UnansweredQuestions int     `gorm:"not null;default:0" json:"unanswered_questions"`
	Score               float64 `gorm:"not null;default:0" json:"score"`
	Percentage          int     `gorm:"not null;default:0" json:"percentage"`
	IsPassed            bool    `gorm:"not null;default:false" json:"is_passed"`

	SectionWiseScore SectionScores `gorm:"type:jsonb;not null;default:'[]'" json:"section_wise_score"`

	Rank       *int `json:"rank"`
	Percentile *int `json:"percentile"`

	Violations ViolationLog      `gorm:"type:jsonb;not null;default:'[]'" json:"violations"`
	IsValid    bool              `gorm:"not null;default:true" json:"is_valid"`
	DeviceInfo datatypes.JSONMap `gorm:"type:jsonb" json:"device_info,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Attempt) TableName() string {
	return "attempts"
}

// Deadline возвращает момент, когда время попытки заканчивается
func (a *Attempt) Deadline() time.Time {
	return a.StartTime.Add(time.Duration(a.Duration) * time.Minute)
}

// IsExpired: попытка в процессе и с начала прошло не меньше Duration минут
func (a *Attempt) IsExpired(now time.Time) bool {
	return a.Status == AttemptInProgress && !now.Before(a.Deadline())
}

// TimeElapsed возвращает время, прошедшее с начала попытки
func (a *Attempt) TimeElapsed(now time.Time) time.Duration {
	elapsed := now.Sub(a.StartTime)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// TimeRemaining возвращает оставшееся время (не меньше нуля)
func (a *Attempt) TimeRemaining(now time.Time) time.Duration {
	remaining := a.Deadline().Sub(now)
	if remaining < 0 || a.Status.IsTerminal() {
		return 0
	}
	return remaining
}

// BelongsTo проверяет владельца попытки
func (a *Attempt) BelongsTo(studentID uint) bool {
	return a.StudentID == studentID
}

// AttemptAnswer - ответ на один вопрос внутри попытки.
// Уникален по (attempt_id, question_id), порядок вставки задает ID.
type AttemptAnswer struct {
	ID                uint        `gorm:"primaryKey" json:"-"`
	AttemptID         uint        `gorm:"not null;uniqueIndex:idx_attempt_answers_attempt_question" json:"-"`
	QuestionID        uint        `gorm:"not null;uniqueIndex:idx_attempt_answers_attempt_question" json:"question_id"`
	SelectedOptions   StringArray `gorm:"type:jsonb;not null" json:"selected_options"`
	IsMarkedForReview bool        `gorm:"not null;default:false" json:"is_marked_for_review"`
	TimeSpent         int         `gorm:"not null;default:0" json:"time_spent"` // секунды
	Section           string      `gorm:"size:100;not null;default:''" json:"section"`
	IsCorrect         *bool       `json:"is_correct,omitempty"`
	MarksAwarded      float64     `gorm:"not null;default:0" json:"marks_awarded"`
	CreatedAt         time.Time   `json:"-"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (AttemptAnswer) TableName() string {
	return "attempt_answers"
}

// IsAnswered сообщает, выбран ли хотя бы один вариант
func (a *AttemptAnswer) IsAnswered() bool {
	for _, s := range a.SelectedOptions {
		if s != "" {
			return true
		}
	}
	return false
}
