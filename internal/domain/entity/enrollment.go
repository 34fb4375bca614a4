package entity

import "time"

// Статусы зачисления и заказов
const (
	EnrollmentActive  = "active"
	EnrollmentRevoked = "revoked"

	OrderPending   = "pending"
	OrderCompleted = "completed"
	OrderFailed    = "failed"
)

// Enrollment дает студенту доступ к платному тесту
type Enrollment struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	StudentID uint       `gorm:"not null;index:idx_enrollments_student_test" json:"student_id"`
	TestID    uint       `gorm:"not null;index:idx_enrollments_student_test" json:"test_id"`
	Status    string     `gorm:"size:20;not null;default:'active'" json:"status"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (Enrollment) TableName() string {
	return "enrollments"
}

// IsActiveAt проверяет, действует ли зачисление в момент now
func (e *Enrollment) IsActiveAt(now time.Time) bool {
	if e.Status != EnrollmentActive {
		return false
	}
	return e.ExpiresAt == nil || now.Before(*e.ExpiresAt)
}

// PurchaseOrder - заказ на покупку теста; сами платежи обрабатываются вне сервиса
type PurchaseOrder struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	StudentID uint      `gorm:"not null;index:idx_orders_student_test" json:"student_id"`
	TestID    uint      `gorm:"not null;index:idx_orders_student_test" json:"test_id"`
	Amount    int64     `gorm:"not null;default:0" json:"amount"`
	Status    string    `gorm:"size:20;not null;default:'pending'" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}
