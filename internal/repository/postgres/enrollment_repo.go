package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/examprep-api/internal/domain/entity"
)

// EnrollmentRepo реализует repository.EnrollmentRepository
type EnrollmentRepo struct {
	db *gorm.DB
}

// NewEnrollmentRepo создает новый репозиторий зачислений
func NewEnrollmentRepo(db *gorm.DB) *EnrollmentRepo {
	return &EnrollmentRepo{db: db}
}

// Create сохраняет зачисление
func (r *EnrollmentRepo) Create(ctx context.Context, enrollment *entity.Enrollment) error {
	if enrollment.Status == "" {
		enrollment.Status = entity.EnrollmentActive
	}
	return r.db.WithContext(ctx).Create(enrollment).Error
}

// HasActiveEnrollment проверяет наличие действующего зачисления на тест
func (r *EnrollmentRepo) HasActiveEnrollment(ctx context.Context, studentID, testID uint, now time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Enrollment{}).
		Where("student_id = ? AND test_id = ? AND status = ?", studentID, testID, entity.EnrollmentActive).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Count(&count).Error
	return count > 0, err
}

// HasCompletedOrder проверяет наличие оплаченного заказа на тест
func (r *EnrollmentRepo) HasCompletedOrder(ctx context.Context, studentID, testID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.PurchaseOrder{}).
		Where("student_id = ? AND test_id = ? AND status = ?", studentID, testID, entity.OrderCompleted).
		Count(&count).Error
	return count > 0, err
}
