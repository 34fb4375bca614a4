package repository

import (
	"context"
	"time"

	"github.com/yourusername/examprep-api/internal/domain/entity"
)

// EnrollmentRepository определяет методы проверки доступа к платным тестам
type EnrollmentRepository interface {
	Create(ctx context.Context, enrollment *entity.Enrollment) error
	HasActiveEnrollment(ctx context.Context, studentID, testID uint, now time.Time) (bool, error)
	HasCompletedOrder(ctx context.Context, studentID, testID uint) (bool, error)
}
