package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/domain/repository"
)

// AccessService проверяет доступ студентов к платным тестам
type AccessService struct {
	enrollmentRepo repository.EnrollmentRepository
	now            func() time.Time
}

// NewAccessService создает новый сервис доступа
func NewAccessService(enrollmentRepo repository.EnrollmentRepository) *AccessService {
	return &AccessService{
		enrollmentRepo: enrollmentRepo,
		now:            time.Now,
	}
}

// CanAttempt: бесплатный тест доступен всем, платный требует
// действующего зачисления или завершенного заказа
func (s *AccessService) CanAttempt(ctx context.Context, studentID uint, test *entity.Test) (bool, error) {
	if !test.IsPaid {
		return true, nil
	}

	enrolled, err := s.enrollmentRepo.HasActiveEnrollment(ctx, studentID, test.ID, s.now())
	if err != nil {
		return false, fmt.Errorf("failed to check enrollment: %w", err)
	}
	if enrolled {
		return true, nil
	}

	purchased, err := s.enrollmentRepo.HasCompletedOrder(ctx, studentID, test.ID)
	if err != nil {
		return false, fmt.Errorf("failed to check purchase orders: %w", err)
	}
	return purchased, nil
}

// GrantEnrollment зачисляет студента на тест
func (s *AccessService) GrantEnrollment(ctx context.Context, studentID, testID uint, expiresAt *time.Time) (*entity.Enrollment, error) {
	if studentID == 0 || testID == 0 {
		return nil, validationError("student_id and test_id are required")
	}
	if expiresAt != nil && !expiresAt.After(s.now()) {
		return nil, validationError("expires_at must be in the future")
	}

	enrollment := &entity.Enrollment{
		StudentID: studentID,
		TestID:    testID,
		Status:    entity.EnrollmentActive,
		ExpiresAt: expiresAt,
	}
	if err := s.enrollmentRepo.Create(ctx, enrollment); err != nil {
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}

	log.Printf("[AccessService] Студент #%d зачислен на тест #%d", studentID, testID)
	return enrollment, nil
}
