package service

import (
	"fmt"

	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
)

// Ошибки сервисов. Каждая оборачивает общую ошибку из apperrors,
// по которой граница (HTTP / WebSocket) выбирает код и вид ошибки.
var (
	ErrAttemptNotFound      = fmt.Errorf("attempt not found: %w", apperrors.ErrNotFound)
	ErrTestNotFound         = fmt.Errorf("test not found: %w", apperrors.ErrNotFound)
	ErrStudentNotFound      = fmt.Errorf("student not found: %w", apperrors.ErrNotFound)
	ErrNotAttemptOwner      = fmt.Errorf("attempt belongs to another student: %w", apperrors.ErrForbidden)
	ErrEnrollmentRequired   = fmt.Errorf("enrollment or completed purchase required for this test: %w", apperrors.ErrForbidden)
	ErrAlreadySubmitted     = fmt.Errorf("attempt already submitted: %w", apperrors.ErrInvalidState)
	ErrAttemptNotFinished   = fmt.Errorf("attempt is still in progress: %w", apperrors.ErrInvalidState)
	ErrTestUnavailable      = fmt.Errorf("test is not active or outside its validity window: %w", apperrors.ErrInvalidState)
	ErrAttemptTestMismatch  = fmt.Errorf("attempt does not belong to this test: %w", apperrors.ErrInvalidState)
	ErrAttemptExpired       = fmt.Errorf("attempt expired and was auto-submitted: %w", apperrors.ErrExpired)
	ErrAttemptLimitExceeded = fmt.Errorf("attempts allowed for this test are used up: %w", apperrors.ErrLimitExceeded)
	ErrInvalidCredentials   = fmt.Errorf("invalid email or password: %w", apperrors.ErrUnauthorized)
	ErrSessionRevoked       = fmt.Errorf("session is no longer active: %w", apperrors.ErrUnauthorized)
)

// validationError оборачивает apperrors.ErrValidation с описанием поля
func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), apperrors.ErrValidation)
}
