package handler

import (
	"context"
	"time"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/service"
)

// RealtimeAttempts - операции движка попыток, которые использует WebSocket-канал
type RealtimeAttempts interface {
	Now() time.Time
	GetAttempt(ctx context.Context, studentID, attemptID uint) (*entity.Attempt, error)
	ExpireCheck(ctx context.Context, studentID, attemptID uint) (*entity.Attempt, bool, error)
	TimeStatus(ctx context.Context, studentID, attemptID uint) (*entity.Attempt, service.TimeInfo, error)
	SaveAnswer(ctx context.Context, studentID, attemptID uint, input service.SaveAnswerInput) (*entity.Attempt, error)
	Submit(ctx context.Context, studentID, attemptID uint, answers []service.SaveAnswerInput) (*entity.Attempt, error)
	RecordViolation(ctx context.Context, studentID, attemptID uint, violationType entity.ViolationType, details string) (*service.ViolationOutcome, error)
	RecordDisconnect(ctx context.Context, studentID, attemptID uint) error
	AutoSubmitIfExpired(ctx context.Context, attemptID uint) (*entity.Attempt, bool, error)
}

// AttemptAPI - операции движка попыток для HTTP-канала
type AttemptAPI interface {
	RealtimeAttempts
	Launch(ctx context.Context, studentID, testID uint, deviceInfo map[string]interface{}) (*service.LaunchResult, error)
	GetStudentAttempts(ctx context.Context, studentID, testID uint) ([]entity.Attempt, error)
	GetAttemptReview(ctx context.Context, studentID, attemptID uint) (*service.AttemptReview, error)
	GetTestStats(ctx context.Context, testID uint) (*entity.TestStats, error)
	RecalculateRanks(ctx context.Context, testID uint) ([]entity.Standing, error)
}

// TestCatalogAPI - каталог тестов для публичных и административных маршрутов
type TestCatalogAPI interface {
	GetTestDefinition(ctx context.Context, testID uint) (*entity.Test, error)
	CreateTest(ctx context.Context, test *entity.Test) error
	AddQuestions(ctx context.Context, testID uint, questions []entity.Question) ([]entity.Question, error)
	InvalidateTest(ctx context.Context, testID uint) error
}

// EnrollmentGranter выдает студенту доступ к платному тесту
type EnrollmentGranter interface {
	GrantEnrollment(ctx context.Context, studentID, testID uint, expiresAt *time.Time) (*entity.Enrollment, error)
}

// AuthAPI - регистрация, вход и выдача WS-тикетов
type AuthAPI interface {
	Register(ctx context.Context, input service.RegisterInput) (*entity.Student, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	Logout(ctx context.Context, studentID uint, sessionID string) error
	IssueWSTicket(ctx context.Context, studentID uint, sessionID string) (string, error)
	GetStudent(ctx context.Context, studentID uint) (*entity.Student, error)
}

// SessionValidator проверяет, что сессия студента все еще активна
type SessionValidator interface {
	Validate(ctx context.Context, studentID uint, sessionID string) error
}

var (
	_ AttemptAPI        = (*service.AttemptService)(nil)
	_ SessionValidator  = (*service.SessionService)(nil)
	_ TestCatalogAPI    = (*service.CatalogService)(nil)
	_ EnrollmentGranter = (*service.AccessService)(nil)
	_ AuthAPI           = (*service.AuthService)(nil)
)
