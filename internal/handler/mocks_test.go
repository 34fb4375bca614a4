package handler

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/service"
)

// MockAttemptAPI реализует AttemptAPI
type MockAttemptAPI struct {
	mock.Mock
}

func (m *MockAttemptAPI) Now() time.Time {
	args := m.Called()
	return args.Get(0).(time.Time)
}

func (m *MockAttemptAPI) GetAttempt(ctx context.Context, studentID, attemptID uint) (*entity.Attempt, error) {
	args := m.Called(ctx, studentID, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Attempt), args.Error(1)
}

func (m *MockAttemptAPI) ExpireCheck(ctx context.Context, studentID, attemptID uint) (*entity.Attempt, bool, error) {
	args := m.Called(ctx, studentID, attemptID)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*entity.Attempt), args.Bool(1), args.Error(2)
}

func (m *MockAttemptAPI) TimeStatus(ctx context.Context, studentID, attemptID uint) (*entity.Attempt, service.TimeInfo, error) {
	args := m.Called(ctx, studentID, attemptID)
	if args.Get(0) == nil {
		return nil, service.TimeInfo{}, args.Error(2)
	}
	return args.Get(0).(*entity.Attempt), args.Get(1).(service.TimeInfo), args.Error(2)
}

func (m *MockAttemptAPI) SaveAnswer(ctx context.Context, studentID, attemptID uint, input service.SaveAnswerInput) (*entity.Attempt, error) {
	args := m.Called(ctx, studentID, attemptID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Attempt), args.Error(1)
}

func (m *MockAttemptAPI) Submit(ctx context.Context, studentID, attemptID uint, answers []service.SaveAnswerInput) (*entity.Attempt, error) {
	args := m.Called(ctx, studentID, attemptID, answers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Attempt), args.Error(1)
}

func (m *MockAttemptAPI) RecordViolation(ctx context.Context, studentID, attemptID uint, violationType entity.ViolationType, details string) (*service.ViolationOutcome, error) {
	args := m.Called(ctx, studentID, attemptID, violationType, details)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ViolationOutcome), args.Error(1)
}

func (m *MockAttemptAPI) RecordDisconnect(ctx context.Context, studentID, attemptID uint) error {
	args := m.Called(ctx, studentID, attemptID)
	return args.Error(0)
}

func (m *MockAttemptAPI) AutoSubmitIfExpired(ctx context.Context, attemptID uint) (*entity.Attempt, bool, error) {
	args := m.Called(ctx, attemptID)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*entity.Attempt), args.Bool(1), args.Error(2)
}

func (m *MockAttemptAPI) Launch(ctx context.Context, studentID, testID uint, deviceInfo map[string]interface{}) (*service.LaunchResult, error) {
	args := m.Called(ctx, studentID, testID, deviceInfo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LaunchResult), args.Error(1)
}

func (m *MockAttemptAPI) GetStudentAttempts(ctx context.Context, studentID, testID uint) ([]entity.Attempt, error) {
	args := m.Called(ctx, studentID, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Attempt), args.Error(1)
}

func (m *MockAttemptAPI) GetAttemptReview(ctx context.Context, studentID, attemptID uint) (*service.AttemptReview, error) {
	args := m.Called(ctx, studentID, attemptID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AttemptReview), args.Error(1)
}

func (m *MockAttemptAPI) GetTestStats(ctx context.Context, testID uint) (*entity.TestStats, error) {
	args := m.Called(ctx, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.TestStats), args.Error(1)
}

func (m *MockAttemptAPI) RecalculateRanks(ctx context.Context, testID uint) ([]entity.Standing, error) {
	args := m.Called(ctx, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Standing), args.Error(1)
}

// MockSessionValidator реализует SessionValidator
type MockSessionValidator struct {
	mock.Mock
}

func (m *MockSessionValidator) Validate(ctx context.Context, studentID uint, sessionID string) error {
	args := m.Called(ctx, studentID, sessionID)
	return args.Error(0)
}

// MockTestCatalog реализует TestCatalogAPI
type MockTestCatalog struct {
	mock.Mock
}

func (m *MockTestCatalog) GetTestDefinition(ctx context.Context, testID uint) (*entity.Test, error) {
	args := m.Called(ctx, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Test), args.Error(1)
}

func (m *MockTestCatalog) CreateTest(ctx context.Context, test *entity.Test) error {
	args := m.Called(ctx, test)
	return args.Error(0)
}

func (m *MockTestCatalog) AddQuestions(ctx context.Context, testID uint, questions []entity.Question) ([]entity.Question, error) {
	args := m.Called(ctx, testID, questions)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Question), args.Error(1)
}

func (m *MockTestCatalog) InvalidateTest(ctx context.Context, testID uint) error {
	args := m.Called(ctx, testID)
	return args.Error(0)
}

// MockEnrollmentGranter реализует EnrollmentGranter
type MockEnrollmentGranter struct {
	mock.Mock
}

func (m *MockEnrollmentGranter) GrantEnrollment(ctx context.Context, studentID, testID uint, expiresAt *time.Time) (*entity.Enrollment, error) {
	args := m.Called(ctx, studentID, testID, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Enrollment), args.Error(1)
}

// MockAuthAPI реализует AuthAPI
type MockAuthAPI struct {
	mock.Mock
}

func (m *MockAuthAPI) Register(ctx context.Context, input service.RegisterInput) (*entity.Student, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Student), args.Error(1)
}

func (m *MockAuthAPI) Login(ctx context.Context, email, password string) (*service.AuthResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AuthResult), args.Error(1)
}

func (m *MockAuthAPI) Logout(ctx context.Context, studentID uint, sessionID string) error {
	args := m.Called(ctx, studentID, sessionID)
	return args.Error(0)
}

func (m *MockAuthAPI) IssueWSTicket(ctx context.Context, studentID uint, sessionID string) (string, error) {
	args := m.Called(ctx, studentID, sessionID)
	return args.String(0), args.Error(1)
}

func (m *MockAuthAPI) GetStudent(ctx context.Context, studentID uint) (*entity.Student, error) {
	args := m.Called(ctx, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Student), args.Error(1)
}
