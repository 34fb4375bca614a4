package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/domain/repository"
)

// ============================================================================
// Моки репозиториев и зависимостей сервисов
// ============================================================================

// MockAttemptRepository реализует repository.AttemptRepository
type MockAttemptRepository struct {
	mock.Mock
}

func (m *MockAttemptRepository) CreateInProgress(ctx context.Context, attempt *entity.Attempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockAttemptRepository) GetByID(ctx context.Context, id uint) (*entity.Attempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Attempt), args.Error(1)
}

func (m *MockAttemptRepository) GetWithAnswers(ctx context.Context, id uint) (*entity.Attempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Attempt), args.Error(1)
}

func (m *MockAttemptRepository) FindInProgress(ctx context.Context, studentID, testID uint) (*entity.Attempt, error) {
	args := m.Called(ctx, studentID, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Attempt), args.Error(1)
}

func (m *MockAttemptRepository) ListByStudentAndTest(ctx context.Context, studentID, testID uint) ([]entity.Attempt, error) {
	args := m.Called(ctx, studentID, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Attempt), args.Error(1)
}

func (m *MockAttemptRepository) CountCompleted(ctx context.Context, studentID, testID uint) (int64, error) {
	args := m.Called(ctx, studentID, testID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAttemptRepository) UpsertAnswer(ctx context.Context, attemptID uint, answer *entity.AttemptAnswer, now time.Time) (*entity.Attempt, error) {
	args := m.Called(ctx, attemptID, answer, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Attempt), args.Error(1)
}

func (m *MockAttemptRepository) AppendViolation(ctx context.Context, attemptID uint, violation entity.Violation) (*entity.Attempt, error) {
	args := m.Called(ctx, attemptID, violation)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Attempt), args.Error(1)
}

// Finalize применяет fn к копии заданной попытки, как это делает транзакция в БД
func (m *MockAttemptRepository) Finalize(ctx context.Context, attemptID uint, fn repository.FinalizeFunc) (*entity.Attempt, error) {
	args := m.Called(ctx, attemptID)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	locked := *args.Get(0).(*entity.Attempt)
	locked.Answers = append([]entity.AttemptAnswer(nil), locked.Answers...)
	if err := fn(&locked); err != nil {
		return nil, err
	}
	return &locked, nil
}

func (m *MockAttemptRepository) ListRankable(ctx context.Context, testID uint) ([]entity.Attempt, error) {
	args := m.Called(ctx, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Attempt), args.Error(1)
}

func (m *MockAttemptRepository) UpdateStandings(ctx context.Context, standings []entity.Standing) error {
	args := m.Called(ctx, standings)
	return args.Error(0)
}

func (m *MockAttemptRepository) GetTestStats(ctx context.Context, testID uint) (*entity.TestStats, error) {
	args := m.Called(ctx, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.TestStats), args.Error(1)
}

func (m *MockAttemptRepository) ListExpiredInProgress(ctx context.Context, now time.Time, limit int) ([]entity.Attempt, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Attempt), args.Error(1)
}

// MockCacheRepository реализует repository.CacheRepository
type MockCacheRepository struct {
	mock.Mock
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCacheRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	return args.Error(0)
}

func (m *MockCacheRepository) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	args := m.Called(ctx, key, value, expiration)
	return args.Bool(0), args.Error(1)
}

// MockTestRepository реализует repository.TestRepository
type MockTestRepository struct {
	mock.Mock
}

func (m *MockTestRepository) Create(ctx context.Context, test *entity.Test) error {
	args := m.Called(ctx, test)
	return args.Error(0)
}

func (m *MockTestRepository) GetByID(ctx context.Context, id uint) (*entity.Test, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Test), args.Error(1)
}

func (m *MockTestRepository) GetWithQuestions(ctx context.Context, id uint) (*entity.Test, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Test), args.Error(1)
}

// MockQuestionRepository реализует repository.QuestionRepository
type MockQuestionRepository struct {
	mock.Mock
}

func (m *MockQuestionRepository) ListByTest(ctx context.Context, testID uint) ([]entity.Question, error) {
	args := m.Called(ctx, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Question), args.Error(1)
}

func (m *MockQuestionRepository) AppendToTest(ctx context.Context, testID uint, questions []entity.Question) error {
	args := m.Called(ctx, testID, questions)
	return args.Error(0)
}

// MockStudentRepository реализует repository.StudentRepository
type MockStudentRepository struct {
	mock.Mock
}

func (m *MockStudentRepository) Create(ctx context.Context, student *entity.Student) error {
	args := m.Called(ctx, student)
	return args.Error(0)
}

func (m *MockStudentRepository) GetByID(ctx context.Context, id uint) (*entity.Student, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Student), args.Error(1)
}

func (m *MockStudentRepository) GetByEmail(ctx context.Context, email string) (*entity.Student, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Student), args.Error(1)
}

// MockEnrollmentRepository реализует repository.EnrollmentRepository
type MockEnrollmentRepository struct {
	mock.Mock
}

func (m *MockEnrollmentRepository) Create(ctx context.Context, enrollment *entity.Enrollment) error {
	args := m.Called(ctx, enrollment)
	return args.Error(0)
}

func (m *MockEnrollmentRepository) HasActiveEnrollment(ctx context.Context, studentID, testID uint, now time.Time) (bool, error) {
	args := m.Called(ctx, studentID, testID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockEnrollmentRepository) HasCompletedOrder(ctx context.Context, studentID, testID uint) (bool, error) {
	args := m.Called(ctx, studentID, testID)
	return args.Bool(0), args.Error(1)
}

// MockTestCatalog реализует TestCatalog
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

// MockAccessChecker реализует AccessChecker
type MockAccessChecker struct {
	mock.Mock
}

func (m *MockAccessChecker) CanAttempt(ctx context.Context, studentID uint, test *entity.Test) (bool, error) {
	args := m.Called(ctx, studentID, test)
	return args.Bool(0), args.Error(1)
}

// MockEventPublisher реализует AttemptEventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) AttemptClosed(ctx context.Context, attempt *entity.Attempt, reason CloseReason) {
	m.Called(ctx, attempt, reason)
}

// MockEmailService реализует EmailService
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) Send(ctx context.Context, msg EmailMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
