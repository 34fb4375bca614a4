package repository

import (
	"context"
	"time"

	"github.com/yourusername/examprep-api/internal/domain/entity"
)

// FinalizeFunc изменяет заблокированную попытку перед записью терминального состояния
type FinalizeFunc func(attempt *entity.Attempt) error

// AttemptRepository определяет методы для работы с попытками
type AttemptRepository interface {
	// CreateInProgress создает новую попытку. При гонке двух запусков возвращает ErrAttemptInProgressExists.
	CreateInProgress(ctx context.Context, attempt *entity.Attempt) error
	GetByID(ctx context.Context, id uint) (*entity.Attempt, error)
	GetWithAnswers(ctx context.Context, id uint) (*entity.Attempt, error)
	FindInProgress(ctx context.Context, studentID, testID uint) (*entity.Attempt, error)
	ListByStudentAndTest(ctx context.Context, studentID, testID uint) ([]entity.Attempt, error)
	CountCompleted(ctx context.Context, studentID, testID uint) (int64, error)

	// UpsertAnswer атомарно вставляет или заменяет ответ по question_id и пересчитывает счетчики.
	UpsertAnswer(ctx context.Context, attemptID uint, answer *entity.AttemptAnswer, now time.Time) (*entity.Attempt, error)
	// AppendViolation дописывает нарушение в журнал попытки in-progress.
	AppendViolation(ctx context.Context, attemptID uint, violation entity.Violation) (*entity.Attempt, error)
	// Finalize блокирует попытку, вызывает fn и сохраняет результат. Переход выполняется
	// только из in-progress, иначе ErrAttemptNotInProgress.
	Finalize(ctx context.Context, attemptID uint, fn FinalizeFunc) (*entity.Attempt, error)

	ListRankable(ctx context.Context, testID uint) ([]entity.Attempt, error)
	UpdateStandings(ctx context.Context, standings []entity.Standing) error
	GetTestStats(ctx context.Context, testID uint) (*entity.TestStats, error)
	ListExpiredInProgress(ctx context.Context, now time.Time, limit int) ([]entity.Attempt, error)
}
