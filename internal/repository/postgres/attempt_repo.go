package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/domain/repository"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
)

// completedStatuses - терминальные статусы попыток, которые прошли подсчет баллов
var completedStatuses = []entity.AttemptStatus{entity.AttemptSubmitted, entity.AttemptAutoSubmitted}

// AttemptRepo реализует repository.AttemptRepository
type AttemptRepo struct {
	db *gorm.DB
}

// NewAttemptRepo создает новый репозиторий попыток
func NewAttemptRepo(db *gorm.DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

// CreateInProgress создает попытку in-progress.
// Частичный уникальный индекс idx_attempts_single_in_progress гарантирует
// не более одной живой попытки на (student_id, test_id).
// - 23505 (unique violation) → repository.ErrAttemptInProgressExists
func (r *AttemptRepo) CreateInProgress(ctx context.Context, attempt *entity.Attempt) error {
	attempt.Status = entity.AttemptInProgress
	attempt.EndTime = nil
	attempt.SubmittedAt = nil

	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(attempt).Error
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: student #%d test #%d", repository.ErrAttemptInProgressExists, attempt.StudentID, attempt.TestID)
		}
		return fmt.Errorf("create attempt failed: %w", err)
	}
	return nil
}

// GetByID возвращает попытку без ответов
func (r *AttemptRepo) GetByID(ctx context.Context, id uint) (*entity.Attempt, error) {
	var attempt entity.Attempt
	if err := r.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

// GetWithAnswers возвращает попытку с ответами в порядке вставки
func (r *AttemptRepo) GetWithAnswers(ctx context.Context, id uint) (*entity.Attempt, error) {
	var attempt entity.Attempt
	err := r.db.WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&attempt, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

// FindInProgress возвращает живую попытку студента по тесту
func (r *AttemptRepo) FindInProgress(ctx context.Context, studentID, testID uint) (*entity.Attempt, error) {
	var attempt entity.Attempt
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND test_id = ? AND status = ?", studentID, testID, entity.AttemptInProgress).
		First(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

// ListByStudentAndTest возвращает все попытки студента по тесту, новые первыми
func (r *AttemptRepo) ListByStudentAndTest(ctx context.Context, studentID, testID uint) ([]entity.Attempt, error) {
	var attempts []entity.Attempt
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND test_id = ?", studentID, testID).
		Order("start_time DESC, id DESC").
		Find(&attempts).Error
	return attempts, err
}

// CountCompleted считает завершенные (submitted / auto-submitted) попытки
func (r *AttemptRepo) CountCompleted(ctx context.Context, studentID, testID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Attempt{}).
		Where("student_id = ? AND test_id = ? AND status IN ?", studentID, testID, completedStatuses).
		Count(&count).Error
	return count, err
}

// lockAttempt блокирует строку попытки FOR UPDATE внутри транзакции
func lockAttempt(tx *gorm.DB, attemptID uint) (*entity.Attempt, error) {
	var attempt entity.Attempt
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&attempt, attemptID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &attempt, nil
}

// UpsertAnswer вставляет или заменяет ответ на вопрос.
// Запись строки попытки блокируется, поэтому параллельные ответы на разные
// вопросы сохраняются оба, а ответы на один вопрос применяются в порядке записи.
func (r *AttemptRepo) UpsertAnswer(ctx context.Context, attemptID uint, answer *entity.AttemptAnswer, now time.Time) (*entity.Attempt, error) {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() {
		if rec := recover(); rec != nil {
			tx.Rollback()
			log.Printf("[AttemptRepo] Паника при сохранении ответа попытки #%d: %v", attemptID, rec)
		}
	}()

	attempt, err := lockAttempt(tx, attemptID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if attempt.Status != entity.AttemptInProgress {
		tx.Rollback()
		return attempt, fmt.Errorf("%w: attempt #%d is %s", repository.ErrAttemptNotInProgress, attemptID, attempt.Status)
	}
	if attempt.IsExpired(now) {
		tx.Rollback()
		return attempt, fmt.Errorf("%w: attempt #%d", repository.ErrAttemptDeadlinePassed, attemptID)
	}

	answer.AttemptID = attemptID
	answer.IsCorrect = nil
	answer.MarksAwarded = 0
	if answer.SelectedOptions == nil {
		answer.SelectedOptions = entity.StringArray{}
	}

	err = tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"selected_options", "is_marked_for_review", "time_spent", "section", "updated_at",
		}),
	}).Create(answer).Error
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("upsert answer for attempt #%d failed: %w", attemptID, err)
	}

	var attempted int64
	err = tx.Model(&entity.AttemptAnswer{}).
		Where("attempt_id = ? AND jsonb_array_length(selected_options) > 0", attemptID).
		Count(&attempted).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	unanswered := attempt.TotalQuestions - int(attempted)
	if unanswered < 0 {
		unanswered = 0
	}
	err = tx.Model(&entity.Attempt{}).Where("id = ?", attemptID).Updates(map[string]interface{}{
		"attempted_questions":  int(attempted),
		"unanswered_questions": unanswered,
	}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	attempt.AttemptedQuestions = int(attempted)
	attempt.UnansweredQuestions = unanswered
	return attempt, nil
}

// AppendViolation дописывает нарушение в журнал попытки in-progress
func (r *AttemptRepo) AppendViolation(ctx context.Context, attemptID uint, violation entity.Violation) (*entity.Attempt, error) {
	var result *entity.Attempt
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attempt, err := lockAttempt(tx, attemptID)
		if err != nil {
			return err
		}
		result = attempt
		if attempt.Status != entity.AttemptInProgress {
			return fmt.Errorf("%w: attempt #%d is %s", repository.ErrAttemptNotInProgress, attemptID, attempt.Status)
		}

		attempt.Violations = append(attempt.Violations, violation)
		return tx.Model(&entity.Attempt{}).Where("id = ?", attemptID).
			Update("violations", attempt.Violations).Error
	})
	return result, err
}

// Finalize переводит попытку в терминальное состояние.
// fn получает заблокированную попытку с ответами и заполняет итоговые поля.
func (r *AttemptRepo) Finalize(ctx context.Context, attemptID uint, fn repository.FinalizeFunc) (*entity.Attempt, error) {
	var result *entity.Attempt
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		attempt, err := lockAttempt(tx, attemptID)
		if err != nil {
			return err
		}
		result = attempt
		if attempt.Status != entity.AttemptInProgress {
			return fmt.Errorf("%w: attempt #%d is %s", repository.ErrAttemptNotInProgress, attemptID, attempt.Status)
		}

		if err := tx.Where("attempt_id = ?", attemptID).Order("id ASC").Find(&attempt.Answers).Error; err != nil {
			return err
		}

		if err := fn(attempt); err != nil {
			return err
		}
		if !attempt.Status.IsTerminal() {
			return fmt.Errorf("finalize attempt #%d: status %s is not terminal", attemptID, attempt.Status)
		}

		for i := range attempt.Answers {
			a := &attempt.Answers[i]
			err := tx.Model(&entity.AttemptAnswer{}).Where("id = ?", a.ID).
				Updates(map[string]interface{}{
					"is_correct":    a.IsCorrect,
					"marks_awarded": a.MarksAwarded,
				}).Error
			if err != nil {
				return fmt.Errorf("save scored answer for question #%d failed: %w", a.QuestionID, err)
			}
		}

		res := tx.Model(&entity.Attempt{}).
			Where("id = ? AND status = ?", attemptID, entity.AttemptInProgress).
			Updates(map[string]interface{}{
				"status":               attempt.Status,
				"end_time":             attempt.EndTime,
				"submitted_at":         attempt.SubmittedAt,
				"total_questions":      attempt.TotalQuestions,
				"attempted_questions":  attempt.AttemptedQuestions,
				"correct_answers":      attempt.CorrectAnswers,
				"incorrect_answers":    attempt.IncorrectAnswers,
				"unanswered_questions": attempt.UnansweredQuestions,
				"score":                attempt.Score,
				"percentage":           attempt.Percentage,
				"is_passed":            attempt.IsPassed,
				"section_wise_score":   attempt.SectionWiseScore,
				"is_valid":             attempt.IsValid,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: attempt #%d", repository.ErrAttemptNotInProgress, attemptID)
		}
		return nil
	})
	return result, err
}

// ListRankable возвращает зачтенные попытки теста в порядке места:
// балл по убыванию, затем более раннее время сдачи, затем меньший ID.
func (r *AttemptRepo) ListRankable(ctx context.Context, testID uint) ([]entity.Attempt, error) {
	var attempts []entity.Attempt
	err := r.db.WithContext(ctx).
		Select("id", "student_id", "test_id", "score", "submitted_at", "status").
		Where("test_id = ? AND status IN ? AND is_valid = ?", testID, completedStatuses, true).
		Order("score DESC, submitted_at ASC, id ASC").
		Find(&attempts).Error
	return attempts, err
}

// UpdateStandings записывает rank и percentile одним проходом в транзакции
func (r *AttemptRepo) UpdateStandings(ctx context.Context, standings []entity.Standing) error {
	if len(standings) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, s := range standings {
			err := tx.Model(&entity.Attempt{}).Where("id = ?", s.AttemptID).
				Updates(map[string]interface{}{"rank": s.Rank, "percentile": s.Percentile}).Error
			if err != nil {
				return fmt.Errorf("update standing for attempt #%d failed: %w", s.AttemptID, err)
			}
		}
		return nil
	})
}

// GetTestStats считает агрегаты по зачтенным попыткам теста
func (r *AttemptRepo) GetTestStats(ctx context.Context, testID uint) (*entity.TestStats, error) {
	var row struct {
		Total   int64
		Passed  int64
		Average float64
		Highest float64
		Lowest  float64
	}

	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE is_passed) AS passed,
			COALESCE(AVG(score), 0) AS average,
			COALESCE(MAX(score), 0) AS highest,
			COALESCE(MIN(score), 0) AS lowest
		FROM attempts
		WHERE test_id = ? AND status IN ? AND is_valid = TRUE
	`
	if err := r.db.WithContext(ctx).Raw(query, testID, completedStatuses).Scan(&row).Error; err != nil {
		return nil, fmt.Errorf("get stats for test #%d failed: %w", testID, err)
	}

	stats := &entity.TestStats{
		TestID:        testID,
		TotalAttempts: row.Total,
		PassedCount:   row.Passed,
		AverageScore:  row.Average,
		HighestScore:  row.Highest,
		LowestScore:   row.Lowest,
	}
	if row.Total > 0 {
		stats.PassRate = float64(row.Passed) / float64(row.Total) * 100
	}
	return stats, nil
}

// ListExpiredInProgress возвращает попытки in-progress, у которых вышло время
func (r *AttemptRepo) ListExpiredInProgress(ctx context.Context, now time.Time, limit int) ([]entity.Attempt, error) {
	var attempts []entity.Attempt
	err := r.db.WithContext(ctx).
		Where("status = ? AND start_time + make_interval(mins => duration) <= ?", entity.AttemptInProgress, now).
		Order("start_time ASC").
		Limit(limit).
		Find(&attempts).Error
	return attempts, err
}

// isUniqueViolation проверяет Postgres unique violation (23505) для pgconn и lib/pq драйверов
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}
