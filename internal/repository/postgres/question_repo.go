package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
)

// QuestionRepo реализует repository.QuestionRepository
type QuestionRepo struct {
	db *gorm.DB
}

// NewQuestionRepo создает новый репозиторий вопросов
func NewQuestionRepo(db *gorm.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// ListByTest возвращает вопросы теста
func (r *QuestionRepo) ListByTest(ctx context.Context, testID uint) ([]entity.Question, error) {
	var questions []entity.Question
	err := r.db.WithContext(ctx).
		Where("test_id = ?", testID).
		Order("position ASC, id ASC").
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// AppendToTest добавляет пакет вопросов после последнего вопроса теста
func (r *QuestionRepo) AppendToTest(ctx context.Context, testID uint, questions []entity.Question) error {
	if len(questions) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Блокируем строку теста: параллельные добавления не получат одинаковые позиции
		var test entity.Test
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").First(&test, testID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return err
		}

		var maxPosition *int
		if err := tx.Model(&entity.Question{}).
			Where("test_id = ?", testID).
			Select("MAX(position)").
			Scan(&maxPosition).Error; err != nil {
			return fmt.Errorf("failed to read last question position: %w", err)
		}

		next := 0
		if maxPosition != nil {
			next = *maxPosition + 1
		}

		var addedMarks float64
		for i := range questions {
			questions[i].ID = 0
			questions[i].TestID = testID
			questions[i].Position = next + i
			addedMarks += questions[i].MarksOrDefault()
		}

		if err := tx.Create(&questions).Error; err != nil {
			return err
		}

		return tx.Model(&entity.Test{}).
			Where("id = ?", testID).
			Update("total_marks", gorm.Expr("total_marks + ?", addedMarks)).Error
	})
}
