package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
)

// TestRepo реализует repository.TestRepository
type TestRepo struct {
	db *gorm.DB
}

// NewTestRepo создает новый репозиторий тестов
func NewTestRepo(db *gorm.DB) *TestRepo {
	return &TestRepo{db: db}
}

// Create сохраняет тест вместе с секциями и вопросами
func (r *TestRepo) Create(ctx context.Context, test *entity.Test) error {
	return r.db.WithContext(ctx).Create(test).Error
}

// GetByID возвращает тест без вопросов
func (r *TestRepo) GetByID(ctx context.Context, id uint) (*entity.Test, error) {
	var test entity.Test
	if err := r.db.WithContext(ctx).First(&test, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &test, nil
}

// GetWithQuestions возвращает тест вместе с секциями и вопросами
func (r *TestRepo) GetWithQuestions(ctx context.Context, id uint) (*entity.Test, error) {
	var test entity.Test
	err := r.db.WithContext(ctx).
		Preload("Sections", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, id ASC") }).
		First(&test, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &test, nil
}
