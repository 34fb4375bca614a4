package repository

import (
	"context"

	"github.com/yourusername/examprep-api/internal/domain/entity"
)

// TestRepository определяет методы для работы с определениями тестов
type TestRepository interface {
	Create(ctx context.Context, test *entity.Test) error
	GetByID(ctx context.Context, id uint) (*entity.Test, error)
	// GetWithQuestions возвращает тест с секциями и вопросами в порядке позиции
	GetWithQuestions(ctx context.Context, id uint) (*entity.Test, error)
}
