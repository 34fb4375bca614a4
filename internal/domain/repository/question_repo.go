package repository

import (
	"context"

	"github.com/yourusername/examprep-api/internal/domain/entity"
)

// QuestionRepository определяет методы для работы с вопросами теста
type QuestionRepository interface {
	// ListByTest возвращает вопросы теста в порядке позиции
	ListByTest(ctx context.Context, testID uint) ([]entity.Question, error)
	// AppendToTest добавляет вопросы в конец теста и увеличивает total_marks теста
	// на сумму их баллов. Выполняется в одной транзакции.
	AppendToTest(ctx context.Context, testID uint, questions []entity.Question) error
}
