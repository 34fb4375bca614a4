package repository

import (
	"context"

	"github.com/yourusername/examprep-api/internal/domain/entity"
)

// StudentRepository определяет методы для работы со студентами
type StudentRepository interface {
	Create(ctx context.Context, student *entity.Student) error
	GetByID(ctx context.Context, id uint) (*entity.Student, error)
	GetByEmail(ctx context.Context, email string) (*entity.Student, error)
}
