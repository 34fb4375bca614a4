package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
)

// StudentRepo реализует repository.StudentRepository
type StudentRepo struct {
	db *gorm.DB
}

// NewStudentRepo создает новый репозиторий студентов
func NewStudentRepo(db *gorm.DB) *StudentRepo {
	return &StudentRepo{db: db}
}

// Create создает студента; повторный email → ErrConflict
func (r *StudentRepo) Create(ctx context.Context, student *entity.Student) error {
	student.Email = strings.ToLower(strings.TrimSpace(student.Email))
	if err := r.db.WithContext(ctx).Create(student).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email %s already registered", apperrors.ErrConflict, student.Email)
		}
		return err
	}
	return nil
}

// GetByID возвращает студента по ID
func (r *StudentRepo) GetByID(ctx context.Context, id uint) (*entity.Student, error) {
	var student entity.Student
	if err := r.db.WithContext(ctx).First(&student, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &student, nil
}

// GetByEmail возвращает студента по email
func (r *StudentRepo) GetByEmail(ctx context.Context, email string) (*entity.Student, error) {
	var student entity.Student
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&student).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &student, nil
}
