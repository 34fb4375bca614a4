package postgres

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/domain/repository"
	"github.com/yourusername/examprep-api/pkg/database"
)

// Тесты этого файла идут на живой PostgreSQL:
//
//	TEST_DATABASE_DSN="host=localhost user=postgres password=postgres dbname=examprep_test sslmode=disable" go test ./internal/repository/postgres/
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN не задан, пропускаем тесты репозитория")
	}

	db, err := database.NewPostgresDB(dsn, false)
	require.NoError(t, err, "Подключение к тестовой БД")

	migrations, err := filepath.Abs(filepath.Join("..", "..", "..", "migrations"))
	require.NoError(t, err)
	require.NoError(t, database.MigrateDB(db, migrations), "Миграции должны применяться")

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// seedAttempt создает студента, тест и попытку in-progress; все удаляется после теста
func seedAttempt(t *testing.T, db *gorm.DB, totalQuestions int) *entity.Attempt {
	t.Helper()
	ctx := context.Background()

	student := &entity.Student{
		Name:     "Repo Student",
		Email:    fmt.Sprintf("repo-%d@example.com", time.Now().UnixNano()),
		Password: "password123",
	}
	require.NoError(t, db.WithContext(ctx).Create(student).Error)

	test := &entity.Test{Title: "Repo test", IsActive: true, AttemptsAllowed: 1, Duration: 60, TotalMarks: float64(totalQuestions)}
	require.NoError(t, db.WithContext(ctx).Create(test).Error)

	t.Cleanup(func() {
		db.Delete(&entity.Test{}, test.ID)
		db.Delete(&entity.Student{}, student.ID)
	})

	attempt := &entity.Attempt{
		StudentID:           student.ID,
		TestID:              test.ID,
		StartTime:           time.Now(),
		Duration:            60,
		TotalQuestions:      totalQuestions,
		UnansweredQuestions: totalQuestions,
		IsValid:             true,
	}
	require.NoError(t, NewAttemptRepo(db).CreateInProgress(ctx, attempt))
	return attempt
}

func TestAttemptRepo_UpsertAnswer_SameQuestionKeepsOneRow(t *testing.T) {
	// Arrange
	db := openTestDB(t)
	repo := NewAttemptRepo(db)
	attempt := seedAttempt(t, db, 3)
	ctx := context.Background()

	// Act
	_, err := repo.UpsertAnswer(ctx, attempt.ID, &entity.AttemptAnswer{QuestionID: 11, SelectedOptions: entity.StringArray{"A"}}, time.Now())
	require.NoError(t, err)
	_, err = repo.UpsertAnswer(ctx, attempt.ID, &entity.AttemptAnswer{QuestionID: 11, SelectedOptions: entity.StringArray{"A"}}, time.Now())
	require.NoError(t, err)
	updated, err := repo.UpsertAnswer(ctx, attempt.ID, &entity.AttemptAnswer{QuestionID: 11, SelectedOptions: entity.StringArray{"C"}, IsMarkedForReview: true}, time.Now())
	require.NoError(t, err)

	// Assert
	stored, err := repo.GetWithAnswers(ctx, attempt.ID)
	require.NoError(t, err)
	require.Len(t, stored.Answers, 1, "Повторное сохранение не должно создавать вторую запись")
	assert.Equal(t, entity.StringArray{"C"}, stored.Answers[0].SelectedOptions, "Последняя запись побеждает")
	assert.True(t, stored.Answers[0].IsMarkedForReview)
	assert.Equal(t, 1, updated.AttemptedQuestions)
	assert.Equal(t, 2, updated.UnansweredQuestions)
	assert.Equal(t, 1, stored.AttemptedQuestions)
}

func TestAttemptRepo_UpsertAnswer_ConcurrentDifferentQuestions(t *testing.T) {
	// Arrange
	db := openTestDB(t)
	repo := NewAttemptRepo(db)
	attempt := seedAttempt(t, db, 2)
	ctx := context.Background()
	questionIDs := []uint{21, 22}
	errs := make([]error, len(questionIDs))

	// Act
	var wg sync.WaitGroup
	for i, qid := range questionIDs {
		wg.Add(1)
		go func(i int, qid uint) {
			defer wg.Done()
			_, errs[i] = repo.UpsertAnswer(ctx, attempt.ID, &entity.AttemptAnswer{
				QuestionID:      qid,
				SelectedOptions: entity.StringArray{fmt.Sprintf("option_%d", i)},
			}, time.Now())
		}(i, qid)
	}
	wg.Wait()

	// Assert
	for i, err := range errs {
		require.NoError(t, err, "Сохранение ответа %d", i)
	}
	stored, err := repo.GetWithAnswers(ctx, attempt.ID)
	require.NoError(t, err)
	require.Len(t, stored.Answers, 2, "Оба параллельных ответа должны сохраниться")
	saved := map[uint]bool{}
	for _, a := range stored.Answers {
		saved[a.QuestionID] = true
	}
	assert.True(t, saved[21])
	assert.True(t, saved[22])
	assert.Equal(t, 2, stored.AttemptedQuestions)
	assert.Equal(t, 0, stored.UnansweredQuestions)
}

func TestAttemptRepo_UpsertAnswer_ClosedAttemptRejected(t *testing.T) {
	// Arrange
	db := openTestDB(t)
	repo := NewAttemptRepo(db)
	attempt := seedAttempt(t, db, 1)
	ctx := context.Background()
	require.NoError(t, db.Model(&entity.Attempt{}).Where("id = ?", attempt.ID).Update("status", entity.AttemptSubmitted).Error)

	// Act
	_, err := repo.UpsertAnswer(ctx, attempt.ID, &entity.AttemptAnswer{QuestionID: 31, SelectedOptions: entity.StringArray{"A"}}, time.Now())

	// Assert
	assert.ErrorIs(t, err, repository.ErrAttemptNotInProgress)
	stored, err := repo.GetWithAnswers(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Answers)
}
