package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	apperrors "github.com/yourusername/examprep-api/internal/pkg/errors"
)

func TestCatalogService_GetTestDefinition_CacheMissLoadsFromDB(t *testing.T) {
	// Arrange
	repo := new(MockTestRepository)
	cache := new(MockCacheRepository)
	svc := NewCatalogService(repo, nil, cache, 10*time.Minute)
	test := sampleTest()
	cache.On("GetJSON", mock.Anything, "test:def:1", mock.Anything).Return(apperrors.ErrNotFound)
	repo.On("GetWithQuestions", mock.Anything, uint(1)).Return(test, nil)
	cache.On("SetJSON", mock.Anything, "test:def:1", test, 10*time.Minute).Return(nil)

	// Act
	result, err := svc.GetTestDefinition(context.Background(), 1)

	// Assert
	require.NoError(t, err)
	assert.Same(t, test, result)
	cache.AssertExpectations(t)
}

func TestCatalogService_GetTestDefinition_CacheErrorFallsBack(t *testing.T) {
	// Arrange
	repo := new(MockTestRepository)
	cache := new(MockCacheRepository)
	svc := NewCatalogService(repo, nil, cache, time.Minute)
	cache.On("GetJSON", mock.Anything, "test:def:1", mock.Anything).Return(errors.New("redis down"))
	repo.On("GetWithQuestions", mock.Anything, uint(1)).Return(sampleTest(), nil)
	cache.On("SetJSON", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))

	// Act
	result, err := svc.GetTestDefinition(context.Background(), 1)

	// Assert
	require.NoError(t, err, "Недоступный кеш не ломает чтение")
	assert.Equal(t, uint(1), result.ID)
}

func TestCatalogService_GetTestDefinition_NotFound(t *testing.T) {
	// Arrange
	repo := new(MockTestRepository)
	svc := NewCatalogService(repo, nil, nil, time.Minute)
	repo.On("GetWithQuestions", mock.Anything, uint(5)).Return(nil, apperrors.ErrNotFound)

	// Act
	_, err := svc.GetTestDefinition(context.Background(), 5)

	// Assert
	assert.ErrorIs(t, err, ErrTestNotFound)
	assert.Equal(t, 404, apperrors.HTTPStatus(err))
}

func TestCatalogService_CreateTest_FillsDefaults(t *testing.T) {
	// Arrange
	repo := new(MockTestRepository)
	svc := NewCatalogService(repo, nil, nil, time.Minute)
	test := &entity.Test{
		Title:    "  Chemistry  ",
		Sections: []entity.TestSection{{Name: "Organic", Duration: 30}, {Name: "Inorganic", Duration: 45}},
		Questions: []entity.Question{
			{Type: entity.QuestionSingle, Text: "Q1", Section: "Organic", Marks: 4, Options: entity.OptionList{{Text: "a", IsCorrect: true}}},
			{Type: entity.QuestionMultiple, Text: "Q2", Section: "Inorganic", Options: entity.OptionList{{Text: "b", IsCorrect: true}}},
		},
	}
	repo.On("Create", mock.Anything, test).Return(nil)

	// Act
	err := svc.CreateTest(context.Background(), test)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Chemistry", test.Title)
	assert.Equal(t, 1, test.AttemptsAllowed)
	assert.Equal(t, 5.0, test.TotalMarks, "Сумма баллов: 4 + 1 по умолчанию")
	assert.Equal(t, 75, test.TotalDuration())
	assert.Equal(t, 1, test.Questions[1].Position)
}

func TestCatalogService_CreateTest_TrimsOptionText(t *testing.T) {
	// Arrange
	repo := new(MockTestRepository)
	svc := NewCatalogService(repo, nil, nil, time.Minute)
	test := &entity.Test{
		Title:    "Arithmetic",
		Duration: 20,
		Questions: []entity.Question{
			{Type: entity.QuestionNumerical, Text: "6 * 7", Options: entity.OptionList{{Text: "42 ", IsCorrect: true}, {Text: "  41"}}},
		},
	}
	repo.On("Create", mock.Anything, test).Return(nil)

	// Act
	err := svc.CreateTest(context.Background(), test)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "42", test.Questions[0].Options[0].Text, "Текст варианта должен сохраняться без пробелов по краям")
	assert.Equal(t, []string{"42", "41"}, test.Questions[0].Identifiers())
}

func TestCatalogService_CreateTest_Validation(t *testing.T) {
	valid := func() *entity.Test {
		return &entity.Test{
			Title:     "T",
			Duration:  30,
			Questions: []entity.Question{{Type: entity.QuestionSingle, Text: "Q", Options: entity.OptionList{{Text: "a"}}}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*entity.Test)
	}{
		{name: "нет названия", mutate: func(t *entity.Test) { t.Title = " " }},
		{name: "нет вопросов", mutate: func(t *entity.Test) { t.Questions = nil }},
		{name: "нулевая длительность", mutate: func(t *entity.Test) { t.Duration = 0 }},
		{name: "неизвестный тип", mutate: func(t *entity.Test) { t.Questions[0].Type = "essay" }},
		{name: "нет вариантов", mutate: func(t *entity.Test) { t.Questions[0].Options = nil }},
		{name: "порог больше 100", mutate: func(t *entity.Test) { t.PassingMarks = 120 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			repo := new(MockTestRepository)
			svc := NewCatalogService(repo, nil, nil, time.Minute)
			test := valid()
			tt.mutate(test)

			// Act
			err := svc.CreateTest(context.Background(), test)

			// Assert
			assert.ErrorIs(t, err, apperrors.ErrValidation)
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func draftTest() *entity.Test {
	return &entity.Test{
		ID:       8,
		Title:    "Physics draft",
		IsActive: false,
		Sections: []entity.TestSection{{Name: "Mechanics", Duration: 40}},
	}
}

func TestCatalogService_AddQuestions(t *testing.T) {
	// Arrange
	repo := new(MockTestRepository)
	questions := new(MockQuestionRepository)
	cache := new(MockCacheRepository)
	svc := NewCatalogService(repo, questions, cache, time.Minute)
	added := []entity.Question{
		{Type: entity.QuestionSingle, Text: "F = ?", Section: "Mechanics", Options: entity.OptionList{{Text: "ma", IsCorrect: true}}},
	}
	repo.On("GetWithQuestions", mock.Anything, uint(8)).Return(draftTest(), nil)
	questions.On("AppendToTest", mock.Anything, uint(8), added).Return(nil)
	cache.On("Delete", mock.Anything, "test:def:8").Return(nil)

	// Act
	result, err := svc.AddQuestions(context.Background(), 8, added)

	// Assert
	require.NoError(t, err)
	assert.Len(t, result, 1)
	questions.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestCatalogService_AddQuestions_Rejected(t *testing.T) {
	valid := entity.Question{Type: entity.QuestionSingle, Text: "Q", Options: entity.OptionList{{Text: "a", IsCorrect: true}}}

	tests := []struct {
		name      string
		test      *entity.Test
		loadErr   error
		questions []entity.Question
		wantErr   error
	}{
		{
			name:      "активный тест",
			test:      &entity.Test{ID: 8, IsActive: true},
			questions: []entity.Question{valid},
			wantErr:   apperrors.ErrConflict,
		},
		{
			name:      "тест не найден",
			loadErr:   apperrors.ErrNotFound,
			questions: []entity.Question{valid},
			wantErr:   ErrTestNotFound,
		},
		{
			name:      "неизвестная секция",
			test:      draftTest(),
			questions: []entity.Question{{Type: entity.QuestionSingle, Text: "Q", Section: "Optics", Options: entity.OptionList{{Text: "a"}}}},
			wantErr:   apperrors.ErrValidation,
		},
		{
			name: "повторяющиеся варианты",
			test: draftTest(),
			questions: []entity.Question{{Type: entity.QuestionMultiple, Text: "Q", Options: entity.OptionList{
				{Text: "A", IsCorrect: true}, {Text: " A ", IsCorrect: true},
			}}},
			wantErr: apperrors.ErrValidation,
		},
		{
			name: "текст варианта совпадает с позиционным идентификатором",
			test: draftTest(),
			questions: []entity.Question{{Type: entity.QuestionSingle, Text: "Q", Options: entity.OptionList{
				{Text: "option_1"}, {Text: "", IsCorrect: true},
			}}},
			wantErr: apperrors.ErrValidation,
		},
		{
			name:    "пустой список",
			test:    draftTest(),
			wantErr: apperrors.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			repo := new(MockTestRepository)
			questions := new(MockQuestionRepository)
			svc := NewCatalogService(repo, questions, nil, time.Minute)
			if tt.test != nil || tt.loadErr != nil {
				repo.On("GetWithQuestions", mock.Anything, uint(8)).Return(tt.test, tt.loadErr).Maybe()
			}

			// Act
			_, err := svc.AddQuestions(context.Background(), 8, tt.questions)

			// Assert
			assert.ErrorIs(t, err, tt.wantErr)
			questions.AssertNotCalled(t, "AppendToTest", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}
