package attemptmanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/examprep-api/internal/domain/entity"
)

func singleChoiceTest() *entity.Test {
	return &entity.Test{
		ID:           1,
		TotalMarks:   2,
		PassingMarks: 50,
		Questions: []entity.Question{
			{
				ID:            10,
				Type:          entity.QuestionSingle,
				Section:       "Math",
				Marks:         2,
				NegativeMarks: 0.5,
				Options:       entity.OptionList{{Text: "A"}, {Text: "B", IsCorrect: true}, {Text: "C"}},
			},
		},
	}
}

func TestScoreAttempt_SingleChoice(t *testing.T) {
	tests := []struct {
		name       string
		answers    []entity.AttemptAnswer
		score      float64
		correct    int
		incorrect  int
		unanswered int
		passed     bool
	}{
		{
			name:    "правильный ответ",
			answers: []entity.AttemptAnswer{{QuestionID: 10, SelectedOptions: entity.StringArray{"B"}}},
			score:   2, correct: 1, passed: true,
		},
		{
			name:    "неправильный ответ со штрафом",
			answers: []entity.AttemptAnswer{{QuestionID: 10, SelectedOptions: entity.StringArray{"A"}}},
			score:   -0.5, incorrect: 1,
		},
		{
			name:       "без ответа",
			answers:    nil,
			score:      0,
			unanswered: 1,
		},
		{
			name:       "пустой выбор считается пропуском",
			answers:    []entity.AttemptAnswer{{QuestionID: 10, SelectedOptions: entity.StringArray{}}},
			score:      0,
			unanswered: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			result := ScoreAttempt(singleChoiceTest(), tt.answers)

			// Assert
			assert.Equal(t, tt.score, result.Score)
			assert.Equal(t, tt.correct, result.CorrectAnswers)
			assert.Equal(t, tt.incorrect, result.IncorrectAnswers)
			assert.Equal(t, tt.unanswered, result.UnansweredQuestions)
			assert.Equal(t, tt.passed, result.IsPassed)
			assert.Equal(t, 1, result.TotalQuestions)
		})
	}
}

func TestScoreAttempt_MarksAnswersInPlace(t *testing.T) {
	// Arrange
	answers := []entity.AttemptAnswer{{QuestionID: 10, SelectedOptions: entity.StringArray{"A"}}}

	// Act
	ScoreAttempt(singleChoiceTest(), answers)

	// Assert
	require.NotNil(t, answers[0].IsCorrect)
	assert.False(t, *answers[0].IsCorrect)
	assert.Equal(t, -0.5, answers[0].MarksAwarded, "Штраф записывается в ответ")
}

func TestIsAnswerCorrect_MultipleExactMatch(t *testing.T) {
	// Arrange
	q := &entity.Question{
		Type:    entity.QuestionMultiple,
		Options: entity.OptionList{{Text: "A", IsCorrect: true}, {Text: "B"}, {Text: "C", IsCorrect: true}},
	}

	// Act & Assert
	assert.True(t, IsAnswerCorrect(q, []string{"A", "C"}))
	assert.True(t, IsAnswerCorrect(q, []string{"C", "A"}), "Порядок выбора не важен")
	assert.False(t, IsAnswerCorrect(q, []string{"A"}), "Частичный выбор не засчитывается")
	assert.False(t, IsAnswerCorrect(q, []string{"A", "B", "C"}), "Лишний вариант делает ответ неверным")
	assert.False(t, IsAnswerCorrect(q, []string{"A", "A"}), "Повтор не заменяет недостающий вариант")
}

func TestIsAnswerCorrect_NoCorrectOption(t *testing.T) {
	// Arrange
	q := &entity.Question{
		Type:    entity.QuestionSingle,
		Options: entity.OptionList{{Text: "A"}, {Text: "B"}},
	}

	// Act & Assert
	assert.False(t, IsAnswerCorrect(q, []string{"A"}), "Без правильного варианта вопрос всегда неверный")
}

func TestIsAnswerCorrect_PositionalIdentifier(t *testing.T) {
	// Arrange
	q := &entity.Question{
		Type:    entity.QuestionNumerical,
		Options: entity.OptionList{{Text: ""}, {Text: "", IsCorrect: true}},
	}

	// Act & Assert
	assert.True(t, IsAnswerCorrect(q, []string{"option_1"}))
	assert.False(t, IsAnswerCorrect(q, []string{"option_0"}))
}

func TestIsAnswerCorrect_OptionTextWithSpaces(t *testing.T) {
	// Arrange
	q := &entity.Question{
		Type:          entity.QuestionSingle,
		NegativeMarks: 1,
		Options:       entity.OptionList{{Text: "42 ", IsCorrect: true}, {Text: "41"}},
	}
	answers := []entity.AttemptAnswer{{QuestionID: 0, SelectedOptions: entity.StringArray{q.Identifiers()[0]}}}

	// Act
	result := ScoreAttempt(&entity.Test{TotalMarks: 1, Questions: []entity.Question{*q}}, answers)

	// Assert
	assert.True(t, IsAnswerCorrect(q, []string{q.Identifiers()[0]}), "Выбор объявленного идентификатора должен засчитываться")
	assert.True(t, IsAnswerCorrect(q, []string{"42"}))
	assert.False(t, IsAnswerCorrect(q, []string{"41"}))
	assert.Equal(t, 1.0, result.Score, "Штраф не должен начисляться за правильный ответ")
	assert.Equal(t, 1, result.CorrectAnswers)
}

func TestIsAnswerCorrect_MultipleWithRepeatedCorrectText(t *testing.T) {
	// Arrange
	q := &entity.Question{
		Type:    entity.QuestionMultiple,
		Options: entity.OptionList{{Text: "A", IsCorrect: true}, {Text: "A", IsCorrect: true}, {Text: "B"}},
	}

	// Act & Assert
	assert.True(t, IsAnswerCorrect(q, []string{"A"}))
	assert.True(t, IsAnswerCorrect(q, []string{"A", "A"}))
	assert.False(t, IsAnswerCorrect(q, []string{"A", "B"}))
}

func TestScoreAttempt_SectionBreakdown(t *testing.T) {
	// Arrange
	test := &entity.Test{
		TotalMarks:   5,
		PassingMarks: 40,
		Questions: []entity.Question{
			{ID: 1, Section: "Physics", Type: entity.QuestionSingle, Options: entity.OptionList{{Text: "A", IsCorrect: true}, {Text: "B"}}},
			{ID: 2, Section: "Math", Type: entity.QuestionSingle, Marks: 2, Options: entity.OptionList{{Text: "1"}, {Text: "2", IsCorrect: true}}},
			{ID: 3, Section: "Physics", Type: entity.QuestionSingle, NegativeMarks: 1, Options: entity.OptionList{{Text: "X", IsCorrect: true}, {Text: "Y"}}},
			{ID: 4, Section: "Math", Type: entity.QuestionMultiple, Marks: 2, Options: entity.OptionList{{Text: "p", IsCorrect: true}, {Text: "q", IsCorrect: true}}},
			{ID: 5, Type: entity.QuestionSingle, Options: entity.OptionList{{Text: "yes", IsCorrect: true}}},
		},
	}
	answers := []entity.AttemptAnswer{
		{QuestionID: 4, SelectedOptions: entity.StringArray{"q", "p"}, TimeSpent: 30},
		{QuestionID: 1, SelectedOptions: entity.StringArray{"A"}, TimeSpent: 10},
		{QuestionID: 3, SelectedOptions: entity.StringArray{"Y"}, TimeSpent: 5},
	}

	// Act
	result := ScoreAttempt(test, answers)

	// Assert
	require.Len(t, result.Sections, 3)
	assert.Equal(t, "Physics", result.Sections[0].Section, "Секции идут в порядке первого появления")
	assert.Equal(t, "Math", result.Sections[1].Section)
	assert.Equal(t, DefaultSection, result.Sections[2].Section)

	assert.Equal(t, 2, result.Sections[0].TotalQuestions)
	assert.Equal(t, 2, result.Sections[0].AttemptedQuestions)
	assert.Equal(t, 0.0, result.Sections[0].Score) // +1 и -1
	assert.Equal(t, 15, result.Sections[0].TimeSpent)
	assert.Equal(t, 2.0, result.Sections[1].Score)

	sumAttempted, sumTotal := 0, 0
	for _, s := range result.Sections {
		sumAttempted += s.AttemptedQuestions
		sumTotal += s.TotalQuestions
	}
	assert.Equal(t, result.AttemptedQuestions, sumAttempted, "Сумма attempted по секциям равна общему")
	assert.Equal(t, result.TotalQuestions, sumTotal, "Сумма вопросов по секциям равна общему")

	assert.Equal(t, 2.0, result.Score)
	assert.Equal(t, 40, result.Percentage)
	assert.True(t, result.IsPassed, "40% >= порога 40")
	assert.Equal(t, 2, result.UnansweredQuestions)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0, Percentage(10, 0), "Нулевой знаменатель дает 0%")
	assert.Equal(t, 33, Percentage(1, 3))
	assert.Equal(t, 67, Percentage(2, 3))
	assert.Equal(t, -25, Percentage(-1, 4))
	assert.Equal(t, 100, Percentage(5, 5))
}
