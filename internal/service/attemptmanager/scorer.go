package attemptmanager

import (
	"math"
	"strings"

	"github.com/yourusername/examprep-api/internal/domain/entity"
)

// ScoreResult - итог подсчета баллов попытки
type ScoreResult struct {
	TotalQuestions      int
	AttemptedQuestions  int
	CorrectAnswers      int
	IncorrectAnswers    int
	UnansweredQuestions int
	Score               float64
	Percentage          int
	IsPassed            bool
	Sections            entity.SectionScores
}

// sectionAccumulator собирает итоги секций в порядке первого появления
type sectionAccumulator struct {
	order []string
	byKey map[string]*entity.SectionScore
}

func newSectionAccumulator() *sectionAccumulator {
	return &sectionAccumulator{byKey: make(map[string]*entity.SectionScore)}
}

func (s *sectionAccumulator) get(name string) *entity.SectionScore {
	if acc, ok := s.byKey[name]; ok {
		return acc
	}
	acc := &entity.SectionScore{Section: name}
	s.byKey[name] = acc
	s.order = append(s.order, name)
	return acc
}

func (s *sectionAccumulator) list() entity.SectionScores {
	out := make(entity.SectionScores, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *s.byKey[name])
	}
	return out
}

// ScoreAttempt оценивает ответы по определению теста.
// Вопросы обходятся в порядке списка теста; answers изменяются на месте:
// IsCorrect и MarksAwarded заполняются для ответов на вопросы теста.
func ScoreAttempt(test *entity.Test, answers []entity.AttemptAnswer) ScoreResult {
	byQuestion := make(map[uint]*entity.AttemptAnswer, len(answers))
	for i := range answers {
		answers[i].IsCorrect = nil
		answers[i].MarksAwarded = 0
		byQuestion[answers[i].QuestionID] = &answers[i]
	}

	sections := newSectionAccumulator()
	var result ScoreResult

	for i := range test.Questions {
		q := &test.Questions[i]
		sectionName := q.Section
		if sectionName == "" {
			sectionName = DefaultSection
		}
		section := sections.get(sectionName)
		section.TotalQuestions++
		result.TotalQuestions++

		answer, ok := byQuestion[q.ID]
		if ok {
			section.TimeSpent += answer.TimeSpent
		}
		if !ok || !answer.IsAnswered() {
			result.UnansweredQuestions++
			continue
		}

		result.AttemptedQuestions++
		section.AttemptedQuestions++

		correct := IsAnswerCorrect(q, answer.SelectedOptions)
		answer.IsCorrect = &correct
		if correct {
			answer.MarksAwarded = q.MarksOrDefault()
			result.CorrectAnswers++
			section.CorrectAnswers++
		} else {
			answer.MarksAwarded = -q.Penalty()
			result.IncorrectAnswers++
			section.IncorrectAnswers++
		}
		section.Score += answer.MarksAwarded
		result.Score += answer.MarksAwarded
	}

	result.Sections = sections.list()
	result.Percentage = Percentage(result.Score, test.TotalMarks)
	result.IsPassed = float64(result.Percentage) >= test.PassingMarks
	return result
}

// IsAnswerCorrect проверяет выбор студента.
// multiple: множество выбранных идентификаторов точно совпадает с множеством правильных.
// single / numerical: выбранный идентификатор равен единственному правильному;
// если правильного варианта нет, ответ неверный.
func IsAnswerCorrect(q *entity.Question, selected []string) bool {
	chosen := normalizeSelection(selected)
	correct := normalizeSelection(q.CorrectIdentifiers())

	if q.Type == entity.QuestionMultiple {
		if len(correct) == 0 || len(chosen) != len(correct) {
			return false
		}
		set := make(map[string]struct{}, len(chosen))
		for _, c := range chosen {
			set[c] = struct{}{}
		}
		for _, c := range correct {
			if _, ok := set[c]; !ok {
				return false
			}
		}
		return true
	}

	if len(correct) == 0 || len(chosen) == 0 {
		return false
	}
	return chosen[0] == correct[0]
}

// normalizeSelection убирает пустые и повторяющиеся идентификаторы, сохраняя порядок
func normalizeSelection(selected []string) []string {
	seen := make(map[string]struct{}, len(selected))
	out := make([]string, 0, len(selected))
	for _, s := range selected {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Percentage возвращает round(score / totalMarks * 100); при totalMarks <= 0 - 0
func Percentage(score, totalMarks float64) int {
	if totalMarks <= 0 {
		return 0
	}
	return roundHalfUp(score / totalMarks * 100)
}

// roundHalfUp округляет .5 вверх (к +∞), в том числе для отрицательных значений
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
