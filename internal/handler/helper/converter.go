package helper

import (
	"log"

	"github.com/jinzhu/copier"

	"github.com/yourusername/examprep-api/internal/domain/entity"
	"github.com/yourusername/examprep-api/internal/handler/dto"
	"github.com/yourusername/examprep-api/internal/service"
)

// ToAttemptResponse преобразует попытку в DTO ответа.
// Правильность ответов не раскрывается: для этого есть разбор попытки.
func ToAttemptResponse(a *entity.Attempt) dto.AttemptResponse {
	var resp dto.AttemptResponse
	if a == nil {
		return resp
	}
	if err := copier.Copy(&resp, a); err != nil {
		log.Printf("[Converter] Ошибка копирования попытки #%d: %v", a.ID, err)
	}
	resp.ViolationCount = a.Violations.CountTowardsLimit()
	if resp.SectionWiseScore == nil {
		resp.SectionWiseScore = []entity.SectionScore{}
	}
	return resp
}

// ToAttemptResponses преобразует список попыток
func ToAttemptResponses(attempts []entity.Attempt) []dto.AttemptResponse {
	out := make([]dto.AttemptResponse, 0, len(attempts))
	for i := range attempts {
		out = append(out, ToAttemptResponse(&attempts[i]))
	}
	return out
}

// ToAttemptResult преобразует закрытую попытку в итог для событий реального времени
func ToAttemptResult(a *entity.Attempt, reason string) dto.AttemptResult {
	var res dto.AttemptResult
	if err := copier.Copy(&res, a); err != nil {
		log.Printf("[Converter] Ошибка копирования итога попытки #%d: %v", a.ID, err)
	}
	res.Reason = reason
	if res.SectionWiseScore == nil {
		res.SectionWiseScore = []entity.SectionScore{}
	}
	return res
}

// ToTimeResponse преобразует серверный расчет времени
func ToTimeResponse(a *entity.Attempt, info service.TimeInfo) dto.AttemptTimeResponse {
	return dto.AttemptTimeResponse{
		AttemptID:     a.ID,
		Status:        string(a.Status),
		ServerTime:    info.ServerTime,
		TimeRemaining: info.TimeRemaining,
		TimeElapsed:   info.TimeElapsed,
		Deadline:      info.Deadline,
		Expired:       a.Status.IsTerminal() || !info.ServerTime.Before(info.Deadline),
	}
}

// ToTestResponse возвращает тест для студента: варианты отдаются
// идентификаторами, признаки правильности не попадают в ответ
func ToTestResponse(t *entity.Test) dto.TestResponse {
	resp := dto.TestResponse{
		ID:              t.ID,
		Title:           t.Title,
		Description:     t.Description,
		IsPaid:          t.IsPaid,
		AttemptsAllowed: t.AttemptsAllowed,
		Duration:        t.TotalDuration(),
		TotalMarks:      t.TotalMarks,
		PassingMarks:    t.PassingMarks,
		ValidFrom:       t.ValidFrom,
		ValidUntil:      t.ValidUntil,
		Sections:        make([]dto.SectionResponse, 0, len(t.Sections)),
		Questions:       make([]dto.QuestionResponse, 0, len(t.Questions)),
	}
	for _, s := range t.Sections {
		resp.Sections = append(resp.Sections, dto.SectionResponse{Name: s.Name, Duration: s.Duration})
	}
	for i := range t.Questions {
		q := &t.Questions[i]
		resp.Questions = append(resp.Questions, dto.QuestionResponse{
			ID:            q.ID,
			Section:       q.Section,
			Type:          string(q.Type),
			Text:          q.Text,
			Options:       q.Identifiers(),
			Marks:         q.MarksOrDefault(),
			NegativeMarks: q.Penalty(),
		})
	}
	return resp
}

// ToTestEntity собирает определение теста из запроса администратора
func ToTestEntity(req *dto.CreateTestRequest) *entity.Test {
	test := &entity.Test{}
	if err := copier.Copy(test, req); err != nil {
		log.Printf("[Converter] Ошибка копирования теста: %v", err)
	}
	// Тест без явного is_active создается активным
	test.IsActive = req.IsActive == nil || *req.IsActive

	test.Sections = make([]entity.TestSection, 0, len(req.Sections))
	for _, s := range req.Sections {
		test.Sections = append(test.Sections, entity.TestSection{Name: s.Name, Duration: s.Duration})
	}

	test.Questions = ToQuestionEntities(req.Questions)
	return test
}

// ToQuestionEntities собирает вопросы из запроса администратора
func ToQuestionEntities(reqs []dto.CreateQuestionRequest) []entity.Question {
	questions := make([]entity.Question, 0, len(reqs))
	for _, q := range reqs {
		options := make(entity.OptionList, 0, len(q.Options))
		for _, o := range q.Options {
			options = append(options, entity.Option{Text: o.Text, IsCorrect: o.IsCorrect})
		}
		questions = append(questions, entity.Question{
			Section:       q.Section,
			Type:          entity.QuestionType(q.Type),
			Text:          q.Text,
			Options:       options,
			Marks:         q.Marks,
			NegativeMarks: q.NegativeMarks,
		})
	}
	return questions
}

// ToStudentResponse преобразует студента в DTO
func ToStudentResponse(s *entity.Student) dto.StudentResponse {
	return dto.StudentResponse{ID: s.ID, Name: s.Name, Email: s.Email, Role: s.Role}
}

// ToSaveAnswerInput преобразует HTTP-запрос сохранения ответа
func ToSaveAnswerInput(req dto.SaveAnswerRequest) service.SaveAnswerInput {
	return service.SaveAnswerInput{
		QuestionID:        req.QuestionID,
		SelectedOptions:   req.SelectedOptions,
		IsMarkedForReview: req.IsMarkedForReview,
		TimeSpent:         req.TimeSpent,
		Section:           req.Section,
	}
}
