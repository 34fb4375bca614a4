package entity

// Standing - место попытки среди зачтенных попыток теста
type Standing struct {
	AttemptID  uint `json:"attempt_id"`
	Rank       int  `json:"rank"`
	Percentile int  `json:"percentile"`
}

// TestStats - агрегированная статистика по зачтенным попыткам теста
type TestStats struct {
	TestID        uint    `json:"test_id"`
	TotalAttempts int64   `json:"total_attempts"`
	PassedCount   int64   `json:"passed_count"`
	AverageScore  float64 `json:"average_score"`
	HighestScore  float64 `json:"highest_score"`
	LowestScore   float64 `json:"lowest_score"`
	PassRate      float64 `json:"pass_rate"` // доля в процентах
}
