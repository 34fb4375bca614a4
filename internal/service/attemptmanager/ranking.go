package attemptmanager

import (
	"sort"
	"time"

	"github.com/yourusername/examprep-api/internal/domain/entity"
)

// ComputeStandings пересчитывает места с нуля по всем зачтенным попыткам теста.
// Порядок: балл по убыванию, затем более ранняя сдача, затем меньший ID.
func ComputeStandings(attempts []entity.Attempt) []entity.Standing {
	ordered := make([]entity.Attempt, len(attempts))
	copy(ordered, attempts)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		at, bt := submittedAt(a), submittedAt(b)
		if !at.Equal(bt) {
			return at.Before(bt)
		}
		return a.ID < b.ID
	})

	total := len(ordered)
	standings := make([]entity.Standing, total)
	for idx, a := range ordered {
		standings[idx] = entity.Standing{
			AttemptID:  a.ID,
			Rank:       idx + 1,
			Percentile: Percentile(idx, total),
		}
	}
	return standings
}

// Percentile возвращает round(((total - index) / total) * 100), 100 при total == 1
func Percentile(index, total int) int {
	if total <= 1 {
		return 100
	}
	return roundHalfUp(float64(total-index) / float64(total) * 100)
}

func submittedAt(a entity.Attempt) time.Time {
	if a.SubmittedAt != nil {
		return *a.SubmittedAt
	}
	return time.Time{}
}
