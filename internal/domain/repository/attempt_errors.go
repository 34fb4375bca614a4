package repository

import "errors"

var (
	// ErrAttemptInProgressExists означает, что у студента уже есть попытка in-progress по этому тесту
	// (сработал частичный уникальный индекс idx_attempts_single_in_progress).
	ErrAttemptInProgressExists = errors.New("attempt already in progress for this test")
	// ErrAttemptNotInProgress означает, что попытка уже в терминальном состоянии.
	ErrAttemptNotInProgress = errors.New("attempt is not in progress")
	// ErrAttemptDeadlinePassed означает, что на момент записи время попытки закончилось.
	ErrAttemptDeadlinePassed = errors.New("attempt deadline has passed")
)
