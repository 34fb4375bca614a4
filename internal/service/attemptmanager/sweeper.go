package attemptmanager

import (
	"context"
	"log"
	"time"
)

const sweepLockKey = "attempts:sweep:lock"

// OverdueCloser закрывает попытки, у которых истекло время
type OverdueCloser interface {
	CloseOverdue(ctx context.Context, limit int) (int, error)
}

// Locker - распределенная блокировка (SETNX в Redis)
type Locker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
}

// Sweeper периодически закрывает просроченные попытки, до которых не дошел ни один канал
type Sweeper struct {
	config *Config
	closer OverdueCloser
	locker Locker
}

// NewSweeper создает фоновый сборщик просроченных попыток
func NewSweeper(config *Config, closer OverdueCloser, locker Locker) *Sweeper {
	return &Sweeper{config: config, closer: closer, locker: locker}
}

// Run выполняет проходы до отмены ctx
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	log.Printf("[Sweeper] Запущен, интервал %v", s.config.SweepInterval)
	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-ctx.Done():
			log.Println("[Sweeper] Остановлен")
			return
		}
	}
}

// SweepOnce выполняет один проход, если удалось взять блокировку
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	if s.locker != nil {
		acquired, err := s.locker.SetNX(ctx, sweepLockKey, time.Now().Unix(), s.config.sweepLockLifetime())
		if err != nil {
			log.Printf("[Sweeper] Ошибка получения блокировки: %v. Выполняю проход без нее.", err)
		} else if !acquired {
			return 0
		}
	}

	closed, err := s.closer.CloseOverdue(ctx, s.config.SweepBatchSize)
	if err != nil {
		log.Printf("[Sweeper] Ошибка закрытия просроченных попыток: %v", err)
	}
	if closed > 0 {
		log.Printf("[Sweeper] Автоматически сдано %d просроченных попыток", closed)
	}
	return closed
}
