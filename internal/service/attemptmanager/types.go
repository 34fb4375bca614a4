package attemptmanager

import (
	"time"
)

// Значения по умолчанию
const (
	DefaultViolationThreshold = 5
	DefaultSweepBatchSize     = 100
	// DefaultSection используется для вопросов без секции
	DefaultSection = "General"
)

// Config содержит настройки движка попыток
type Config struct {
	// ViolationThreshold: после стольких нарушений попытка завершается принудительно
	ViolationThreshold int
	// SweepInterval: период фоновой проверки просроченных попыток
	SweepInterval time.Duration
	// SweepBatchSize: сколько просроченных попыток закрывать за один проход
	SweepBatchSize int
	// SweepLockTTL: время жизни распределенной блокировки прохода,
	// всегда меньше SweepInterval
	SweepLockTTL time.Duration
	// TestCacheTTL: время жизни кеша определения теста
	TestCacheTTL time.Duration
	// StatsCacheTTL: время жизни кеша статистики теста
	StatsCacheTTL time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		ViolationThreshold: DefaultViolationThreshold,
		SweepInterval:      30 * time.Second,
		SweepBatchSize:     DefaultSweepBatchSize,
		SweepLockTTL:       sweepLockTTLFor(30 * time.Second),
		TestCacheTTL:       10 * time.Minute,
		StatsCacheTTL:      time.Minute,
	}
}

// SetSweepInterval задает период прохода и согласованный с ним TTL блокировки
func (c *Config) SetSweepInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	c.SweepInterval = interval
	c.SweepLockTTL = sweepLockTTLFor(interval)
}

// sweepLockLifetime возвращает TTL блокировки; слишком длинный TTL заменяется
// производным от интервала, иначе следующий тик не возьмет блокировку
func (c *Config) sweepLockLifetime() time.Duration {
	if c.SweepLockTTL > 0 && c.SweepLockTTL < c.SweepInterval {
		return c.SweepLockTTL
	}
	return sweepLockTTLFor(c.SweepInterval)
}

// sweepLockTTLFor: блокировка истекает раньше следующего тика
func sweepLockTTLFor(interval time.Duration) time.Duration {
	return interval - interval/6
}
