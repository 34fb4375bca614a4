package attemptmanager

import (
	"context"
	"log"
	"sync"
	"time"
)

// ExpireFunc вызывается, когда срабатывает таймер попытки.
// Реализация обязана заново прочитать попытку и проверить ее статус.
type ExpireFunc func(ctx context.Context, attemptID uint)

// expiryTimer - один запланированный таймер попытки
type expiryTimer struct {
	cancel   context.CancelFunc
	deadline time.Time
}

// ExpiryScheduler держит по одному одноразовому таймеру на присоединенную попытку
type ExpiryScheduler struct {
	ctx      context.Context
	onExpire ExpireFunc

	timers sync.Map // map[uint]*expiryTimer
	wg     sync.WaitGroup
}

// NewExpiryScheduler создает планировщик таймеров истечения попыток
func NewExpiryScheduler(ctx context.Context, onExpire ExpireFunc) *ExpiryScheduler {
	return &ExpiryScheduler{
		ctx:      ctx,
		onExpire: onExpire,
	}
}

// Schedule планирует автосдачу попытки в момент deadline.
// Повторный вызов для той же попытки заменяет предыдущий таймер.
func (s *ExpiryScheduler) Schedule(attemptID uint, deadline time.Time) {
	timerCtx, cancel := context.WithCancel(s.ctx)
	t := &expiryTimer{cancel: cancel, deadline: deadline}

	if prev, loaded := s.timers.Swap(attemptID, t); loaded {
		prev.(*expiryTimer).cancel()
	}

	s.wg.Add(1)
	go s.run(timerCtx, attemptID, t)

	log.Printf("[ExpiryScheduler] Попытка #%d: таймер истечения через %v", attemptID, time.Until(deadline).Round(time.Second))
}

func (s *ExpiryScheduler) run(ctx context.Context, attemptID uint, t *expiryTimer) {
	defer s.wg.Done()
	defer s.timers.CompareAndDelete(attemptID, t)

	wait := time.Until(t.deadline)
	if wait < 0 {
		wait = 0
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		// Убираем таймер до onExpire: автосдача сама вызывает Cancel для попытки
		s.timers.CompareAndDelete(attemptID, t)
		log.Printf("[ExpiryScheduler] Попытка #%d: время вышло, запускаю автосдачу", attemptID)
		s.onExpire(s.ctx, attemptID)
	case <-ctx.Done():
		return
	}
}

// Cancel отменяет таймер попытки. Возвращает true, если таймер был.
func (s *ExpiryScheduler) Cancel(attemptID uint) bool {
	v, ok := s.timers.LoadAndDelete(attemptID)
	if !ok {
		return false
	}
	v.(*expiryTimer).cancel()
	log.Printf("[ExpiryScheduler] Попытка #%d: таймер отменен", attemptID)
	return true
}

// IsScheduled сообщает, есть ли активный таймер для попытки
func (s *ExpiryScheduler) IsScheduled(attemptID uint) bool {
	_, ok := s.timers.Load(attemptID)
	return ok
}

// Pending возвращает число активных таймеров
func (s *ExpiryScheduler) Pending() int {
	n := 0
	s.timers.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// Stop отменяет все таймеры и дожидается завершения горутин
func (s *ExpiryScheduler) Stop() {
	s.timers.Range(func(key, value interface{}) bool {
		value.(*expiryTimer).cancel()
		s.timers.Delete(key)
		return true
	})
	s.wg.Wait()
}
