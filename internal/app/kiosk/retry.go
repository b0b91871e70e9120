package kiosk

import (
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

type retryTimer interface {
	Stop() bool
}

// RetryScheduler взводит отложенные повторы доставки с экспоненциальной
// задержкой. На каждую запись существует не более одного таймера: повторное
// планирование отменяет предыдущий. Сработавший таймер передает управление
// одиночному пути повтора движка синхронизации, не полному проходу.
type RetryScheduler struct {
	mu        sync.Mutex
	timers    map[string]retryTimer
	baseDelay time.Duration
	maxDelay  time.Duration
	fire      func(id string)
	afterFunc func(d time.Duration, f func()) retryTimer
	log       *slog.Logger
}

func NewRetryScheduler(baseDelay, maxDelay time.Duration, fire func(id string), log *slog.Logger) *RetryScheduler {
	return &RetryScheduler{
		timers:    make(map[string]retryTimer),
		baseDelay: baseDelay,
		maxDelay:  maxDelay,
		fire:      fire,
		afterFunc: func(d time.Duration, f func()) retryTimer {
			return time.AfterFunc(d, f)
		},
		log: log,
	}
}

// Delay возвращает задержку перед повтором: baseDelay * 2^attempt,
// ограниченную maxDelay
func (s *RetryScheduler) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		return s.maxDelay
	}

	delay := s.baseDelay << uint(attempt)
	if delay <= 0 || delay > s.maxDelay {
		return s.maxDelay
	}
	return delay
}

// Schedule взводит таймер повтора для записи
func (s *RetryScheduler) Schedule(id string, attempt int) {
	delay := s.Delay(attempt)

	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[id]; ok {
		timer.Stop()
	}

	s.timers[id] = s.afterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()

		s.fire(id)
	})

	s.log.Debug("Запланирован повтор доставки",
		"id", id,
		"attempt", attempt,
		"delay", delay,
	)
}

// Cancel снимает таймер записи. Идемпотентна: отсутствие таймера не ошибка.
func (s *RetryScheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
}

// CancelAll снимает все таймеры (остановка движка)
func (s *RetryScheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// Pending сообщает, взведен ли таймер для записи
func (s *RetryScheduler) Pending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.timers[id]
	return ok
}
