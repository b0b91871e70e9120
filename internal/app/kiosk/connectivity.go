package kiosk

import (
	"context"
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

// Prober источник сигнала о доступности сети. В продакшене это health-check
// сервера приема отзывов.
type Prober interface {
	HealthCheck(ctx context.Context) error
}

// ConnectivityMonitor отслеживает переходы online/offline. Подписка
// срабатывает по фронту: ровно один раз на каждый переход offline→online,
// повторные опросы в online состоянии колбэки не дергают.
type ConnectivityMonitor struct {
	prober   Prober
	log      *slog.Logger
	interval time.Duration

	mu        sync.Mutex
	online    bool
	listeners map[int]func()
	nextID    int
}

func NewConnectivityMonitor(prober Prober, interval time.Duration, log *slog.Logger) *ConnectivityMonitor {
	return &ConnectivityMonitor{
		prober:    prober,
		log:       log,
		interval:  interval,
		listeners: make(map[int]func()),
	}
}

// IsOnline возвращает текущее состояние сети (best-effort)
func (m *ConnectivityMonitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnOnline регистрирует колбэк на переход offline→online.
// Возвращает функцию отписки.
func (m *ConnectivityMonitor) OnOnline(callback func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = callback

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// SetOnline фиксирует новое состояние сети. Вызывается циклом опроса и
// движком синхронизации (неудавшаяся отправка — тоже сигнал offline).
func (m *ConnectivityMonitor) SetOnline(online bool) {
	m.mu.Lock()

	wasOnline := m.online
	m.online = online

	var callbacks []func()
	if online && !wasOnline {
		for _, cb := range m.listeners {
			callbacks = append(callbacks, cb)
		}
	}
	m.mu.Unlock()

	if online != wasOnline {
		m.log.Info("Состояние сети изменилось", "online", online)
	}

	// Колбэки вызываем вне блокировки
	for _, cb := range callbacks {
		cb()
	}
}

// Run запускает цикл опроса. Первая проверка выполняется сразу.
func (m *ConnectivityMonitor) Run(ctx context.Context) {
	m.probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("Монитор сети остановлен")
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *ConnectivityMonitor) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := m.prober.HealthCheck(probeCtx)
	m.SetOnline(err == nil)
}
