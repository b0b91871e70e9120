package kiosk

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/exp/slog"

	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/feedback"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/queue"
)

// Transport операции удаленного сервиса, которыми движок доставляет записи
type Transport interface {
	SubmitFeedback(ctx context.Context, req feedback.SubmitRequest) (*feedback.SubmitResponse, error)
	DispatchQueueEntry(ctx context.Context, entry *queue.Entry) error
}

// SyncConfig конфигурация движка синхронизации
type SyncConfig struct {
	Interval        time.Duration `json:"interval"`
	BatchSize       int           `json:"batch_size"`
	MaxRetries      int           `json:"max_retries"`
	QueueMaxRetries int           `json:"queue_max_retries"`
	BaseRetryDelay  time.Duration `json:"base_retry_delay"`
	MaxRetryDelay   time.Duration `json:"max_retry_delay"`
	GracePeriod     time.Duration `json:"grace_period"`
}

// DefaultSyncConfig значения по умолчанию
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Interval:        30 * time.Second,
		BatchSize:       5,
		MaxRetries:      3,
		QueueMaxRetries: 5,
		BaseRetryDelay:  2 * time.Second,
		MaxRetryDelay:   5 * time.Minute,
		GracePeriod:     24 * time.Hour,
	}
}

// SyncStatus снимок состояния синхронизации. Не персистится: вычисляется
// по запросу из хранилища и монитора сети.
type SyncStatus struct {
	IsOnline     bool      `json:"is_online"`
	IsSyncing    bool      `json:"is_syncing"`
	PendingCount int       `json:"pending_count"`
	LastSyncAt   time.Time `json:"last_sync_at"`
	SyncError    string    `json:"sync_error,omitempty"`
}

// SyncStats накопительная статистика работы движка
type SyncStats struct {
	TotalPasses    int `json:"total_passes"`
	TotalSubmitted int `json:"total_submitted"`
	TotalSkipped   int `json:"total_skipped"`
	TotalFailed    int `json:"total_failed"`
}

// SyncService управляет доставкой накопленных записей на сервер.
// Состояния записи: pending → syncing → {synced | failed};
// failed → syncing через запланированный или ручной повтор, пока не
// исчерпана квота попыток. Два полных прохода никогда не идут одновременно
// (isSyncing), одна запись никогда не находится в полете дважды (activeIDs).
type SyncService struct {
	storage   Storage
	transport Transport
	resolver  *DuplicateResolver
	scheduler *RetryScheduler
	monitor   *ConnectivityMonitor
	log       *slog.Logger
	config    SyncConfig

	mu          sync.Mutex
	isSyncing   bool
	activeIDs   map[string]struct{}
	lastSyncAt  time.Time
	syncErr     string
	stats       SyncStats
	subscribers map[int]func(SyncStatus)
	nextSubID   int
}

// NewSyncService создает движок. Планировщик повторов создается внутри и
// замыкается на одиночный путь повтора.
func NewSyncService(storage Storage, transport Transport, resolver *DuplicateResolver,
	monitor *ConnectivityMonitor, config SyncConfig, log *slog.Logger) *SyncService {

	s := &SyncService{
		storage:     storage,
		transport:   transport,
		resolver:    resolver,
		monitor:     monitor,
		log:         log,
		config:      config,
		activeIDs:   make(map[string]struct{}),
		subscribers: make(map[int]func(SyncStatus)),
	}

	s.scheduler = NewRetryScheduler(config.BaseRetryDelay, config.MaxRetryDelay, s.retryEntry, log)

	return s
}

// Scheduler возвращает планировщик повторов движка
func (s *SyncService) Scheduler() *RetryScheduler {
	return s.scheduler
}

// Run запускает периодическую синхронизацию и подписку на появление сети.
// Блокируется до отмены контекста.
func (s *SyncService) Run(ctx context.Context) {
	unsubscribe := s.monitor.OnOnline(func() {
		go func() {
			if err := s.SyncAll(ctx); err != nil {
				s.log.Error("Ошибка синхронизации по появлению сети", "error", err)
			}
		}()
	})
	defer unsubscribe()
	defer s.scheduler.CancelAll()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Синхронизация остановлена")
			return
		case <-ticker.C:
			if err := s.SyncAll(ctx); err != nil {
				s.log.Error("Ошибка периодической синхронизации", "error", err)
			}
		}
	}
}

// NotifyAdded сигнал продюсера о новой записи. В online режиме сразу
// запускает проход.
func (s *SyncService) NotifyAdded() {
	if !s.monitor.IsOnline() {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.SyncAll(ctx); err != nil {
			s.log.Error("Ошибка синхронизации по добавлению записи", "error", err)
		}
	}()
}

// ForceSync принудительный запуск прохода по требованию пользователя
func (s *SyncService) ForceSync(ctx context.Context) error {
	if !s.monitor.IsOnline() {
		return errors.New("киоск offline: синхронизация невозможна")
	}
	return s.SyncAll(ctx)
}

// SyncAll выполняет один полный проход: отзывы пакетами, затем общая
// очередь, затем чистка synced записей. Триггеры не ставятся в очередь:
// если проход уже идет или сети нет, возврат немедленный.
func (s *SyncService) SyncAll(ctx context.Context) error {
	if !s.monitor.IsOnline() {
		return nil
	}

	s.mu.Lock()
	if s.isSyncing {
		s.mu.Unlock()
		return nil
	}
	s.isSyncing = true
	s.stats.TotalPasses++
	s.mu.Unlock()

	s.publish()

	defer func() {
		s.mu.Lock()
		s.isSyncing = false
		s.mu.Unlock()
		s.publish()
	}()

	entries, err := s.storage.ListPendingFeedback(ctx)
	if err != nil {
		// Без хранилища продолжать нечем: StorageError прерывает весь проход
		s.setSyncError(err.Error())
		return err
	}

	s.log.Debug("Начало прохода синхронизации", "pending_feedback", len(entries))

	for start := 0; start < len(entries); start += s.config.BatchSize {
		end := start + s.config.BatchSize
		if end > len(entries) {
			end = len(entries)
		}

		var wg sync.WaitGroup
		for _, entry := range entries[start:end] {
			wg.Add(1)
			go func(e *feedback.Entry) {
				defer wg.Done()
				s.processFeedbackEntry(ctx, e)
			}(entry)
		}
		wg.Wait()
	}

	queueEntries, err := s.storage.ListPendingQueue(ctx)
	if err != nil {
		s.setSyncError(err.Error())
		return err
	}

	for start := 0; start < len(queueEntries); start += s.config.BatchSize {
		end := start + s.config.BatchSize
		if end > len(queueEntries) {
			end = len(queueEntries)
		}

		var wg sync.WaitGroup
		for _, entry := range queueEntries[start:end] {
			wg.Add(1)
			go func(e *queue.Entry) {
				defer wg.Done()
				s.processQueueEntry(ctx, e)
			}(entry)
		}
		wg.Wait()
	}

	if _, err := s.storage.PurgeSynced(ctx, s.config.GracePeriod); err != nil {
		s.log.Warn("Ошибка чистки synced записей", "error", err)
	}

	s.mu.Lock()
	s.lastSyncAt = time.Now()
	s.syncErr = ""
	s.mu.Unlock()

	return nil
}

// processFeedbackEntry доставляет один отзыв: проверка дубликата, затем
// отправка. Ошибки записи не покидают проход — фиксируются на записи.
func (s *SyncService) processFeedbackEntry(ctx context.Context, entry *feedback.Entry) {
	if !s.acquire(entry.ID) {
		return
	}
	defer s.release(entry.ID)

	// Перечитываем состояние: запись могла быть доставлена другим путем
	// между выборкой и обработкой
	fresh, err := s.storage.GetFeedback(ctx, entry.ID)
	if err != nil {
		s.log.Error("Ошибка чтения записи перед отправкой", "id", entry.ID, "error", err)
		return
	}
	if fresh.Status == feedback.StatusSynced || fresh.Status == feedback.StatusSyncing {
		return
	}
	entry = fresh

	if err := s.storage.UpdateFeedbackStatus(ctx, entry.ID, feedback.StatusSyncing, ""); err != nil {
		s.log.Error("Ошибка перевода записи в syncing", "id", entry.ID, "error", err)
		return
	}

	resolution := s.resolver.Resolve(ctx, entry.Payload)
	if resolution.Strategy == StrategySkip {
		// Сервер уже видел эту сессию: помечаем synced без отправки
		if err := s.storage.SetFeedbackDuplicate(ctx, entry.ID, resolution.ExistingID); err != nil {
			s.log.Error("Ошибка пометки дубликата", "id", entry.ID, "error", err)
			return
		}
		s.scheduler.Cancel(entry.ID)
		s.addStat(func(st *SyncStats) { st.TotalSkipped++ })
		return
	}

	resp, err := s.transport.SubmitFeedback(ctx, feedback.SubmitRequest{
		EntryID:            entry.ID,
		ClientTimestamp:    entry.Payload.SubmittedAt,
		PatientID:          entry.Payload.PatientID,
		MobileNumber:       entry.Payload.MobileNumber,
		ConsultationNumber: entry.Payload.ConsultationNumber,
		Responses:          entry.Payload.Responses,
	})
	if err != nil {
		s.handleEntryFailure(ctx, entryRef{id: entry.ID, maxAttempts: entry.MaxAttempts, kind: kindFeedback}, err)
		return
	}

	if err := s.storage.UpdateFeedbackStatus(ctx, entry.ID, feedback.StatusSynced, ""); err != nil {
		s.log.Error("Ошибка пометки записи synced", "id", entry.ID, "error", err)
		return
	}
	s.scheduler.Cancel(entry.ID)
	s.addStat(func(st *SyncStats) { st.TotalSubmitted++ })

	s.log.Debug("Отзыв доставлен", "id", entry.ID, "session_id", resp.SessionID)
}

// processQueueEntry доставляет одну задачу общей очереди. Проверка
// дубликатов для них не выполняется.
func (s *SyncService) processQueueEntry(ctx context.Context, entry *queue.Entry) {
	if !s.acquire(entry.ID) {
		return
	}
	defer s.release(entry.ID)

	fresh, err := s.storage.GetQueueEntry(ctx, entry.ID)
	if err != nil {
		s.log.Error("Ошибка чтения задачи перед отправкой", "id", entry.ID, "error", err)
		return
	}
	if fresh.Status == feedback.StatusSynced || fresh.Status == feedback.StatusSyncing {
		return
	}
	entry = fresh

	if err := s.storage.UpdateQueueStatus(ctx, entry.ID, feedback.StatusSyncing, ""); err != nil {
		s.log.Error("Ошибка перевода задачи в syncing", "id", entry.ID, "error", err)
		return
	}

	if err := s.transport.DispatchQueueEntry(ctx, entry); err != nil {
		s.handleEntryFailure(ctx, entryRef{id: entry.ID, maxAttempts: entry.MaxAttempts, kind: kindQueue}, err)
		return
	}

	if err := s.storage.UpdateQueueStatus(ctx, entry.ID, feedback.StatusSynced, ""); err != nil {
		s.log.Error("Ошибка пометки задачи synced", "id", entry.ID, "error", err)
		return
	}
	s.scheduler.Cancel(entry.ID)
	s.addStat(func(st *SyncStats) { st.TotalSubmitted++ })
}

type entryKind int

const (
	kindFeedback entryKind = iota
	kindQueue
)

type entryRef struct {
	id          string
	maxAttempts int
	kind        entryKind
}

// handleEntryFailure общий путь обработки неудачной доставки: запись
// переводится в failed, при остатке квоты взводится повтор с экспоненциальной
// задержкой. Транспортная ошибка — сигнал монитору, что сеть пропала.
func (s *SyncService) handleEntryFailure(ctx context.Context, ref entryRef, deliveryErr error) {
	var transportErr *feedback.TransportError
	if errors.As(deliveryErr, &transportErr) {
		s.monitor.SetOnline(false)
	}

	s.addStat(func(st *SyncStats) { st.TotalFailed++ })

	var updateErr error
	if ref.kind == kindFeedback {
		updateErr = s.storage.UpdateFeedbackStatus(ctx, ref.id, feedback.StatusFailed, deliveryErr.Error())
	} else {
		updateErr = s.storage.UpdateQueueStatus(ctx, ref.id, feedback.StatusFailed, deliveryErr.Error())
	}
	if updateErr != nil {
		s.log.Error("Ошибка перевода записи в failed", "id", ref.id, "error", updateErr)
		return
	}

	if !feedback.IsRetryable(deliveryErr) {
		s.log.Error("Неповторяемая ошибка доставки", "id", ref.id, "error", deliveryErr)
		return
	}

	var count int
	var retryErr error
	if ref.kind == kindFeedback {
		count, retryErr = s.storage.IncrementFeedbackRetry(ctx, ref.id)
	} else {
		count, retryErr = s.storage.IncrementQueueRetry(ctx, ref.id)
	}
	if retryErr != nil {
		s.log.Error("Ошибка учета попытки", "id", ref.id, "error", retryErr)
		return
	}

	if count < ref.maxAttempts {
		s.scheduler.Schedule(ref.id, count)
		return
	}

	s.log.Warn("Попытки доставки исчерпаны, запись остается failed",
		"id", ref.id,
		"retry_count", count,
		"error", deliveryErr,
	)
}

// retryEntry одиночный путь повтора, вызываемый сработавшим таймером.
// Не полный проход: обрабатывается только одна запись. Если запись уже в
// полете или сети нет, повтор молча уступает следующему триггеру.
func (s *SyncService) retryEntry(id string) {
	if !s.monitor.IsOnline() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if entry, err := s.storage.GetFeedback(ctx, id); err == nil {
		if entry.Status == feedback.StatusFailed && entry.Retryable() {
			s.processFeedbackEntry(ctx, entry)
			s.publish()
		}
		return
	} else if !errors.Is(err, feedback.ErrNotFound) {
		s.log.Error("Ошибка чтения записи для повтора", "id", id, "error", err)
		return
	}

	// Не отзыв — возможно, задача общей очереди
	entry, err := s.storage.GetQueueEntry(ctx, id)
	if err != nil {
		if !errors.Is(err, queue.ErrNotFound) {
			s.log.Error("Ошибка чтения задачи для повтора", "id", id, "error", err)
		}
		return
	}
	if entry.Status == feedback.StatusFailed && entry.Retryable() {
		s.processQueueEntry(ctx, entry)
		s.publish()
	}
}

// Status возвращает текущий снимок состояния
func (s *SyncService) Status() SyncStatus {
	pending, err := s.storage.CountPending(context.Background())
	if err != nil {
		s.log.Error("Ошибка подсчета недоставленных записей", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return SyncStatus{
		IsOnline:     s.monitor.IsOnline(),
		IsSyncing:    s.isSyncing,
		PendingCount: pending,
		LastSyncAt:   s.lastSyncAt,
		SyncError:    s.syncErr,
	}
}

// GetStats возвращает копию накопительной статистики
func (s *SyncService) GetStats() SyncStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// IsSyncing проверяет, выполняется ли проход
func (s *SyncService) IsSyncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isSyncing
}

// Subscribe регистрирует подписчика на снимки состояния.
// Возвращает функцию отписки.
func (s *SyncService) Subscribe(listener func(SyncStatus)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = listener

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *SyncService) publish() {
	status := s.Status()

	s.mu.Lock()
	listeners := make([]func(SyncStatus), 0, len(s.subscribers))
	for _, l := range s.subscribers {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(status)
	}
}

func (s *SyncService) setSyncError(msg string) {
	s.mu.Lock()
	s.syncErr = msg
	s.mu.Unlock()
}

func (s *SyncService) addStat(apply func(*SyncStats)) {
	s.mu.Lock()
	apply(&s.stats)
	s.mu.Unlock()
}

func (s *SyncService) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.activeIDs[id]; ok {
		return false
	}
	s.activeIDs[id] = struct{}{}
	return true
}

func (s *SyncService) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.activeIDs, id)
}
