package kiosk

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	gosync "sync"
	"syscall"
	"time"

	"golang.org/x/exp/slog"

	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/app/kiosk/config"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/app/kiosk/crypto"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/feedback"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/queue"
)

// App собирает движок киоска: хранилище, транспорт, монитор сети и
// сервис синхронизации
type App struct {
	config      *config.Config
	log         *slog.Logger
	storage     Storage
	httpClient  *httpClient
	monitor     *ConnectivityMonitor
	resolver    *DuplicateResolver
	syncService *SyncService

	wg     gosync.WaitGroup
	cancel context.CancelFunc
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	httpCl, err := NewHTTPClient(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации HTTP клиента: %w", err)
	}

	// Полезная нагрузка на диске шифруется ключом устройства
	cipher, err := crypto.NewPayloadCipher(cfg.DeviceKeyPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации ключа устройства: %w", err)
	}

	// Локальное хранилище: SQLite, при недоступности файла работаем из памяти
	var storage Storage
	sqliteStorage, err := NewSQLiteStorage(cfg.DataPath, cipher)
	if err != nil {
		log.Warn("Не удалось инициализировать SQLite, используем память", "error", err)
		storage = NewMemoryStorage()
	} else {
		storage = sqliteStorage
	}

	monitor := NewConnectivityMonitor(httpCl, time.Duration(cfg.ProbeInterval)*time.Second, log)
	resolver := NewDuplicateResolver(httpCl, log)

	syncCfg := SyncConfig{
		Interval:        time.Duration(cfg.SyncInterval) * time.Second,
		BatchSize:       cfg.BatchSize,
		MaxRetries:      cfg.MaxRetries,
		QueueMaxRetries: cfg.QueueMaxRetries,
		BaseRetryDelay:  time.Duration(cfg.RetryBaseDelaySec) * time.Second,
		MaxRetryDelay:   time.Duration(cfg.RetryMaxDelaySec) * time.Second,
		GracePeriod:     time.Duration(cfg.GracePeriodHours) * time.Hour,
	}

	app := &App{
		config:      cfg,
		log:         log,
		storage:     storage,
		httpClient:  httpCl,
		monitor:     monitor,
		resolver:    resolver,
		syncService: NewSyncService(storage, httpCl, resolver, monitor, syncCfg, log),
	}

	return app, nil
}

// Run запускает монитор сети и движок синхронизации, блокируется до
// сигнала завершения
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	go a.handleSignals()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.monitor.Run(ctx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.syncService.Run(ctx)
	}()

	a.log.Info("Киоск запущен",
		"kiosk_id", a.config.KioskID,
		"server", a.config.ServerAddress,
		"env", a.config.Env,
	)

	a.wg.Wait()
	return nil
}

func (a *App) handleSignals() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-sigChan
	a.log.Info("Получен сигнал завершения", "signal", sig.String())

	if a.cancel != nil {
		a.cancel()
	}
}

// Shutdown останавливает фоновые циклы и закрывает хранилище
func (a *App) Shutdown() {
	a.log.Info("Завершение работы киоска...")

	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	if err := a.storage.Close(); err != nil {
		a.log.Warn("Ошибка закрытия хранилища", "error", err)
	}

	a.log.Info("Киоск завершил работу")
}

// EnqueueFeedback принимает отзыв пациента: запись сохраняется локально и
// немедленно подхватывается движком, если сеть есть. Прием не зависит от
// состояния сети.
func (a *App) EnqueueFeedback(ctx context.Context, payload feedback.Payload, priority feedback.Priority) (*feedback.Entry, error) {
	if payload.SubmittedAt.IsZero() {
		payload.SubmittedAt = time.Now()
	}
	if priority == "" {
		priority = feedback.PriorityHigh
	}

	entry := &feedback.Entry{
		Payload:     payload,
		Status:      feedback.StatusPending,
		Priority:    priority,
		MaxAttempts: a.config.MaxRetries,
		CreatedAt:   time.Now(),
	}

	id, err := a.storage.AddFeedback(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения отзыва: %w", err)
	}
	entry.ID = id

	a.log.Info("Отзыв принят",
		"id", id,
		"consultation_number", payload.ConsultationNumber,
		"priority", priority,
	)

	a.syncService.NotifyAdded()

	return entry, nil
}

// EnqueueQueueEntry добавляет произвольную задачу доставки в общую очередь
func (a *App) EnqueueQueueEntry(ctx context.Context, entry *queue.Entry) (string, error) {
	if entry.Method == "" {
		entry.Method = "POST"
	}
	if entry.Priority == "" {
		entry.Priority = feedback.PriorityMedium
	}
	entry.Status = feedback.StatusPending
	entry.MaxAttempts = a.config.QueueMaxRetries
	entry.CreatedAt = time.Now()

	id, err := a.storage.AddQueueEntry(ctx, entry)
	if err != nil {
		return "", fmt.Errorf("ошибка сохранения задачи очереди: %w", err)
	}
	entry.ID = id

	a.log.Info("Задача добавлена в очередь",
		"id", id,
		"type", entry.Type,
		"endpoint", entry.Endpoint,
	)

	a.syncService.NotifyAdded()

	return id, nil
}

// ListPendingFeedback возвращает недоставленные отзывы в порядке доставки
func (a *App) ListPendingFeedback(ctx context.Context) ([]*feedback.Entry, error) {
	return a.storage.ListPendingFeedback(ctx)
}

// ListPendingQueue возвращает недоставленные задачи общей очереди
func (a *App) ListPendingQueue(ctx context.Context) ([]*queue.Entry, error) {
	return a.storage.ListPendingQueue(ctx)
}

// GetFeedback возвращает отзыв по идентификатору
func (a *App) GetFeedback(ctx context.Context, id string) (*feedback.Entry, error) {
	return a.storage.GetFeedback(ctx, id)
}

// RemoveFeedback удаляет отзыв из локального хранилища
func (a *App) RemoveFeedback(ctx context.Context, id string) error {
	a.syncService.Scheduler().Cancel(id)
	return a.storage.RemoveFeedback(ctx, id)
}

// RetryQueueEntry сбрасывает счетчик попыток задачи и возвращает ее в
// очередь доставки. Операторское действие для задач с исчерпанной квотой.
func (a *App) RetryQueueEntry(ctx context.Context, id string) error {
	a.syncService.Scheduler().Cancel(id)
	if err := a.storage.ResetQueueRetry(ctx, id); err != nil {
		return err
	}

	a.log.Info("Задача возвращена в очередь", "id", id)
	a.syncService.NotifyAdded()
	return nil
}

// Sync принудительно запускает проход синхронизации
func (a *App) Sync(ctx context.Context) error {
	return a.syncService.ForceSync(ctx)
}

// Status возвращает снимок состояния синхронизации
func (a *App) Status() SyncStatus {
	return a.syncService.Status()
}

// Stats возвращает накопительную статистику движка
func (a *App) Stats() SyncStats {
	return a.syncService.GetStats()
}

// SubscribeStatus подписывает слушателя на снимки состояния (UI киоска)
func (a *App) SubscribeStatus(listener func(SyncStatus)) func() {
	return a.syncService.Subscribe(listener)
}

// CheckConnection выполняет разовую проверку доступности сервера и
// обновляет монитор
func (a *App) CheckConnection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := a.httpClient.HealthCheck(ctx)
	a.monitor.SetOnline(err == nil)
	return err
}

// GetSyncService возвращает сервис синхронизации
func (a *App) GetSyncService() *SyncService {
	return a.syncService
}
