package kiosk

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/feedback"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/queue"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// fakeTransport управляемый транспорт для тестов движка
type fakeTransport struct {
	mu          sync.Mutex
	submitted   []string
	dispatched  []string
	inFlight    int
	maxInFlight int
	submitErr   error
	dispatchErr error
	block       chan struct{}
}

func (t *fakeTransport) SubmitFeedback(_ context.Context, req feedback.SubmitRequest) (*feedback.SubmitResponse, error) {
	t.mu.Lock()
	t.inFlight++
	if t.inFlight > t.maxInFlight {
		t.maxInFlight = t.inFlight
	}
	block := t.block
	t.mu.Unlock()

	if block != nil {
		<-block
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlight--

	if t.submitErr != nil {
		return nil, t.submitErr
	}
	t.submitted = append(t.submitted, req.EntryID)
	return &feedback.SubmitResponse{Status: "OK", SessionID: "session-" + req.EntryID}, nil
}

func (t *fakeTransport) DispatchQueueEntry(_ context.Context, entry *queue.Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dispatchErr != nil {
		return t.dispatchErr
	}
	t.dispatched = append(t.dispatched, entry.ID)
	return nil
}

func (t *fakeTransport) submitCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.submitted)
}

// fakeChecker управляемая проверка дубликатов
type fakeChecker struct {
	resp *feedback.DuplicateCheckResponse
	err  error
}

func (c *fakeChecker) CheckDuplicate(_ context.Context, _ feedback.DuplicateCheckRequest) (*feedback.DuplicateCheckResponse, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.resp != nil {
		return c.resp, nil
	}
	return &feedback.DuplicateCheckResponse{IsDuplicate: false}, nil
}

type fakeProber struct {
	err error
}

func (p *fakeProber) HealthCheck(_ context.Context) error {
	return p.err
}

func newTestService(storage Storage, transport Transport, checker DuplicateChecker) (*SyncService, *ConnectivityMonitor) {
	log := testLogger()
	monitor := NewConnectivityMonitor(&fakeProber{}, time.Minute, log)
	resolver := NewDuplicateResolver(checker, log)

	cfg := DefaultSyncConfig()
	cfg.BatchSize = 3
	cfg.MaxRetries = 3
	cfg.QueueMaxRetries = 3
	cfg.BaseRetryDelay = time.Millisecond
	cfg.MaxRetryDelay = 100 * time.Millisecond

	return NewSyncService(storage, transport, resolver, monitor, cfg, log), monitor
}

func addEntry(t *testing.T, storage Storage, mobile string) string {
	t.Helper()

	id, err := storage.AddFeedback(context.Background(), &feedback.Entry{
		Payload: feedback.Payload{
			PatientID:          "patient-1",
			MobileNumber:       mobile,
			ConsultationNumber: 42,
			SubmittedAt:        time.Now(),
		},
		MaxAttempts: 3,
		Priority:    feedback.PriorityHigh,
	})
	require.NoError(t, err)
	return id
}

func TestSyncAllOfflineNoop(t *testing.T) {
	storage := NewMemoryStorage()
	transport := &fakeTransport{}
	svc, _ := newTestService(storage, transport, &fakeChecker{})

	addEntry(t, storage, "+70000000001")

	// Монитор в offline: проход должен завершиться сразу, без отправок
	require.NoError(t, svc.SyncAll(context.Background()))
	assert.Equal(t, 0, transport.submitCount())

	count, err := storage.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSyncAllDrainsAccumulated(t *testing.T) {
	storage := NewMemoryStorage()
	transport := &fakeTransport{}
	svc, monitor := newTestService(storage, transport, &fakeChecker{})

	// Накапливаем записи в offline, больше одного батча
	var ids []string
	for i := 0; i < 7; i++ {
		ids = append(ids, addEntry(t, storage, "+7000000000"+string(rune('0'+i))))
	}

	monitor.SetOnline(true)
	require.NoError(t, svc.SyncAll(context.Background()))

	assert.Equal(t, 7, transport.submitCount())

	for _, id := range ids {
		entry, err := storage.GetFeedback(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, feedback.StatusSynced, entry.Status)
		assert.NotNil(t, entry.SyncedAt)
	}

	count, err := storage.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSyncAllBatchLimit(t *testing.T) {
	storage := NewMemoryStorage()
	transport := &fakeTransport{block: make(chan struct{})}
	svc, monitor := newTestService(storage, transport, &fakeChecker{})
	monitor.SetOnline(true)

	for i := 0; i < 9; i++ {
		addEntry(t, storage, "+7900000000"+string(rune('0'+i)))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.SyncAll(context.Background())
	}()

	// Дожидаемся, пока первый батч встанет на блокировке транспорта
	require.Eventually(t, func() bool {
		transport.mu.Lock()
		defer transport.mu.Unlock()
		return transport.inFlight > 0
	}, time.Second, time.Millisecond)

	close(transport.block)
	<-done

	// Одновременно в полете не больше размера батча
	assert.LessOrEqual(t, transport.maxInFlight, 3)
	assert.Equal(t, 9, transport.submitCount())
}

func TestSyncAllSingleFlight(t *testing.T) {
	storage := NewMemoryStorage()
	transport := &fakeTransport{block: make(chan struct{})}
	svc, monitor := newTestService(storage, transport, &fakeChecker{})
	monitor.SetOnline(true)

	id := addEntry(t, storage, "+79000000001")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.SyncAll(context.Background())
	}()

	require.Eventually(t, func() bool {
		transport.mu.Lock()
		defer transport.mu.Unlock()
		return transport.inFlight > 0
	}, time.Second, time.Millisecond)

	// Второй проход во время первого завершается сразу, без второй отправки
	require.NoError(t, svc.SyncAll(context.Background()))
	assert.True(t, svc.IsSyncing())

	close(transport.block)
	<-done

	assert.False(t, svc.IsSyncing())
	assert.Equal(t, []string{id}, transport.submitted)
}

func TestSyncAllDuplicateSkipped(t *testing.T) {
	storage := NewMemoryStorage()
	transport := &fakeTransport{}
	checker := &fakeChecker{
		resp: &feedback.DuplicateCheckResponse{
			IsDuplicate:      true,
			ExistingID:       "server-session-7",
			TimeDifferenceMs: 120000,
		},
	}
	svc, monitor := newTestService(storage, transport, checker)
	monitor.SetOnline(true)

	id := addEntry(t, storage, "+79000000002")

	require.NoError(t, svc.SyncAll(context.Background()))

	// Дубликат помечен synced без единой отправки
	assert.Equal(t, 0, transport.submitCount())

	entry, err := storage.GetFeedback(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, feedback.StatusSynced, entry.Status)
	assert.Equal(t, "server-session-7", entry.DuplicateOf)
}

func TestSyncAllDuplicateCheckFailsOpen(t *testing.T) {
	storage := NewMemoryStorage()
	transport := &fakeTransport{}
	checker := &fakeChecker{err: errors.New("lookup timeout")}
	svc, monitor := newTestService(storage, transport, checker)
	monitor.SetOnline(true)

	id := addEntry(t, storage, "+79000000003")

	require.NoError(t, svc.SyncAll(context.Background()))

	// Ошибка проверки дубликата не блокирует доставку
	assert.Equal(t, []string{id}, transport.submitted)
}

func TestSyncAllRetryExhaustion(t *testing.T) {
	storage := NewMemoryStorage()
	transport := &fakeTransport{
		submitErr: &feedback.RemoteRejectionError{StatusCode: 500, Message: "internal"},
	}
	svc, monitor := newTestService(storage, transport, &fakeChecker{})
	monitor.SetOnline(true)

	// Перехватываем таймеры, чтобы управлять повторами вручную
	var scheduled []time.Duration
	svc.scheduler.afterFunc = func(d time.Duration, _ func()) retryTimer {
		scheduled = append(scheduled, d)
		return noopTimer{}
	}

	id := addEntry(t, storage, "+79000000004")

	require.NoError(t, svc.SyncAll(context.Background()))

	entry, err := storage.GetFeedback(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, feedback.StatusFailed, entry.Status)
	assert.Equal(t, 1, entry.RetryCount)
	require.Len(t, scheduled, 1)

	// Второй и третий повтор
	svc.retryEntry(id)
	svc.retryEntry(id)

	entry, err = storage.GetFeedback(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, feedback.StatusFailed, entry.Status)
	assert.Equal(t, 3, entry.RetryCount)
	assert.NotEmpty(t, entry.LastError)

	// После исчерпания квоты новый таймер не взводится
	assert.Len(t, scheduled, 2)

	// Исчерпавшая попытки запись остается видимой оператору
	count, err := storage.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// И дальнейшие ручные повторы ее не трогают
	svc.retryEntry(id)
	entry, err = storage.GetFeedback(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 3, entry.RetryCount)
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return true }

func TestSyncAllTransportErrorFlipsOffline(t *testing.T) {
	storage := NewMemoryStorage()
	transport := &fakeTransport{
		submitErr: &feedback.TransportError{Op: "POST /api/v1/feedback", Err: errors.New("connection refused")},
	}
	svc, monitor := newTestService(storage, transport, &fakeChecker{})
	monitor.SetOnline(true)

	id := addEntry(t, storage, "+79000000005")

	require.NoError(t, svc.SyncAll(context.Background()))

	// Неудавшаяся отправка — сигнал, что сеть пропала
	assert.False(t, monitor.IsOnline())

	entry, err := storage.GetFeedback(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, feedback.StatusFailed, entry.Status)
	assert.Equal(t, 1, entry.RetryCount)
}

func TestSyncAllQueueEntries(t *testing.T) {
	storage := NewMemoryStorage()
	transport := &fakeTransport{}
	svc, monitor := newTestService(storage, transport, &fakeChecker{})
	monitor.SetOnline(true)

	id, err := storage.AddQueueEntry(context.Background(), &queue.Entry{
		Type:        "analytics",
		Endpoint:    "/api/v1/analytics",
		Method:      "POST",
		Data:        []byte(`{"event":"screen_view"}`),
		MaxAttempts: 3,
	})
	require.NoError(t, err)

	require.NoError(t, svc.SyncAll(context.Background()))

	assert.Equal(t, []string{id}, transport.dispatched)

	entry, err := storage.GetQueueEntry(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, feedback.StatusSynced, entry.Status)
}

// failingStorage имитирует отказ локальной базы при выборке
type failingStorage struct {
	Storage
}

func (s *failingStorage) ListPendingFeedback(_ context.Context) ([]*feedback.Entry, error) {
	return nil, &feedback.StorageError{Op: "list pending feedback", Err: errors.New("disk I/O error")}
}

func TestSyncAllStorageErrorAbortsPass(t *testing.T) {
	storage := &failingStorage{Storage: NewMemoryStorage()}
	transport := &fakeTransport{}
	svc, monitor := newTestService(storage, transport, &fakeChecker{})
	monitor.SetOnline(true)

	err := svc.SyncAll(context.Background())
	require.Error(t, err)

	var storageErr *feedback.StorageError
	assert.ErrorAs(t, err, &storageErr)
	assert.Equal(t, 0, transport.submitCount())
	assert.NotEmpty(t, svc.Status().SyncError)
}

func TestForceSyncOffline(t *testing.T) {
	storage := NewMemoryStorage()
	svc, _ := newTestService(storage, &fakeTransport{}, &fakeChecker{})

	err := svc.ForceSync(context.Background())
	assert.Error(t, err)
}

func TestRetryEntryOfflineNoop(t *testing.T) {
	storage := NewMemoryStorage()
	transport := &fakeTransport{}
	svc, _ := newTestService(storage, transport, &fakeChecker{})

	id := addEntry(t, storage, "+79000000006")
	require.NoError(t, storage.UpdateFeedbackStatus(context.Background(), id, feedback.StatusFailed, "boom"))

	// Сработавший таймер в offline ничего не делает
	svc.retryEntry(id)
	assert.Equal(t, 0, transport.submitCount())
}

func TestRetryEntryDeliversFailed(t *testing.T) {
	storage := NewMemoryStorage()
	transport := &fakeTransport{}
	svc, monitor := newTestService(storage, transport, &fakeChecker{})
	monitor.SetOnline(true)

	id := addEntry(t, storage, "+79000000007")
	require.NoError(t, storage.UpdateFeedbackStatus(context.Background(), id, feedback.StatusFailed, "boom"))
	_, err := storage.IncrementFeedbackRetry(context.Background(), id)
	require.NoError(t, err)

	svc.retryEntry(id)

	entry, err := storage.GetFeedback(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, feedback.StatusSynced, entry.Status)
	assert.Equal(t, []string{id}, transport.submitted)
}

func TestStatusSubscription(t *testing.T) {
	storage := NewMemoryStorage()
	transport := &fakeTransport{}
	svc, monitor := newTestService(storage, transport, &fakeChecker{})
	monitor.SetOnline(true)

	addEntry(t, storage, "+79000000008")

	var mu sync.Mutex
	var snapshots []SyncStatus
	unsubscribe := svc.Subscribe(func(st SyncStatus) {
		mu.Lock()
		defer mu.Unlock()
		snapshots = append(snapshots, st)
	})

	require.NoError(t, svc.SyncAll(context.Background()))

	mu.Lock()
	require.GreaterOrEqual(t, len(snapshots), 2)
	first := snapshots[0]
	last := snapshots[len(snapshots)-1]
	mu.Unlock()

	assert.True(t, first.IsSyncing)
	assert.False(t, last.IsSyncing)
	assert.Equal(t, 0, last.PendingCount)
	assert.False(t, last.LastSyncAt.IsZero())

	// После отписки снимки не приходят
	unsubscribe()
	require.NoError(t, svc.SyncAll(context.Background()))

	mu.Lock()
	countAfter := len(snapshots)
	mu.Unlock()

	require.NoError(t, svc.SyncAll(context.Background()))
	mu.Lock()
	assert.Equal(t, countAfter, len(snapshots))
	mu.Unlock()
}

func TestSyncStats(t *testing.T) {
	storage := NewMemoryStorage()
	transport := &fakeTransport{}
	svc, monitor := newTestService(storage, transport, &fakeChecker{})
	monitor.SetOnline(true)

	addEntry(t, storage, "+79000000009")
	require.NoError(t, svc.SyncAll(context.Background()))

	stats := svc.GetStats()
	assert.Equal(t, 1, stats.TotalPasses)
	assert.Equal(t, 1, stats.TotalSubmitted)
	assert.Equal(t, 0, stats.TotalFailed)
}
