package kiosk

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/app/kiosk/crypto"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/feedback"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/queue"
)

func newTestStorage(t *testing.T) (*SQLiteStorage, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "entries.db")
	storage, err := NewSQLiteStorage(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { storage.Close() })

	return storage, path
}

func feedbackEntry(mobile string, priority feedback.Priority) *feedback.Entry {
	text := "всё понравилось"
	rating := 9.0
	return &feedback.Entry{
		Payload: feedback.Payload{
			PatientID:          "patient-1",
			MobileNumber:       mobile,
			ConsultationNumber: 42,
			SubmittedAt:        time.Now().UTC(),
			Responses: []feedback.QuestionResponse{
				{QuestionID: "q1", QuestionTitle: "Оцените прием", QuestionType: "rating", ResponseNumber: &rating},
				{QuestionID: "q2", QuestionTitle: "Комментарий", QuestionType: "text", ResponseText: &text},
			},
		},
		MaxAttempts: 3,
		Priority:    priority,
	}
}

func TestSQLiteStorageSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.db")

	storage, err := NewSQLiteStorage(path, nil)
	require.NoError(t, err)

	ctx := context.Background()
	id, err := storage.AddFeedback(ctx, feedbackEntry("+79000000001", feedback.PriorityHigh))
	require.NoError(t, err)
	require.NoError(t, storage.Close())

	// Записи переживают перезапуск процесса
	reopened, err := NewSQLiteStorage(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	entry, err := reopened.GetFeedback(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, feedback.StatusPending, entry.Status)
	assert.Equal(t, "+79000000001", entry.Payload.MobileNumber)
	assert.Equal(t, 42, entry.Payload.ConsultationNumber)
	require.Len(t, entry.Payload.Responses, 2)
	assert.Equal(t, "Оцените прием", entry.Payload.Responses[0].QuestionTitle)
}

func TestSQLiteStorageEncryptedPayload(t *testing.T) {
	dir := t.TempDir()
	cipher, err := crypto.NewPayloadCipher(filepath.Join(dir, ".device.key"))
	require.NoError(t, err)

	storage, err := NewSQLiteStorage(filepath.Join(dir, "entries.db"), cipher)
	require.NoError(t, err)
	defer storage.Close()

	ctx := context.Background()
	id, err := storage.AddFeedback(ctx, feedbackEntry("+79000000002", feedback.PriorityHigh))
	require.NoError(t, err)

	// Шифрование прозрачно для чтения
	entry, err := storage.GetFeedback(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "+79000000002", entry.Payload.MobileNumber)

	// В самой базе мобильный номер в открытом виде не лежит
	var raw []byte
	err = storage.db.QueryRow(`SELECT payload FROM feedback_entries WHERE id = ?`, id).Scan(&raw)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "+79000000002")
}

func TestSQLiteStoragePendingOrder(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	base := time.Now().UTC()

	lowOld := feedbackEntry("+79000000001", feedback.PriorityLow)
	lowOld.CreatedAt = base.Add(-3 * time.Hour)
	highNew := feedbackEntry("+79000000002", feedback.PriorityHigh)
	highNew.CreatedAt = base
	highOld := feedbackEntry("+79000000003", feedback.PriorityHigh)
	highOld.CreatedAt = base.Add(-time.Hour)
	medium := feedbackEntry("+79000000004", feedback.PriorityMedium)
	medium.CreatedAt = base.Add(-2 * time.Hour)

	for _, e := range []*feedback.Entry{lowOld, highNew, highOld, medium} {
		_, err := storage.AddFeedback(ctx, e)
		require.NoError(t, err)
	}

	entries, err := storage.ListPendingFeedback(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	// Сначала приоритет, внутри приоритета — старые раньше
	assert.Equal(t, highOld.ID, entries[0].ID)
	assert.Equal(t, highNew.ID, entries[1].ID)
	assert.Equal(t, medium.ID, entries[2].ID)
	assert.Equal(t, lowOld.ID, entries[3].ID)
}

func TestSQLiteStorageStatusTransitions(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	id, err := storage.AddFeedback(ctx, feedbackEntry("+79000000001", feedback.PriorityHigh))
	require.NoError(t, err)

	require.NoError(t, storage.UpdateFeedbackStatus(ctx, id, feedback.StatusSyncing, ""))
	entry, err := storage.GetFeedback(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, feedback.StatusSyncing, entry.Status)
	assert.Nil(t, entry.SyncedAt)

	require.NoError(t, storage.UpdateFeedbackStatus(ctx, id, feedback.StatusFailed, "connection refused"))
	entry, err = storage.GetFeedback(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "connection refused", entry.LastError)

	require.NoError(t, storage.UpdateFeedbackStatus(ctx, id, feedback.StatusSynced, ""))
	entry, err = storage.GetFeedback(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, feedback.StatusSynced, entry.Status)
	require.NotNil(t, entry.SyncedAt)
	assert.WithinDuration(t, time.Now().UTC(), *entry.SyncedAt, time.Minute)
}

func TestSQLiteStorageRetryExhaustionExcluded(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	id, err := storage.AddFeedback(ctx, feedbackEntry("+79000000001", feedback.PriorityHigh))
	require.NoError(t, err)
	require.NoError(t, storage.UpdateFeedbackStatus(ctx, id, feedback.StatusFailed, "boom"))

	// Пока квота не исчерпана, запись в выборке
	for i := 1; i <= 3; i++ {
		count, err := storage.IncrementFeedbackRetry(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}

	entries, err := storage.ListPendingFeedback(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Но для оператора она по-прежнему недоставленная
	count, err := storage.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteStorageDuplicateMark(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	id, err := storage.AddFeedback(ctx, feedbackEntry("+79000000001", feedback.PriorityHigh))
	require.NoError(t, err)

	require.NoError(t, storage.SetFeedbackDuplicate(ctx, id, "server-session-9"))

	entry, err := storage.GetFeedback(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, feedback.StatusSynced, entry.Status)
	assert.Equal(t, "server-session-9", entry.DuplicateOf)
	assert.NotNil(t, entry.SyncedAt)
}

func TestSQLiteStoragePurgeSynced(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	oldID, err := storage.AddFeedback(ctx, feedbackEntry("+79000000001", feedback.PriorityHigh))
	require.NoError(t, err)
	freshID, err := storage.AddFeedback(ctx, feedbackEntry("+79000000002", feedback.PriorityHigh))
	require.NoError(t, err)
	pendingID, err := storage.AddFeedback(ctx, feedbackEntry("+79000000003", feedback.PriorityHigh))
	require.NoError(t, err)

	require.NoError(t, storage.UpdateFeedbackStatus(ctx, oldID, feedback.StatusSynced, ""))
	require.NoError(t, storage.UpdateFeedbackStatus(ctx, freshID, feedback.StatusSynced, ""))

	// Состариваем одну запись за грейс-период
	_, err = storage.db.Exec(`UPDATE feedback_entries SET synced_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-48*time.Hour).Format(time.RFC3339Nano), oldID)
	require.NoError(t, err)

	purged, err := storage.PurgeSynced(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = storage.GetFeedback(ctx, oldID)
	assert.ErrorIs(t, err, feedback.ErrNotFound)

	// Свежая synced и недоставленная записи остаются
	_, err = storage.GetFeedback(ctx, freshID)
	assert.NoError(t, err)
	_, err = storage.GetFeedback(ctx, pendingID)
	assert.NoError(t, err)
}

func TestSQLiteStorageNotFound(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	_, err := storage.GetFeedback(ctx, "missing")
	assert.ErrorIs(t, err, feedback.ErrNotFound)

	err = storage.UpdateFeedbackStatus(ctx, "missing", feedback.StatusSynced, "")
	assert.ErrorIs(t, err, feedback.ErrNotFound)

	_, err = storage.IncrementFeedbackRetry(ctx, "missing")
	assert.ErrorIs(t, err, feedback.ErrNotFound)

	_, err = storage.GetQueueEntry(ctx, "missing")
	assert.ErrorIs(t, err, queue.ErrNotFound)
}

func TestSQLiteStorageQueueRoundTrip(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	id, err := storage.AddQueueEntry(ctx, &queue.Entry{
		Type:     "analytics",
		Endpoint: "/api/v1/analytics",
		Method:   "POST",
		Headers:  map[string]string{"X-Kiosk-Id": "kiosk-7"},
		Data:     []byte(`{"event":"screen_view"}`),

		MaxAttempts: 5,
		Priority:    feedback.PriorityLow,
	})
	require.NoError(t, err)

	entry, err := storage.GetQueueEntry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "analytics", entry.Type)
	assert.Equal(t, "/api/v1/analytics", entry.Endpoint)
	assert.Equal(t, "kiosk-7", entry.Headers["X-Kiosk-Id"])
	assert.JSONEq(t, `{"event":"screen_view"}`, string(entry.Data))
	assert.Equal(t, 5, entry.MaxAttempts)

	pending, err := storage.ListPendingQueue(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, storage.UpdateQueueStatus(ctx, id, feedback.StatusSynced, ""))
	pending, err = storage.ListPendingQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSQLiteStorageResetQueueRetry(t *testing.T) {
	storage, _ := newTestStorage(t)
	ctx := context.Background()

	id, err := storage.AddQueueEntry(ctx, &queue.Entry{
		Endpoint:    "/api/v1/analytics",
		Method:      "POST",
		MaxAttempts: 2,
	})
	require.NoError(t, err)

	// Исчерпываем квоту попыток
	require.NoError(t, storage.UpdateQueueStatus(ctx, id, feedback.StatusFailed, "timeout"))
	for i := 0; i < 2; i++ {
		_, err = storage.IncrementQueueRetry(ctx, id)
		require.NoError(t, err)
	}

	pending, err := storage.ListPendingQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Операторский сброс возвращает задачу в работу
	require.NoError(t, storage.ResetQueueRetry(ctx, id))

	entry, err := storage.GetQueueEntry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, feedback.StatusPending, entry.Status)
	assert.Equal(t, 0, entry.RetryCount)
	assert.Empty(t, entry.LastError)

	pending, err = storage.ListPendingQueue(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	assert.ErrorIs(t, storage.ResetQueueRetry(ctx, "missing"), queue.ErrNotFound)
}
