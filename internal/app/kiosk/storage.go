package kiosk

import (
	"context"
	"time"

	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/feedback"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/queue"
)

// Storage долговременное хранилище записей, переживающее перезапуск киоска.
// Единственный владелец записей: движок синхронизации мутирует их только
// через эти методы.
type Storage interface {
	AddFeedback(ctx context.Context, entry *feedback.Entry) (string, error)
	GetFeedback(ctx context.Context, id string) (*feedback.Entry, error)
	// ListPendingFeedback возвращает записи в статусе pending и failed с
	// оставшейся квотой попыток, в порядке (приоритет, время создания)
	ListPendingFeedback(ctx context.Context) ([]*feedback.Entry, error)
	UpdateFeedbackStatus(ctx context.Context, id string, status feedback.Status, errMsg string) error
	IncrementFeedbackRetry(ctx context.Context, id string) (int, error)
	SetFeedbackDuplicate(ctx context.Context, id, existingID string) error
	RemoveFeedback(ctx context.Context, id string) error

	AddQueueEntry(ctx context.Context, entry *queue.Entry) (string, error)
	GetQueueEntry(ctx context.Context, id string) (*queue.Entry, error)
	ListPendingQueue(ctx context.Context) ([]*queue.Entry, error)
	UpdateQueueStatus(ctx context.Context, id string, status feedback.Status, errMsg string) error
	IncrementQueueRetry(ctx context.Context, id string) (int, error)
	// ResetQueueRetry возвращает задачу в pending с нулевым счетчиком попыток.
	// Операторский сброс для задач с исчерпанной квотой.
	ResetQueueRetry(ctx context.Context, id string) error
	RemoveQueueEntry(ctx context.Context, id string) error

	// CountPending считает все недоставленные записи (включая исчерпавшие
	// попытки failed — они остаются видимыми для оператора)
	CountPending(ctx context.Context) (int, error)
	// PurgeSynced удаляет synced записи старше грейс-периода
	PurgeSynced(ctx context.Context, grace time.Duration) (int, error)

	Close() error
}
