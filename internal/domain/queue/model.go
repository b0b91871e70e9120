package queue

import (
	"encoding/json"
	"time"

	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/feedback"
)

// Entry универсальная исходящая задача (например, синхронизация настроек),
// не привязанная к отзывам. Жизненный цикл статусов совпадает с feedback.Entry.
type Entry struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Endpoint    string            `json:"endpoint"`
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers,omitempty"`
	Data        json.RawMessage   `json:"data,omitempty"`
	Status      feedback.Status   `json:"status"`
	RetryCount  int               `json:"retry_count"`
	MaxAttempts int               `json:"max_attempts"`
	Priority    feedback.Priority `json:"priority"`
	CreatedAt   time.Time         `json:"created_at"`
	LastError   string            `json:"last_error,omitempty"`
	SyncedAt    *time.Time        `json:"synced_at,omitempty"`
}

// Retryable сообщает, осталась ли у задачи квота автоматических попыток
func (e *Entry) Retryable() bool {
	return e.RetryCount < e.MaxAttempts
}
