package feedback

import (
	"time"
)

// Status статус доставки записи
type Status string

const (
	StatusPending Status = "pending"
	StatusSyncing Status = "syncing"
	StatusSynced  Status = "synced"
	StatusFailed  Status = "failed"
)

// Priority приоритет отправки записи
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank возвращает числовой ранг приоритета для сортировки (меньше — раньше)
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// QuestionResponse ответ пациента на один вопрос анкеты
type QuestionResponse struct {
	QuestionID     string   `json:"question_id"`
	QuestionTitle  string   `json:"question_title"`
	QuestionType   string   `json:"question_type"`
	ResponseText   *string  `json:"response_text,omitempty"`
	ResponseNumber *float64 `json:"response_number,omitempty"`
}

// Payload содержимое отзыва пациента
type Payload struct {
	PatientID          string             `json:"patient_id"`
	MobileNumber       string             `json:"mobile_number"`
	ConsultationNumber int                `json:"consultation_number"`
	SubmittedAt        time.Time          `json:"submitted_at"`
	Responses          []QuestionResponse `json:"responses"`
}

// Entry запись отзыва, ожидающая доставки на сервер.
// Инвариант: статус всегда ровно один из четырех; RetryCount не превышает
// MaxAttempts; записи в synced удаляются после грейс-периода.
type Entry struct {
	ID          string     `json:"id"`
	Payload     Payload    `json:"payload"`
	Status      Status     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	MaxAttempts int        `json:"max_attempts"`
	Priority    Priority   `json:"priority"`
	CreatedAt   time.Time  `json:"created_at"`
	LastError   string     `json:"last_error,omitempty"`
	DuplicateOf string     `json:"duplicate_of,omitempty"`
	SyncedAt    *time.Time `json:"synced_at,omitempty"`
}

// Retryable сообщает, осталась ли у записи квота автоматических попыток
func (e *Entry) Retryable() bool {
	return e.RetryCount < e.MaxAttempts
}
