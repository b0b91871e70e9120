package feedback

import (
	"time"
)

// DTO (Data Transfer Objects) для обмена с сервером приема отзывов

// SubmitRequest запрос на отправку отзыва
type SubmitRequest struct {
	EntryID            string             `json:"entry_id"`
	ClientTimestamp    time.Time          `json:"client_timestamp" format:"date-time"`
	PatientID          string             `json:"patient_id"`
	MobileNumber       string             `json:"mobile_number"`
	ConsultationNumber int                `json:"consultation_number"`
	Responses          []QuestionResponse `json:"responses"`
}

// SubmitResponse ответ сервера на отправку отзыва
type SubmitResponse struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// DuplicateCheckRequest запрос проверки дубликата
type DuplicateCheckRequest struct {
	MobileNumber       string    `json:"mobile_number"`
	ConsultationNumber int       `json:"consultation_number"`
	SubmittedAt        time.Time `json:"submitted_at" format:"date-time"`
}

// DuplicateCheckResponse результат проверки дубликата.
// Сервер ищет сессии в окне ±1 час; дубликатом считается
// ближайшее совпадение в пределах 30 минут.
type DuplicateCheckResponse struct {
	IsDuplicate         bool       `json:"is_duplicate"`
	ExistingID          string     `json:"existing_id,omitempty"`
	ExistingSubmittedAt *time.Time `json:"existing_submitted_at,omitempty"`
	TimeDifferenceMs    int64      `json:"time_difference_ms,omitempty"`
}
