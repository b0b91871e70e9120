package session

import (
	"encoding/json"
	"time"
)

// Session принятая сервером сессия отзыва. ClientEntryID — идентификатор
// записи на киоске, по нему повторная доставка той же записи идемпотентна.
type Session struct {
	ID                 string          `json:"id"`
	ClientEntryID      string          `json:"client_entry_id"`
	PatientID          string          `json:"patient_id"`
	MobileNumber       string          `json:"mobile_number"`
	ConsultationNumber int             `json:"consultation_number"`
	Responses          json.RawMessage `json:"responses"`
	SubmittedAt        time.Time       `json:"submitted_at"`
	CreatedAt          time.Time       `json:"created_at"`
}
