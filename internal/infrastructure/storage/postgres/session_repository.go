package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/exp/slog"

	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/session"
)

type SessionRepository struct {
	db  *Storage
	log *slog.Logger
}

func NewSessionRepository(db *Storage, log *slog.Logger) *SessionRepository {
	return &SessionRepository{
		db:  db,
		log: log,
	}
}

// Create вставляет сессию. Конфликт по client_entry_id означает повторную
// доставку той же записи киоска: возвращается существующая сессия.
func (r *SessionRepository) Create(ctx context.Context, s *session.Session) (string, bool, error) {
	var id string
	err := r.db.Pool().QueryRow(ctx,
		`INSERT INTO feedback_sessions
		     (client_entry_id, patient_id, mobile_number, consultation_number, responses, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (client_entry_id) DO NOTHING
		 RETURNING id`,
		s.ClientEntryID, s.PatientID, s.MobileNumber, s.ConsultationNumber,
		s.Responses, s.SubmittedAt).Scan(&id)

	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, fmt.Errorf("insert session: %w", err)
	}

	// Конфликт: RETURNING ничего не вернул, читаем существующую сессию
	existing, err := r.GetByClientEntryID(ctx, s.ClientEntryID)
	if err != nil {
		return "", false, fmt.Errorf("load existing session: %w", err)
	}
	return existing.ID, false, nil
}

func (r *SessionRepository) GetByClientEntryID(ctx context.Context, clientEntryID string) (*session.Session, error) {
	row := r.db.Pool().QueryRow(ctx,
		`SELECT id, client_entry_id, patient_id, mobile_number, consultation_number,
		        responses, submitted_at, created_at
		 FROM feedback_sessions
		 WHERE client_entry_id = $1`,
		clientEntryID)

	return scanSession(row)
}

// FindNearest возвращает сессию той же пары (мобильный номер, консультация)
// с ближайшим submitted_at в окне ±window
func (r *SessionRepository) FindNearest(ctx context.Context, mobileNumber string, consultationNumber int, around time.Time, window time.Duration) (*session.Session, error) {
	row := r.db.Pool().QueryRow(ctx,
		`SELECT id, client_entry_id, patient_id, mobile_number, consultation_number,
		        responses, submitted_at, created_at
		 FROM feedback_sessions
		 WHERE mobile_number = $1
		   AND consultation_number = $2
		   AND submitted_at BETWEEN $3 AND $4
		 ORDER BY ABS(EXTRACT(EPOCH FROM submitted_at - $5::timestamptz))
		 LIMIT 1`,
		mobileNumber, consultationNumber, around.Add(-window), around.Add(window), around)

	return scanSession(row)
}

func scanSession(row pgx.Row) (*session.Session, error) {
	var s session.Session
	err := row.Scan(&s.ID, &s.ClientEntryID, &s.PatientID, &s.MobileNumber,
		&s.ConsultationNumber, &s.Responses, &s.SubmittedAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &s, nil
}
