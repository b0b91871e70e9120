package session

import (
	"context"
	"time"
)

type Repository interface {
	// Create сохраняет сессию. При повторе client_entry_id возвращает
	// идентификатор уже существующей сессии и created = false.
	Create(ctx context.Context, s *Session) (id string, created bool, err error)
	GetByClientEntryID(ctx context.Context, clientEntryID string) (*Session, error)
	// FindNearest ищет сессию той же пары (мобильный номер, консультация)
	// с ближайшим submitted_at в окне ±window вокруг around
	FindNearest(ctx context.Context, mobileNumber string, consultationNumber int, around time.Time, window time.Duration) (*Session, error)
}
