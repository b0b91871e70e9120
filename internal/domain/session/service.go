package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/feedback"
)

const (
	// searchWindow радиус поиска кандидатов в дубликаты вокруг времени отправки
	searchWindow = time.Hour
	// duplicateThreshold максимальная разница во времени, при которой
	// ближайший кандидат считается дубликатом
	duplicateThreshold = 30 * time.Minute
)

type Servicer interface {
	Submit(ctx context.Context, req feedback.SubmitRequest) (*SubmitResult, error)
	CheckDuplicate(ctx context.Context, req feedback.DuplicateCheckRequest) (*feedback.DuplicateCheckResponse, error)
}

// SubmitResult итог приема сессии
type SubmitResult struct {
	SessionID string
	// Created false означает, что эта запись киоска уже была принята ранее
	Created bool
}

type Service struct {
	repo Repository
	log  *slog.Logger
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With("component", "session_service"),
	}
}

// Submit принимает сессию отзыва. Операция идемпотентна по entry_id киоска:
// повторная доставка той же записи возвращает прежний идентификатор сессии.
func (s *Service) Submit(ctx context.Context, req feedback.SubmitRequest) (*SubmitResult, error) {
	if req.EntryID == "" || req.MobileNumber == "" || req.ConsultationNumber <= 0 {
		return nil, ErrInvalidData
	}
	if len(req.Responses) == 0 {
		return nil, ErrInvalidData
	}

	responses, err := json.Marshal(req.Responses)
	if err != nil {
		return nil, fmt.Errorf("encode responses: %w", err)
	}

	submittedAt := req.ClientTimestamp
	if submittedAt.IsZero() {
		submittedAt = time.Now().UTC()
	}

	id, created, err := s.repo.Create(ctx, &Session{
		ClientEntryID:      req.EntryID,
		PatientID:          req.PatientID,
		MobileNumber:       req.MobileNumber,
		ConsultationNumber: req.ConsultationNumber,
		Responses:          responses,
		SubmittedAt:        submittedAt,
	})
	if err != nil {
		s.log.Error("failed to create session", "entry_id", req.EntryID, "error", err)
		return nil, fmt.Errorf("create session: %w", err)
	}

	if !created {
		s.log.Info("duplicate delivery of known entry", "entry_id", req.EntryID, "session_id", id)
	} else {
		s.log.Info("session created", "session_id", id, "consultation_number", req.ConsultationNumber)
	}

	return &SubmitResult{SessionID: id, Created: created}, nil
}

// CheckDuplicate отвечает киоску, существует ли семантически эквивалентная
// сессия: та же пара (мобильный номер, консультация), время отправки в
// пределах порога. Кандидаты ищутся в окне ±1 час, дубликатом считается
// ближайший при разнице не больше 30 минут.
func (s *Service) CheckDuplicate(ctx context.Context, req feedback.DuplicateCheckRequest) (*feedback.DuplicateCheckResponse, error) {
	if req.MobileNumber == "" || req.ConsultationNumber <= 0 {
		return nil, ErrInvalidData
	}

	around := req.SubmittedAt
	if around.IsZero() {
		around = time.Now().UTC()
	}

	nearest, err := s.repo.FindNearest(ctx, req.MobileNumber, req.ConsultationNumber, around, searchWindow)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &feedback.DuplicateCheckResponse{IsDuplicate: false}, nil
		}
		s.log.Error("failed to search duplicates", "consultation_number", req.ConsultationNumber, "error", err)
		return nil, fmt.Errorf("find nearest session: %w", err)
	}

	diff := around.Sub(nearest.SubmittedAt)
	if diff < 0 {
		diff = -diff
	}

	if diff > duplicateThreshold {
		return &feedback.DuplicateCheckResponse{IsDuplicate: false}, nil
	}

	return &feedback.DuplicateCheckResponse{
		IsDuplicate:         true,
		ExistingID:          nearest.ID,
		ExistingSubmittedAt: &nearest.SubmittedAt,
		TimeDifferenceMs:    diff.Milliseconds(),
	}, nil
}
