package kiosk

import (
	"context"

	"golang.org/x/exp/slog"

	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/feedback"
)

// DuplicateChecker удаленная проверка существования эквивалентной сессии
type DuplicateChecker interface {
	CheckDuplicate(ctx context.Context, req feedback.DuplicateCheckRequest) (*feedback.DuplicateCheckResponse, error)
}

type Strategy string

const (
	// StrategyKeepLatest запись отправляется на сервер
	StrategyKeepLatest Strategy = "keep-latest"
	// StrategySkip сервер уже видел эквивалентную сессию, отправка не нужна
	StrategySkip Strategy = "skip"
)

// Resolution решение резолвера по одной записи
type Resolution struct {
	Strategy   Strategy
	ExistingID string
}

// DuplicateResolver решает, отправлять запись или пропустить как дубликат.
// При ошибке самой проверки резолвер открывается (fail open) и возвращает
// keep-latest: потерять отзыв пациента хуже, чем получить редкую
// дублирующую строку.
type DuplicateResolver struct {
	checker DuplicateChecker
	log     *slog.Logger
}

func NewDuplicateResolver(checker DuplicateChecker, log *slog.Logger) *DuplicateResolver {
	return &DuplicateResolver{
		checker: checker,
		log:     log,
	}
}

func (r *DuplicateResolver) Resolve(ctx context.Context, payload feedback.Payload) Resolution {
	resp, err := r.checker.CheckDuplicate(ctx, feedback.DuplicateCheckRequest{
		MobileNumber:       payload.MobileNumber,
		ConsultationNumber: payload.ConsultationNumber,
		SubmittedAt:        payload.SubmittedAt,
	})
	if err != nil {
		lookupErr := &feedback.DuplicateLookupError{Err: err}
		r.log.Warn("Проверка дубликата не удалась, запись будет отправлена",
			"mobile_number", payload.MobileNumber,
			"error", lookupErr,
		)
		return Resolution{Strategy: StrategyKeepLatest}
	}

	if resp.IsDuplicate {
		r.log.Info("Обнаружен дубликат, отправка пропускается",
			"existing_id", resp.ExistingID,
			"time_difference_ms", resp.TimeDifferenceMs,
		)
		return Resolution{Strategy: StrategySkip, ExistingID: resp.ExistingID}
	}

	return Resolution{Strategy: StrategyKeepLatest}
}
