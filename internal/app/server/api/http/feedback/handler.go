package feedback

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/feedback"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/session"
)

type Handler struct {
	service    session.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service session.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log,
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.submitOp(), h.submit)
	huma.Register(api, h.duplicateCheckOp(), h.duplicateCheck)
}

func (h *Handler) submit(ctx context.Context, input *submitInput) (*submitOutput, error) {
	result, err := h.service.Submit(ctx, input.Body)
	if err != nil {
		if errors.Is(err, session.ErrInvalidData) {
			return nil, huma.Error422UnprocessableEntity("invalid feedback payload")
		}
		return nil, err
	}

	return &submitOutput{
		Body: feedback.SubmitResponse{
			Status:    "OK",
			SessionID: result.SessionID,
		},
	}, nil
}

func (h *Handler) duplicateCheck(ctx context.Context, input *duplicateCheckInput) (*duplicateCheckOutput, error) {
	resp, err := h.service.CheckDuplicate(ctx, input.Body)
	if err != nil {
		if errors.Is(err, session.ErrInvalidData) {
			return nil, huma.Error422UnprocessableEntity("invalid duplicate check request")
		}
		return nil, err
	}

	return &duplicateCheckOutput{
		Body: *resp,
	}, nil
}
