package feedback

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) submitOp() huma.Operation {
	return huma.Operation{
		OperationID: "feedback-submit",
		Method:      http.MethodPost,
		Path:        "/api/v1/feedback",
		Summary:     "Принять отзыв пациента",
		Description: "Принимает отзыв от киоска. Идемпотентна по entry_id: повторная доставка той же записи возвращает прежний session_id.",
		Tags:        []string{"feedback"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) duplicateCheckOp() huma.Operation {
	return huma.Operation{
		OperationID: "feedback-duplicate-check",
		Method:      http.MethodPost,
		Path:        "/api/v1/feedback/duplicate-check",
		Summary:     "Проверить существование эквивалентной сессии",
		Description: "Ищет сессию той же пары (мобильный номер, консультация) в окне ±1 час; дубликатом считается ближайшая при разнице не больше 30 минут.",
		Tags:        []string{"feedback"},
		Middlewares: h.middleware,
	}
}
