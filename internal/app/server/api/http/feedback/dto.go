package feedback

import (
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/feedback"
)

// DTO операций приема отзывов. Форматы тел совпадают с теми, что
// отправляет киоск.

type submitInput struct {
	Body feedback.SubmitRequest
}

type submitOutput struct {
	Body feedback.SubmitResponse
}

type duplicateCheckInput struct {
	Body feedback.DuplicateCheckRequest
}

type duplicateCheckOutput struct {
	Body feedback.DuplicateCheckResponse
}
