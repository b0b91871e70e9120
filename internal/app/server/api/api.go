//Сервер приема отзывов пациентов:
//прием сессий отзывов от киосков (идемпотентно по entry_id);
//проверка существования семантически эквивалентной сессии;
//health-check для мониторов соединения киосков.

//GET  /api/v1/health                   # Health check (публичный)
//POST /api/v1/feedback                 # Принять отзыв
//POST /api/v1/feedback/duplicate-check # Проверка дубликата

package api

import (
	feedbackAPI "github.com/AkashMedishetty/FeedbackSystem-sub002/internal/app/server/api/http/feedback"
	healthAPI "github.com/AkashMedishetty/FeedbackSystem-sub002/internal/app/server/api/http/health"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/app/server/api/http/middleware/logger"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/session"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/infrastructure/storage/postgres"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"
)

type Handlers struct {
	Health   *healthAPI.Handler
	Feedback *feedbackAPI.Handler
}

// New создает *chi.Mux со всеми операциями через huma.Register
func New(storage *postgres.Storage, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()

	config := huma.DefaultConfig("Feedback Ingest API", "1.0.0")
	API := humachi.New(mux, config)

	h := handlers(storage, log)
	h.Health.SetupRoutes(API)
	h.Feedback.SetupRoutes(API)

	return mux
}

func handlers(storage *postgres.Storage, log *slog.Logger) *Handlers {
	loggerMW := logger.New(log)

	healthHandler := healthAPI.NewHandler(log, huma.Middlewares{loggerMW.Middleware()})

	sessionRepo := postgres.NewSessionRepository(storage, log)
	sessionService := session.NewService(sessionRepo, log)
	feedbackHandler := feedbackAPI.NewHandler(sessionService, log, huma.Middlewares{loggerMW.Middleware()})

	return &Handlers{
		Health:   healthHandler,
		Feedback: feedbackHandler,
	}
}
