package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Alex12012019/DeepSeekAPI/internal/handler/assistant"
	"github.com/Alex12012019/DeepSeekAPI/internal/handler/conversation"
	"github.com/Alex12012019/DeepSeekAPI/internal/handler/events"
	"github.com/Alex12012019/DeepSeekAPI/internal/handler/stream"
	middlewarePkg "github.com/Alex12012019/DeepSeekAPI/internal/middleware"
	conversationService "github.com/Alex12012019/DeepSeekAPI/internal/service/conversation"
	"github.com/Alex12012019/DeepSeekAPI/pkg/utils"
)

// Services bundles what the router needs. Replier and Analyzer may be nil.
type Services struct {
	Conversations *conversationService.Service
	Replier       assistant.Replier
	Analyzer      assistant.Analyzer
	Events        *events.Hub
}

// NewRouter wires HTTP routes to core services.
func NewRouter(svc Services) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	conversationHandler := conversation.New(svc.Conversations)
	assistantHandler := assistant.New(svc.Replier, svc.Analyzer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondStatus(w, http.StatusOK, nil)
	})

	r.Route("/api", func(api chi.Router) {
		conversationHandler.RegisterRoutes(api)
		assistantHandler.RegisterRoutes(api)

		if streamer, ok := svc.Replier.(stream.Replier); ok {
			stream.New(streamer).RegisterRoutes(api)
		}

		if svc.Events != nil {
			svc.Events.RegisterRoutes(api)
		}
	})

	return r
}
