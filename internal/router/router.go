package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"rafi-backend/internal/handlers"
	"rafi-backend/internal/middleware"
	"rafi-backend/internal/websocket"
)

// New builds the HTTP router. conversationHandler, jwtAuth and wsHub may be
// nil, in which case the routes that need them are not mounted.
func New(
	logger *slog.Logger,
	chatHandler *handlers.ChatHandler,
	jwtAuth *middleware.JWTAuth,
	conversationHandler *handlers.ConversationHandler,
	wsHub *websocket.Hub,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Same path the browser client calls on the hosted platform.
	r.HandleFunc("/functions/v1/gemini-chat", chatHandler.Chat)

	r.Route("/api/v1", func(r chi.Router) {
		r.HandleFunc("/chat", chatHandler.Chat)

		if conversationHandler != nil && jwtAuth != nil {
			r.Route("/conversations", func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Get("/", conversationHandler.List)
				r.Post("/messages", conversationHandler.Start)
				r.Get("/{id}/messages", conversationHandler.Messages)
				r.Post("/{id}/messages", conversationHandler.Send)
				r.Delete("/{id}", conversationHandler.Delete)
			})
		}

		if wsHub != nil {
			r.Get("/ws", wsHub.HandleWebSocket)
		}
	})

	return r
}
