package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/carelink/whatsapp-bot/internal/handler/webhook"
	"github.com/carelink/whatsapp-bot/internal/service/whatsapp"
	"github.com/carelink/whatsapp-bot/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(engine webhook.Engine, gateway whatsapp.Gateway, verifyToken string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	webhookHandler := webhook.New(engine, gateway, verifyToken)
	webhookHandler.RegisterRoutes(r)

	return r
}
