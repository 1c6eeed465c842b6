package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logged := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logged.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// Router returns a configured chi router serving every endpoint in
// component G's HTTP/WS front.
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Post("/create", h.handleCreateRoom)
	r.Post("/exists", h.handleExists)
	r.Get("/cards/{id}", h.handleGetCard)
	r.Get("/ws", h.handleWebsocket)
	r.Get("/stats", h.handleStats)
	r.Get("/rooms/{code}/qr", h.handleRoomQR)
	r.Post("/generate-password", h.handleGeneratePassword)

	return r
}
