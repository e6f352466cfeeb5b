package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/workspace-africa/partner-console/internal/middleware"
	"github.com/workspace-africa/partner-console/internal/model"
)

// SetupRouter настраивает маршруты и middleware локальной поверхности консоли.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/console", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/signup", h.Signup)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.guard.Middleware(model.RolePartner, model.RoleAdmin))

			r.Get("/session", h.Session)
			r.Get("/space", h.Space)
			r.Get("/dashboard", h.Dashboard)
		})

		// Проверка кодов у двери доступна только партнёру пространства.
		r.Group(func(r chi.Router) {
			r.Use(h.guard.Middleware(model.RolePartner))

			r.Post("/scanner/start", h.StartScanner)
			r.Post("/scanner/stop", h.StopScanner)
			r.Post("/scanner/code", h.SubmitCode)
			r.Post("/scanner/decode", h.SubmitDecode)
			r.Post("/scanner/reset", h.ResetScanner)
			r.Get("/scanner", h.ScannerState)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
