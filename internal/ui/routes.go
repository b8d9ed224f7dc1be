package ui

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all UI routes on the given router.
func (ui *UI) RegisterRoutes(r chi.Router) {
	// Public routes (no auth required).
	r.Get("/login", ui.HandleLogin)
	r.Post("/login", ui.HandleLoginPost)

	// Protected routes (auth required).
	r.Group(func(r chi.Router) {
		r.Use(ui.AuthMiddleware)

		r.Get("/", ui.HandleDashboard)
		r.Get("/logout", ui.HandleLogout)
		r.Post("/category", ui.HandleCategory)

		// Practice
		r.Route("/practice", func(r chi.Router) {
			r.Get("/", ui.HandlePracticeNext)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", ui.HandlePractice)
				r.Post("/check", ui.HandleCheck)
				r.Post("/rate", ui.HandleRate)
			})
		})

		// Progress
		r.Get("/progress/export", ui.HandleExport)
		r.Post("/progress/import", ui.HandleImport)
	})
}
