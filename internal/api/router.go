package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/login", apiHandler.LoginHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Session-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.AuthMiddleware)

			r.Post("/logout", apiHandler.LogoutHandler)
			r.Get("/session", apiHandler.GetSessionHandler)
			r.Get("/stats", apiHandler.StatsHandler)

			// Persona routes
			r.Get("/personas", apiHandler.ListPersonasHandler)
			r.Post("/personas/{personaID}/activate", apiHandler.ActivatePersonaHandler)

			// Model and generation parameter routes
			r.Get("/models", apiHandler.ListModelsHandler)
			r.Put("/model", apiHandler.SelectModelHandler)
			r.Put("/params", apiHandler.UpdateParamsHandler)
			r.Post("/params/reset", apiHandler.ResetParamsHandler)

			// Room routes
			r.Get("/rooms", apiHandler.ListRoomsHandler)
			r.Post("/rooms", apiHandler.CreateRoomHandler)
			r.Post("/rooms/clear", apiHandler.ClearRoomHandler)
			r.Post("/rooms/{roomName}/activate", apiHandler.ActivateRoomHandler)
			r.Put("/rooms/{roomName}", apiHandler.RenameRoomHandler)
			r.Delete("/rooms/{roomName}", apiHandler.DeleteRoomHandler)

			// Message routes
			r.Get("/messages", apiHandler.ListMessagesHandler)
			r.Post("/messages", apiHandler.PostMessageHandler)
			r.Get("/messages/latest/reveal", apiHandler.RevealHandler)
		})
	})

	return r
}
