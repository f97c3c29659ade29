package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"
	"github.com/pickemslab/bracket-engine/brackets"
	"github.com/pickemslab/bracket-engine/handlers"
	"github.com/pickemslab/bracket-engine/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

func SetupRoutes(
	router *chi.Mux,
	stageHandler *handlers.StageHandler,
	bracketHandler *handlers.BracketHandler,
	adminHandler *handlers.AdminHandler,
	wsHub *brackets.Hub,
	jwtSecret string,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/swagger/*", httpSwagger.WrapHandler)

	// Public read surface. Reads are fail-open or plain fetches; none of them
	// block on a resolution in progress longer than the write lock is held.
	router.Get("/stage/current", stageHandler.CurrentStageHandler)

	router.Route("/tournaments/{tournamentID}", func(r chi.Router) {
		r.Get("/bracket", bracketHandler.GetBracketHandler)
		r.Get("/leaderboard", bracketHandler.LeaderboardHandler)
	})

	router.Get("/users/{userID}/penalties", bracketHandler.UserPenaltiesHandler)

	router.Get("/ws/tournaments/{tournamentID}", func(w http.ResponseWriter, r *http.Request) {
		handlers.ServeTournamentWs(wsHub, w, r)
	})

	// Mutations require the organizer role.
	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Authenticate([]byte(jwtSecret)))
		r.Use(middleware.Authorize("organizer"))

		r.Post("/stages/close", adminHandler.CloseStageHandler)
		r.Post("/slots/{slotID}/resolve", adminHandler.ResolveSlotHandler)
	})
}
