package http

import (
	"net/http"

	"crisis-quiz-service/internal/app"
	"crisis-quiz-service/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig carries the use cases exposed over HTTP.
type RouterConfig struct {
	Questions *app.QuestionService
	Policy    *app.PolicyService
	Accounts  *app.AccountService
	Rooms     *app.RoomService
	Issuer    *auth.Issuer
}

func NewRouter(cfg RouterConfig) http.Handler {
	api := NewAPIHandler(cfg.Questions, cfg.Policy, cfg.Accounts)
	ws := NewWSHandler(cfg.Rooms)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/users/signup", api.Signup)
		r.Post("/users/login", api.Login)
		r.Get("/game/leaderboard", api.Leaderboard)
		r.Get("/questions/random", api.RandomQuestion)

		r.Group(func(r chi.Router) {
			r.Use(cfg.Issuer.Middleware)

			r.Get("/users/logout", api.Logout)
			r.Post("/game/update-score", api.UpdateScore)
			r.Post("/policy_governance/questions", api.PolicyScenario)
			r.Post("/policy_governance/evaluate", api.PolicyEvaluate)
			r.Post("/policy_governance/generate_and_evaluate", api.PolicyGenerateAndEvaluate)
			r.Post("/{mode}/questions", api.Questions)
		})
	})

	r.With(cfg.Issuer.Middleware).Get("/ws", ws.ServeWS)
	return r
}
