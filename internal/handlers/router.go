package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"

	mW "github.com/scribeworks/backend/internal/middleware"
	"github.com/scribeworks/backend/internal/services"
)

// RouterConfig carries everything the HTTP surface is built from.
type RouterConfig struct {
	Tasks       *services.TaskRegistry
	Submissions *services.SubmissionEngine
	Accounts    *services.AccountService
	Wallet      *services.WalletService

	JWTSecret string
	// Limiter throttles lock and submit calls per account. Nil disables it.
	Limiter *mW.RateLimiter
	// Metrics serves /metrics when set.
	Metrics  http.Handler
	MediaDir string
	// RequestLogging enables chi's request logger.
	RequestLogging bool
	Log            logrus.FieldLogger
}

func NewRouter(cfg RouterConfig) http.Handler {
	taskHandler := NewTaskHandler(cfg.Tasks)
	submissionHandler := NewSubmissionHandler(cfg.Submissions)
	accountHandler := NewAccountHandler(cfg.Accounts, cfg.Wallet)
	walletHandler := NewWalletHandler(cfg.Wallet)
	auth := mW.NewAuthenticator(cfg.JWTSecret, cfg.Accounts, cfg.Log)

	throttle := func(next http.Handler) http.Handler { return next }
	if cfg.Limiter != nil {
		throttle = cfg.Limiter.Middleware
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if cfg.RequestLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	if cfg.MediaDir != "" {
		r.Handle("/media/tasks/*", http.StripPrefix("/media/tasks/", mW.ReferenceFileServer(cfg.MediaDir)))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Get("/me", accountHandler.Me)
		r.Patch("/me", accountHandler.UpdateMe)

		r.Get("/tasks", taskHandler.ListTasks)
		r.Get("/tasks/{taskId}", taskHandler.GetTask)
		r.With(throttle).Post("/tasks/{taskId}/lock", taskHandler.LockTask)
		r.Post("/tasks/{taskId}/release", taskHandler.ReleaseTask)

		r.Get("/submissions", submissionHandler.ListSubmissions)
		r.With(throttle).Post("/submissions", submissionHandler.Submit)
		r.Get("/submissions/{submissionId}", submissionHandler.GetSubmission)

		r.Get("/wallet", walletHandler.GetWallet)
		r.Post("/wallet/withdraw", walletHandler.Withdraw)
		r.Get("/transactions", walletHandler.ListTransactions)

		// Admin endpoints
		r.Group(func(r chi.Router) {
			r.Use(mW.RequireAdmin)

			r.Post("/tasks", taskHandler.CreateTask)
			r.Post("/submissions/{submissionId}/moderate", submissionHandler.Moderate)
			r.Get("/accounts", accountHandler.ListAccounts)
			r.Patch("/accounts/{accountId}", accountHandler.UpdateAccount)
			r.Post("/accounts/{accountId}/adjust", accountHandler.Adjust)
		})
	})

	return r
}
