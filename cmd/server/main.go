package main

import (
	"errors"
	"net/http"
	"os"

	"smart-budgeter/internal/auth"
	"smart-budgeter/internal/config"
	"smart-budgeter/internal/handlers"
	"smart-budgeter/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	cfg := config.Load()

	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	defer db.Close()

	if err := bootstrapAdmin(db, cfg); err != nil {
		logger.Fatal().Err(err).Msg("failed to bootstrap admin user")
	}

	if err := db.CleanExpiredSessions(); err != nil {
		logger.Warn().Err(err).Msg("failed to clean expired sessions")
	}

	h := handlers.NewHandlers(db, cfg.TemplateDir, cfg.SecureCookies, logger)
	router := setupRouter(h, cfg.StaticDir)

	logger.Info().Str("port", cfg.Port).Msg("listening")
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

// bootstrapAdmin creates an initial account from ADMIN_USER/ADMIN_PASSWORD
// so a fresh deployment is usable before anyone registers.
func bootstrapAdmin(db *storage.DB, cfg *config.Config) error {
	if cfg.AdminUser == "" || cfg.AdminPassword == "" {
		return nil
	}

	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	if _, err := db.CreateUser(cfg.AdminUser, hash); err != nil && !errors.Is(err, storage.ErrUsernameTaken) {
		return err
	}
	return nil
}

func setupRouter(h *handlers.Handlers, staticDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/dashboard", http.StatusFound)
	})

	r.Get("/login", h.LoginForm)
	r.Post("/login", h.Login)
	r.Get("/register", h.RegisterForm)
	r.Post("/register", h.Register)
	r.Post("/logout", h.Logout)

	// Everything behind here requires an authenticated session.
	r.Group(func(r chi.Router) {
		r.Use(h.AuthMiddleware)
		r.Get("/dashboard", h.Dashboard)
		r.Post("/expenses", h.AddExpense)
	})

	return r
}
