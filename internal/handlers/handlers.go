package handlers

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"smart-budgeter/internal/auth"
	"smart-budgeter/internal/models"
	"smart-budgeter/internal/storage"

	"github.com/rs/zerolog"
)

// Context key type to avoid collisions.
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user.
	UserContextKey contextKey = "user"
	// SessionCookieName is the name of the session cookie.
	SessionCookieName = "session"
	// SessionDuration is how long sessions last (30 days).
	SessionDuration = 30 * 24 * time.Hour
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	db           *storage.DB
	templateDir  string
	secureCookie bool
	logger       zerolog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *storage.DB, templateDir string, secureCookie bool, logger zerolog.Logger) *Handlers {
	return &Handlers{db: db, templateDir: templateDir, secureCookie: secureCookie, logger: logger}
}

// GetUserFromContext retrieves the authenticated user from request context.
func GetUserFromContext(r *http.Request) *models.User {
	if user, ok := r.Context().Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

// AuthMiddleware wraps handlers to require authentication.
// It also implements rolling sessions: if a session is past the halfway point
// of its lifetime, it automatically renews the session.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		sessionInfo, err := h.db.ValidateSessionWithInfo(cookie.Value)
		if err != nil {
			// Invalid or expired session, clear the cookie
			h.clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		// Rolling session: renew if past halfway point
		// This keeps active users logged in while still expiring inactive sessions
		now := time.Now()
		timeUntilExpiry := sessionInfo.ExpiresAt.Sub(now)
		halfSessionDuration := SessionDuration / 2

		if timeUntilExpiry < halfSessionDuration {
			newExpiresAt := now.Add(SessionDuration)
			if err := h.db.RenewSession(cookie.Value, newExpiresAt); err == nil {
				h.setSessionCookie(w, cookie.Value)
			}
			// If renewal fails, just continue with the current session
		}

		ctx := context.WithValue(r.Context(), UserContextKey, sessionInfo.User)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoginViewModel holds data for the login page.
type LoginViewModel struct {
	Error string
}

// LoginForm renders the login page.
func (h *Handlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	// If already logged in, go straight to the dashboard
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		if _, err := h.db.ValidateSession(cookie.Value); err == nil {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}
	}
	h.render(w, r, "login.html", LoginViewModel{})
}

// Login handles the login form submission.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, "login.html", LoginViewModel{Error: "Invalid form submission"})
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	if username == "" || password == "" {
		h.render(w, r, "login.html", LoginViewModel{Error: "Username and password are required"})
		return
	}

	// A missing user and a wrong password produce the same message so the
	// login form cannot be used to enumerate usernames.
	user, err := h.db.GetUserByUsername(username)
	if err != nil || !auth.CheckPassword(password, user.PasswordHash) {
		h.render(w, r, "login.html", LoginViewModel{Error: "Invalid username or password"})
		return
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to generate session token")
		h.render(w, r, "login.html", LoginViewModel{Error: "An error occurred. Please try again."})
		return
	}

	expiresAt := time.Now().Add(SessionDuration)
	if err := h.db.CreateSession(token, user.Username, expiresAt); err != nil {
		h.logger.Error().Err(err).Msg("failed to create session")
		h.render(w, r, "login.html", LoginViewModel{Error: "An error occurred. Please try again."})
		return
	}

	h.setSessionCookie(w, token)
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// RegisterViewModel holds data for the registration page.
type RegisterViewModel struct {
	Error   string
	Success string
}

// RegisterForm renders the registration page.
func (h *Handlers) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "register.html", RegisterViewModel{})
}

// Register handles the registration form submission.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, "register.html", RegisterViewModel{Error: "Invalid form submission"})
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	if username == "" || password == "" {
		h.render(w, r, "register.html", RegisterViewModel{Error: "Username and password are required"})
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to hash password")
		h.render(w, r, "register.html", RegisterViewModel{Error: "An error occurred. Please try again."})
		return
	}

	if _, err := h.db.CreateUser(username, hash); err != nil {
		if errors.Is(err, storage.ErrUsernameTaken) {
			h.render(w, r, "register.html", RegisterViewModel{Error: "Username already exists. Try a different one."})
			return
		}
		h.logger.Error().Err(err).Str("username", username).Msg("failed to create user")
		h.render(w, r, "register.html", RegisterViewModel{Error: "An error occurred. Please try again."})
		return
	}

	h.logger.Info().Str("username", username).Msg("user registered")
	h.render(w, r, "register.html", RegisterViewModel{Success: "Account created successfully!"})
}

// Logout handles user logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := h.db.DeleteSession(cookie.Value); err != nil {
			h.logger.Error().Err(err).Msg("failed to delete session")
		}
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *Handlers) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(SessionDuration.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// CategoryDef defines the display properties of a category.
type CategoryDef struct {
	Name  string
	Icon  string
	Color string
}

var categories = []CategoryDef{
	{"Food", "🍽️", "#60a5fa"},
	{"Transport", "🚌", "#a78bfa"},
	{"Shopping", "🛍️", "#f472b6"},
	{"Utilities", "💡", "#fbbf24"},
	{"Entertainment", "🎮", "#818cf8"},
	{"Others", "📦", "#94a3b8"},
}

// CategoryStyle defines the visual style for a category.
type CategoryStyle struct {
	Icon  string
	Color string
}

func getCategoryStyle(category string) CategoryStyle {
	for _, c := range categories {
		if strings.EqualFold(c.Name, category) {
			return CategoryStyle{Icon: c.Icon, Color: c.Color}
		}
	}
	return CategoryStyle{Icon: "📦", Color: "#94a3b8"}
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, viewName string, data any) {
	tmpl, err := template.ParseFiles(filepath.Join(h.templateDir, "base.html"), filepath.Join(h.templateDir, viewName))
	if err != nil {
		h.logger.Error().Err(err).Str("view", viewName).Msg("template error")
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	target := "base.html"
	if r.Header.Get("HX-Request") == "true" {
		target = "content"
	}
	if err := tmpl.ExecuteTemplate(w, target, data); err != nil {
		h.logger.Error().Err(err).Str("view", viewName).Msg("template execution error")
	}
}
