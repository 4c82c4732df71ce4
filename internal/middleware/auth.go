package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/s1natex/todo-web-GO/internal/session"
)

// SessionSource resolves the caller's identity from a request.
type SessionSource interface {
	FromRequest(r *http.Request) (session.Identity, error)
}

type SessionGateConfig struct {
	Sessions  SessionSource
	LoginURL  string
	SkipPaths []string
	Logger    *slog.Logger
}

type authErr struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SessionGate attaches the session identity to the request context. Without
// a valid session, GET and HEAD requests are redirected to the login page and
// every other method fails closed with 401.
func SessionGate(cfg SessionGateConfig) func(http.Handler) http.Handler {
	// normalize skip path set
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}
	loginURL := cfg.LoginURL
	if loginURL == "" {
		loginURL = "/login"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			id, err := cfg.Sessions.FromRequest(r)
			if err != nil {
				if !errors.Is(err, session.ErrNoSession) {
					logger.DebugContext(r.Context(), "session_rejected",
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)
				}
				rejectedTotal.WithLabelValues("unauthenticated").Inc()
				switch r.Method {
				case http.MethodGet, http.MethodHead:
					w.Header().Set("Location", loginURL)
					w.WriteHeader(http.StatusFound)
				default:
					unauthorized(w)
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(session.WithIdentity(r.Context(), id)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(authErr{Message: "Authentication required"})
}
