// Package httpapi serves the accountcore engine over HTTP with chi.
//
// Every JSON response uses the envelope
// {success, data|error{code,message}, meta{request_id,timestamp}}.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/MrEthical07/accountcore"
	"github.com/MrEthical07/accountcore/internal/logging"
	"github.com/MrEthical07/accountcore/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Options configures NewRouter. Engine is required.
type Options struct {
	Engine *accountcore.Engine
	Logger *slog.Logger
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	// Health is consulted by GET /healthz; nil always reports healthy.
	Health func(ctx context.Context) error
}

// NewRouter returns the HTTP handler for every account route.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	h := &handler{
		engine:   opts.Engine,
		logger:   logger,
		validate: newValidator(),
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(clientContext)
	r.Use(accessLog(logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", health(opts.Health))
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Post("/signup", h.signup)
	r.Post("/verify-otp", h.verifyOTP)
	r.Post("/resend-otp", h.resendOTP)
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
	r.Post("/password-reset/request", h.requestPasswordReset)
	r.Post("/password-reset/complete", h.completePasswordReset)

	r.Group(func(r chi.Router) {
		r.Use(middleware.GuardWith(opts.Engine, h.rejectSession))
		r.Post("/logout-all", h.logoutAll)
		r.Get("/me", h.me)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	return r
}

func health(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				writeError(w, r, http.StatusServiceUnavailable, codeUnavailable, "dependency check failed", nil)
				return
			}
		}
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// clientContext records the caller's address and user agent for audit events.
func clientContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		ctx := accountcore.WithClientIP(r.Context(), ip)
		ctx = accountcore.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", chimiddleware.GetReqID(r.Context()),
			)
		})
	}
}
