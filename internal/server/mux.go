// Package server provides the local HTTP server the backend redirects to
// at the end of an OAuth sign-in.
package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/alexjbarnes/notes-auth/internal/callback"
	"github.com/alexjbarnes/notes-auth/internal/login"
)

const (
	readTimeout     = 30 * time.Second
	writeTimeout    = 60 * time.Second
	idleTimeout     = 120 * time.Second
	shutdownTimeout = 10 * time.Second
)

// CallbackHandler completes a sign-in from the callback query.
type CallbackHandler interface {
	Handle(ctx context.Context, query url.Values) callback.Result
}

// LoginStarter begins a sign-in with the given redirector.
type LoginStarter interface {
	Begin(provider string, r login.Redirector) error
	Err() string
}

// MuxConfig holds dependencies for building the HTTP mux.
type MuxConfig struct {
	Callback CallbackHandler
	Login    LoginStarter
	Logger   *slog.Logger
}

// NewMux builds the HTTP mux with the callback page, the optional login
// redirect, and a banner at the root.
func NewMux(cfg MuxConfig) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /auth/success", handleCallback(cfg.Callback, cfg.Logger))

	if cfg.Login != nil {
		mux.HandleFunc("GET /login/{provider}", handleLogin(cfg.Login))
	}

	mux.HandleFunc("GET /{$}", handleBanner)

	return mux
}

// NewServer wraps handler in an http.Server with the standard timeouts.
func NewServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Serve runs server on ln until ctx is cancelled.
func Serve(ctx context.Context, server *http.Server, ln net.Listener, logger *slog.Logger) error {
	logger.Info("starting callback server", slog.String("listen", ln.Addr().String()))

	// Shutdown when context is cancelled.
	go func() {
		<-ctx.Done()
		logger.Info("shutting down callback server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("callback server error: %w", err)
	}

	return nil
}

func handleCallback(h CallbackHandler, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res := h.Handle(r.Context(), r.URL.Query())

		status := http.StatusOK
		if res.Status == callback.StatusError {
			status = http.StatusUnauthorized
		}

		if err := renderStatus(w, status, res); err != nil {
			logger.Warn("rendering callback page", slog.String("error", err.Error()))
		}
	}
}

func handleLogin(starter LoginStarter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := starter.Begin(r.PathValue("provider"), login.HTTPRedirector{W: w, R: r}); err != nil {
			http.Error(w, starter.Err(), http.StatusBadRequest)
		}
	}
}

func handleBanner(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "notes-auth callback server")
}

var statusPage = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{- if .Hint}}
<p>{{.Hint}}</p>
{{- end}}
</body>
</html>
`))

type pageData struct {
	Title   string
	Message string
	Hint    string
}

func renderStatus(w http.ResponseWriter, code int, res callback.Result) error {
	data := pageData{Message: res.Message}

	switch res.Status {
	case callback.StatusSuccess:
		data.Title = "Welcome!"
		data.Hint = "You can close this window and return to the terminal."
	case callback.StatusError:
		data.Title = "Authentication Failed"
		data.Hint = "Run the login command again to retry."
	default:
		data.Title = "Signing in"
		data.Message = "Completing authentication..."
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)

	return statusPage.Execute(w, data)
}
