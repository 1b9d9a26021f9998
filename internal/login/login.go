// Package login starts an OAuth sign-in by sending the user to the
// backend's provider login endpoint.
package login

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/alexjbarnes/notes-auth/internal/models"
	"github.com/pkg/browser"
)

//go:generate mockgen -source=login.go -destination=mock_login_test.go -package=login

// GenericError is the only message users see when a login cannot start.
const GenericError = "Something went wrong. Please try again."

const loginPathPrefix = "/auth/login/"

// Redirector performs a full navigation to target.
type Redirector interface {
	Redirect(target string) error
}

// LoadingSetter is the part of the auth store the initiator drives.
type LoadingSetter interface {
	SetLoading(loading bool)
}

// ProviderOption is one entry of the provider picker.
type ProviderOption struct {
	Provider    models.Provider
	DisplayName string
}

// BrowserRedirector opens the target in the user's default browser.
type BrowserRedirector struct{}

func (BrowserRedirector) Redirect(target string) error {
	if err := browser.OpenURL(target); err != nil {
		return fmt.Errorf("opening browser: %w", err)
	}

	return nil
}

// HTTPRedirector answers the current request with a 302 to the target.
type HTTPRedirector struct {
	W http.ResponseWriter
	R *http.Request
}

func (h HTTPRedirector) Redirect(target string) error {
	http.Redirect(h.W, h.R, target, http.StatusFound)
	return nil
}

// Initiator builds provider login URLs and starts the navigation.
type Initiator struct {
	apiBase string
	store   LoadingSetter
	logger  *slog.Logger

	mu     sync.Mutex
	errMsg string
}

// NewInitiator returns an Initiator for the backend at apiBase.
func NewInitiator(apiBase string, store LoadingSetter, logger *slog.Logger) *Initiator {
	return &Initiator{
		apiBase: strings.TrimRight(apiBase, "/"),
		store:   store,
		logger:  logger,
	}
}

// Providers lists the supported providers in display order.
func Providers() []ProviderOption {
	return []ProviderOption{
		{Provider: models.ProviderGitHub, DisplayName: models.ProviderGitHub.DisplayName()},
		{Provider: models.ProviderGoogle, DisplayName: models.ProviderGoogle.DisplayName()},
	}
}

// LoginURL returns the backend URL that starts the OAuth flow for p.
func (in *Initiator) LoginURL(p models.Provider) (string, error) {
	if !p.Valid() {
		_, err := models.ParseProvider(string(p))
		return "", err
	}

	u, err := url.Parse(in.apiBase + loginPathPrefix + url.PathEscape(string(p)))
	if err != nil {
		return "", fmt.Errorf("building login URL: %w", err)
	}

	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("building login URL: %q is not absolute", u.String())
	}

	return u.String(), nil
}

// Begin starts the login for provider. On success loading stays true until
// the callback settles it.
func (in *Initiator) Begin(provider string, r Redirector) error {
	in.setErr("")
	in.store.SetLoading(true)

	err := in.begin(provider, r)
	if err != nil {
		in.logger.Error("login failed to start",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		in.setErr(GenericError)
		in.store.SetLoading(false)

		return err
	}

	in.logger.Info("login started", slog.String("provider", provider))

	return nil
}

func (in *Initiator) begin(provider string, r Redirector) error {
	p, err := models.ParseProvider(provider)
	if err != nil {
		return fmt.Errorf("starting login: %w", err)
	}

	target, err := in.LoginURL(p)
	if err != nil {
		return fmt.Errorf("starting login: %w", err)
	}

	if err := r.Redirect(target); err != nil {
		return fmt.Errorf("starting login: %w", err)
	}

	return nil
}

// Err returns the current user-facing error message, or "".
func (in *Initiator) Err() string {
	in.mu.Lock()
	defer in.mu.Unlock()

	return in.errMsg
}

func (in *Initiator) setErr(msg string) {
	in.mu.Lock()
	in.errMsg = msg
	in.mu.Unlock()
}
