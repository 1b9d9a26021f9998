// Package callback completes an OAuth sign-in: it takes the token the
// backend redirected back with, resolves the user it belongs to, stores
// the session, and schedules the follow-up navigation.
package callback

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/alexjbarnes/notes-auth/internal/api"
	"github.com/alexjbarnes/notes-auth/internal/models"
	"golang.org/x/sync/singleflight"
)

//go:generate mockgen -source=handler.go -destination=mock_handler_test.go -package=callback

// Status is the visible state of a callback.
type Status string

const (
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Routes navigated to once the callback settles.
const (
	RouteDashboard = "/dashboard"
	RouteLogin     = "/auth/login"
)

// User-facing messages.
const (
	MsgMissingToken = "No authentication token received"
	MsgSuccess      = "Successfully signed in!"
	MsgFailure      = "Authentication failed. Please try again."
)

// ErrClosed is returned by Wait after Close.
var ErrClosed = errors.New("callback handler closed")

// UserLookup resolves the user a token was issued to.
type UserLookup interface {
	GetCurrentUser(ctx context.Context, token string) (*models.User, error)
}

// AuthStore is the part of the auth store the handler writes to.
type AuthStore interface {
	SetAuth(user models.User, tokens models.AuthTokens)
	SetLoading(loading bool)
}

// Navigator moves the user to an application route. Navigate must not
// block or call Close.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

// Result is the status and message shown to the user.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Config holds the handler's collaborators and timings. Zero delays
// navigate immediately; a zero LookupTimeout means no timeout beyond the
// handler lifetime.
type Config struct {
	Lookup        UserLookup
	Store         AuthStore
	Navigator     Navigator
	SuccessDelay  time.Duration
	ErrorDelay    time.Duration
	LookupTimeout time.Duration
	Logger        *slog.Logger
}

// Handler processes the callbacks of a single sign-in attempt. The first
// callback decides the outcome; later callbacks receive that outcome.
//
// Store writes and navigations happen under commitMu, which Close also
// takes, so nothing is written or navigated once Close has returned.
// Store listeners must not call Close.
type Handler struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc
	group  singleflight.Group

	commitMu sync.Mutex

	mu      sync.Mutex
	result  Result
	token   string
	started bool
	ran     bool
	closed  bool
	timers  []*time.Timer

	settled  chan struct{}
	closedCh chan struct{}
}

// NewHandler returns a handler in the loading state.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Handler{
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		result:   Result{Status: StatusLoading},
		settled:  make(chan struct{}),
		closedCh: make(chan struct{}),
	}
}

// Handle processes one inbound callback query and returns the outcome. It
// blocks until the lookup settles, ctx ends, or the handler is closed;
// in the last two cases the loading result is returned.
func (h *Handler) Handle(ctx context.Context, query url.Values) Result {
	token := query.Get("token")

	h.mu.Lock()

	switch {
	case h.closed:
		res := h.result
		h.mu.Unlock()

		return res
	case !h.started:
		h.started = true
		h.token = token

		if token == "" {
			h.mu.Unlock()
			h.rejectMissingToken()

			return h.Result()
		}
	case token != h.token:
		h.cfg.Logger.Warn("ignoring callback for a different sign-in attempt")

		res := h.result
		h.mu.Unlock()

		return res
	case h.result.Status != StatusLoading, token == "":
		res := h.result
		h.mu.Unlock()

		return res
	}

	h.mu.Unlock()

	ch := h.group.DoChan(token, func() (any, error) {
		h.run(token)
		return nil, nil
	})

	select {
	case <-ch:
	case <-ctx.Done():
	case <-h.closedCh:
	}

	return h.Result()
}

// rejectMissingToken settles a callback that arrived without a token. No
// lookup is made.
func (h *Handler) rejectMissingToken() {
	h.commitMu.Lock()
	defer h.commitMu.Unlock()

	h.cfg.Logger.Warn("callback without token")
	h.cfg.Store.SetLoading(false)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.settleLocked(Result{Status: StatusError, Message: MsgMissingToken}, RouteLogin, h.cfg.ErrorDelay)
}

// run performs the lookup for token once per handler.
func (h *Handler) run(token string) {
	h.mu.Lock()
	if h.ran || h.closed {
		h.mu.Unlock()
		return
	}

	h.ran = true
	h.mu.Unlock()

	h.cfg.Store.SetLoading(true)

	ctx := h.ctx
	if h.cfg.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.LookupTimeout)
		defer cancel()
	}

	user, err := h.cfg.Lookup.GetCurrentUser(ctx, token)
	if err == nil && user == nil {
		err = errors.New("lookup returned no user")
	}

	h.commitMu.Lock()
	defer h.commitMu.Unlock()

	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()

	if closed {
		h.cfg.Logger.Debug("lookup settled after close")
		h.cfg.Store.SetLoading(false)

		return
	}

	if err != nil {
		h.cfg.Logger.Error("user lookup failed",
			slog.String("error", err.Error()),
			slog.Bool("transient", api.IsTransient(err)),
		)
		h.cfg.Store.SetLoading(false)

		h.mu.Lock()
		h.settleLocked(Result{Status: StatusError, Message: MsgFailure}, RouteLogin, h.cfg.ErrorDelay)
		h.mu.Unlock()

		return
	}

	h.cfg.Store.SetAuth(*user, models.BearerTokens(token))
	h.cfg.Store.SetLoading(false)
	h.cfg.Logger.Info("signed in",
		slog.String("user_id", user.ID),
		slog.String("provider", string(user.Provider)),
	)

	h.mu.Lock()
	h.settleLocked(Result{Status: StatusSuccess, Message: MsgSuccess}, RouteDashboard, h.cfg.SuccessDelay)
	h.mu.Unlock()
}

// settleLocked records the outcome and schedules the navigation. The
// caller holds h.mu.
func (h *Handler) settleLocked(res Result, route string, delay time.Duration) {
	if h.result.Status != StatusLoading {
		return
	}

	h.result = res
	close(h.settled)

	if h.closed {
		return
	}

	h.timers = append(h.timers, time.AfterFunc(delay, func() {
		h.commitMu.Lock()
		defer h.commitMu.Unlock()

		h.mu.Lock()
		closed := h.closed
		h.mu.Unlock()

		if closed {
			return
		}

		h.cfg.Logger.Debug("navigating", slog.String("route", route))
		h.cfg.Navigator.Navigate(route)
	}))
}

// Result returns the current outcome.
func (h *Handler) Result() Result {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.result
}

// Wait blocks until the handler leaves the loading state.
func (h *Handler) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.settled:
		return h.Result(), nil
	case <-h.closedCh:
		return h.Result(), ErrClosed
	case <-ctx.Done():
		return h.Result(), ctx.Err()
	}
}

// Close cancels any in-flight lookup and pending navigation. A store write
// or navigation already underway finishes before Close returns. It is safe
// to call more than once.
func (h *Handler) Close() {
	h.cancel()

	h.commitMu.Lock()
	defer h.commitMu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.closed = true
	close(h.closedCh)

	for _, t := range h.timers {
		t.Stop()
	}

	h.timers = nil
}
