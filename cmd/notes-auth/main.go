package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alexjbarnes/notes-auth/internal/api"
	"github.com/alexjbarnes/notes-auth/internal/callback"
	"github.com/alexjbarnes/notes-auth/internal/config"
	apperrors "github.com/alexjbarnes/notes-auth/internal/errors"
	"github.com/alexjbarnes/notes-auth/internal/logging"
	"github.com/alexjbarnes/notes-auth/internal/login"
	"github.com/alexjbarnes/notes-auth/internal/models"
	"github.com/alexjbarnes/notes-auth/internal/secrets"
	"github.com/alexjbarnes/notes-auth/internal/server"
	"github.com/alexjbarnes/notes-auth/internal/session"
	"github.com/alexjbarnes/notes-auth/internal/state"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

var Version = "dev"

// usage lists the commands, with the login providers taken from the
// provider registry.
func usage() string {
	var b strings.Builder

	b.WriteString("usage: notes-auth <command>\n\ncommands:\n")
	fmt.Fprintf(&b, "  %-35s%s\n", "login <"+providerNames("|")+">", "sign in through the browser")
	fmt.Fprintf(&b, "  %-35s%s\n", "logout", "sign out and forget the token")
	fmt.Fprintf(&b, "  %-35s%s\n", "status [--format text|yaml|json]", "show the stored session")
	fmt.Fprintf(&b, "  %-35s%s\n", "refresh", "reload the signed-in user's profile")
	fmt.Fprintf(&b, "  %-35s%s\n", "version", "print the version")

	return b.String()
}

func providerNames(sep string) string {
	opts := login.Providers()
	names := make([]string, len(opts))

	for i, o := range opts {
		names[i] = string(o.Provider)
	}

	return strings.Join(names, sep)
}

var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	switch args[0] {
	case "version":
		fmt.Fprintln(out, Version)
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(out, usage())
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)
	logger.Debug("notes-auth starting",
		slog.String("version", Version),
		slog.String("command", args[0]),
		slog.String("token_storage", cfg.TokenStorage),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger, out)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.dispatch(ctx, args[0], args[1:])
}

// app bundles the long-lived pieces every command needs.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	out     io.Writer
	state   *state.State
	store   *session.Store
	client  *api.Client
	browser login.Redirector
}

func newApp(cfg *config.Config, logger *slog.Logger, out io.Writer) (*app, error) {
	appState, err := state.LoadAt(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("loading state: %w", err)
	}

	var persister session.Persister = appState
	if cfg.UseKeyring() {
		persister = secrets.NewKeyringVault(appState, secrets.DefaultService)
	}

	store := session.NewStore(persister, logger)
	store.Subscribe(func(st session.State) {
		logger.Debug("auth state changed",
			slog.Bool("authenticated", st.IsAuthenticated),
			slog.Bool("loading", st.IsLoading),
		)
	})

	return &app{
		cfg:     cfg,
		logger:  logger,
		out:     out,
		state:   appState,
		store:   store,
		client:  api.NewClient(cfg.APIBase, &http.Client{Timeout: cfg.HTTPTimeout}),
		browser: login.BrowserRedirector{},
	}, nil
}

func (a *app) Close() error {
	return a.state.Close()
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "status":
		return a.status(args)
	case "refresh":
		return a.refresh(ctx)
	}

	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

// printRedirector shows the URL for the user to open by hand.
type printRedirector struct {
	out io.Writer
}

func (p printRedirector) Redirect(target string) error {
	_, err := fmt.Fprintf(p.out, "Open this URL to sign in:\n  %s\n", target)
	return err
}

// fallbackRedirector tries primary and falls back to printing the URL.
type fallbackRedirector struct {
	primary  login.Redirector
	fallback login.Redirector
	logger   *slog.Logger
}

func (f fallbackRedirector) Redirect(target string) error {
	if err := f.primary.Redirect(target); err != nil {
		f.logger.Warn("could not open browser", slog.String("error", err.Error()))
		return f.fallback.Redirect(target)
	}

	return nil
}

func (a *app) redirector() login.Redirector {
	manual := printRedirector{out: a.out}
	if !a.cfg.OpenBrowser {
		return manual
	}

	return fallbackRedirector{primary: a.browser, fallback: manual, logger: a.logger}
}

func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: login takes exactly one provider (%s)", errUsage, providerNames(", "))
	}

	provider, err := models.ParseProvider(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.LoginTimeout)
	defer cancel()

	ln, err := net.Listen("tcp", a.cfg.CallbackListenAddr)
	if err != nil {
		return fmt.Errorf("starting callback server: %w", err)
	}

	routes := make(chan string, 1)
	handler := callback.NewHandler(callback.Config{
		Lookup: a.client,
		Store:  a.store,
		Navigator: callback.NavigatorFunc(func(route string) {
			select {
			case routes <- route:
			default:
			}
		}),
		SuccessDelay:  a.cfg.SuccessDelay,
		ErrorDelay:    a.cfg.ErrorDelay,
		LookupTimeout: a.cfg.HTTPTimeout,
		Logger:        a.logger.With(slog.String("component", "callback")),
	})
	defer handler.Close()

	defer func() {
		if a.store.Snapshot().IsLoading {
			a.store.SetLoading(false)
		}
	}()

	initiator := login.NewInitiator(a.cfg.APIBase, a.store, a.logger)
	srv := server.NewServer(server.NewMux(server.MuxConfig{
		Callback: handler,
		Login:    initiator,
		Logger:   a.logger,
	}))

	g, gctx := errgroup.WithContext(ctx)
	srvCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	g.Go(func() error {
		return server.Serve(srvCtx, srv, ln, a.logger)
	})

	var route string

	g.Go(func() error {
		defer stopServer()

		if err := initiator.Begin(string(provider), a.redirector()); err != nil {
			return fmt.Errorf("%s: %w", initiator.Err(), err)
		}

		fmt.Fprintf(a.out, "Waiting for %s sign-in to complete...\n", provider.DisplayName())

		res, err := handler.Wait(gctx)
		if err != nil {
			return fmt.Errorf("waiting for sign-in: %w", err)
		}

		fmt.Fprintln(a.out, res.Message)

		select {
		case route = <-routes:
			return nil
		case <-gctx.Done():
			return fmt.Errorf("waiting for sign-in: %w", gctx.Err())
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if route != callback.RouteDashboard {
		return fmt.Errorf("sign-in failed: %s", handler.Result().Message)
	}

	if err := a.store.PersistErr(); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	st := a.store.Snapshot()
	fmt.Fprintf(a.out, "Signed in as %s <%s> via %s\n", st.User.DisplayName(), st.User.Email, st.User.Provider.DisplayName())

	return nil
}

func (a *app) logout(ctx context.Context) error {
	st := a.store.Snapshot()
	if !st.IsAuthenticated {
		fmt.Fprintln(a.out, "Not signed in.")
		return nil
	}

	if err := a.client.Logout(ctx, st.Tokens.AccessToken); err != nil {
		a.logger.Warn("backend logout failed", slog.String("error", err.Error()))
	}

	a.store.ClearAuth()
	if err := a.store.PersistErr(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}

	// Leave no record behind, not even the signed-out envelope.
	if err := a.state.DeleteAuth(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}

	fmt.Fprintln(a.out, "Signed out.")

	return nil
}

// statusView is the printable form of the stored session.
type statusView struct {
	Authenticated bool         `json:"authenticated" yaml:"authenticated"`
	User          *models.User `json:"user,omitempty" yaml:"user,omitempty"`
	Token         string       `json:"token,omitempty" yaml:"token,omitempty"`
	TokenType     string       `json:"token_type,omitempty" yaml:"token_type,omitempty"`
	TokenStorage  string       `json:"token_storage" yaml:"token_storage"`
	StatePath     string       `json:"state_path" yaml:"state_path"`
}

func (a *app) status(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	format := fs.String("format", "text", "output format (text, yaml, json)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}

	st := a.store.Snapshot()
	view := statusView{
		Authenticated: st.IsAuthenticated,
		User:          st.User,
		TokenStorage:  a.cfg.TokenStorage,
		StatePath:     a.state.Path(),
	}

	if st.Tokens != nil {
		view.Token = st.Tokens.Masked()
		view.TokenType = st.Tokens.TokenType
	}

	switch *format {
	case "json":
		data, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding status: %w", err)
		}
		fmt.Fprintln(a.out, string(data))
	case "yaml":
		data, err := yaml.Marshal(view)
		if err != nil {
			return fmt.Errorf("encoding status: %w", err)
		}
		fmt.Fprint(a.out, string(data))
	case "text":
		printStatusText(a.out, view)
	default:
		return fmt.Errorf("%w: unknown format %q", errUsage, *format)
	}

	return nil
}

func printStatusText(w io.Writer, v statusView) {
	if !v.Authenticated {
		fmt.Fprintln(w, "Not signed in.")
		fmt.Fprintf(w, "State: %s\n", v.StatePath)
		return
	}

	fmt.Fprintf(w, "Signed in as %s <%s>\n", v.User.DisplayName(), v.User.Email)
	fmt.Fprintf(w, "Provider: %s\n", v.User.Provider.DisplayName())
	fmt.Fprintf(w, "User ID: %s\n", v.User.ID)
	if v.User.LastLogin != nil {
		fmt.Fprintf(w, "Last login: %s\n", v.User.LastLogin.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(w, "Token: %s (%s, stored in %s)\n", v.Token, v.TokenType, v.TokenStorage)
	fmt.Fprintf(w, "State: %s\n", v.StatePath)
}

func (a *app) refresh(ctx context.Context) error {
	st := a.store.Snapshot()
	if !st.IsAuthenticated {
		return apperrors.ErrNotAuthenticated
	}

	user, err := a.client.GetCurrentUser(ctx, st.Tokens.AccessToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidToken) {
			a.store.ClearAuth()
			return fmt.Errorf("session expired, sign in again: %w", err)
		}

		return fmt.Errorf("refreshing profile: %w", err)
	}

	if user.ID != st.User.ID {
		return fmt.Errorf("refreshing profile: backend returned user %s, expected %s", user.ID, st.User.ID)
	}

	if !a.store.UpdateUser(models.PatchFrom(*user)) {
		return apperrors.ErrNotAuthenticated
	}

	if err := a.store.PersistErr(); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}

	fmt.Fprintf(a.out, "Profile refreshed for %s <%s>\n", user.DisplayName(), user.Email)

	return nil
}
