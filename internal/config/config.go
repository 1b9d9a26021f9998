package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Token storage backends.
const (
	TokenStorageState   = "state"
	TokenStorageKeyring = "keyring"
)

// DefaultAPIBase is used when API_BASE is not set.
const DefaultAPIBase = "http://localhost:8000"

// Config holds all environment-based configuration for notes-auth.
type Config struct {
	// Backend origin. The login URL is <APIBase>/auth/login/<provider>.
	APIBase string `env:"API_BASE" envDefault:"http://localhost:8000"`

	// Address of the local callback server. The backend redirects the
	// browser to http://localhost:3000/auth/success after sign-in, so the
	// default matches that origin.
	CallbackListenAddr string `env:"CALLBACK_LISTEN_ADDR" envDefault:"127.0.0.1:3000"`

	// Path of the state database. Defaults to ~/.notes-auth/state.db.
	StatePath string `env:"STATE_PATH"`

	// Where the access token is kept: "state" (inside the state database)
	// or "keyring" (OS credential store, state database keeps the rest).
	TokenStorage string `env:"TOKEN_STORAGE" envDefault:"state"`

	// Open the login URL in the default browser. When false, or when the
	// browser cannot be launched, the URL is printed instead.
	OpenBrowser bool `env:"OPEN_BROWSER" envDefault:"true"`

	// Delays before the callback navigates away from its result.
	SuccessDelay time.Duration `env:"AUTH_SUCCESS_DELAY" envDefault:"2s"`
	ErrorDelay   time.Duration `env:"AUTH_ERROR_DELAY" envDefault:"3s"`

	// Upper bound on the whole interactive login.
	LoginTimeout time.Duration `env:"LOGIN_TIMEOUT" envDefault:"5m"`

	// Timeout for backend API calls.
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.TokenStorage = strings.ToLower(strings.TrimSpace(cfg.TokenStorage))
	cfg.APIBase = strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")

	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if cfg.StatePath == "" {
		path, err := DefaultStatePath()
		if err != nil {
			return nil, err
		}

		cfg.StatePath = path
	}

	absPath, err := filepath.Abs(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("resolving state path to absolute path: %w", err)
	}

	cfg.StatePath = absPath

	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIBase)
	if err != nil {
		return fmt.Errorf("API_BASE is not a valid URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("API_BASE must use http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("API_BASE must include a host")
	}

	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("API_BASE must not carry a query or fragment")
	}

	if c.CallbackListenAddr == "" {
		return fmt.Errorf("CALLBACK_LISTEN_ADDR must not be empty")
	}

	switch c.TokenStorage {
	case TokenStorageState, TokenStorageKeyring:
	default:
		return fmt.Errorf("TOKEN_STORAGE must be %q or %q, got %q", TokenStorageState, TokenStorageKeyring, c.TokenStorage)
	}

	if c.SuccessDelay < 0 || c.ErrorDelay < 0 {
		return fmt.Errorf("AUTH_SUCCESS_DELAY and AUTH_ERROR_DELAY must not be negative")
	}

	if c.LoginTimeout <= 0 {
		return fmt.Errorf("LOGIN_TIMEOUT must be positive")
	}

	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}

	return nil
}

// DefaultStatePath returns ~/.notes-auth/state.db.
func DefaultStatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".notes-auth", "state.db"), nil
}

// UseKeyring reports whether the access token lives in the OS keyring.
func (c *Config) UseKeyring() bool {
	return c.TokenStorage == TokenStorageKeyring
}
