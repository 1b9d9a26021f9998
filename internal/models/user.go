// Package models defines types shared across internal packages.
package models

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/alexjbarnes/notes-auth/internal/errors"
)

// Provider identifies an OAuth identity provider supported by the backend.
type Provider string

const (
	ProviderGitHub Provider = "github"
	ProviderGoogle Provider = "google"
)

// ParseProvider converts user input into a Provider. Matching ignores case
// and surrounding whitespace.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", apperrors.ErrUnsupportedProvider, s)
	}

	return p, nil
}

// Valid reports whether p is one of the supported providers.
func (p Provider) Valid() bool {
	return p == ProviderGitHub || p == ProviderGoogle
}

// DisplayName returns the human-readable provider name.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderGitHub:
		return "GitHub"
	case ProviderGoogle:
		return "Google"
	}

	return string(p)
}

// User is the identity record returned by GET /auth/me.
type User struct {
	ID         string     `json:"id" yaml:"id"`
	Email      string     `json:"email" yaml:"email"`
	Username   string     `json:"username,omitempty" yaml:"username,omitempty"`
	FullName   string     `json:"full_name,omitempty" yaml:"full_name,omitempty"`
	Provider   Provider   `json:"provider" yaml:"provider"`
	ProviderID string     `json:"provider_id" yaml:"provider_id"`
	AvatarURL  string     `json:"avatar_url,omitempty" yaml:"avatar_url,omitempty"`
	IsActive   bool       `json:"is_active" yaml:"is_active"`
	IsVerified bool       `json:"is_verified" yaml:"is_verified"`
	CreatedAt  time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" yaml:"updated_at"`
	LastLogin  *time.Time `json:"last_login,omitempty" yaml:"last_login,omitempty"`
}

// DisplayName returns the best available name for the user.
func (u User) DisplayName() string {
	switch {
	case u.FullName != "":
		return u.FullName
	case u.Username != "":
		return u.Username
	}

	return u.Email
}

// UserPatch is a partial User. Nil fields are left untouched by Apply.
type UserPatch struct {
	ID         *string
	Email      *string
	Username   *string
	FullName   *string
	Provider   *Provider
	ProviderID *string
	AvatarURL  *string
	IsActive   *bool
	IsVerified *bool
	CreatedAt  *time.Time
	UpdatedAt  *time.Time
	LastLogin  *time.Time
}

// Apply returns a copy of u with every non-nil field of p written over it.
func (p UserPatch) Apply(u User) User {
	if p.ID != nil {
		u.ID = *p.ID
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	if p.Provider != nil {
		u.Provider = *p.Provider
	}
	if p.ProviderID != nil {
		u.ProviderID = *p.ProviderID
	}
	if p.AvatarURL != nil {
		u.AvatarURL = *p.AvatarURL
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	if p.IsVerified != nil {
		u.IsVerified = *p.IsVerified
	}
	if p.CreatedAt != nil {
		u.CreatedAt = *p.CreatedAt
	}
	if p.UpdatedAt != nil {
		u.UpdatedAt = *p.UpdatedAt
	}
	if p.LastLogin != nil {
		t := *p.LastLogin
		u.LastLogin = &t
	}

	return u
}

// PatchFrom builds a patch that carries every field of u except ID.
// Empty optional strings and a nil LastLogin are left out so a sparse
// server response does not erase locally known values.
func PatchFrom(u User) UserPatch {
	p := UserPatch{
		Email:      &u.Email,
		Provider:   &u.Provider,
		IsActive:   &u.IsActive,
		IsVerified: &u.IsVerified,
		CreatedAt:  &u.CreatedAt,
		UpdatedAt:  &u.UpdatedAt,
		LastLogin:  u.LastLogin,
	}

	if u.Username != "" {
		p.Username = &u.Username
	}
	if u.FullName != "" {
		p.FullName = &u.FullName
	}
	if u.ProviderID != "" {
		p.ProviderID = &u.ProviderID
	}
	if u.AvatarURL != "" {
		p.AvatarURL = &u.AvatarURL
	}

	return p
}

// TokenTypeBearer is the only token type the backend issues.
const TokenTypeBearer = "Bearer"

// AuthTokens holds the credential issued by the backend after OAuth
// sign-in. There is no refresh token and no expiry.
type AuthTokens struct {
	AccessToken string `json:"access_token" yaml:"access_token"`
	TokenType   string `json:"token_type" yaml:"token_type"`
}

// BearerTokens wraps a raw access token as Bearer credentials.
func BearerTokens(token string) AuthTokens {
	return AuthTokens{AccessToken: token, TokenType: TokenTypeBearer}
}

// Masked returns the token with everything but the last four characters
// hidden, for display.
func (t AuthTokens) Masked() string {
	const visible = 4
	if len(t.AccessToken) <= visible {
		return strings.Repeat("*", len(t.AccessToken))
	}

	return strings.Repeat("*", 8) + t.AccessToken[len(t.AccessToken)-visible:]
}
