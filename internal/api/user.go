package api

import (
	"fmt"
	"time"

	apperrors "github.com/alexjbarnes/notes-auth/internal/errors"
	"github.com/alexjbarnes/notes-auth/internal/models"
	"github.com/tidwall/gjson"
	"golang.org/x/text/unicode/norm"
)

// Timestamp layouts accepted from the backend. Values without a zone are
// treated as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrMalformedUser, fmt.Sprintf(format, args...))
}

// decodeUser converts a /auth/me payload into a User. Numeric and string
// ids are both accepted.
func decodeUser(body []byte) (*models.User, error) {
	if !gjson.ValidBytes(body) {
		return nil, malformed("response is not valid JSON")
	}

	r := gjson.ParseBytes(body)
	if !r.IsObject() {
		return nil, malformed("response is not an object")
	}

	id := r.Get("id")
	if id.Type != gjson.Number && id.Type != gjson.String {
		return nil, malformed("id must be a number or string, got %s", id.Type)
	}

	if id.String() == "" {
		return nil, malformed("missing id")
	}

	email, err := requiredString(r, "email")
	if err != nil {
		return nil, err
	}

	rawProvider, err := requiredString(r, "provider")
	if err != nil {
		return nil, err
	}

	provider, err := models.ParseProvider(rawProvider)
	if err != nil {
		return nil, malformed("%v", err)
	}

	u := &models.User{
		ID:       id.String(),
		Email:    email,
		Provider: provider,
	}

	// provider_id is an integer for some providers.
	switch pid := r.Get("provider_id"); pid.Type {
	case gjson.Null, gjson.String, gjson.Number:
		u.ProviderID = pid.String()
	default:
		return nil, malformed("provider_id must be a string or number, got %s", pid.Type)
	}

	optional := []struct {
		field string
		dst   *string
	}{
		{"username", &u.Username},
		{"full_name", &u.FullName},
		{"avatar_url", &u.AvatarURL},
	}

	for _, f := range optional {
		if *f.dst, err = optionalString(r, f.field); err != nil {
			return nil, err
		}
	}

	u.Username = norm.NFC.String(u.Username)
	u.FullName = norm.NFC.String(u.FullName)

	if u.IsActive, err = optionalBool(r, "is_active"); err != nil {
		return nil, err
	}

	if u.IsVerified, err = optionalBool(r, "is_verified"); err != nil {
		return nil, err
	}

	if u.CreatedAt, err = optionalTimestamp(r, "created_at"); err != nil {
		return nil, err
	}

	if u.UpdatedAt, err = optionalTimestamp(r, "updated_at"); err != nil {
		return nil, err
	}

	last := r.Get("last_login")
	if !last.Exists() {
		last = r.Get("last_login_at")
	}

	if last.Exists() && last.Type != gjson.Null {
		if last.Type != gjson.String {
			return nil, malformed("last_login must be a string, got %s", last.Type)
		}

		t, err := parseTimestamp(last.String())
		if err != nil {
			return nil, malformed("last_login: %v", err)
		}

		u.LastLogin = &t
	}

	return u, nil
}

func requiredString(r gjson.Result, field string) (string, error) {
	v := r.Get(field)
	if v.Type != gjson.String || v.Str == "" {
		return "", malformed("%s must be a non-empty string", field)
	}

	return v.Str, nil
}

// optionalString treats a missing or null field as "".
func optionalString(r gjson.Result, field string) (string, error) {
	switch v := r.Get(field); v.Type {
	case gjson.Null:
		return "", nil
	case gjson.String:
		return v.Str, nil
	default:
		return "", malformed("%s must be a string, got %s", field, v.Type)
	}
}

// optionalBool treats a missing or null field as false.
func optionalBool(r gjson.Result, field string) (bool, error) {
	switch v := r.Get(field); v.Type {
	case gjson.Null:
		return false, nil
	case gjson.True:
		return true, nil
	case gjson.False:
		return false, nil
	default:
		return false, malformed("%s must be a boolean, got %s", field, v.Type)
	}
}

func optionalTimestamp(r gjson.Result, field string) (time.Time, error) {
	v := r.Get(field)
	if !v.Exists() || v.Type == gjson.Null {
		return time.Time{}, nil
	}

	if v.Type != gjson.String {
		return time.Time{}, malformed("%s must be a string, got %s", field, v.Type)
	}

	t, err := parseTimestamp(v.String())
	if err != nil {
		return time.Time{}, malformed("%s: %v", field, err)
	}

	return t, nil
}
