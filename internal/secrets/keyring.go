// Package secrets keeps the access token in the OS credential store
// instead of the state database.
package secrets

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/zalando/go-keyring"
)

const (
	// DefaultService is the keyring service name entries are filed under.
	DefaultService = "notes-auth"

	accessTokenAccount = "access_token"

	tokensPath      = "state.tokens"
	accessTokenPath = "state.tokens.access_token"
)

// Backend is the storage that receives the record with the token removed.
type Backend interface {
	LoadAuth() ([]byte, error)
	SaveAuth(data []byte) error
}

// KeyringVault wraps a Backend. On save, the access token is moved into
// the keyring and blanked in the record. On load, it is put back.
type KeyringVault struct {
	next    Backend
	service string
}

// NewKeyringVault returns a vault writing through to next. An empty
// service uses DefaultService.
func NewKeyringVault(next Backend, service string) *KeyringVault {
	if service == "" {
		service = DefaultService
	}

	return &KeyringVault{next: next, service: service}
}

// SaveAuth stores the access token in the keyring and the rest of the
// record in the backend. A record without a token removes any keyring
// entry.
func (v *KeyringVault) SaveAuth(data []byte) error {
	token := gjson.GetBytes(data, accessTokenPath).String()

	if token == "" {
		if err := keyring.Delete(v.service, accessTokenAccount); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("removing token from keyring: %w", err)
		}

		return v.next.SaveAuth(data)
	}

	if err := keyring.Set(v.service, accessTokenAccount, token); err != nil {
		return fmt.Errorf("storing token in keyring: %w", err)
	}

	stripped, err := sjson.SetBytes(data, accessTokenPath, "")
	if err != nil {
		return fmt.Errorf("removing token from record: %w", err)
	}

	return v.next.SaveAuth(stripped)
}

// LoadAuth reads the record and restores the access token from the
// keyring. A record whose token is missing from the keyring comes back
// with null tokens, which the session store treats as signed out.
// Records that still carry a token inline are returned unchanged; the
// next save moves that token into the keyring.
func (v *KeyringVault) LoadAuth() ([]byte, error) {
	data, err := v.next.LoadAuth()
	if err != nil || data == nil {
		return data, err
	}

	if !gjson.GetBytes(data, tokensPath).IsObject() {
		return data, nil
	}

	if gjson.GetBytes(data, accessTokenPath).String() != "" {
		return data, nil
	}

	token, err := keyring.Get(v.service, accessTokenAccount)
	if errors.Is(err, keyring.ErrNotFound) {
		return sjson.SetBytes(data, tokensPath, nil)
	}

	if err != nil {
		return nil, fmt.Errorf("reading token from keyring: %w", err)
	}

	return sjson.SetBytes(data, accessTokenPath, token)
}
