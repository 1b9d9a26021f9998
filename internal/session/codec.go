package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alexjbarnes/notes-auth/internal/models"
)

// StorageVersion is written into every persisted record. Readers accept
// records from any version and ignore fields they do not know.
const StorageVersion = 1

// persistedState is the durable subset of State. IsLoading is transient
// and deliberately absent.
type persistedState struct {
	User            *models.User       `json:"user"`
	Tokens          *models.AuthTokens `json:"tokens"`
	IsAuthenticated bool               `json:"isAuthenticated"`
}

type envelope struct {
	Version int             `json:"version"`
	State   *persistedState `json:"state"`
}

var (
	errNoState      = errors.New("record has no state")
	errInconsistent = errors.New("user, tokens and isAuthenticated disagree")
)

// Encode serializes the durable subset of st.
func Encode(st State) ([]byte, error) {
	data, err := json.Marshal(envelope{
		Version: StorageVersion,
		State: &persistedState{
			User:            st.User,
			Tokens:          st.Tokens,
			IsAuthenticated: st.IsAuthenticated,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding auth state: %w", err)
	}

	return data, nil
}

// Decode parses a persisted record. The result always has IsLoading
// false. Records that would break the authentication invariant are
// rejected.
func Decode(data []byte) (State, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return State{}, fmt.Errorf("decoding auth state: %w", err)
	}

	if env.State == nil {
		return State{}, errNoState
	}

	ps := env.State
	if (ps.User == nil) != (ps.Tokens == nil) || ps.IsAuthenticated != (ps.User != nil) {
		return State{}, errInconsistent
	}

	return State{
		User:            ps.User,
		Tokens:          ps.Tokens,
		IsAuthenticated: ps.IsAuthenticated,
	}, nil
}
