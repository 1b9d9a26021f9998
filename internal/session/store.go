// Package session holds the client authentication state: who is signed
// in, with which token, and whether a sign-in is in progress. The state
// is persisted after every mutation and rehydrated when the store is
// created.
package session

import (
	"log/slog"
	"sync"

	"github.com/alexjbarnes/notes-auth/internal/models"
)

// State is a point-in-time view of the auth store.
// IsAuthenticated is true exactly when both User and Tokens are set.
type State struct {
	User            *models.User       `json:"user" yaml:"user"`
	Tokens          *models.AuthTokens `json:"tokens" yaml:"tokens"`
	IsAuthenticated bool               `json:"isAuthenticated" yaml:"is_authenticated"`
	IsLoading       bool               `json:"isLoading" yaml:"is_loading"`
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		if u.LastLogin != nil {
			t := *u.LastLogin
			u.LastLogin = &t
		}
		s.User = &u
	}

	if s.Tokens != nil {
		t := *s.Tokens
		s.Tokens = &t
	}

	return s
}

//go:generate mockgen -source=store.go -destination=mock_persister_test.go -package=session

// Persister is the durable storage the store writes through to.
// LoadAuth returns nil data when nothing has been stored yet.
type Persister interface {
	LoadAuth() ([]byte, error)
	SaveAuth(data []byte) error
}

// Listener is called with the new state after every mutation.
type Listener func(State)

type subscription struct {
	id int
	fn Listener
}

// Store is the single owner of the auth state. All methods are safe for
// concurrent use. Listeners run after the lock is released, in the order
// they subscribed.
type Store struct {
	mu         sync.Mutex
	state      State
	persister  Persister
	logger     *slog.Logger
	listeners  []subscription
	nextID     int
	persistErr error
}

// NewStore creates a store and rehydrates it from p. Missing, corrupt, or
// inconsistent records fall back to the empty state; rehydration never
// fails. A nil persister keeps the state in memory only.
func NewStore(p Persister, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		persister: p,
		logger:    logger,
	}
	s.state = s.rehydrate()

	return s
}

func (s *Store) rehydrate() State {
	if s.persister == nil {
		return State{}
	}

	data, err := s.persister.LoadAuth()
	if err != nil {
		s.logger.Warn("reading persisted auth state failed, starting signed out",
			slog.String("error", err.Error()),
		)
		return State{}
	}

	if data == nil {
		return State{}
	}

	st, err := Decode(data)
	if err != nil {
		s.logger.Warn("discarding unreadable auth state",
			slog.String("error", err.Error()),
		)
		return State{}
	}

	s.logger.Debug("auth state rehydrated", slog.Bool("authenticated", st.IsAuthenticated))

	return st
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state.clone()
}

// SetAuth records a signed-in user and their token. The token is not
// validated.
func (s *Store) SetAuth(user models.User, tokens models.AuthTokens) {
	s.mutate(func(st *State) bool {
		*st = State{
			User:            &user,
			Tokens:          &tokens,
			IsAuthenticated: true,
			IsLoading:       false,
		}

		return true
	})
}

// ClearAuth resets the store to the signed-out state.
func (s *Store) ClearAuth() {
	s.mutate(func(st *State) bool {
		*st = State{}
		return true
	})
}

// SetLoading sets the transient loading flag. User and tokens are not
// touched.
func (s *Store) SetLoading(loading bool) {
	s.mutate(func(st *State) bool {
		st.IsLoading = loading
		return true
	})
}

// UpdateUser merges patch into the current user. It reports false and
// leaves the state untouched when nobody is signed in.
func (s *Store) UpdateUser(patch models.UserPatch) bool {
	var applied bool

	s.mutate(func(st *State) bool {
		if st.User == nil {
			return false
		}

		merged := patch.Apply(*st.User)
		st.User = &merged
		applied = true

		return true
	})

	return applied
}

// Subscribe registers fn to be called after every mutation. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// PersistErr returns the error from the most recent write to storage, or
// nil if it succeeded.
func (s *Store) PersistErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.persistErr
}

// mutate applies fn under the lock. When fn reports a change, the new
// state is persisted (still under the lock, so writes land in mutation
// order) and then delivered to listeners.
func (s *Store) mutate(fn func(*State) bool) {
	s.mu.Lock()

	if !fn(&s.state) {
		s.mu.Unlock()
		return
	}

	snap := s.state.clone()
	s.persist(snap)

	listeners := make([]Listener, len(s.listeners))
	for i, sub := range s.listeners {
		listeners[i] = sub.fn
	}

	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap.clone())
	}
}

// persist writes the durable subset of st. Caller holds s.mu.
func (s *Store) persist(st State) {
	if s.persister == nil {
		return
	}

	data, err := Encode(st)
	if err == nil {
		err = s.persister.SaveAuth(data)
	}

	s.persistErr = err
	if err != nil {
		s.logger.Warn("failed to persist auth state", slog.String("error", err.Error()))
	}
}
