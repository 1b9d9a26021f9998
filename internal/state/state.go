// Package state wraps the bbolt database that plays the role of
// client-local storage for notes-auth.
package state

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// stateDirPerm is the permission mode for the state directory (~/.notes-auth/).
	stateDirPerm = fs.FileMode(0o700)

	// stateFilePerm is the permission mode for the state database file.
	stateFilePerm = fs.FileMode(0o600)

	// stateOpenTimeout is the maximum time to wait for the bolt database lock.
	stateOpenTimeout = 5 * time.Second
)

// AuthStorageKey is the fixed namespace the auth record is stored under.
const AuthStorageKey = "auth-storage"

var (
	appBucket      = []byte("app")
	authStorageKey = []byte(AuthStorageKey)
)

// State wraps a bbolt database for all persistent application state.
type State struct {
	db   *bolt.DB
	path string
}

// LoadAt opens a state database at the given path, creating it if it
// does not exist. The app bucket is created on open.
func LoadAt(path string) (*State, error) {
	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := bolt.Open(path, stateFilePerm, &bolt.Options{Timeout: stateOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(appBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing state db: %w", err)
	}

	return &State{db: db, path: path}, nil
}

// Close closes the database.
func (s *State) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *State) Path() string {
	return s.path
}

// LoadAuth returns the raw auth record, or nil if none has been written.
func (s *State) LoadAuth() ([]byte, error) {
	var data []byte

	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(appBucket).Get(authStorageKey)
		if v != nil {
			// bbolt values are only valid for the life of the transaction.
			data = append([]byte(nil), v...)
		}

		return nil
	})

	return data, err
}

// SaveAuth replaces the raw auth record.
func (s *State) SaveAuth(data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Put(authStorageKey, data)
	})
}

// DeleteAuth removes the auth record entirely.
func (s *State) DeleteAuth() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(appBucket).Delete(authStorageKey)
	})
}
