package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
)

// TokenStore persists the Session credential between app starts.
type TokenStore interface {
	Save(state State) error
	Load() (State, bool, error)
	Delete() error
}

// FileStore implements TokenStore keeping the credential in a user-only readable file.
type FileStore struct {
	path string
}

type fileStoreData struct {
	Token      string `json:"token"`
	Name       string `json:"name"`
	ProfilePic string `json:"profilePic"`
}

// Save implements TokenStore interface.
func (s FileStore) Save(state State) error {
	raw, err := json.Marshal(fileStoreData{
		Token:      state.Token,
		Name:       state.Name,
		ProfilePic: state.ProfilePic,
	})
	if err != nil {
		return fmt.Errorf("JSON marshal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("mkdir (%s): %w", filepath.Dir(s.path), err)
	}
	if err := ioutil.WriteFile(s.path, raw, 0600); err != nil {
		return fmt.Errorf("write to file (%s): %w", s.path, err)
	}

	return nil
}

// Load implements TokenStore interface.
func (s FileStore) Load() (State, bool, error) {
	raw, err := ioutil.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("reading file (%s): %w", s.path, err)
	}

	data := fileStoreData{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return State{}, false, fmt.Errorf("JSON unmarshal: %w", err)
	}
	if data.Token == "" {
		return State{}, false, nil
	}

	return State{
		Token:      data.Token,
		Name:       data.Name,
		ProfilePic: data.ProfilePic,
	}, true, nil
}

// Delete implements TokenStore interface.
func (s FileStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove file (%s): %w", s.path, err)
	}

	return nil
}

// NewFileStore creates a new FileStore object.
func NewFileStore(path string) (FileStore, error) {
	if path == "" {
		return FileStore{}, fmt.Errorf("%s: empty", "path")
	}

	return FileStore{path: path}, nil
}
