package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var _ Store = (*FileStore)(nil)

var ErrUnknownFormat = errors.New("neither a snapshot envelope nor a legacy tournament data file")

// FileStore keeps the snapshot in a single pretty-printed JSON file, the way the
// tournament data has always lived next to the server.
type FileStore struct {
	Path string // e.g. "tournament_data.json"
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

type fileEnvelope struct {
	Version int64           `json:"version"`
	SavedAt time.Time       `json:"saved_at"`
	State   json.RawMessage `json:"state"`
}

func (s *FileStore) Load(ctx context.Context) (Snapshot, error) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(b, &keys); err != nil {
		return Snapshot{}, fmt.Errorf("decode %s: %w", s.Path, err)
	}
	if _, ok := keys["state"]; !ok {
		// files written by the old Flask server hold the state itself at top level
		if _, legacy := keys["robots"]; legacy {
			return Snapshot{Version: 0, Payload: b}, nil
		}
		return Snapshot{}, fmt.Errorf("decode %s: %w", s.Path, ErrUnknownFormat)
	}

	var env fileEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Snapshot{}, fmt.Errorf("decode %s: %w", s.Path, err)
	}
	return Snapshot{Version: env.Version, SavedAt: env.SavedAt, Payload: []byte(env.State)}, nil
}

// Save writes to a temp file in the same directory and renames it over the
// target so readers never see a half-written snapshot.
func (s *FileStore) Save(ctx context.Context, snap Snapshot) error {
	if !json.Valid(snap.Payload) {
		return fmt.Errorf("save %s: payload is not valid JSON", s.Path)
	}
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fileEnvelope{Version: snap.Version, SavedAt: snap.SavedAt, State: snap.Payload}); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path)
}

func (s *FileStore) Close() error { return nil }
