// Package store persists the mindloop state blob. The whole state is written
// on every mutation and read once at startup.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mohammad-safakhou/mindloop/internal/agents"
	"github.com/mohammad-safakhou/mindloop/internal/catalog"
	"github.com/mohammad-safakhou/mindloop/models"
)

const (
	// DataKey holds the serialized State.
	DataKey = "mindloop-data"
	// APIKeyKey holds the credential on its own so it survives a corrupt or
	// reset data blob.
	APIKeyKey = "mindloop-apikey"
)

// ErrNotFound is returned by a Backend for a missing key.
var ErrNotFound = errors.New("key not found")

// State is everything that outlives the process.
type State struct {
	CycleHistory      []*models.Cycle `json:"cycle_history"`
	APIKey            string          `json:"api_key,omitempty"`
	AutoAdvance       bool            `json:"auto_advance"`
	InterAgentDelayMs int             `json:"inter_agent_delay_ms"`
	Agents            []agents.Config `json:"agents,omitempty"`
	CustomModels      []catalog.Model `json:"custom_models,omitempty"`
	SavedAt           time.Time       `json:"saved_at"`
}

// StateStore loads and saves the State.
type StateStore interface {
	Load(ctx context.Context) (State, bool, error)
	Save(ctx context.Context, st State) error
	Close() error
}

// Backend is a key/value medium for blobs.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Close() error
}

// CycleMirror is implemented by backends that also keep archived cycles in
// a queryable form.
type CycleMirror interface {
	MirrorCycles(ctx context.Context, cycles []*models.Cycle) error
}

// BlobStore implements StateStore on top of a Backend.
type BlobStore struct {
	backend Backend
	now     func() time.Time
}

func NewBlobStore(b Backend) *BlobStore {
	return &BlobStore{backend: b, now: time.Now}
}

// Load returns the saved state. ok is false when nothing was ever saved. A
// blob without a credential picks it up from the secondary key.
func (s *BlobStore) Load(ctx context.Context) (State, bool, error) {
	var st State
	found := false
	data, err := s.backend.Get(ctx, DataKey)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &st); err != nil {
			return State{}, false, fmt.Errorf("decode %s: %w", DataKey, err)
		}
		found = true
	case !errors.Is(err, ErrNotFound):
		return State{}, false, fmt.Errorf("load %s: %w", DataKey, err)
	}

	if strings.TrimSpace(st.APIKey) == "" {
		key, err := s.backend.Get(ctx, APIKeyKey)
		switch {
		case err == nil:
			if json.Unmarshal(key, &st.APIKey) != nil {
				st.APIKey = string(key)
			}
			found = found || st.APIKey != ""
		case !errors.Is(err, ErrNotFound):
			return State{}, false, fmt.Errorf("load %s: %w", APIKeyKey, err)
		}
	}
	return st, found, nil
}

func (s *BlobStore) Save(ctx context.Context, st State) error {
	st.SavedAt = s.now().UTC()
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.backend.Put(ctx, DataKey, data); err != nil {
		return fmt.Errorf("save %s: %w", DataKey, err)
	}
	key, err := json.Marshal(st.APIKey)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	if err := s.backend.Put(ctx, APIKeyKey, key); err != nil {
		return fmt.Errorf("save %s: %w", APIKeyKey, err)
	}
	if m, ok := s.backend.(CycleMirror); ok {
		if err := m.MirrorCycles(ctx, st.CycleHistory); err != nil {
			return fmt.Errorf("mirror cycles: %w", err)
		}
	}
	return nil
}

func (s *BlobStore) Close() error { return s.backend.Close() }
