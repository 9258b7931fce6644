/* Copyright 2025 Readsync Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package settings persists the state shared by the sync components: the session,
// the auto-sync flag, the last sync time, the offline queue and the cached storage usage
package settings

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/consts"
	"github.com/readsync/readsync/pkg/cli/database"
	"github.com/readsync/readsync/pkg/cli/queue"
)

// Settings is the persisted sync state
type Settings struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	// ExpiresAt is a unix timestamp in seconds
	ExpiresAt int64 `json:"expires_at,omitempty"`
	// ExpiresIn is the lifetime of the access token in seconds
	ExpiresIn int64  `json:"expires_in,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Email     string `json:"email,omitempty"`

	AutoSync bool `json:"auto_sync"`
	// LastSyncedAt is the time of the last successful push, in milliseconds
	LastSyncedAt int64 `json:"last_synced_at"`
	// LastPulledAt is the time of the last successful pull, in milliseconds
	LastPulledAt int64 `json:"last_pulled_at"`

	Queue []queue.Item `json:"queue"`

	StorageUsage int64 `json:"storage_usage"`
	StorageQuota int64 `json:"storage_quota"`
}

// Default returns the settings of a new installation
func Default() Settings {
	return Settings{
		AutoSync: true,
		Queue:    []queue.Item{},
	}
}

// ClearSession removes the tokens and the account
func (s *Settings) ClearSession() {
	s.AccessToken = ""
	s.RefreshToken = ""
	s.ExpiresAt = 0
	s.ExpiresIn = 0
	s.UserID = ""
	s.Email = ""
}

// Store loads and persists the settings
type Store interface {
	Load() (Settings, error)
	Save(Settings) error
	// Update applies fn to the current settings and persists the result. Updates are
	// serialized. Nothing is persisted if fn returns an error.
	Update(fn func(*Settings) error) (Settings, error)
}

// DBStore keeps the settings as one JSON record in the system table
type DBStore struct {
	db *database.DB
	mu sync.Mutex
}

// NewDBStore returns a store backed by the given database
func NewDBStore(db *database.DB) *DBStore {
	return &DBStore{db: db}
}

func load(db *database.DB) (Settings, error) {
	var raw string
	err := database.GetSystem(db, consts.SystemSettings, &raw)
	if database.IsNotFound(err) {
		return Default(), nil
	} else if err != nil {
		return Settings{}, errors.Wrap(err, "reading settings")
	}

	ret := Default()
	if err := json.Unmarshal([]byte(raw), &ret); err != nil {
		return Settings{}, errors.Wrap(err, "decoding settings")
	}
	if ret.Queue == nil {
		ret.Queue = []queue.Item{}
	}

	return ret, nil
}

func save(db *database.DB, v Settings) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encoding settings")
	}

	if err := database.UpsertSystem(db, consts.SystemSettings, b); err != nil {
		return errors.Wrap(err, "writing settings")
	}

	return nil
}

// Load returns the persisted settings, or the defaults if none were saved
func (s *DBStore) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return load(s.db)
}

// Save persists the settings
func (s *DBStore) Save(v Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return save(s.db, v)
}

// Update applies fn to the persisted settings and saves the result. The read and
// the write happen in one transaction, which excludes other processes sharing
// the database.
func (s *DBStore) Update(fn func(*Settings) error) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return Settings{}, errors.Wrap(err, "beginning settings update")
	}

	v, err := load(tx)
	if err != nil {
		tx.Rollback()
		return Settings{}, err
	}
	if err := fn(&v); err != nil {
		tx.Rollback()
		return Settings{}, err
	}
	if err := save(tx, v); err != nil {
		tx.Rollback()
		return Settings{}, err
	}

	if err := tx.Commit(); err != nil {
		return Settings{}, errors.Wrap(err, "committing settings")
	}

	return v, nil
}

// MemoryStore keeps the settings in memory
type MemoryStore struct {
	mu sync.Mutex
	v  Settings
}

// NewMemoryStore returns a store holding the given settings
func NewMemoryStore(v Settings) *MemoryStore {
	return &MemoryStore{v: clone(v)}
}

func clone(v Settings) Settings {
	b, err := json.Marshal(v)
	if err != nil {
		panic(errors.Wrap(err, "encoding settings"))
	}
	var ret Settings
	if err := json.Unmarshal(b, &ret); err != nil {
		panic(errors.Wrap(err, "decoding settings"))
	}
	if ret.Queue == nil {
		ret.Queue = []queue.Item{}
	}
	return ret
}

// Load returns a copy of the settings
func (s *MemoryStore) Load() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return clone(s.v), nil
}

// Save replaces the settings
func (s *MemoryStore) Save(v Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.v = clone(v)
	return nil
}

// Update applies fn to the settings
func (s *MemoryStore) Update(fn func(*Settings) error) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := clone(s.v)
	if err := fn(&v); err != nil {
		return Settings{}, err
	}
	s.v = v

	return clone(v), nil
}

// QueueBackend persists the offline queue inside the settings
type QueueBackend struct {
	Store Store
}

// QueueItems returns the queued items
func (b QueueBackend) QueueItems() ([]queue.Item, error) {
	v, err := b.Store.Load()
	if err != nil {
		return nil, err
	}

	return v.Queue, nil
}

// UpdateQueue replaces the queued items with the result of fn
func (b QueueBackend) UpdateQueue(fn func([]queue.Item) []queue.Item) error {
	_, err := b.Store.Update(func(v *Settings) error {
		v.Queue = fn(v.Queue)
		return nil
	})

	return err
}
