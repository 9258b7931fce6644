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

// Package session manages the access token lifecycle
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/client"
	"github.com/readsync/readsync/pkg/cli/consts"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/readsync/readsync/pkg/cli/settings"
	"github.com/readsync/readsync/pkg/clock"
)

// ErrNoRefreshToken is an error for a refresh attempted without a refresh token
var ErrNoRefreshToken = errors.New("no refresh token")

// ErrSessionChanged is returned when the session was replaced or dropped while
// a refresh was in flight
var ErrSessionChanged = errors.New("session changed during refresh")

// refreshTimeout bounds a background refresh
const refreshTimeout = 30 * time.Second

// AuthService issues and revokes sessions
type AuthService interface {
	SignIn(ctx context.Context, email, password string) (client.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (client.AuthResult, error)
	SignOut(ctx context.Context, accessToken string) error
}

// NeedsLogin returns true if there is no access token, or if it expires within
// the login leeway
func NeedsLogin(s settings.Settings, now time.Time) bool {
	if s.AccessToken == "" {
		return true
	}

	return s.ExpiresAt-now.Unix() < consts.LoginLeewaySeconds
}

// ShouldRefresh returns true once the access token is past its half-life
func ShouldRefresh(s settings.Settings, now time.Time) bool {
	if s.AccessToken == "" || s.RefreshToken == "" {
		return false
	}

	return now.Unix() > s.ExpiresAt-s.ExpiresIn/2
}

// Manager tracks the session in the settings store
type Manager struct {
	store settings.Store
	auth  AuthService
	clock clock.Clock

	wg         sync.WaitGroup
	refreshing atomic.Bool
}

// New returns a session manager
func New(store settings.Store, auth AuthService, c clock.Clock) *Manager {
	return &Manager{
		store: store,
		auth:  auth,
		clock: c,
	}
}

// AccessToken returns the current access token, or an empty string if there is none
func (m *Manager) AccessToken() string {
	s, err := m.store.Load()
	if err != nil {
		log.Debug("loading settings: %s\n", err.Error())
		return ""
	}

	return s.AccessToken
}

// NeedsLogin returns true if the user has to sign in before syncing
func (m *Manager) NeedsLogin() (bool, error) {
	s, err := m.store.Load()
	if err != nil {
		return false, errors.Wrap(err, "loading settings")
	}

	return NeedsLogin(s, m.clock.Now()), nil
}

func applyResult(s *settings.Settings, res client.AuthResult) {
	s.AccessToken = res.AccessToken
	s.RefreshToken = res.RefreshToken
	s.ExpiresAt = res.ExpiresAt
	s.ExpiresIn = res.ExpiresIn
	if res.User.Email != "" {
		s.Email = res.User.Email
		s.UserID = res.User.ID
	}
}

func (m *Manager) persist(res client.AuthResult) error {
	_, err := m.store.Update(func(s *settings.Settings) error {
		applyResult(s, res)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "saving session")
	}

	return nil
}

// persistRefresh saves the result of a refresh only if the refresh token that
// was exchanged is still the current one
func (m *Manager) persistRefresh(sent string, res client.AuthResult) error {
	_, err := m.store.Update(func(s *settings.Settings) error {
		if s.RefreshToken != sent {
			return ErrSessionChanged
		}

		applyResult(s, res)
		return nil
	})
	if err == ErrSessionChanged {
		return err
	} else if err != nil {
		return errors.Wrap(err, "saving session")
	}

	return nil
}

// SignIn creates a session with the given credentials
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	res, err := m.auth.SignIn(ctx, email, password)
	if err != nil {
		return err
	}

	return m.persist(res)
}

// Refresh exchanges the refresh token for a new session
func (m *Manager) Refresh(ctx context.Context) error {
	s, err := m.store.Load()
	if err != nil {
		return errors.Wrap(err, "loading settings")
	}
	if s.RefreshToken == "" {
		return ErrNoRefreshToken
	}

	res, err := m.auth.Refresh(ctx, s.RefreshToken)
	if err != nil {
		return errors.Wrap(err, "refreshing session")
	}

	return m.persistRefresh(s.RefreshToken, res)
}

// MaybeRefresh starts a background refresh if the access token is past its half-life.
// It returns whether a refresh was started. A failed refresh is only logged.
func (m *Manager) MaybeRefresh(ctx context.Context) bool {
	s, err := m.store.Load()
	if err != nil {
		log.Debug("loading settings: %s\n", err.Error())
		return false
	}
	if !ShouldRefresh(s, m.clock.Now()) {
		return false
	}
	if !m.refreshing.CompareAndSwap(false, true) {
		return false
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.refreshing.Store(false)

		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		if err := m.Refresh(rctx); err != nil {
			log.Debug("background refresh failed: %s\n", err.Error())
			return
		}

		log.Debug("session refreshed\n")
	}()

	return true
}

// Wait blocks until background refreshes finish
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Invalidate drops the local session, forcing a new sign in
func (m *Manager) Invalidate() error {
	_, err := m.store.Update(func(s *settings.Settings) error {
		s.ClearSession()
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "clearing session")
	}

	return nil
}

// SignOut revokes the session on the server and drops it locally. The local
// session is dropped even if the server cannot be reached.
func (m *Manager) SignOut(ctx context.Context) error {
	token := m.AccessToken()

	var remoteErr error
	if token != "" {
		remoteErr = m.auth.SignOut(ctx, token)
	}

	if err := m.Invalidate(); err != nil {
		return err
	}

	if remoteErr != nil {
		return errors.Wrap(remoteErr, "revoking session on the server")
	}

	return nil
}
