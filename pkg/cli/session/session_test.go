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

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/assert"
	"github.com/readsync/readsync/pkg/cli/client"
	"github.com/readsync/readsync/pkg/cli/settings"
	"github.com/readsync/readsync/pkg/clock"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeAuth struct {
	mu        sync.Mutex
	refreshes int
	signouts  int
	fail      bool
	started   chan struct{}
	release   chan struct{}
}

func (a *fakeAuth) result(token string) client.AuthResult {
	return client.AuthResult{
		AccessToken:  token,
		RefreshToken: token + "-refresh",
		ExpiresAt:    now.Unix() + 3600,
		ExpiresIn:    3600,
		User:         client.User{ID: "u1", Email: "alice@example.com"},
	}
}

func (a *fakeAuth) SignIn(ctx context.Context, email, password string) (client.AuthResult, error) {
	if password != "pass1234" {
		return client.AuthResult{}, client.ErrInvalidLogin
	}
	return a.result("signed-in"), nil
}

func (a *fakeAuth) Refresh(ctx context.Context, refreshToken string) (client.AuthResult, error) {
	if a.started != nil {
		close(a.started)
	}
	if a.release != nil {
		<-a.release
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.refreshes++
	if a.fail {
		return client.AuthResult{}, errors.New("network down")
	}
	return a.result("refreshed"), nil
}

func (a *fakeAuth) SignOut(ctx context.Context, accessToken string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.signouts++
	if a.fail {
		return errors.New("network down")
	}
	return nil
}

func newManager(s settings.Settings, auth AuthService) (*Manager, *settings.MemoryStore) {
	c := clock.NewMock()
	c.SetNow(now)
	store := settings.NewMemoryStore(s)

	return New(store, auth, c), store
}

func TestNeedsLogin(t *testing.T) {
	testCases := []struct {
		name     string
		settings settings.Settings
		expected bool
	}{
		{"no token", settings.Settings{}, true},
		{"expired", settings.Settings{AccessToken: "a", ExpiresAt: now.Unix() - 10}, true},
		{"within leeway", settings.Settings{AccessToken: "a", ExpiresAt: now.Unix() + 59}, true},
		{"at leeway", settings.Settings{AccessToken: "a", ExpiresAt: now.Unix() + 60}, false},
		{"valid", settings.Settings{AccessToken: "a", ExpiresAt: now.Unix() + 3600}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, NeedsLogin(tc.settings, now), tc.expected, "result mismatch")
		})
	}
}

func TestShouldRefresh(t *testing.T) {
	testCases := []struct {
		name     string
		settings settings.Settings
		expected bool
	}{
		{"no token", settings.Settings{}, false},
		{"no refresh token", settings.Settings{AccessToken: "a", ExpiresAt: now.Unix(), ExpiresIn: 3600}, false},
		{"fresh", settings.Settings{AccessToken: "a", RefreshToken: "r", ExpiresAt: now.Unix() + 3600, ExpiresIn: 3600}, false},
		{"at half-life", settings.Settings{AccessToken: "a", RefreshToken: "r", ExpiresAt: now.Unix() + 1800, ExpiresIn: 3600}, false},
		{"past half-life", settings.Settings{AccessToken: "a", RefreshToken: "r", ExpiresAt: now.Unix() + 1799, ExpiresIn: 3600}, true},
		{"expired", settings.Settings{AccessToken: "a", RefreshToken: "r", ExpiresAt: now.Unix() - 1, ExpiresIn: 3600}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, ShouldRefresh(tc.settings, now), tc.expected, "result mismatch")
		})
	}
}

func TestSignIn(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		m, store := newManager(settings.Default(), &fakeAuth{})

		err := m.SignIn(context.Background(), "alice@example.com", "pass1234")
		assert.NoError(t, err, "signing in")

		s, err := store.Load()
		assert.NoError(t, err, "loading")
		assert.Equal(t, s.AccessToken, "signed-in", "access token mismatch")
		assert.Equal(t, s.RefreshToken, "signed-in-refresh", "refresh token mismatch")
		assert.Equal(t, s.Email, "alice@example.com", "email mismatch")

		needsLogin, err := m.NeedsLogin()
		assert.NoError(t, err, "checking login")
		assert.Equal(t, needsLogin, false, "should be logged in")
	})

	t.Run("invalid login", func(t *testing.T) {
		m, _ := newManager(settings.Default(), &fakeAuth{})

		err := m.SignIn(context.Background(), "alice@example.com", "wrong")
		assert.Equal(t, err, client.ErrInvalidLogin, "error mismatch")
		assert.Equal(t, m.AccessToken(), "", "no token should be saved")
	})
}

func TestMaybeRefresh(t *testing.T) {
	past := settings.Settings{AccessToken: "old", RefreshToken: "old-refresh", ExpiresAt: now.Unix() + 100, ExpiresIn: 3600}

	t.Run("refreshes past half-life", func(t *testing.T) {
		auth := &fakeAuth{}
		m, _ := newManager(past, auth)

		started := m.MaybeRefresh(context.Background())
		m.Wait()

		assert.Equal(t, started, true, "refresh should start")
		assert.Equal(t, auth.refreshes, 1, "refresh count mismatch")
		assert.Equal(t, m.AccessToken(), "refreshed", "token mismatch")
	})

	t.Run("skips fresh token", func(t *testing.T) {
		auth := &fakeAuth{}
		fresh := past
		fresh.ExpiresAt = now.Unix() + 3600
		m, _ := newManager(fresh, auth)

		started := m.MaybeRefresh(context.Background())
		m.Wait()

		assert.Equal(t, started, false, "refresh should not start")
		assert.Equal(t, auth.refreshes, 0, "refresh count mismatch")
	})

	t.Run("does not stack", func(t *testing.T) {
		auth := &fakeAuth{release: make(chan struct{})}
		m, _ := newManager(past, auth)

		first := m.MaybeRefresh(context.Background())
		second := m.MaybeRefresh(context.Background())
		close(auth.release)
		m.Wait()

		assert.Equal(t, first, true, "first refresh should start")
		assert.Equal(t, second, false, "second refresh should not start")
		assert.Equal(t, auth.refreshes, 1, "refresh count mismatch")
	})

	t.Run("failure keeps session", func(t *testing.T) {
		auth := &fakeAuth{fail: true}
		m, _ := newManager(past, auth)

		m.MaybeRefresh(context.Background())
		m.Wait()

		assert.Equal(t, m.AccessToken(), "old", "token should be unchanged")
	})

	t.Run("does not revive an invalidated session", func(t *testing.T) {
		auth := &fakeAuth{started: make(chan struct{}), release: make(chan struct{})}
		m, store := newManager(past, auth)

		m.MaybeRefresh(context.Background())
		<-auth.started
		assert.NoError(t, m.Invalidate(), "invalidating")
		close(auth.release)
		m.Wait()

		assert.Equal(t, auth.refreshes, 1, "refresh count mismatch")
		v, err := store.Load()
		assert.NoError(t, err, "loading")
		assert.Equal(t, v.AccessToken, "", "access token should stay cleared")
		assert.Equal(t, v.RefreshToken, "", "refresh token should stay cleared")
	})

	t.Run("outlives the caller context", func(t *testing.T) {
		auth := &fakeAuth{}
		m, _ := newManager(past, auth)

		ctx, cancel := context.WithCancel(context.Background())
		m.MaybeRefresh(ctx)
		cancel()
		m.Wait()

		assert.Equal(t, m.AccessToken(), "refreshed", "token mismatch")
	})
}

func TestRefreshReplacedSession(t *testing.T) {
	auth := &fakeAuth{started: make(chan struct{}), release: make(chan struct{})}
	m, store := newManager(settings.Settings{AccessToken: "old", RefreshToken: "old-refresh", ExpiresAt: now.Unix() + 100, ExpiresIn: 3600}, auth)

	done := make(chan error, 1)
	go func() { done <- m.Refresh(context.Background()) }()
	<-auth.started

	_, err := store.Update(func(s *settings.Settings) error {
		s.AccessToken = "signed-in"
		s.RefreshToken = "signed-in-refresh"
		return nil
	})
	assert.NoError(t, err, "signing in again")
	close(auth.release)

	assert.Equal(t, <-done, ErrSessionChanged, "error mismatch")
	assert.Equal(t, m.AccessToken(), "signed-in", "newer session should be kept")
}

func TestRefreshWithoutToken(t *testing.T) {
	m, _ := newManager(settings.Settings{AccessToken: "a"}, &fakeAuth{})

	err := m.Refresh(context.Background())
	assert.Equal(t, err, ErrNoRefreshToken, "error mismatch")
}

func TestSignOut(t *testing.T) {
	logged := settings.Settings{AccessToken: "a", RefreshToken: "r", ExpiresAt: now.Unix() + 3600, ExpiresIn: 3600, Email: "alice@example.com", LastSyncedAt: 7}

	t.Run("success", func(t *testing.T) {
		auth := &fakeAuth{}
		m, store := newManager(logged, auth)

		assert.NoError(t, m.SignOut(context.Background()), "signing out")

		s, err := store.Load()
		assert.NoError(t, err, "loading")
		assert.Equal(t, s.AccessToken, "", "token should be cleared")
		assert.Equal(t, s.Email, "", "email should be cleared")
		assert.Equal(t, s.LastSyncedAt, int64(7), "sync state should be kept")
		assert.Equal(t, auth.signouts, 1, "signout count mismatch")
	})

	t.Run("server unreachable", func(t *testing.T) {
		auth := &fakeAuth{fail: true}
		m, _ := newManager(logged, auth)

		err := m.SignOut(context.Background())
		assert.NotEqual(t, err, nil, "error should be returned")
		assert.Equal(t, m.AccessToken(), "", "local session should be cleared")
	})
}

func TestInvalidate(t *testing.T) {
	m, _ := newManager(settings.Settings{AccessToken: "a", RefreshToken: "r", ExpiresAt: now.Unix() + 3600}, &fakeAuth{})

	assert.NoError(t, m.Invalidate(), "invalidating")

	needsLogin, err := m.NeedsLogin()
	assert.NoError(t, err, "checking login")
	assert.Equal(t, needsLogin, true, "should need login")
}
