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

package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/assert"
	"github.com/readsync/readsync/pkg/cli/client"
	"github.com/readsync/readsync/pkg/cli/testutils"
)

func newClient(s *testutils.FakeServer, token string) *client.Client {
	return client.New(s.URL, "test", nil, client.StaticToken(token))
}

func TestSignIn(t *testing.T) {
	s := testutils.NewFakeServer(t)
	c := newClient(s, "")

	t.Run("valid credentials", func(t *testing.T) {
		res, err := c.SignIn(context.Background(), testutils.Email, testutils.Password)
		assert.NoError(t, err, "signing in")

		assert.NotEqual(t, res.AccessToken, "", "access token mismatch")
		assert.NotEqual(t, res.RefreshToken, "", "refresh token mismatch")
		assert.Equal(t, res.ExpiresIn, int64(testutils.TokenLifetime), "expires in mismatch")
		assert.Equal(t, res.User.Email, testutils.Email, "email mismatch")
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := c.SignIn(context.Background(), testutils.Email, "wrong")
		assert.Equal(t, err, client.ErrInvalidLogin, "error mismatch")
	})
}

func TestRefresh(t *testing.T) {
	s := testutils.NewFakeServer(t)
	c := newClient(s, "")

	first, err := c.SignIn(context.Background(), testutils.Email, testutils.Password)
	assert.NoError(t, err, "signing in")

	second, err := c.Refresh(context.Background(), first.RefreshToken)
	assert.NoError(t, err, "refreshing")
	assert.NotEqual(t, second.AccessToken, first.AccessToken, "access token was not rotated")

	// refresh tokens are single use
	_, err = c.Refresh(context.Background(), first.RefreshToken)
	assert.Equal(t, errors.Is(err, client.ErrNotAuthenticated), true, "reused refresh token should be rejected")
}

func TestSignOut(t *testing.T) {
	s := testutils.NewFakeServer(t)
	token := s.IssueToken()
	c := newClient(s, token)

	err := c.SignOut(context.Background(), token)
	assert.NoError(t, err, "signing out")

	_, err = c.Pull(context.Background(), client.PullParams{})
	assert.Equal(t, client.IsAuthError(err), true, "token should be revoked")
}

func TestPushPull(t *testing.T) {
	s := testutils.NewFakeServer(t)
	c := newClient(s, s.IssueToken())

	payload := client.PushPayload{
		Books: []client.Book{
			{BookHash: "h1", MetaHash: "m1", Title: "Moby Dick", Format: "EPUB", ReadingStatus: client.StatusReading, UpdatedAt: 100},
		},
		Configs: []client.Config{
			{BookHash: "h1", MetaHash: "m1", Progress: &client.Progress{Page: 50, Total: 200}, UpdatedAt: 100},
		},
		Notes: []client.Note{
			{ID: "n1", BookHash: "h1", MetaHash: "m1", Type: client.NoteHighlight, Text: "Call me Ishmael", Color: "#FFFF00", UpdatedAt: 100},
			{ID: "n2", BookHash: "h1", MetaHash: "m1", Type: client.NoteAnnotation, Text: "whale", Note: "big", Color: "#FF0000", UpdatedAt: 200},
		},
	}
	err := c.Push(context.Background(), payload)
	assert.NoError(t, err, "pushing")

	t.Run("all", func(t *testing.T) {
		res, err := c.Pull(context.Background(), client.PullParams{Since: 0})
		assert.NoError(t, err, "pulling")

		assert.Equal(t, len(res.Books), 1, "book count mismatch")
		assert.Equal(t, len(res.Configs), 1, "config count mismatch")
		assert.Equal(t, len(res.Notes), 2, "note count mismatch")
		assert.DeepEqual(t, res.Configs[0].Progress, &client.Progress{Page: 50, Total: 200}, "progress mismatch")
	})

	t.Run("since", func(t *testing.T) {
		res, err := c.Pull(context.Background(), client.PullParams{Since: 100, Type: client.PullNotes, Book: "h1"})
		assert.NoError(t, err, "pulling")

		assert.Equal(t, len(res.Books), 0, "book count mismatch")
		assert.Equal(t, len(res.Notes), 1, "note count mismatch")
		assert.Equal(t, res.Notes[0].ID, "n2", "note id mismatch")
	})
}

func TestUnauthorized(t *testing.T) {
	s := testutils.NewFakeServer(t)

	t.Run("missing token", func(t *testing.T) {
		c := newClient(s, "")
		err := c.Push(context.Background(), client.PushPayload{})
		assert.Equal(t, errors.Is(err, client.ErrNotAuthenticated), true, "error mismatch")
		assert.Equal(t, s.RequestCount(http.MethodPost, "/v1/sync"), 0, "no request should be made")
	})

	t.Run("rejected token", func(t *testing.T) {
		c := newClient(s, "bogus")
		_, err := c.Pull(context.Background(), client.PullParams{})
		assert.Equal(t, errors.Is(err, client.ErrNotAuthenticated), true, "error mismatch")
		assert.Equal(t, client.IsAuthError(err), true, "should be an auth error")
	})

	t.Run("server error", func(t *testing.T) {
		c := newClient(s, s.IssueToken())
		s.SetOffline(true)
		defer s.SetOffline(false)

		_, err := c.Pull(context.Background(), client.PullParams{})
		assert.NotEqual(t, err, nil, "error should be returned")
		assert.Equal(t, client.IsAuthError(err), false, "should not be an auth error")

		var httpErr *client.HTTPError
		assert.Equal(t, errors.As(err, &httpErr), true, "should be an HTTPError")
		assert.Equal(t, httpErr.StatusCode, http.StatusServiceUnavailable, "status code mismatch")
	})
}

func TestContentTypeMismatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer ts.Close()

	c := client.New(ts.URL, "test", nil, client.StaticToken("token"))
	_, err := c.Pull(context.Background(), client.PullParams{})
	assert.Equal(t, errors.Is(err, client.ErrContentTypeMismatch), true, "error mismatch")
}

func TestStorage(t *testing.T) {
	s := testutils.NewFakeServer(t)
	c := newClient(s, s.IssueToken())
	ctx := context.Background()

	data := []byte("%PDF-1.4 book contents")

	ticket, err := c.RequestUpload(ctx, client.UploadRequest{FileName: "book.pdf", FileSize: int64(len(data)), BookHash: "h1"})
	assert.NoError(t, err, "requesting upload")
	err = c.PutToURL(ctx, ticket.UploadURL, bytes.NewReader(data), int64(len(data)))
	assert.NoError(t, err, "uploading")

	list, err := c.List(ctx, client.ListParams{Search: "book"})
	assert.NoError(t, err, "listing")
	assert.Equal(t, list.Total, 1, "total mismatch")
	assert.Equal(t, list.Files[0].FileKey, ticket.FileKey, "file key mismatch")

	stats, err := c.Stats(ctx)
	assert.NoError(t, err, "getting stats")
	assert.Equal(t, stats.TotalFiles, 1, "file count mismatch")
	assert.Equal(t, stats.Usage, int64(len(data)), "usage mismatch")

	location, err := c.RequestDownload(ctx, ticket.FileKey)
	assert.NoError(t, err, "requesting download")
	var buf bytes.Buffer
	n, err := c.GetFromURL(ctx, location, &buf)
	assert.NoError(t, err, "downloading")
	assert.Equal(t, n, int64(len(data)), "byte count mismatch")
	assert.Equal(t, buf.String(), string(data), "content mismatch")

	err = c.Delete(ctx, ticket.FileKey)
	assert.NoError(t, err, "deleting")
	assert.Equal(t, len(s.Files()), 0, "file should be deleted")
}

func TestProgressJSON(t *testing.T) {
	t.Run("array", func(t *testing.T) {
		var c client.Config
		err := json.Unmarshal([]byte(`{"book_hash":"h","progress":[3,10]}`), &c)
		assert.NoError(t, err, "unmarshaling")
		assert.DeepEqual(t, c.Progress, &client.Progress{Page: 3, Total: 10}, "progress mismatch")
	})

	t.Run("string", func(t *testing.T) {
		var c client.Config
		err := json.Unmarshal([]byte(`{"book_hash":"h","progress":"[3,10]"}`), &c)
		assert.NoError(t, err, "unmarshaling")
		assert.DeepEqual(t, c.Progress, &client.Progress{Page: 3, Total: 10}, "progress mismatch")
	})

	t.Run("encode", func(t *testing.T) {
		b, err := json.Marshal(client.Config{BookHash: "h", Progress: &client.Progress{Page: 1, Total: 2}})
		assert.NoError(t, err, "marshaling")
		assert.Equal(t, string(b), `{"book_hash":"h","meta_hash":"","progress":[1,2],"updated_at":0}`, "json mismatch")
	})

	t.Run("wrong length", func(t *testing.T) {
		var p client.Progress
		err := json.Unmarshal([]byte(`[1,2,3]`), &p)
		assert.NotEqual(t, err, nil, "error should be returned")
	})
}

func TestReachable(t *testing.T) {
	s := testutils.NewFakeServer(t)
	c := newClient(s, "")

	assert.Equal(t, c.Reachable(context.Background()), true, "server should be reachable")

	s.SetOffline(true)
	assert.Equal(t, c.Reachable(context.Background()), false, "5xx should be unreachable")
	s.SetOffline(false)

	rejecting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer rejecting.Close()
	assert.Equal(t, client.New(rejecting.URL, "test", nil, nil).Reachable(context.Background()), true, "4xx should be reachable")

	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closed.Close()
	assert.Equal(t, client.New(closed.URL, "test", nil, nil).Reachable(context.Background()), false, "transport error should be unreachable")
}
