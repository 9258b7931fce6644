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

package pull

import (
	stdctx "context"
	"testing"

	"github.com/readsync/readsync/pkg/assert"
	"github.com/readsync/readsync/pkg/cli/client"
	"github.com/readsync/readsync/pkg/cli/context"
	"github.com/readsync/readsync/pkg/cli/library"
	"github.com/readsync/readsync/pkg/cli/queue"
	"github.com/readsync/readsync/pkg/cli/settings"
	"github.com/readsync/readsync/pkg/cli/testutils"
)

func TestParseType(t *testing.T) {
	testCases := []struct {
		input        string
		expectedType client.PullType
		expectedCont queue.Continuation
	}{
		{input: "all", expectedType: client.PullAll, expectedCont: queue.ApplyAll},
		{input: "", expectedType: client.PullAll, expectedCont: queue.ApplyAll},
		{input: "books", expectedType: client.PullBooks, expectedCont: queue.ApplyAll},
		{input: "configs", expectedType: client.PullConfigs, expectedCont: queue.ApplyProgress},
		{input: "progress", expectedType: client.PullConfigs, expectedCont: queue.ApplyProgress},
		{input: "notes", expectedType: client.PullNotes, expectedCont: queue.ApplyNotes},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			pt, cont, err := parseType(tc.input)
			assert.NoError(t, err, "parsing")
			assert.Equal(t, pt, tc.expectedType, "type mismatch")
			assert.Equal(t, cont, tc.expectedCont, "continuation mismatch")
		})
	}

	_, _, err := parseType("everything")
	assert.NotEqual(t, err, nil, "unknown type should fail")
}

func setup(t *testing.T) (context.ReadsyncCtx, *testutils.FakeServer) {
	srv := testutils.NewFakeServer(t)
	ctx := context.InitTestCtx(t, srv.URL, settings.Default())
	testutils.Login(t, ctx.Settings, srv)

	assert.NoError(t, ctx.Library.Save(library.Book{ContentHash: "c1aaaaaa", FilePath: "/books/dune.pdf", Title: "Dune", Paged: true, LastPage: 10, TotalPages: 100}), "saving c1")

	return ctx, srv
}

func TestDo_book(t *testing.T) {
	ctx, srv := setup(t)
	srv.PutConfig(client.Config{BookHash: "c1aaaaaa", Progress: &client.Progress{Page: 50, Total: 100}, UpdatedAt: 5})

	res, err := Do(stdctx.Background(), ctx, Options{Book: "dune.pdf", Type: "configs"})
	assert.NoError(t, err, "pulling")
	assert.Equal(t, res.Configs, 1, "config count mismatch")

	b, err := ctx.Library.Get("c1aaaaaa")
	assert.NoError(t, err, "getting book")
	assert.Equal(t, b.LastPage, 50, "page mismatch")

	st, err := ctx.Settings.Load()
	assert.NoError(t, err, "loading settings")
	assert.Equal(t, st.LastPulledAt, int64(0), "a book pull should not move the cursor")
}

func TestDo_incremental(t *testing.T) {
	ctx, srv := setup(t)
	srv.PutConfig(client.Config{BookHash: "c1aaaaaa", Progress: &client.Progress{Page: 50, Total: 100}, UpdatedAt: 5})

	_, err := ctx.Settings.Update(func(s *settings.Settings) error {
		s.LastPulledAt = 10
		return nil
	})
	assert.NoError(t, err, "saving last pull")

	res, err := Do(stdctx.Background(), ctx, Options{})
	assert.NoError(t, err, "pulling")
	assert.Equal(t, res.Configs, 0, "records older than the last pull should be skipped")

	res, err = Do(stdctx.Background(), ctx, Options{Full: true})
	assert.NoError(t, err, "full pull")
	assert.Equal(t, res.Configs, 1, "full pull should apply the position")
}

func TestDo_offline(t *testing.T) {
	ctx, srv := setup(t)
	srv.SetOffline(true)

	_, err := Do(stdctx.Background(), ctx, Options{})
	assert.NotEqual(t, err, nil, "error should be returned")

	items, err := ctx.Queue.Items()
	assert.NoError(t, err, "listing queue")
	assert.Equal(t, len(items), 0, "an interactive pull should not be queued")
}
