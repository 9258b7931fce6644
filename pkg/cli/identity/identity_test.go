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

package identity

import (
	"testing"

	"github.com/readsync/readsync/pkg/assert"
	"github.com/readsync/readsync/pkg/cli/database"
	"github.com/readsync/readsync/pkg/cli/fingerprint"
	"github.com/readsync/readsync/pkg/cli/library"
	"github.com/readsync/readsync/pkg/clock"
)

func TestResolve(t *testing.T) {
	db := database.InitTestMemoryDB(t)
	c := NewCache(db, clock.NewMock())

	b := library.Book{ContentHash: "c1", Title: "Dune", Authors: []string{"Frank Herbert"}, FilePath: "/b/dune.epub"}

	_, ok, err := c.Lookup("c1")
	assert.NoError(t, err, "looking up")
	assert.Equal(t, ok, false, "identity should not be cached before resolving")

	id, err := c.Resolve(b)
	assert.NoError(t, err, "resolving")
	assert.Equal(t, id.ContentHash, "c1", "content hash mismatch")
	assert.Equal(t, id.MetaHash, fingerprint.DeriveMetaHash("Dune", []string{"Frank Herbert"}, nil, "/b/dune.epub"), "meta hash mismatch")

	t.Run("metadata edits do not change the cached hash", func(t *testing.T) {
		edited := b
		edited.Title = "Dune: Deluxe Edition"

		again, err := c.Resolve(edited)
		assert.NoError(t, err, "resolving edited")
		assert.Equal(t, again, id, "identity should not drift")
	})

	t.Run("lookup returns the cached identity", func(t *testing.T) {
		got, ok, err := c.Lookup("c1")
		assert.NoError(t, err, "looking up")
		assert.Equal(t, ok, true, "identity should be cached")
		assert.Equal(t, got, id, "cached identity mismatch")
	})

	t.Run("forget drops the cache", func(t *testing.T) {
		assert.NoError(t, c.Forget("c1"), "forgetting")
		_, ok, err := c.Lookup("c1")
		assert.NoError(t, err, "looking up")
		assert.Equal(t, ok, false, "identity should be gone")
	})
}

func TestResolveWithoutContentHash(t *testing.T) {
	db := database.InitTestMemoryDB(t)
	c := NewCache(db, clock.NewMock())

	_, err := c.Resolve(library.Book{Title: "x"})
	assert.Equal(t, err, ErrNoContentHash, "error mismatch")
}

func TestFindByMetaHash(t *testing.T) {
	db := database.InitTestMemoryDB(t)
	c := NewCache(db, clock.NewMock())

	epub, err := c.Resolve(library.Book{ContentHash: "epub", Title: "Dune", Authors: []string{"Frank Herbert"}})
	assert.NoError(t, err, "resolving epub")
	_, err = c.Resolve(library.Book{ContentHash: "pdf", Title: "Dune", Authors: []string{"Frank Herbert"}})
	assert.NoError(t, err, "resolving pdf")
	_, err = c.Resolve(library.Book{ContentHash: "other", Title: "Emma"})
	assert.NoError(t, err, "resolving other")

	hashes, err := c.FindByMetaHash(epub.MetaHash)
	assert.NoError(t, err, "finding")
	assert.Equal(t, len(hashes), 2, "copy count mismatch")

	hashes, err = c.FindByMetaHash("missing")
	assert.NoError(t, err, "finding missing")
	assert.Equal(t, len(hashes), 0, "no copy should be found")
}
