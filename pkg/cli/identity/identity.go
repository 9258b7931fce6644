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

// Package identity provides the sync key of a book: its content hash paired with the
// hash of its bibliographic metadata
package identity

import (
	"database/sql"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/database"
	"github.com/readsync/readsync/pkg/cli/fingerprint"
	"github.com/readsync/readsync/pkg/cli/library"
	"github.com/readsync/readsync/pkg/clock"
)

// ErrNoContentHash is returned for a book whose file was never fingerprinted
var ErrNoContentHash = errors.New("book has no content hash")

// BookIdentity identifies a book across devices. Byte-identical files share a
// ContentHash; edition variants of the same work share a MetaHash.
type BookIdentity struct {
	ContentHash string
	MetaHash    string
}

// Cache stores the metadata hash of every book against its content hash. Once stored,
// a metadata hash is never recomputed, so later metadata edits do not change identity.
type Cache struct {
	db    *database.DB
	clock clock.Clock
}

// NewCache returns a cache backed by the given database
func NewCache(db *database.DB, c clock.Clock) *Cache {
	return &Cache{db: db, clock: c}
}

// Lookup returns the cached identity of the content hash without deriving it
func (c *Cache) Lookup(contentHash string) (BookIdentity, bool, error) {
	if contentHash == "" {
		return BookIdentity{}, false, nil
	}

	var metaHash string
	err := c.db.QueryRow("SELECT meta_hash FROM book_identities WHERE content_hash = ?", contentHash).Scan(&metaHash)
	if err == sql.ErrNoRows {
		return BookIdentity{}, false, nil
	} else if err != nil {
		return BookIdentity{}, false, errors.Wrapf(err, "finding identity of %s", contentHash)
	}

	return BookIdentity{ContentHash: contentHash, MetaHash: metaHash}, true, nil
}

// Resolve returns the identity of the book, deriving and caching the metadata hash
// on first use
func (c *Cache) Resolve(b library.Book) (BookIdentity, error) {
	if b.ContentHash == "" {
		return BookIdentity{}, ErrNoContentHash
	}

	id, ok, err := c.Lookup(b.ContentHash)
	if err != nil {
		return BookIdentity{}, err
	}
	if ok {
		return id, nil
	}

	metaHash := fingerprint.DeriveMetaHash(b.Title, b.Authors, b.Identifiers, b.FilePath)
	if _, err := c.db.Exec("INSERT OR IGNORE INTO book_identities (content_hash, meta_hash, created_at) VALUES (?, ?, ?)",
		b.ContentHash, metaHash, c.clock.Now().UnixMilli()); err != nil {
		return BookIdentity{}, errors.Wrapf(err, "caching identity of %s", b.ContentHash)
	}

	return BookIdentity{ContentHash: b.ContentHash, MetaHash: metaHash}, nil
}

// Forget drops the cached identity, for instance when the local copy is deleted
func (c *Cache) Forget(contentHash string) error {
	if _, err := c.db.Exec("DELETE FROM book_identities WHERE content_hash = ?", contentHash); err != nil {
		return errors.Wrapf(err, "forgetting identity of %s", contentHash)
	}

	return nil
}

// FindByMetaHash returns the content hashes of the local copies of the work with
// the given metadata hash
func (c *Cache) FindByMetaHash(metaHash string) ([]string, error) {
	rows, err := c.db.Query("SELECT content_hash FROM book_identities WHERE meta_hash = ? ORDER BY created_at", metaHash)
	if err != nil {
		return nil, errors.Wrapf(err, "querying identities of %s", metaHash)
	}
	defer rows.Close()

	var ret []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, errors.Wrap(err, "scanning an identity")
		}
		ret = append(ret, hash)
	}

	return ret, rows.Err()
}
