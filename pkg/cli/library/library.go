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

// Package library stores the books on this device together with their reading
// position and annotations. It is the document collaborator of the sync engine.
package library

import (
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/database"
	"github.com/readsync/readsync/pkg/cli/fingerprint"
	"github.com/readsync/readsync/pkg/cli/log"
)

// ErrBookNotFound is returned when no book matches the given content hash
var ErrBookNotFound = errors.New("book not found")

// Book is a book file on this device
type Book struct {
	ContentHash string
	FilePath    string
	Format      string
	Title       string
	Authors     []string
	Identifiers []string
	Tags        []string
	// Status is the reading status as recorded by the reader
	Status string
	// Paged is true for documents with fixed pages, such as PDF or CBZ
	Paged      bool
	LastPage   int
	TotalPages int
	XPointer   string
	// UpdatedAt is the time of the last local change in milliseconds
	UpdatedAt int64
}

// FileName returns the base name of the book file
func (b Book) FileName() string {
	return filepath.Base(b.FilePath)
}

// Library is the SQLite-backed library of this device
type Library struct {
	db *database.DB
}

// New returns a library backed by the given database
func New(db *database.DB) *Library {
	return &Library{db: db}
}

func joinList(l []string) string {
	return strings.Join(l, "\n")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}

	return strings.Split(s, "\n")
}

// formatFromPath returns the lower case extension of the file without the dot
func formatFromPath(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// isPagedFormat reports whether documents of the format have fixed pages
func isPagedFormat(format string) bool {
	switch format {
	case "pdf", "djvu", "cbz", "cbr", "cbt", "xps":
		return true
	default:
		return false
	}
}

// bookFormats are the file extensions registered in the library
var bookFormats = map[string]bool{
	"epub": true, "fb2": true, "mobi": true, "azw3": true, "txt": true, "html": true, "docx": true,
	"pdf": true, "djvu": true, "cbz": true, "cbr": true, "cbt": true, "xps": true,
}

// IsBookFile reports whether the file at path is a supported book format
func IsBookFile(path string) bool {
	return bookFormats[formatFromPath(path)]
}

// Save inserts the book or updates every column of an existing one
func (l *Library) Save(b Book) error {
	if b.ContentHash == "" {
		return errors.New("book has no content hash")
	}

	_, err := l.db.Exec(`INSERT INTO books
		(content_hash, file_path, format, title, authors, identifiers, tags, status, paged, last_page, total_pages, xpointer, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			file_path = excluded.file_path, format = excluded.format, title = excluded.title,
			authors = excluded.authors, identifiers = excluded.identifiers, tags = excluded.tags,
			status = excluded.status, paged = excluded.paged, last_page = excluded.last_page,
			total_pages = excluded.total_pages, xpointer = excluded.xpointer, updated_at = excluded.updated_at`,
		b.ContentHash, b.FilePath, b.Format, b.Title, joinList(b.Authors), joinList(b.Identifiers), joinList(b.Tags),
		b.Status, b.Paged, b.LastPage, b.TotalPages, b.XPointer, b.UpdatedAt)
	if err != nil {
		return errors.Wrapf(err, "saving book %s", b.ContentHash)
	}

	return nil
}

const bookColumns = `content_hash, file_path, format, title, authors, identifiers, tags, status, paged, last_page, total_pages, xpointer, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBook(row scanner) (Book, error) {
	var b Book
	var authors, identifiers, tags string

	err := row.Scan(&b.ContentHash, &b.FilePath, &b.Format, &b.Title, &authors, &identifiers, &tags,
		&b.Status, &b.Paged, &b.LastPage, &b.TotalPages, &b.XPointer, &b.UpdatedAt)
	if err != nil {
		return b, err
	}

	b.Authors = splitList(authors)
	b.Identifiers = splitList(identifiers)
	b.Tags = splitList(tags)

	return b, nil
}

// Get returns the book with the given content hash
func (l *Library) Get(contentHash string) (Book, error) {
	row := l.db.QueryRow("SELECT "+bookColumns+" FROM books WHERE content_hash = ?", contentHash)

	b, err := scanBook(row)
	if err == sql.ErrNoRows {
		return b, ErrBookNotFound
	} else if err != nil {
		return b, errors.Wrapf(err, "finding book %s", contentHash)
	}

	return b, nil
}

// FindByFileName returns the book whose file has the given base name
func (l *Library) FindByFileName(name string) (Book, bool, error) {
	books, err := l.List()
	if err != nil {
		return Book{}, false, err
	}

	for _, b := range books {
		if b.FileName() == name {
			return b, true, nil
		}
	}

	return Book{}, false, nil
}

// Find returns the book with the given content hash, file name or unique content
// hash prefix of at least 6 characters
func (l *Library) Find(ref string) (Book, error) {
	b, err := l.Get(ref)
	if err != ErrBookNotFound {
		return b, err
	}

	b, ok, err := l.FindByFileName(ref)
	if err != nil {
		return b, err
	}
	if ok {
		return b, nil
	}

	if len(ref) < 6 {
		return Book{}, ErrBookNotFound
	}

	books, err := l.List()
	if err != nil {
		return Book{}, err
	}

	var matches []Book
	for _, b := range books {
		if strings.HasPrefix(b.ContentHash, ref) {
			matches = append(matches, b)
		}
	}

	switch len(matches) {
	case 0:
		return Book{}, ErrBookNotFound
	case 1:
		return matches[0], nil
	default:
		return Book{}, errors.Errorf("%d books match %s", len(matches), ref)
	}
}

// List returns every book ordered by title
func (l *Library) List() ([]Book, error) {
	rows, err := l.db.Query("SELECT " + bookColumns + " FROM books ORDER BY title, content_hash")
	if err != nil {
		return nil, errors.Wrap(err, "querying books")
	}
	defer rows.Close()

	var ret []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning a book")
		}
		ret = append(ret, b)
	}

	return ret, rows.Err()
}

// Remove deletes the book and its annotations
func (l *Library) Remove(contentHash string) error {
	if _, err := l.db.Exec("DELETE FROM books WHERE content_hash = ?", contentHash); err != nil {
		return errors.Wrapf(err, "deleting book %s", contentHash)
	}

	return nil
}

// Register adds the book file at the given path to the library, computing its content
// hash. Metadata that is already recorded for the same content is kept. Records of
// earlier contents of the same path are removed along with their annotations.
func (l *Library) Register(path string, meta Book, now int64) (Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return Book{}, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	hash, err := fingerprint.ContentHash(f)
	if err != nil {
		return Book{}, errors.Wrapf(err, "hashing %s", path)
	}

	tx, err := l.db.Begin()
	if err != nil {
		return Book{}, err
	}
	txl := &Library{db: tx}

	b, err := txl.register(hash, path, meta, now)
	if err != nil {
		tx.Rollback()
		return Book{}, err
	}

	if err := tx.Commit(); err != nil {
		return Book{}, errors.Wrapf(err, "committing registration of %s", path)
	}

	return b, nil
}

func (l *Library) register(hash, path string, meta Book, now int64) (Book, error) {
	res, err := l.db.Exec("DELETE FROM books WHERE file_path = ? AND content_hash != ?", path, hash)
	if err != nil {
		return Book{}, errors.Wrapf(err, "removing stale records of %s", path)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		log.Debug("removed %d stale records of %s\n", n, path)
	}

	existing, err := l.Get(hash)
	if err != nil && err != ErrBookNotFound {
		return Book{}, err
	}

	b := meta
	if err == nil {
		b = existing
	}
	b.ContentHash = hash
	b.FilePath = path
	b.Format = formatFromPath(path)
	b.Paged = isPagedFormat(b.Format)
	if b.UpdatedAt == 0 {
		b.UpdatedAt = now
	}

	if err := l.Save(b); err != nil {
		return Book{}, err
	}

	return b, nil
}

// SetPage records the current page of a paged document
func (l *Library) SetPage(contentHash string, page, total int, now int64) error {
	res, err := l.db.Exec("UPDATE books SET last_page = ?, total_pages = ?, updated_at = ? WHERE content_hash = ?",
		page, total, now, contentHash)
	if err != nil {
		return errors.Wrapf(err, "updating page of %s", contentHash)
	}

	return checkAffected(res, contentHash)
}

// SetXPointer records the current structural position of a reflowable document
func (l *Library) SetXPointer(contentHash, xpointer string, now int64) error {
	res, err := l.db.Exec("UPDATE books SET xpointer = ?, updated_at = ? WHERE content_hash = ?",
		xpointer, now, contentHash)
	if err != nil {
		return errors.Wrapf(err, "updating position of %s", contentHash)
	}

	return checkAffected(res, contentHash)
}

// SetStatus records the reading status
func (l *Library) SetStatus(contentHash, status string, now int64) error {
	res, err := l.db.Exec("UPDATE books SET status = ?, updated_at = ? WHERE content_hash = ?",
		status, now, contentHash)
	if err != nil {
		return errors.Wrapf(err, "updating status of %s", contentHash)
	}

	return checkAffected(res, contentHash)
}

func checkAffected(res sql.Result, contentHash string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if n == 0 {
		return errors.Wrap(ErrBookNotFound, contentHash)
	}

	return nil
}

// CurrentPage returns the current page as a string for display
func (b Book) CurrentPage() string {
	if b.Paged {
		return strconv.Itoa(b.LastPage)
	}

	return b.XPointer
}
