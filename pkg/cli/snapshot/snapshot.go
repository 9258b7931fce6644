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

// Package snapshot builds the records sent to the server from the local library
package snapshot

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/client"
	"github.com/readsync/readsync/pkg/cli/fingerprint"
	"github.com/readsync/readsync/pkg/cli/highlight"
	"github.com/readsync/readsync/pkg/cli/identity"
	"github.com/readsync/readsync/pkg/cli/library"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/readsync/readsync/pkg/clock"
)

// DatetimeLayout is the layout of the annotation timestamps
const DatetimeLayout = "2006-01-02 15:04:05"

// DefaultDrawer is the highlight style of notes received without one
const DefaultDrawer = "lighten"

// Identities resolves and looks up cached book identities
type Identities interface {
	Resolve(b library.Book) (identity.BookIdentity, error)
	Lookup(contentHash string) (identity.BookIdentity, bool, error)
}

// Annotations lists the annotations of a book
type Annotations interface {
	Annotations(bookHash string) ([]library.Annotation, error)
}

// Builder builds outbound records
type Builder struct {
	ids   Identities
	anns  Annotations
	clock clock.Clock
}

// New returns a builder
func New(ids Identities, anns Annotations, c clock.Clock) *Builder {
	return &Builder{
		ids:   ids,
		anns:  anns,
		clock: c,
	}
}

// MapStatus maps a local reading status onto the synced one
func MapStatus(status string) client.ReadingStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "complete", "finished":
		return client.StatusFinished
	case "abandoned", "on_hold":
		return client.StatusAbandoned
	default:
		return client.StatusReading
	}
}

// LocalStatus maps a synced reading status onto the local one
func LocalStatus(status client.ReadingStatus) string {
	switch status {
	case client.StatusFinished:
		return "complete"
	case client.StatusAbandoned:
		return "abandoned"
	default:
		return "reading"
	}
}

// Book returns the metadata record of the book. It returns false for a book
// without a content hash.
func (b *Builder) Book(book library.Book) (client.Book, bool, error) {
	if book.ContentHash == "" {
		return client.Book{}, false, nil
	}

	id, err := b.ids.Resolve(book)
	if err != nil {
		return client.Book{}, false, errors.Wrapf(err, "resolving identity of %s", book.ContentHash)
	}

	return client.Book{
		BookHash:      book.ContentHash,
		MetaHash:      id.MetaHash,
		Format:        strings.ToUpper(book.Format),
		Title:         book.Title,
		Author:        fingerprint.NormalizeAuthors(book.Authors),
		Tags:          book.Tags,
		ReadingStatus: MapStatus(book.Status),
		UpdatedAt:     book.UpdatedAt,
	}, true, nil
}

// Config returns the reading position record of the book. It returns false unless
// the book has a content hash and a cached metadata hash.
func (b *Builder) Config(book library.Book) (client.Config, bool, error) {
	if book.ContentHash == "" {
		return client.Config{}, false, nil
	}

	id, ok, err := b.ids.Lookup(book.ContentHash)
	if err != nil {
		return client.Config{}, false, errors.Wrapf(err, "looking up identity of %s", book.ContentHash)
	}
	if !ok || id.MetaHash == "" {
		return client.Config{}, false, nil
	}

	c := client.Config{
		BookHash:  book.ContentHash,
		MetaHash:  id.MetaHash,
		UpdatedAt: book.UpdatedAt,
	}
	if book.Paged {
		c.Progress = &client.Progress{Page: book.LastPage, Total: book.TotalPages}
	} else {
		c.XPointer = book.XPointer
	}

	return c, true, nil
}

func toClientPoint(p *fingerprint.Point) *client.Point {
	if p == nil {
		return nil
	}

	return &client.Point{X: p.X, Y: p.Y}
}

func toLocalPoint(p *client.Point) *fingerprint.Point {
	if p == nil {
		return nil
	}

	return &fingerprint.Point{X: p.X, Y: p.Y}
}

func (b *Builder) parseDatetime(values ...string) int64 {
	for _, v := range values {
		if v == "" {
			continue
		}

		t, err := time.ParseInLocation(DatetimeLayout, v, time.UTC)
		if err == nil {
			return t.UnixMilli()
		}
	}

	return clock.UnixMilli(b.clock)
}

// NoteID returns the identifier of the annotation
func NoteID(a library.Annotation) string {
	return fingerprint.DeriveNoteID(a.Anchor())
}

// Notes returns the note records of the book. Bookmarks are left out.
func (b *Builder) Notes(id identity.BookIdentity, anns []library.Annotation) []client.Note {
	ret := []client.Note{}

	for _, a := range anns {
		if !a.IsHighlight() {
			continue
		}

		typ := client.NoteHighlight
		if a.Note != "" {
			typ = client.NoteAnnotation
		}

		ret = append(ret, client.Note{
			ID:        NoteID(a),
			BookHash:  id.ContentHash,
			MetaHash:  id.MetaHash,
			Type:      typ,
			Position:  a.Page,
			Pos0:      toClientPoint(a.Pos0),
			Pos1:      toClientPoint(a.Pos1),
			Page:      a.PageNo,
			Text:      a.Text,
			Note:      a.Note,
			Chapter:   a.Chapter,
			Style:     a.Drawer,
			Color:     highlight.HexOrDefault(a.Color),
			CreatedAt: a.Datetime,
			UpdatedAt: b.parseDatetime(a.DatetimeUpdated, a.Datetime),
		})
	}

	return ret
}

// ToAnnotation converts a received note back to the local annotation form
func ToAnnotation(bookHash string, n client.Note) library.Annotation {
	drawer := n.Style
	if drawer == "" {
		drawer = DefaultDrawer
	}

	return library.Annotation{
		BookHash:        bookHash,
		Page:            n.Position,
		Pos0:            toLocalPoint(n.Pos0),
		Pos1:            toLocalPoint(n.Pos1),
		Drawer:          drawer,
		Color:           highlight.HexOrDefault(n.Color),
		Text:            n.Text,
		Note:            n.Note,
		Chapter:         n.Chapter,
		Datetime:        n.CreatedAt,
		DatetimeUpdated: n.CreatedAt,
		PageNo:          n.Page,
	}
}

// Records builds one batch holding the records of the given books. A book that
// cannot be fingerprinted is skipped without failing the batch.
func (b *Builder) Records(books []library.Book) (client.PushPayload, error) {
	ret := client.PushPayload{
		Books:   []client.Book{},
		Notes:   []client.Note{},
		Configs: []client.Config{},
	}

	for _, book := range books {
		rec, ok, err := b.Book(book)
		if err != nil {
			log.Debug("skipping %s: %s\n", book.FilePath, err.Error())
			continue
		}
		if !ok {
			log.Debug("skipping %s without a content hash\n", book.FilePath)
			continue
		}
		ret.Books = append(ret.Books, rec)

		cfg, ok, err := b.Config(book)
		if err != nil {
			log.Debug("skipping position of %s: %s\n", book.FilePath, err.Error())
		} else if ok {
			ret.Configs = append(ret.Configs, cfg)
		}

		anns, err := b.anns.Annotations(book.ContentHash)
		if err != nil {
			return client.PushPayload{}, errors.Wrapf(err, "listing annotations of %s", book.ContentHash)
		}
		id := identity.BookIdentity{ContentHash: rec.BookHash, MetaHash: rec.MetaHash}
		ret.Notes = append(ret.Notes, b.Notes(id, anns)...)
	}

	return ret, nil
}
