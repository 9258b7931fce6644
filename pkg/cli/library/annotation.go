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

package library

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/fingerprint"
)

// Annotation is a bookmark, highlight or annotation as stored by the reader
type Annotation struct {
	ID       int64
	BookHash string
	// Page is the page number for paged documents or the start xpointer otherwise
	Page string
	Pos0 *fingerprint.Point
	Pos1 *fingerprint.Point
	// Drawer is the highlight style. Bookmarks have no drawer.
	Drawer          string
	Color           string
	Text            string
	Note            string
	Chapter         string
	Datetime        string
	DatetimeUpdated string
	PageNo          int
}

// IsHighlight reports whether the annotation is a highlight or a note rather than a bookmark
func (a Annotation) IsHighlight() bool {
	return a.Drawer != ""
}

// Anchor returns the fields the note identifier is derived from
func (a Annotation) Anchor() fingerprint.Anchor {
	return fingerprint.Anchor{
		Position: a.Page,
		Start:    a.Pos0,
		End:      a.Pos1,
		Created:  a.Datetime,
	}
}

func encodePoint(p *fingerprint.Point) string {
	if p == nil {
		return ""
	}

	return fmt.Sprintf("%s,%s", strconv.FormatFloat(p.X, 'f', -1, 64), strconv.FormatFloat(p.Y, 'f', -1, 64))
}

func decodePoint(s string) (*fingerprint.Point, error) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, errors.Errorf("invalid point %q", s)
	}

	x, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing x of %q", s)
	}
	y, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing y of %q", s)
	}

	return &fingerprint.Point{X: x, Y: y}, nil
}

// Annotations returns the annotations of the book in insertion order
func (l *Library) Annotations(bookHash string) ([]Annotation, error) {
	rows, err := l.db.Query(`SELECT id, book_hash, page, pos0, pos1, drawer, color, text, note, chapter, datetime, datetime_updated, pageno
		FROM annotations WHERE book_hash = ? ORDER BY id`, bookHash)
	if err != nil {
		return nil, errors.Wrapf(err, "querying annotations of %s", bookHash)
	}
	defer rows.Close()

	var ret []Annotation
	for rows.Next() {
		var a Annotation
		var pos0, pos1 string
		if err := rows.Scan(&a.ID, &a.BookHash, &a.Page, &pos0, &pos1, &a.Drawer, &a.Color, &a.Text, &a.Note,
			&a.Chapter, &a.Datetime, &a.DatetimeUpdated, &a.PageNo); err != nil {
			return nil, errors.Wrap(err, "scanning an annotation")
		}

		if a.Pos0, err = decodePoint(pos0); err != nil {
			return nil, err
		}
		if a.Pos1, err = decodePoint(pos1); err != nil {
			return nil, err
		}

		ret = append(ret, a)
	}

	return ret, rows.Err()
}

// AppendAnnotation adds the annotation to the end of the book's list
func (l *Library) AppendAnnotation(a Annotation) error {
	if a.Datetime == "" {
		return errors.New("annotation has no creation time")
	}

	_, err := l.db.Exec(`INSERT INTO annotations
		(book_hash, page, pos0, pos1, drawer, color, text, note, chapter, datetime, datetime_updated, pageno)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.BookHash, a.Page, encodePoint(a.Pos0), encodePoint(a.Pos1), a.Drawer, a.Color, a.Text, a.Note,
		a.Chapter, a.Datetime, a.DatetimeUpdated, a.PageNo)
	if err != nil {
		return errors.Wrapf(err, "inserting annotation into %s", a.BookHash)
	}

	return nil
}
