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

package client

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ReadingStatus is the library status of a book
type ReadingStatus string

// Reading statuses
const (
	StatusReading   ReadingStatus = "reading"
	StatusFinished  ReadingStatus = "finished"
	StatusAbandoned ReadingStatus = "abandoned"
)

// NoteType distinguishes plain highlights from highlights carrying a note
type NoteType string

// Note types
const (
	NoteHighlight  NoteType = "highlight"
	NoteAnnotation NoteType = "annotation"
)

// Book is the library record of a book
type Book struct {
	BookHash      string        `json:"book_hash"`
	MetaHash      string        `json:"meta_hash"`
	Format        string        `json:"format"`
	Title         string        `json:"title"`
	Author        string        `json:"author"`
	Tags          []string      `json:"tags,omitempty"`
	ReadingStatus ReadingStatus `json:"reading_status"`
	UpdatedAt     int64         `json:"updated_at"`
	DeletedAt     *int64        `json:"deleted_at,omitempty"`
}

// Progress is the position in a paged document. It is encoded as [page,totalPages].
type Progress struct {
	Page  int
	Total int
}

// MarshalJSON encodes the progress as a two element array
func (p Progress) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.Page, p.Total})
}

// UnmarshalJSON decodes the progress from a two element array, or from a string holding one
func (p *Progress) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		b = []byte(strings.TrimSpace(s))
	}

	var arr []int
	if err := json.Unmarshal(b, &arr); err != nil {
		return errors.Wrapf(err, "decoding progress %s", strconv.Quote(string(b)))
	}
	if len(arr) != 2 {
		return errors.Errorf("progress must have two elements, got %d", len(arr))
	}

	p.Page = arr[0]
	p.Total = arr[1]

	return nil
}

// Config is the reading position of a book. Progress is set for paged documents and
// XPointer for reflowable ones.
type Config struct {
	BookHash  string    `json:"book_hash"`
	MetaHash  string    `json:"meta_hash"`
	Progress  *Progress `json:"progress,omitempty"`
	XPointer  string    `json:"xpointer,omitempty"`
	UpdatedAt int64     `json:"updated_at"`
}

// Point is a geometry anchor of a note
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Note is a highlight or an annotation
type Note struct {
	ID       string   `json:"id"`
	BookHash string   `json:"book_hash"`
	MetaHash string   `json:"meta_hash"`
	Type     NoteType `json:"type"`
	Position string   `json:"position"`
	Pos0     *Point   `json:"pos0,omitempty"`
	Pos1     *Point   `json:"pos1,omitempty"`
	Page     int      `json:"page,omitempty"`
	Text     string   `json:"text"`
	Note     string   `json:"note,omitempty"`
	Chapter  string   `json:"chapter,omitempty"`
	Style    string   `json:"style"`
	Color    string   `json:"color"`
	// CreatedAt is the creation time as recorded by the reader. It is part of the id.
	CreatedAt string `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	DeletedAt *int64 `json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the note is a tombstone
func (n Note) IsDeleted() bool {
	return n.DeletedAt != nil && *n.DeletedAt > 0
}

// PushPayload is a batch of records sent to the server
type PushPayload struct {
	Books   []Book   `json:"books"`
	Notes   []Note   `json:"notes"`
	Configs []Config `json:"configs"`
}

// IsEmpty reports whether the payload holds no records
func (p PushPayload) IsEmpty() bool {
	return len(p.Books) == 0 && len(p.Notes) == 0 && len(p.Configs) == 0
}

// PullType selects the kinds of records returned by a pull
type PullType string

// Pull types
const (
	PullAll     PullType = ""
	PullBooks   PullType = "books"
	PullConfigs PullType = "configs"
	PullNotes   PullType = "notes"
)

// PullParams filters the records returned by a pull
type PullParams struct {
	// Since is a timestamp in milliseconds; only records updated after it are returned
	Since    int64    `json:"since"`
	Type     PullType `json:"type,omitempty"`
	Book     string   `json:"book,omitempty"`
	MetaHash string   `json:"meta_hash,omitempty"`
}

// PullResponse holds the records returned by a pull
type PullResponse struct {
	Books   []Book   `json:"books"`
	Notes   []Note   `json:"notes"`
	Configs []Config `json:"configs"`
}

// User is the account the session belongs to
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AuthResult is the response to a sign in or a token refresh
type AuthResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// ExpiresAt is a unix timestamp in seconds
	ExpiresAt int64 `json:"expires_at"`
	// ExpiresIn is the lifetime of the access token in seconds
	ExpiresIn int64 `json:"expires_in"`
	User      User  `json:"user"`
}

// UploadRequest describes a file about to be uploaded
type UploadRequest struct {
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	BookHash string `json:"book_hash"`
}

// UploadTicket is where an upload should be sent
type UploadTicket struct {
	UploadURL string `json:"upload_url"`
	FileKey   string `json:"file_key"`
}

// RemoteFile is a book file in the account storage
type RemoteFile struct {
	FileKey  string `json:"file_key"`
	FileName string `json:"file_name"`
	BookHash string `json:"book_hash"`
	FileSize int64  `json:"file_size"`
}

// ListParams pages through the account storage
type ListParams struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Search   string `json:"search,omitempty"`
}

// ListResponse is a page of remote files
type ListResponse struct {
	Files []RemoteFile `json:"files"`
	Total int          `json:"total"`
}

// Stats is the usage of the account storage
type Stats struct {
	TotalFiles      int     `json:"total_files"`
	TotalSize       int64   `json:"total_size"`
	Usage           int64   `json:"usage"`
	Quota           int64   `json:"quota"`
	UsagePercentage float64 `json:"usage_percentage"`
}
