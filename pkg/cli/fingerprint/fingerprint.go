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

// Package fingerprint derives stable cross-device identifiers for books and notes.
// Every function in this package is pure.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// identifierPriority lists identifier schemes in order of preference
var identifierPriority = []string{"uuid", "calibre", "isbn"}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// NormalizeAuthors trims every author and joins them with a comma. An entry may hold
// several newline separated authors.
func NormalizeAuthors(authors []string) string {
	var parts []string
	for _, a := range authors {
		for _, name := range strings.Split(a, "\n") {
			name = strings.TrimSpace(name)
			if name != "" {
				parts = append(parts, name)
			}
		}
	}

	return strings.Join(parts, ",")
}

// NormalizeIdentifier strips the scheme from an identifier. For a urn it keeps the part
// after the final colon; otherwise it keeps the part after the first colon.
func NormalizeIdentifier(id string) string {
	id = strings.TrimSpace(id)

	if strings.HasPrefix(strings.ToLower(id), "urn:") {
		return id[strings.LastIndex(id, ":")+1:]
	}

	if i := strings.Index(id, ":"); i >= 0 {
		return id[i+1:]
	}

	return id
}

// PreferredIdentifier picks the identifier used in the metadata hash. A uuid wins over
// a calibre id, which wins over an isbn. Without any of them, all normalized identifiers
// are joined with a comma.
func PreferredIdentifier(identifiers []string) string {
	for _, scheme := range identifierPriority {
		for _, id := range identifiers {
			if strings.Contains(strings.ToLower(id), scheme) {
				return NormalizeIdentifier(id)
			}
		}
	}

	normalized := make([]string, 0, len(identifiers))
	for _, id := range identifiers {
		if n := NormalizeIdentifier(id); n != "" {
			normalized = append(normalized, n)
		}
	}

	return strings.Join(normalized, ",")
}

// baseName returns the file name without directory and extension
func baseName(path string) string {
	base := filepath.Base(path)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}

	return strings.TrimSuffix(base, filepath.Ext(base))
}

// DeriveMetaHash returns the hash identifying the same work across different files.
// An empty title is replaced by the base name of the file at filePath.
func DeriveMetaHash(title string, authors, identifiers []string, filePath string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = baseName(filePath)
	}

	return digest(fmt.Sprintf("%s|%s|%s", title, NormalizeAuthors(authors), PreferredIdentifier(identifiers)))
}

// Point is a geometry anchor of a highlight on a page
type Point struct {
	X float64
	Y float64
}

// Anchor holds the fields a note identifier is derived from
type Anchor struct {
	// Position is the page number or the structural position of the highlight
	Position string
	Start    *Point
	End      *Point
	// Created is the creation timestamp as stored by the reader
	Created string
}

func formatPoint(p *Point) string {
	if p == nil {
		return ""
	}

	return fmt.Sprintf("%d_%d", int64(math.Floor(p.X)), int64(math.Floor(p.Y)))
}

// DeriveNoteID returns the identifier of a highlight or annotation. The same highlight
// created on two devices, or synced twice, yields the same identifier.
func DeriveNoteID(a Anchor) string {
	return digest(strings.Join([]string{a.Position, formatPoint(a.Start), formatPoint(a.End), a.Created}, "|"))
}
