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

package validate

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/client"
)

var readingStatuses = map[string]client.ReadingStatus{
	"reading":   client.StatusReading,
	"finished":  client.StatusFinished,
	"abandoned": client.StatusAbandoned,
}

// ErrStatusInvalid is an error for a reading status that is not synced
var ErrStatusInvalid = errors.New("The reading status must be reading, finished or abandoned")

// ErrPageOutOfRange is an error for a page outside of the document
var ErrPageOutOfRange = errors.New("The page is out of range")

// ErrXPointerEmpty is an error for an empty xpointer
var ErrXPointerEmpty = errors.New("The xpointer is empty")

// ErrXPointerNotAbsolute is an error for an xpointer that does not start at the document root
var ErrXPointerNotAbsolute = errors.New("The xpointer must start with /")

// ErrXPointerHasSpace is an error for an xpointer with whitespace
var ErrXPointerHasSpace = errors.New("The xpointer cannot contain spaces")

// ErrTextEmpty is an error for a highlight without text
var ErrTextEmpty = errors.New("The highlighted text is empty")

// ErrDrawerEmpty is an error for a highlight without a style
var ErrDrawerEmpty = errors.New("The highlight style is empty")

// ReadingStatus validates a reading status and returns its synced value
func ReadingStatus(s string) (client.ReadingStatus, error) {
	st, ok := readingStatuses[strings.ToLower(s)]
	if !ok {
		return "", ErrStatusInvalid
	}

	return st, nil
}

// Page validates a page number. A total of zero means the page count is unknown.
func Page(page, total int) error {
	if page < 1 {
		return ErrPageOutOfRange
	}
	if total > 0 && page > total {
		return ErrPageOutOfRange
	}

	return nil
}

// XPointer validates a position in a reflowable document
func XPointer(p string) error {
	if p == "" {
		return ErrXPointerEmpty
	}

	if !strings.HasPrefix(p, "/") {
		return ErrXPointerNotAbsolute
	}

	if strings.ContainsAny(p, " \t\r\n") {
		return ErrXPointerHasSpace
	}

	return nil
}

// Highlight validates the text and style of a highlight
func Highlight(text, drawer string) error {
	if strings.TrimSpace(text) == "" {
		return ErrTextEmpty
	}

	if drawer == "" {
		return ErrDrawerEmpty
	}

	return nil
}
