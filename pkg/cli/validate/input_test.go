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
	"fmt"
	"testing"

	"github.com/readsync/readsync/pkg/assert"
	"github.com/readsync/readsync/pkg/cli/client"
)

func TestReadingStatus(t *testing.T) {
	testCases := []struct {
		input       string
		expected    client.ReadingStatus
		expectedErr error
	}{
		{input: "reading", expected: client.StatusReading},
		{input: "finished", expected: client.StatusFinished},
		{input: "Abandoned", expected: client.StatusAbandoned},
		{input: "", expectedErr: ErrStatusInvalid},
		{input: "complete", expectedErr: ErrStatusInvalid},
		{input: "on_hold", expectedErr: ErrStatusInvalid},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ReadingStatus(tc.input)
			assert.Equal(t, err, tc.expectedErr, "error mismatch")
			assert.Equal(t, got, tc.expected, "status mismatch")
		})
	}
}

func TestPage(t *testing.T) {
	testCases := []struct {
		page     int
		total    int
		expected error
	}{
		{page: 1, total: 10, expected: nil},
		{page: 10, total: 10, expected: nil},
		{page: 11, total: 10, expected: ErrPageOutOfRange},
		{page: 0, total: 10, expected: ErrPageOutOfRange},
		{page: -1, total: 0, expected: ErrPageOutOfRange},
		{page: 500, total: 0, expected: nil},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%d of %d", tc.page, tc.total), func(t *testing.T) {
			assert.Equal(t, Page(tc.page, tc.total), tc.expected, "result mismatch")
		})
	}
}

func TestXPointer(t *testing.T) {
	testCases := []struct {
		input    string
		expected error
	}{
		{input: "/body/DocFragment[12]/body/p[3]/text().0", expected: nil},
		{input: "/body/DocFragment[2]", expected: nil},
		{input: "", expected: ErrXPointerEmpty},
		{input: "body/DocFragment[2]", expected: ErrXPointerNotAbsolute},
		{input: "42", expected: ErrXPointerNotAbsolute},
		{input: "/body/Doc Fragment", expected: ErrXPointerHasSpace},
		{input: "/body/p\n", expected: ErrXPointerHasSpace},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, XPointer(tc.input), tc.expected, "result mismatch")
		})
	}
}

func TestHighlight(t *testing.T) {
	assert.Equal(t, Highlight("Fear is the mind-killer", "lighten"), nil, "valid highlight")
	assert.Equal(t, Highlight("", "lighten"), ErrTextEmpty, "empty text")
	assert.Equal(t, Highlight(" \n", "lighten"), ErrTextEmpty, "blank text")
	assert.Equal(t, Highlight("text", ""), ErrDrawerEmpty, "empty drawer")
}
