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

package prompt

import (
	"bufio"
	"strings"
	"testing"

	"github.com/readsync/readsync/pkg/assert"
)

func TestFormatQuestion(t *testing.T) {
	testCases := []struct {
		question   string
		optimistic bool
		expected   string
	}{
		{
			question:   "Are you sure?",
			optimistic: false,
			expected:   "Are you sure? (y/N)",
		},
		{
			question:   "Continue?",
			optimistic: true,
			expected:   "Continue? (Y/n)",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.question, func(t *testing.T) {
			result := FormatQuestion(tc.question, tc.optimistic)
			assert.Equal(t, result, tc.expected, "formatted question mismatch")
		})
	}
}

func TestReadYesNo(t *testing.T) {
	testCases := []struct {
		name       string
		input      string
		optimistic bool
		expected   bool
	}{
		{
			name:       "pessimistic with y",
			input:      "y\n",
			optimistic: false,
			expected:   true,
		},
		{
			name:       "pessimistic with Y (uppercase)",
			input:      "Y\n",
			optimistic: false,
			expected:   true,
		},
		{
			name:       "pessimistic with empty",
			input:      "\n",
			optimistic: false,
			expected:   false,
		},
		{
			name:       "optimistic with n",
			input:      "n\n",
			optimistic: true,
			expected:   false,
		},
		{
			name:       "optimistic with empty",
			input:      "\n",
			optimistic: true,
			expected:   true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ReadYesNo(strings.NewReader(tc.input), tc.optimistic)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			assert.Equal(t, result, tc.expected, "ReadYesNo result mismatch")
		})
	}
}

func TestFormatChoices(t *testing.T) {
	choices := []Choice{{Key: "s", Label: "skip"}, {Key: "o", Label: "overwrite"}}

	got := FormatChoices("book.epub differs", choices)
	assert.Equal(t, got, "book.epub differs [S=skip, o=overwrite]", "formatted choices mismatch")
}

func TestReadChoice(t *testing.T) {
	choices := []Choice{{Key: "s", Label: "skip"}, {Key: "o", Label: "overwrite"}}
	r := bufio.NewReader(strings.NewReader("o\n\nO\nwhat\ns"))

	var got []string
	for i := 0; i < 5; i++ {
		key, err := ReadChoice(r, choices)
		if err != nil {
			t.Fatalf("unexpected error at %d: %v", i, err)
		}
		got = append(got, key)
	}

	assert.DeepEqual(t, got, []string{"o", "s", "o", "s", "s"}, "choices mismatch")

	if _, err := ReadChoice(r, choices); err == nil {
		t.Fatal("expected error on exhausted reader")
	}
}
