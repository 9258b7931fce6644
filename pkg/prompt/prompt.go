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

// Package prompt provides utilities for interactive yes/no and multiple choice prompts
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Choice is a single answer to a multiple choice question
type Choice struct {
	Key   string
	Label string
}

// FormatQuestion formats a yes/no question with the appropriate choice indicator
func FormatQuestion(question string, optimistic bool) string {
	choices := "(y/N)"
	if optimistic {
		choices = "(Y/n)"
	}
	return fmt.Sprintf("%s %s", question, choices)
}

// FormatChoices formats a multiple choice question. The first choice is the default
// and is capitalized.
func FormatChoices(question string, choices []Choice) string {
	parts := make([]string, 0, len(choices))
	for i, c := range choices {
		key := c.Key
		if i == 0 {
			key = strings.ToUpper(key)
		}
		parts = append(parts, fmt.Sprintf("%s=%s", key, c.Label))
	}

	return fmt.Sprintf("%s [%s]", question, strings.Join(parts, ", "))
}

// ReadYesNo reads and parses a yes/no response from the given reader.
// Returns true if confirmed, respecting optimistic mode.
// In optimistic mode, empty input is treated as confirmation.
func ReadYesNo(r io.Reader, optimistic bool) (bool, error) {
	reader := bufio.NewReader(r)
	input, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}

	input = strings.ToLower(strings.TrimSpace(input))
	confirmed := input == "y"

	if optimistic {
		confirmed = confirmed || input == ""
	}

	return confirmed, nil
}

// ReadChoice reads a line from the given reader and returns the key of the matching
// choice. Empty or unrecognized input selects the first choice. The reader is shared
// across calls so that consecutive questions consume consecutive lines.
func ReadChoice(r *bufio.Reader, choices []Choice) (string, error) {
	input, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || input == "") {
		return "", err
	}

	input = strings.ToLower(strings.TrimSpace(input))
	for _, c := range choices {
		if input == strings.ToLower(c.Key) {
			return c.Key, nil
		}
	}

	if len(choices) == 0 {
		return "", nil
	}

	return choices[0].Key, nil
}
