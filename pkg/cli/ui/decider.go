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

package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/readsync/readsync/pkg/cli/transfer"
	"github.com/readsync/readsync/pkg/prompt"
)

// Keys of the answers to a download conflict
const (
	keySkip         = "s"
	keyOverwrite    = "o"
	keySkipAll      = "n"
	keyOverwriteAll = "a"
)

var conflictChoices = []prompt.Choice{
	{Key: keySkip, Label: "keep local"},
	{Key: keyOverwrite, Label: "overwrite"},
	{Key: keySkipAll, Label: "keep all"},
	{Key: keyOverwriteAll, Label: "overwrite all"},
}

// PromptDecider asks on the terminal whether a conflicting local file should be
// overwritten. Answering for all conflicts skips the remaining questions.
type PromptDecider struct {
	r   *bufio.Reader
	all transfer.Action
}

// NewPromptDecider returns a decider reading answers from r, usually os.Stdin
func NewPromptDecider(r io.Reader) *PromptDecider {
	return &PromptDecider{r: bufio.NewReader(r)}
}

// Decide implements transfer.Decider
func (d *PromptDecider) Decide(ctx context.Context, c transfer.Candidate) (transfer.Action, error) {
	if d.all != transfer.Undecided {
		return d.all, nil
	}

	question := fmt.Sprintf("%s differs from the copy in your account", c.FileName)
	log.Askf(prompt.FormatChoices(question, conflictChoices), false)

	key, err := prompt.ReadChoice(d.r, conflictChoices)
	if err != nil {
		return transfer.Undecided, errors.Wrap(err, "getting user input")
	}

	switch key {
	case keyOverwrite:
		return transfer.Overwrite, nil
	case keySkipAll:
		d.all = transfer.Skip
		return transfer.Skip, nil
	case keyOverwriteAll:
		d.all = transfer.Overwrite
		return transfer.Overwrite, nil
	default:
		return transfer.Skip, nil
	}
}
