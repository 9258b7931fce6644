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

// Package transfer moves whole book files between the library directory and the
// account storage, resolving conflicts with local copies first
package transfer

import (
	"context"

	"github.com/pkg/errors"
)

// Candidate is a remote file along with the state of the same-named local file
type Candidate struct {
	FileKey     string
	FileName    string
	BookHash    string
	FileSize    int64
	LocalExists bool
	LocalHash   string
	// Err is set when the candidate cannot be transferred
	Err error
}

// Action is what happens to a candidate
type Action int

// Actions
const (
	// Undecided conflicts block the whole plan
	Undecided Action = iota
	// Download fetches a file that is absent locally
	Download
	// SkipIdentical leaves a local file with the same content
	SkipIdentical
	// Overwrite replaces a different local file with the remote one
	Overwrite
	// Skip keeps a different local file
	Skip
	// Reject fails a candidate that cannot be transferred
	Reject
)

func (a Action) String() string {
	switch a {
	case Download:
		return "download"
	case SkipIdentical:
		return "skip identical"
	case Overwrite:
		return "overwrite"
	case Skip:
		return "skip"
	case Reject:
		return "reject"
	default:
		return "undecided"
	}
}

// Item is a candidate with its action
type Item struct {
	Candidate
	Action Action
}

// Plan is the partition of candidates into ones that need no decision and conflicts
type Plan struct {
	NoConflict []Item
	Conflicts  []Item
}

// Decided reports whether every conflict has a decision
func (p Plan) Decided() bool {
	for _, it := range p.Conflicts {
		if it.Action != Overwrite && it.Action != Skip {
			return false
		}
	}

	return true
}

// Items returns every item of the plan, conflicts last
func (p Plan) Items() []Item {
	ret := make([]Item, 0, len(p.NoConflict)+len(p.Conflicts))
	ret = append(ret, p.NoConflict...)
	ret = append(ret, p.Conflicts...)
	return ret
}

// Partition splits the candidates. An absent local file is downloaded and an
// identical one is skipped. A local file with a different hash is a conflict.
// A candidate with an error is rejected without a decision.
func Partition(candidates []Candidate) Plan {
	var p Plan

	for _, c := range candidates {
		switch {
		case c.Err != nil:
			p.NoConflict = append(p.NoConflict, Item{Candidate: c, Action: Reject})
		case !c.LocalExists:
			p.NoConflict = append(p.NoConflict, Item{Candidate: c, Action: Download})
		case c.LocalHash == c.BookHash:
			p.NoConflict = append(p.NoConflict, Item{Candidate: c, Action: SkipIdentical})
		default:
			p.Conflicts = append(p.Conflicts, Item{Candidate: c, Action: Undecided})
		}
	}

	return p
}

// Decider chooses between overwriting and keeping a conflicting local file
type Decider interface {
	Decide(ctx context.Context, c Candidate) (Action, error)
}

// DeciderFunc adapts a function to Decider
type DeciderFunc func(ctx context.Context, c Candidate) (Action, error)

// Decide calls f
func (f DeciderFunc) Decide(ctx context.Context, c Candidate) (Action, error) {
	return f(ctx, c)
}

// Resolve asks for a decision on each conflict, one at a time. If any decision
// fails, the given plan is returned unchanged along with the error, and nothing
// should be transferred.
func Resolve(ctx context.Context, p Plan, d Decider) (Plan, error) {
	resolved := make([]Item, len(p.Conflicts))
	copy(resolved, p.Conflicts)

	for i, it := range resolved {
		if err := ctx.Err(); err != nil {
			return p, err
		}

		a, err := d.Decide(ctx, it.Candidate)
		if err != nil {
			return p, errors.Wrapf(err, "deciding on %s", it.FileName)
		}
		if a != Overwrite && a != Skip {
			return p, errors.Errorf("invalid decision %s for %s", a, it.FileName)
		}

		resolved[i].Action = a
	}

	return Plan{NoConflict: p.NoConflict, Conflicts: resolved}, nil
}
