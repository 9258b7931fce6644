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

package transfer

import (
	"context"

	"github.com/pkg/errors"
)

// ErrUndecided is returned for a plan with conflicts that have no decision
var ErrUndecided = errors.New("plan has undecided conflicts")

// Result is the outcome of one item
type Result struct {
	Name    string
	Err     error
	Skipped bool
}

// Report counts the outcomes of a bulk operation
type Report struct {
	Succeeded int
	Failed    int
	Skipped   int
	Results   []Result
}

func (r *Report) add(res Result) {
	switch {
	case res.Skipped:
		r.Skipped++
	case res.Err != nil:
		r.Failed++
	default:
		r.Succeeded++
	}

	r.Results = append(r.Results, res)
}

// Downloader fetches one remote file
type Downloader interface {
	Download(ctx context.Context, c Candidate) error
}

// Run performs the plan one item at a time. A failed or rejected item does not
// stop the remaining ones. Items left when ctx is cancelled are counted as skipped.
func Run(ctx context.Context, p Plan, d Downloader) (Report, error) {
	var r Report
	if !p.Decided() {
		return r, ErrUndecided
	}

	for _, it := range p.Items() {
		if it.Action == SkipIdentical || it.Action == Skip {
			r.add(Result{Name: it.FileName, Skipped: true})
			continue
		}
		if it.Action == Reject {
			r.add(Result{Name: it.FileName, Err: it.Err})
			continue
		}
		if ctx.Err() != nil {
			r.add(Result{Name: it.FileName, Skipped: true, Err: ctx.Err()})
			continue
		}

		err := d.Download(ctx, it.Candidate)
		r.add(Result{Name: it.FileName, Err: err})
	}

	return r, nil
}
