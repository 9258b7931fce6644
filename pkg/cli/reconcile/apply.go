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

package reconcile

import (
	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/client"
	"github.com/readsync/readsync/pkg/cli/library"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/readsync/readsync/pkg/cli/queue"
	"github.com/readsync/readsync/pkg/cli/snapshot"
)

// ApplyResult counts the pulled records that changed local state
type ApplyResult struct {
	Books   int
	Configs int
	Notes   int
}

// Apply applies pulled records with the given continuation
func (e *Engine) Apply(resp client.PullResponse, apply queue.Continuation) (ApplyResult, error) {
	var res ApplyResult
	var err error

	switch apply {
	case queue.ApplyProgress:
		res.Configs, err = e.ApplyConfigs(resp.Configs)
	case queue.ApplyNotes:
		res.Notes, err = e.ApplyNotes(resp.Notes)
	case queue.ApplyAll:
		if res.Books, err = e.ApplyBooks(resp.Books); err != nil {
			return res, err
		}
		if res.Configs, err = e.ApplyConfigs(resp.Configs); err != nil {
			return res, err
		}
		res.Notes, err = e.ApplyNotes(resp.Notes)
	default:
		return res, errors.Errorf("unknown continuation %q", apply)
	}

	return res, err
}

// localBook finds the local copy a pulled record applies to, first by content hash
// and then by metadata hash
func (e *Engine) localBook(bookHash, metaHash string) (library.Book, bool, error) {
	b, err := e.lib.Get(bookHash)
	if err == nil {
		return b, true, nil
	}
	if errors.Cause(err) != library.ErrBookNotFound {
		return library.Book{}, false, err
	}
	if metaHash == "" || e.index == nil {
		return library.Book{}, false, nil
	}

	hashes, err := e.index.FindByMetaHash(metaHash)
	if err != nil {
		return library.Book{}, false, err
	}
	for _, h := range hashes {
		b, err := e.lib.Get(h)
		if err == nil {
			return b, true, nil
		}
		if errors.Cause(err) != library.ErrBookNotFound {
			return library.Book{}, false, err
		}
	}

	return library.Book{}, false, nil
}

// ApplyBooks applies the reading status of pulled book records that are newer than
// the local ones
func (e *Engine) ApplyBooks(books []client.Book) (int, error) {
	var n int

	for _, rb := range books {
		if rb.DeletedAt != nil {
			continue
		}

		local, ok, err := e.localBook(rb.BookHash, rb.MetaHash)
		if err != nil {
			return n, err
		}
		if !ok || rb.UpdatedAt <= local.UpdatedAt {
			continue
		}
		if snapshot.MapStatus(local.Status) == rb.ReadingStatus {
			continue
		}

		if err := e.lib.SetStatus(local.ContentHash, snapshot.LocalStatus(rb.ReadingStatus), rb.UpdatedAt); err != nil {
			return n, err
		}
		n++
	}

	return n, nil
}

// ApplyConfigs applies the first pulled config of each book if it is ahead of the
// local position
func (e *Engine) ApplyConfigs(configs []client.Config) (int, error) {
	var n int
	seen := map[string]bool{}

	for _, rc := range configs {
		local, ok, err := e.localBook(rc.BookHash, rc.MetaHash)
		if err != nil {
			return n, err
		}
		if !ok || seen[local.ContentHash] {
			continue
		}
		seen[local.ContentHash] = true

		applied, err := e.ApplyConfig(local, rc)
		if err != nil {
			return n, err
		}
		if applied {
			n++
		}
	}

	return n, nil
}

// ApplyConfig moves the local position to the remote one if the remote one is further.
// It never moves the position backwards.
func (e *Engine) ApplyConfig(local library.Book, remote client.Config) (bool, error) {
	if local.Paged {
		if remote.Progress == nil || remote.Progress.Page <= local.LastPage {
			return false, nil
		}

		total := remote.Progress.Total
		if total <= 0 {
			total = local.TotalPages
		}
		if err := e.lib.SetPage(local.ContentHash, remote.Progress.Page, total, e.now()); err != nil {
			return false, err
		}

		log.Debug("%s: page %d -> %d\n", local.ContentHash, local.LastPage, remote.Progress.Page)
		return true, nil
	}

	if remote.XPointer == "" || !e.isAhead(remote.XPointer, local.XPointer) {
		return false, nil
	}

	if err := e.lib.SetXPointer(local.ContentHash, remote.XPointer, e.now()); err != nil {
		return false, err
	}

	log.Debug("%s: position -> %s\n", local.ContentHash, remote.XPointer)
	return true, nil
}

// isAhead reports whether the remote pointer is strictly after the local one. While
// the order is undefined, the trailing segment of the remote pointer is dropped and
// the comparison retried. An order that stays undefined counts as not ahead.
func (e *Engine) isAhead(remote, local string) bool {
	if local == "" {
		return true
	}

	xp := remote
	for {
		cmp, ok := e.lib.ComparePointers(xp, local)
		if ok {
			return cmp > 0
		}

		var more bool
		xp, more = library.TruncatePointer(xp)
		if !more {
			log.Debug("cannot order %s against %s, dropping\n", remote, local)
			return false
		}
	}
}

// ApplyNotes appends the pulled notes that are neither known locally nor deleted.
// Local annotations are never modified or removed.
func (e *Engine) ApplyNotes(notes []client.Note) (int, error) {
	var n int
	known := map[string]map[string]bool{}

	for _, rn := range notes {
		if rn.IsDeleted() {
			continue
		}

		local, ok, err := e.localBook(rn.BookHash, rn.MetaHash)
		if err != nil {
			return n, err
		}
		if !ok {
			continue
		}

		ids, ok := known[local.ContentHash]
		if !ok {
			anns, err := e.lib.Annotations(local.ContentHash)
			if err != nil {
				return n, err
			}

			ids = map[string]bool{}
			for _, a := range anns {
				ids[snapshot.NoteID(a)] = true
			}
			known[local.ContentHash] = ids
		}

		if ids[rn.ID] {
			continue
		}

		a := snapshot.ToAnnotation(local.ContentHash, rn)
		if a.Datetime == "" {
			log.Debug("skipping note %s without a creation time\n", rn.ID)
			continue
		}
		if err := e.lib.AppendAnnotation(a); err != nil {
			return n, err
		}

		ids[rn.ID] = true
		ids[snapshot.NoteID(a)] = true
		n++
	}

	return n, nil
}
