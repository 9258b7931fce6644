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

// Package reconcile exchanges book, position and note records with the server
package reconcile

import (
	"context"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/client"
	"github.com/readsync/readsync/pkg/cli/consts"
	"github.com/readsync/readsync/pkg/cli/library"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/readsync/readsync/pkg/cli/queue"
	"github.com/readsync/readsync/pkg/cli/settings"
	"github.com/readsync/readsync/pkg/clock"
)

var (
	// ErrDebounced is returned for a background push made too soon after the last one
	ErrDebounced = errors.New("push debounced")
	// ErrNotLoggedIn is returned when there is no usable session
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrAutoSyncDisabled is returned for background operations while auto-sync is off
	ErrAutoSyncDisabled = errors.New("auto-sync is disabled")
)

// IsSkipped reports whether err means a background operation did not run at all,
// as opposed to having failed
func IsSkipped(err error) bool {
	switch errors.Cause(err) {
	case ErrDebounced, ErrAutoSyncDisabled, ErrNotLoggedIn:
		return true
	default:
		return false
	}
}

// Mode tells whether an operation was requested by the user
type Mode int

const (
	// Interactive operations report failures to the user
	Interactive Mode = iota
	// Background operations queue failures for a later retry
	Background
)

func (m Mode) String() string {
	if m == Background {
		return "background"
	}
	return "interactive"
}

// SyncService exchanges records with the server
type SyncService interface {
	Push(ctx context.Context, payload client.PushPayload) error
	Pull(ctx context.Context, params client.PullParams) (client.PullResponse, error)
}

// Session is the access token lifecycle
type Session interface {
	NeedsLogin() (bool, error)
	MaybeRefresh(ctx context.Context) bool
	Invalidate() error
}

// Enqueuer queues failed background operations
type Enqueuer interface {
	Enqueue(item queue.Item) error
}

// Library is the local library the records are built from and applied to
type Library interface {
	Get(contentHash string) (library.Book, error)
	List() ([]library.Book, error)
	SetPage(contentHash string, page, total int, now int64) error
	SetXPointer(contentHash, xpointer string, now int64) error
	SetStatus(contentHash, status string, now int64) error
	ComparePointers(a, b string) (int, bool)
	Annotations(bookHash string) ([]library.Annotation, error)
	AppendAnnotation(a library.Annotation) error
}

// Records builds outbound records from local books
type Records interface {
	Records(books []library.Book) (client.PushPayload, error)
}

// MetaIndex finds the local copies of a work
type MetaIndex interface {
	FindByMetaHash(metaHash string) ([]string, error)
}

// Deps are the collaborators of an Engine
type Deps struct {
	Sync     SyncService
	Session  Session
	Settings settings.Store
	Queue    Enqueuer
	Library  Library
	Records  Records
	Index    MetaIndex
	Clock    clock.Clock
}

// Engine runs the push and pull protocol
type Engine struct {
	sync     SyncService
	session  Session
	settings settings.Store
	queue    Enqueuer
	lib      Library
	records  Records
	index    MetaIndex
	clock    clock.Clock
}

// New returns an engine
func New(d Deps) *Engine {
	return &Engine{
		sync:     d.Sync,
		session:  d.Session,
		settings: d.Settings,
		queue:    d.Queue,
		lib:      d.Library,
		records:  d.Records,
		index:    d.Index,
		clock:    d.Clock,
	}
}

func (e *Engine) now() int64 {
	return clock.UnixMilli(e.clock)
}

// checkBackground returns an error if a background operation must not run
func (e *Engine) checkBackground() (settings.Settings, error) {
	s, err := e.settings.Load()
	if err != nil {
		return s, errors.Wrap(err, "loading settings")
	}
	if !s.AutoSync {
		return s, ErrAutoSyncDisabled
	}

	return s, nil
}

func (e *Engine) checkSession(ctx context.Context) error {
	needsLogin, err := e.session.NeedsLogin()
	if err != nil {
		return errors.Wrap(err, "checking session")
	}
	if needsLogin {
		return ErrNotLoggedIn
	}

	e.session.MaybeRefresh(ctx)

	return nil
}

// handleAuthError invalidates the session if err is an authentication failure,
// and reports whether it was one
func (e *Engine) handleAuthError(err error) bool {
	if !client.IsAuthError(err) {
		return false
	}

	log.Debug("session rejected, invalidating\n")
	if ierr := e.session.Invalidate(); ierr != nil {
		log.Debug("invalidating session: %s\n", ierr.Error())
	}

	return true
}

// Push sends the payload in one batch. A background push is dropped if the last
// successful push was less than the debounce interval ago, and queued on failure.
func (e *Engine) Push(ctx context.Context, payload client.PushPayload, mode Mode) error {
	if mode == Background {
		s, err := e.checkBackground()
		if err != nil {
			return err
		}
		if e.now()-s.LastSyncedAt < consts.PushDebounceSeconds*1000 {
			return ErrDebounced
		}
	}

	if err := e.checkSession(ctx); err != nil {
		return err
	}

	if err := e.push(ctx, payload); err != nil {
		if e.handleAuthError(err) {
			return err
		}

		if mode == Background {
			if qerr := e.EnqueuePush(payload); qerr != nil {
				return errors.Wrap(qerr, "queueing failed push")
			}
		}

		return err
	}

	return nil
}

func (e *Engine) push(ctx context.Context, payload client.PushPayload) error {
	log.Debug("pushing %d books, %d configs, %d notes\n", len(payload.Books), len(payload.Configs), len(payload.Notes))

	if err := e.sync.Push(ctx, payload); err != nil {
		return errors.Wrap(err, "pushing")
	}

	_, err := e.settings.Update(func(s *settings.Settings) error {
		s.LastSyncedAt = e.now()
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "saving last sync time")
	}

	return nil
}

// EnqueuePush queues the payload for a retry once connectivity is restored
func (e *Engine) EnqueuePush(payload client.PushPayload) error {
	return e.queue.Enqueue(queue.NewPushItem(payload))
}

// Pull requests the records matching params and applies them with the given continuation.
// An authentication failure invalidates the session. Other background failures are queued.
func (e *Engine) Pull(ctx context.Context, params client.PullParams, mode Mode, apply queue.Continuation) (ApplyResult, error) {
	if mode == Background {
		if _, err := e.checkBackground(); err != nil {
			return ApplyResult{}, err
		}
	}

	if err := e.checkSession(ctx); err != nil {
		return ApplyResult{}, err
	}

	res, err := e.pull(ctx, params, apply)
	if err != nil {
		if e.handleAuthError(err) {
			return ApplyResult{}, err
		}

		if mode == Background {
			if qerr := e.queue.Enqueue(queue.NewPullItem(params, apply)); qerr != nil {
				return ApplyResult{}, errors.Wrap(qerr, "queueing failed pull")
			}
		}

		return ApplyResult{}, err
	}

	return res, nil
}

func isUnfiltered(params client.PullParams, apply queue.Continuation) bool {
	return params.Type == client.PullAll && params.Book == "" && params.MetaHash == "" && apply == queue.ApplyAll
}

func (e *Engine) pull(ctx context.Context, params client.PullParams, apply queue.Continuation) (ApplyResult, error) {
	resp, err := e.sync.Pull(ctx, params)
	if err != nil {
		return ApplyResult{}, errors.Wrap(err, "pulling")
	}

	log.Debug("pulled %d books, %d configs, %d notes\n", len(resp.Books), len(resp.Configs), len(resp.Notes))

	res, err := e.Apply(resp, apply)
	if err != nil {
		return res, errors.Wrap(err, "applying pulled records")
	}

	// a filtered pull leaves the other records behind the cursor
	if !isUnfiltered(params, apply) {
		return res, nil
	}

	_, err = e.settings.Update(func(s *settings.Settings) error {
		s.LastPulledAt = e.now()
		return nil
	})
	if err != nil {
		return res, errors.Wrap(err, "saving last pull time")
	}

	return res, nil
}

// ReplayPush retries a queued push
func (e *Engine) ReplayPush(ctx context.Context, item queue.Item) error {
	err := e.push(ctx, *item.Push)
	if err != nil {
		e.handleAuthError(err)
	}

	return err
}

// ReplayPull retries a queued pull and runs its continuation
func (e *Engine) ReplayPull(ctx context.Context, item queue.Item) error {
	_, err := e.pull(ctx, item.Pull.Params, item.Pull.Apply)
	if err != nil {
		e.handleAuthError(err)
	}

	return err
}

// PushBooks builds the records of the books with the given content hashes, or of the
// whole library if none is given, and pushes them
func (e *Engine) PushBooks(ctx context.Context, mode Mode, hashes ...string) (client.PushPayload, error) {
	var books []library.Book
	if len(hashes) == 0 {
		all, err := e.lib.List()
		if err != nil {
			return client.PushPayload{}, errors.Wrap(err, "listing books")
		}
		books = all
	} else {
		for _, h := range hashes {
			b, err := e.lib.Get(h)
			if err != nil {
				return client.PushPayload{}, errors.Wrapf(err, "getting book %s", h)
			}
			books = append(books, b)
		}
	}

	payload, err := e.records.Records(books)
	if err != nil {
		return payload, errors.Wrap(err, "building records")
	}
	if payload.IsEmpty() {
		return payload, nil
	}

	return payload, e.Push(ctx, payload, mode)
}

// Sync pushes the whole library and then pulls every record changed since the
// last pull, or since the beginning if full is set. A skipped push does not
// prevent the pull.
func (e *Engine) Sync(ctx context.Context, mode Mode, full bool) (ApplyResult, error) {
	if _, err := e.PushBooks(ctx, mode); err != nil {
		if !IsSkipped(err) {
			return ApplyResult{}, errors.Wrap(err, "pushing the library")
		}

		log.Debug("push skipped: %s\n", err.Error())
	}

	s, err := e.settings.Load()
	if err != nil {
		return ApplyResult{}, errors.Wrap(err, "loading settings")
	}

	var params client.PullParams
	if !full {
		params.Since = s.LastPulledAt
	}

	res, err := e.Pull(ctx, params, mode, queue.ApplyAll)
	if err != nil {
		return res, errors.Wrap(err, "pulling changes")
	}

	return res, nil
}
