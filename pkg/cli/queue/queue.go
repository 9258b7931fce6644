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

// Package queue keeps the operations that failed in the background and
// replays them when connectivity is restored
package queue

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/consts"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/readsync/readsync/pkg/clock"
)

// Backend persists the list of items
type Backend interface {
	QueueItems() ([]Item, error)
	// UpdateQueue replaces the persisted list with the result of fn, atomically
	UpdateQueue(fn func([]Item) []Item) error
}

// Runner performs a queued operation
type Runner interface {
	ReplayPush(ctx context.Context, item Item) error
	ReplayPull(ctx context.Context, item Item) error
}

// Connectivity reports whether the server is reachable
type Connectivity interface {
	Online(ctx context.Context) bool
}

// ConnectivityFunc adapts a function to Connectivity
type ConnectivityFunc func(ctx context.Context) bool

// Online calls f
func (f ConnectivityFunc) Online(ctx context.Context) bool {
	return f(ctx)
}

// AlwaysOnline is a Connectivity that is always connected
var AlwaysOnline = ConnectivityFunc(func(context.Context) bool { return true })

// Result is the outcome of processing the queue
type Result struct {
	Succeeded int
	Failed    int
	Dropped   int
}

// Queue is the offline operation queue
type Queue struct {
	backend Backend
	clock   clock.Clock
	conn    Connectivity

	// mu serializes processing passes
	mu sync.Mutex
}

// New returns a queue persisted in the given backend
func New(backend Backend, c clock.Clock, conn Connectivity) *Queue {
	if conn == nil {
		conn = AlwaysOnline
	}

	return &Queue{
		backend: backend,
		clock:   c,
		conn:    conn,
	}
}

// Enqueue appends the item with no retries
func (q *Queue) Enqueue(item Item) error {
	item.ID = uuid.NewString()
	item.Retries = 0
	item.Timestamp = clock.UnixMilli(q.clock)

	err := q.backend.UpdateQueue(func(items []Item) []Item {
		return append(items, item)
	})
	if err != nil {
		return errors.Wrap(err, "persisting queue")
	}

	log.Debug("enqueued %s operation %s\n", item.Type, item.ID)

	return nil
}

// Items returns the queued items
func (q *Queue) Items() ([]Item, error) {
	items, err := q.backend.QueueItems()
	if err != nil {
		return nil, errors.Wrap(err, "loading queue")
	}

	return items, nil
}

// Clear removes every queued item
func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	err := q.backend.UpdateQueue(func([]Item) []Item {
		return []Item{}
	})
	if err != nil {
		return errors.Wrap(err, "persisting queue")
	}

	return nil
}

func (q *Queue) attempt(ctx context.Context, r Runner, item Item) error {
	switch item.Type {
	case KindPush:
		if item.Push == nil {
			return errors.New("push item without a payload")
		}
		return r.ReplayPush(ctx, item)
	case KindPull:
		if item.Pull == nil {
			return errors.New("pull item without parameters")
		}
		return r.ReplayPull(ctx, item)
	default:
		return errors.Errorf("unknown operation type %s", item.Type)
	}
}

// Process attempts every queued item once. It does nothing when offline or empty.
// Items that already failed the maximum number of times are dropped without an attempt.
// Items enqueued while a pass is running are kept for the next pass.
func (q *Queue) Process(ctx context.Context, r Runner) (Result, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var res Result

	items, err := q.backend.QueueItems()
	if err != nil {
		return res, errors.Wrap(err, "loading queue")
	}
	if len(items) == 0 {
		return res, nil
	}
	if !q.conn.Online(ctx) {
		log.Debug("offline, %d queued operations deferred\n", len(items))
		return res, nil
	}

	done := map[string]bool{}
	retries := map[string]int{}

	for _, item := range items {
		if item.Retries >= consts.QueueMaxRetries {
			log.Warnf("dropping %s operation queued at %d after %d failed attempts\n", item.Type, item.Timestamp, item.Retries)
			done[item.ID] = true
			res.Dropped++
			continue
		}

		if err := q.attempt(ctx, r, item); err != nil {
			log.Debug("queued %s operation failed: %s\n", item.Type, err.Error())
			retries[item.ID] = item.Retries + 1
			res.Failed++
			continue
		}

		done[item.ID] = true
		res.Succeeded++
	}

	err = q.backend.UpdateQueue(func(current []Item) []Item {
		ret := make([]Item, 0, len(current))
		for _, item := range current {
			if done[item.ID] {
				continue
			}
			if n, ok := retries[item.ID]; ok {
				item.Retries = n
			}
			ret = append(ret, item)
		}
		return ret
	})
	if err != nil {
		return res, errors.Wrap(err, "persisting queue")
	}

	return res, nil
}
