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

package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/assert"
	"github.com/readsync/readsync/pkg/cli/client"
	"github.com/readsync/readsync/pkg/cli/queue"
	"github.com/readsync/readsync/pkg/cli/settings"
	"github.com/readsync/readsync/pkg/clock"
)

type fakeRunner struct {
	fail   bool
	pushes int
	pulls  int
	onPush func()
}

func (r *fakeRunner) ReplayPush(ctx context.Context, item queue.Item) error {
	r.pushes++
	if r.onPush != nil {
		r.onPush()
	}
	if r.fail {
		return errors.New("offline")
	}
	return nil
}

func (r *fakeRunner) ReplayPull(ctx context.Context, item queue.Item) error {
	r.pulls++
	if r.fail {
		return errors.New("offline")
	}
	return nil
}

func newQueue(online *bool) (*queue.Queue, *clock.Mock) {
	c := clock.NewMock()
	c.SetNow(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	conn := queue.ConnectivityFunc(func(context.Context) bool { return *online })
	backend := settings.QueueBackend{Store: settings.NewMemoryStore(settings.Default())}

	return queue.New(backend, c, conn), c
}

func mustItems(t *testing.T, q *queue.Queue) []queue.Item {
	items, err := q.Items()
	assert.NoError(t, err, "listing items")
	return items
}

func TestEnqueue(t *testing.T) {
	online := true
	q, c := newQueue(&online)

	err := q.Enqueue(queue.Item{Type: queue.KindPush, Push: &client.PushPayload{}, Retries: 5})
	assert.NoError(t, err, "enqueueing")

	items := mustItems(t, q)
	assert.Equalf(t, len(items), 1, "item count mismatch")
	assert.Equal(t, items[0].Retries, 0, "retries should start at zero")
	assert.Equal(t, items[0].Timestamp, c.Now().UnixMilli(), "timestamp mismatch")
	assert.NotEqual(t, items[0].ID, "", "id should be assigned")
}

func TestProcessNoop(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		online := true
		q, _ := newQueue(&online)
		r := &fakeRunner{}

		res, err := q.Process(context.Background(), r)
		assert.NoError(t, err, "processing")
		assert.Equal(t, res, queue.Result{}, "result mismatch")
		assert.Equal(t, r.pushes, 0, "no attempt should be made")
	})

	t.Run("offline", func(t *testing.T) {
		online := false
		q, _ := newQueue(&online)
		r := &fakeRunner{}

		assert.NoError(t, q.Enqueue(queue.NewPushItem(client.PushPayload{})), "enqueueing")

		for i := 0; i < 5; i++ {
			_, err := q.Process(context.Background(), r)
			assert.NoError(t, err, "processing")
		}

		items := mustItems(t, q)
		assert.Equal(t, len(items), 1, "item should be kept")
		assert.Equal(t, items[0].Retries, 0, "retries should be unchanged")
		assert.Equal(t, r.pushes, 0, "no attempt should be made")
	})
}

func TestProcessBoundedRetry(t *testing.T) {
	online := true
	q, _ := newQueue(&online)
	r := &fakeRunner{fail: true}

	assert.NoError(t, q.Enqueue(queue.NewPushItem(client.PushPayload{})), "enqueueing")

	for i := 1; i <= 3; i++ {
		res, err := q.Process(context.Background(), r)
		assert.NoError(t, err, "processing")
		assert.Equal(t, res.Failed, 1, "failure count mismatch")

		items := mustItems(t, q)
		assert.Equalf(t, len(items), 1, "item should be kept")
		assert.Equal(t, items[0].Retries, i, "retries mismatch")
	}
	assert.Equal(t, r.pushes, 3, "attempt count mismatch")

	res, err := q.Process(context.Background(), r)
	assert.NoError(t, err, "processing")
	assert.Equal(t, res.Dropped, 1, "item should be dropped")
	assert.Equal(t, r.pushes, 3, "no fourth attempt should be made")
	assert.Equal(t, len(mustItems(t, q)), 0, "queue should be empty")
}

func TestProcessSuccess(t *testing.T) {
	online := true
	q, _ := newQueue(&online)
	r := &fakeRunner{}

	assert.NoError(t, q.Enqueue(queue.NewPushItem(client.PushPayload{})), "enqueueing push")
	assert.NoError(t, q.Enqueue(queue.NewPullItem(client.PullParams{Type: client.PullConfigs}, queue.ApplyProgress)), "enqueueing pull")

	res, err := q.Process(context.Background(), r)
	assert.NoError(t, err, "processing")
	assert.Equal(t, res, queue.Result{Succeeded: 2}, "result mismatch")
	assert.Equal(t, r.pushes, 1, "push count mismatch")
	assert.Equal(t, r.pulls, 1, "pull count mismatch")
	assert.Equal(t, len(mustItems(t, q)), 0, "queue should be empty")

	// a repeated call is a no-op
	res, err = q.Process(context.Background(), r)
	assert.NoError(t, err, "processing")
	assert.Equal(t, res, queue.Result{}, "result mismatch")
	assert.Equal(t, r.pushes, 1, "push count mismatch")
}

func TestProcessKeepsItemsEnqueuedDuringPass(t *testing.T) {
	online := true
	q, _ := newQueue(&online)
	r := &fakeRunner{}
	r.onPush = func() {
		if r.pushes == 1 {
			if err := q.Enqueue(queue.NewPushItem(client.PushPayload{})); err != nil {
				t.Fatal(err)
			}
		}
	}

	assert.NoError(t, q.Enqueue(queue.NewPushItem(client.PushPayload{})), "enqueueing")

	res, err := q.Process(context.Background(), r)
	assert.NoError(t, err, "processing")
	assert.Equal(t, res.Succeeded, 1, "success count mismatch")

	items := mustItems(t, q)
	assert.Equal(t, len(items), 1, "item enqueued during the pass should be kept")
	assert.Equal(t, items[0].Retries, 0, "retries mismatch")
}

func TestProcessMalformedItem(t *testing.T) {
	online := true
	q, _ := newQueue(&online)
	r := &fakeRunner{}

	assert.NoError(t, q.Enqueue(queue.Item{Type: queue.KindPull}), "enqueueing")

	res, err := q.Process(context.Background(), r)
	assert.NoError(t, err, "processing")
	assert.Equal(t, res.Failed, 1, "failure count mismatch")
	assert.Equal(t, r.pulls, 0, "runner should not be called")
}

func TestClear(t *testing.T) {
	online := true
	q, _ := newQueue(&online)

	assert.NoError(t, q.Enqueue(queue.NewPushItem(client.PushPayload{})), "enqueueing")
	assert.NoError(t, q.Clear(), "clearing")
	assert.Equal(t, len(mustItems(t, q)), 0, "queue should be empty")
}
