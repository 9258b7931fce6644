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

package queue

import (
	"github.com/readsync/readsync/pkg/cli/client"
)

// Kind is the type of a queued operation
type Kind string

// Queued operation kinds
const (
	KindPush Kind = "push"
	KindPull Kind = "pull"
)

// Continuation names what to do with the response of a replayed pull
type Continuation string

// Registered continuations
const (
	ApplyProgress Continuation = "apply_progress"
	ApplyNotes    Continuation = "apply_notes"
	ApplyAll      Continuation = "apply_all"
)

// PullRequest is a deferred pull along with the continuation to run on its response
type PullRequest struct {
	Params client.PullParams `json:"params"`
	Apply  Continuation      `json:"apply"`
}

// Item is an operation that failed in the background and awaits a retry
type Item struct {
	ID   string `json:"id"`
	Type Kind   `json:"type"`
	// Push is set for KindPush items
	Push *client.PushPayload `json:"push,omitempty"`
	// Pull is set for KindPull items
	Pull *PullRequest `json:"pull,omitempty"`
	// Timestamp is the time the item was enqueued, in milliseconds
	Timestamp int64 `json:"timestamp"`
	Retries   int   `json:"retries"`
}

// NewPushItem returns an item replaying the given push
func NewPushItem(p client.PushPayload) Item {
	return Item{Type: KindPush, Push: &p}
}

// NewPullItem returns an item replaying the given pull
func NewPullItem(params client.PullParams, apply Continuation) Item {
	return Item{Type: KindPull, Pull: &PullRequest{Params: params, Apply: apply}}
}
