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

package context

import (
	"net/http"
	"time"

	"github.com/readsync/readsync/pkg/cli/client"
	"github.com/readsync/readsync/pkg/cli/database"
	"github.com/readsync/readsync/pkg/cli/identity"
	"github.com/readsync/readsync/pkg/cli/library"
	"github.com/readsync/readsync/pkg/cli/queue"
	"github.com/readsync/readsync/pkg/cli/reconcile"
	"github.com/readsync/readsync/pkg/cli/session"
	"github.com/readsync/readsync/pkg/cli/settings"
	"github.com/readsync/readsync/pkg/cli/snapshot"
	"github.com/readsync/readsync/pkg/cli/transfer"
	"github.com/readsync/readsync/pkg/clock"
)

// Paths contain directory definitions
type Paths struct {
	Home   string
	Config string
	Data   string
	Cache  string
}

// ReadsyncCtx is a context holding the information of the current runtime
type ReadsyncCtx struct {
	Paths        Paths
	APIEndpoint  string
	Version      string
	DeviceID     string
	LibraryDir   string
	SyncInterval time.Duration
	DB           *database.DB
	Clock        clock.Clock
	HTTPClient   *http.Client

	Settings   settings.Store
	Client     *client.Client
	Session    *session.Manager
	Library    *library.Library
	Identities *identity.Cache
	Snapshots  *snapshot.Builder
	Queue      *queue.Queue
	Engine     *reconcile.Engine
	Transfer   *transfer.Manager
}

// Wire builds the sync components on top of the database, clock and HTTP client
// of the context. The settings store defaults to the one backed by the database.
func Wire(ctx ReadsyncCtx) ReadsyncCtx {
	if ctx.Settings == nil {
		ctx.Settings = settings.NewDBStore(ctx.DB)
	}

	cl := client.New(ctx.APIEndpoint, ctx.Version, ctx.HTTPClient, nil)
	sess := session.New(ctx.Settings, cl, ctx.Clock)
	cl.Tokens = sess

	lib := library.New(ctx.DB)
	ids := identity.NewCache(ctx.DB, ctx.Clock)
	builder := snapshot.New(ids, lib, ctx.Clock)
	q := queue.New(settings.QueueBackend{Store: ctx.Settings}, ctx.Clock, queue.ConnectivityFunc(cl.Reachable))

	ctx.Client = cl
	ctx.Session = sess
	ctx.Library = lib
	ctx.Identities = ids
	ctx.Snapshots = builder
	ctx.Queue = q
	ctx.Engine = reconcile.New(reconcile.Deps{
		Sync:     cl,
		Session:  sess,
		Settings: ctx.Settings,
		Queue:    q,
		Library:  lib,
		Records:  builder,
		Index:    ids,
		Clock:    ctx.Clock,
	})
	ctx.Transfer = transfer.NewManager(cl, lib, ctx.Settings, ctx.LibraryDir, ctx.Clock)

	return ctx
}

// Redact replaces private information from the context with a set of
// placeholder values.
func Redact(ctx ReadsyncCtx) ReadsyncCtx {
	ctx.Settings = nil
	ctx.Session = nil
	ctx.Client = nil

	return ctx
}
