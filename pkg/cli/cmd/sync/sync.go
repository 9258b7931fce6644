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

package sync

import (
	stdctx "context"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/client"
	"github.com/readsync/readsync/pkg/cli/cmd/pull"
	"github.com/readsync/readsync/pkg/cli/cmd/push"
	"github.com/readsync/readsync/pkg/cli/context"
	"github.com/readsync/readsync/pkg/cli/infra"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/readsync/readsync/pkg/cli/queue"
	"github.com/readsync/readsync/pkg/cli/reconcile"
	"github.com/spf13/cobra"
)

var example = `
  readsync sync
  readsync sync --full`

var isFullSync bool

// NewCmd returns a new sync command
func NewCmd(ctx context.ReadsyncCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sync",
		Aliases: []string{"s"},
		Short:   "Sync the library with the server",
		Example: example,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.BoolVarP(&isFullSync, "full", "f", false, "pull every record instead of only the ones changed since the last pull")

	return cmd
}

// Result is the outcome of a sync
type Result struct {
	Replayed queue.Result
	Pushed   push.Result
	Pulled   reconcile.ApplyResult
}

// Do replays the queued operations, pushes the whole library and pulls the
// changes from other devices. A failed push is queued and stops the sync.
func Do(c stdctx.Context, ctx context.ReadsyncCtx, full bool) (Result, error) {
	var ret Result

	replayed, err := ctx.Queue.Process(c, ctx.Engine)
	if err != nil {
		return ret, errors.Wrap(err, "processing the queue")
	}
	ret.Replayed = replayed

	pushed, err := push.Do(c, ctx, nil)
	ret.Pushed = pushed
	if err != nil {
		return ret, err
	}

	pulled, err := pull.Do(c, ctx, pull.Options{Full: full})
	ret.Pulled = pulled
	if err != nil {
		return ret, err
	}

	return ret, nil
}

func newRun(ctx context.ReadsyncCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		res, err := Do(cmd.Context(), ctx, isFullSync)

		log.Debug("sync result: %+v\n", res)
		if n := res.Replayed.Succeeded + res.Replayed.Failed + res.Replayed.Dropped; n > 0 {
			log.Infof("replayed %d queued operations: %d succeeded, %d failed, %d dropped\n",
				n, res.Replayed.Succeeded, res.Replayed.Failed, res.Replayed.Dropped)
		}

		if errors.Cause(err) == reconcile.ErrNotLoggedIn || client.IsAuthError(err) {
			return errors.New("not logged in. Run readsync login first")
		}
		if err != nil && res.Pushed.Queued {
			return push.Report(res.Pushed, err)
		}
		if err != nil {
			return errors.Wrap(err, "syncing")
		}

		log.Successf("pushed %d books, pulled %d positions and %d notes\n", res.Pushed.Books, res.Pulled.Configs, res.Pulled.Notes)

		return nil
	}
}
