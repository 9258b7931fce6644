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

package push

import (
	stdctx "context"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/client"
	"github.com/readsync/readsync/pkg/cli/context"
	"github.com/readsync/readsync/pkg/cli/infra"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/readsync/readsync/pkg/cli/reconcile"
	"github.com/spf13/cobra"
)

var example = `
  * Push the whole library
  readsync push

  * Push some books by file name or content hash
  readsync push dune.epub 3f2a9c`

// NewCmd returns a new push command
func NewCmd(ctx context.ReadsyncCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "push [book...]",
		Short:   "Send reading positions, statuses and highlights to the server",
		Example: example,
		RunE:    newRun(ctx),
	}

	return cmd
}

// Result is the outcome of a push
type Result struct {
	Books   int
	Configs int
	Notes   int
	// Queued is set if the push failed and was queued for a retry
	Queued bool
}

// Do pushes the given books, or the whole library if none is given. A push that
// fails for a reason other than authentication is queued, and the error is returned
// along with a result that has Queued set.
func Do(c stdctx.Context, ctx context.ReadsyncCtx, refs []string) (Result, error) {
	hashes := make([]string, 0, len(refs))
	for _, ref := range refs {
		b, err := ctx.Library.Find(ref)
		if err != nil {
			return Result{}, errors.Wrapf(err, "finding %s", ref)
		}
		hashes = append(hashes, b.ContentHash)
	}

	payload, err := ctx.Engine.PushBooks(c, reconcile.Interactive, hashes...)
	res := Result{
		Books:   len(payload.Books),
		Configs: len(payload.Configs),
		Notes:   len(payload.Notes),
	}
	if err == nil {
		return res, nil
	}

	if errors.Cause(err) == reconcile.ErrNotLoggedIn || client.IsAuthError(err) || payload.IsEmpty() {
		return res, err
	}

	if qerr := ctx.Engine.EnqueuePush(payload); qerr != nil {
		return res, errors.Wrap(qerr, "queueing failed push")
	}
	res.Queued = true

	return res, err
}

// Report logs the outcome of a push. It returns the error to exit with.
func Report(res Result, err error) error {
	if err == nil {
		log.Successf("pushed %d books, %d positions and %d notes\n", res.Books, res.Configs, res.Notes)
		return nil
	}

	if errors.Cause(err) == reconcile.ErrNotLoggedIn || client.IsAuthError(err) {
		return errors.New("not logged in. Run readsync login first")
	}
	if res.Queued {
		log.Warnf("%s\n", err.Error())
		log.Infof("the push was queued and will be retried by readsync queue process\n")
		return nil
	}

	return err
}

func newRun(ctx context.ReadsyncCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		res, err := Do(cmd.Context(), ctx, args)

		return Report(res, err)
	}
}
