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

package pull

import (
	stdctx "context"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/client"
	"github.com/readsync/readsync/pkg/cli/context"
	"github.com/readsync/readsync/pkg/cli/infra"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/readsync/readsync/pkg/cli/queue"
	"github.com/readsync/readsync/pkg/cli/reconcile"
	"github.com/spf13/cobra"
)

var example = `
  * Pull everything changed since the last pull
  readsync pull

  * Pull the reading position of a book from other devices
  readsync pull --book dune.epub --type configs`

var bookFlag, typeFlag string
var fullFlag bool

// NewCmd returns a new pull command
func NewCmd(ctx context.ReadsyncCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pull",
		Short:   "Apply reading positions, statuses and highlights from the server",
		Example: example,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.StringVarP(&bookFlag, "book", "b", "", "only pull the records of the book with the given file name or content hash")
	f.StringVarP(&typeFlag, "type", "t", "all", "kind of records to pull: all, books, configs or notes")
	f.BoolVarP(&fullFlag, "full", "f", false, "pull every record instead of only the ones changed since the last pull")

	return cmd
}

// Options selects the records to pull
type Options struct {
	Book string
	Type string
	Full bool
}

// parseType returns the pull type and the continuation applying its response
func parseType(s string) (client.PullType, queue.Continuation, error) {
	switch s {
	case "", "all":
		return client.PullAll, queue.ApplyAll, nil
	case "books":
		return client.PullBooks, queue.ApplyAll, nil
	case "configs", "progress":
		return client.PullConfigs, queue.ApplyProgress, nil
	case "notes":
		return client.PullNotes, queue.ApplyNotes, nil
	default:
		return "", "", errors.Errorf("unknown type %s", s)
	}
}

// Do pulls the selected records and applies them. A book is pulled from the
// beginning so that its position is found even if it was recorded before the last pull.
func Do(c stdctx.Context, ctx context.ReadsyncCtx, opts Options) (reconcile.ApplyResult, error) {
	pullType, apply, err := parseType(opts.Type)
	if err != nil {
		return reconcile.ApplyResult{}, err
	}

	params := client.PullParams{Type: pullType}

	if opts.Book != "" {
		b, err := ctx.Library.Find(opts.Book)
		if err != nil {
			return reconcile.ApplyResult{}, errors.Wrapf(err, "finding %s", opts.Book)
		}

		id, err := ctx.Identities.Resolve(b)
		if err != nil {
			return reconcile.ApplyResult{}, errors.Wrapf(err, "resolving identity of %s", opts.Book)
		}

		params.Book = id.ContentHash
		params.MetaHash = id.MetaHash
	} else if !opts.Full {
		s, err := ctx.Settings.Load()
		if err != nil {
			return reconcile.ApplyResult{}, errors.Wrap(err, "loading settings")
		}
		params.Since = s.LastPulledAt
	}

	log.Debug("pull params: %+v\n", params)

	return ctx.Engine.Pull(c, params, reconcile.Interactive, apply)
}

func newRun(ctx context.ReadsyncCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		res, err := Do(cmd.Context(), ctx, Options{
			Book: bookFlag,
			Type: typeFlag,
			Full: fullFlag,
		})
		if errors.Cause(err) == reconcile.ErrNotLoggedIn || client.IsAuthError(err) {
			return errors.New("not logged in. Run readsync login first")
		} else if err != nil {
			return errors.Wrap(err, "pulling")
		}

		log.Successf("updated %d books, %d positions and added %d notes\n", res.Books, res.Configs, res.Notes)

		return nil
	}
}
