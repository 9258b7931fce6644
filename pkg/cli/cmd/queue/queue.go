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
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/context"
	"github.com/readsync/readsync/pkg/cli/infra"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/readsync/readsync/pkg/cli/ui"
	"github.com/spf13/cobra"
)

var example = `
  * List the operations waiting for a retry
  readsync queue ls

  * Retry them now
  readsync queue process

  * Discard them
  readsync queue clear`

var skipConfirmation bool

// NewCmd returns a new queue command
func NewCmd(ctx context.ReadsyncCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "queue",
		Aliases: []string{"q"},
		Short:   "Inspect and replay operations that failed in the background",
		Example: example,
	}

	cmd.AddCommand(newLsCmd(ctx))
	cmd.AddCommand(newProcessCmd(ctx))
	cmd.AddCommand(newClearCmd(ctx))

	return cmd
}

func newLsCmd(ctx context.ReadsyncCtx) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List the queued operations",
		Args:  cobra.NoArgs,
		RunE:  newLsRun(ctx),
	}
}

func newProcessCmd(ctx context.ReadsyncCtx) *cobra.Command {
	return &cobra.Command{
		Use:   "process",
		Short: "Retry every queued operation once",
		Args:  cobra.NoArgs,
		RunE:  newProcessRun(ctx),
	}
}

func newClearCmd(ctx context.ReadsyncCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Discard every queued operation",
		Args:  cobra.NoArgs,
		RunE:  newClearRun(ctx),
	}

	f := cmd.Flags()
	f.BoolVarP(&skipConfirmation, "yes", "y", false, "clear without confirmation")

	return cmd
}

// Line is a printable summary of a queued operation
type Line struct {
	ID        string
	Type      string
	Retries   int
	Timestamp int64
	Detail    string
}

// List returns the queued operations in the order they will be replayed
func List(ctx context.ReadsyncCtx) ([]Line, error) {
	items, err := ctx.Queue.Items()
	if err != nil {
		return nil, errors.Wrap(err, "listing queue")
	}

	ret := make([]Line, 0, len(items))
	for _, item := range items {
		l := Line{
			ID:        item.ID,
			Type:      string(item.Type),
			Retries:   item.Retries,
			Timestamp: item.Timestamp,
		}

		switch {
		case item.Push != nil:
			p := item.Push
			l.Detail = pluralize(len(p.Books), "book") + ", " + pluralize(len(p.Configs), "position") + ", " + pluralize(len(p.Notes), "note")
		case item.Pull != nil:
			kind := string(item.Pull.Params.Type)
			if kind == "" {
				kind = "all"
			}
			l.Detail = fmt.Sprintf("%s since %d, then %s", kind, item.Pull.Params.Since, item.Pull.Apply)
		}

		ret = append(ret, l)
	}

	return ret, nil
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}

	return fmt.Sprintf("%d %ss", n, noun)
}

func newLsRun(ctx context.ReadsyncCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		lines, err := List(ctx)
		if err != nil {
			return err
		}

		if len(lines) == 0 {
			log.Info("the queue is empty\n")
			return nil
		}

		for _, l := range lines {
			ts := time.UnixMilli(l.Timestamp).Local().Format(time.DateTime)
			log.Plainf("%s %s %s (%s, %d retries)\n", log.ColorYellow.Sprint(shortID(l.ID)), l.Type, l.Detail, ts, l.Retries)
		}

		return nil
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}

	return id
}

func newProcessRun(ctx context.ReadsyncCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		res, err := ctx.Queue.Process(cmd.Context(), ctx.Engine)
		if err != nil {
			return errors.Wrap(err, "processing the queue")
		}

		log.Successf("%d succeeded, %d failed, %d dropped\n", res.Succeeded, res.Failed, res.Dropped)

		return nil
	}
}

// Clear discards every queued operation and returns how many were discarded
func Clear(ctx context.ReadsyncCtx) (int, error) {
	items, err := ctx.Queue.Items()
	if err != nil {
		return 0, errors.Wrap(err, "listing queue")
	}

	if err := ctx.Queue.Clear(); err != nil {
		return 0, errors.Wrap(err, "clearing queue")
	}

	return len(items), nil
}

func newClearRun(ctx context.ReadsyncCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		if !skipConfirmation {
			ok, err := ui.Confirm("clear the queue?", false)
			if err != nil {
				return errors.Wrap(err, "getting confirmation")
			}
			if !ok {
				log.Warnf("aborted by user\n")
				return nil
			}
		}

		n, err := Clear(ctx)
		if err != nil {
			return err
		}

		log.Successf("cleared %d operations\n", n)

		return nil
	}
}
