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

package library

import (
	stdctx "context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/cmd/status"
	"github.com/readsync/readsync/pkg/cli/context"
	"github.com/readsync/readsync/pkg/cli/infra"
	lib "github.com/readsync/readsync/pkg/cli/library"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/readsync/readsync/pkg/cli/output"
	"github.com/readsync/readsync/pkg/cli/transfer"
	"github.com/readsync/readsync/pkg/cli/ui"
	"github.com/spf13/cobra"
)

var example = `
  * List the books on this device
  readsync library ls

  * List the files in your account matching a search
  readsync library ls --remote --search dune

  * Download every file in your account, overwriting different local copies
  readsync library download --overwrite

  * Upload some books
  readsync library upload dune.epub

  * Delete files from your account
  readsync library rm 9b1f3c2a

  * Show the storage usage
  readsync library stats`

var (
	remoteFlag    bool
	searchFlag    string
	overwriteFlag bool
	skipFlag      bool
	yesFlag       bool
)

// NewCmd returns a new library command
func NewCmd(ctx context.ReadsyncCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "library",
		Aliases: []string{"lib"},
		Short:   "Manage book files on this device and in your account",
		Example: example,
	}

	ls := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"l"},
		Short:   "List books",
		Args:    cobra.NoArgs,
		RunE:    newLsRun(ctx),
	}
	ls.Flags().BoolVarP(&remoteFlag, "remote", "r", false, "list the files in your account")
	ls.Flags().StringVarP(&searchFlag, "search", "s", "", "only list remote files matching the search")

	download := &cobra.Command{
		Use:   "download",
		Short: "Download book files from your account",
		Args:  cobra.NoArgs,
		RunE:  newDownloadRun(ctx),
	}
	download.Flags().StringVarP(&searchFlag, "search", "s", "", "only download files matching the search")
	download.Flags().BoolVar(&overwriteFlag, "overwrite", false, "overwrite every local file that differs")
	download.Flags().BoolVar(&skipFlag, "skip", false, "keep every local file that differs")

	upload := &cobra.Command{
		Use:   "upload [book...]",
		Short: "Upload book files to your account",
		RunE:  newUploadRun(ctx),
	}

	rm := &cobra.Command{
		Use:     "rm <file key...>",
		Aliases: []string{"remove"},
		Short:   "Delete book files from your account",
		Args:    cobra.MinimumNArgs(1),
		RunE:    newRmRun(ctx),
	}
	rm.Flags().BoolVarP(&yesFlag, "yes", "y", false, "delete without confirmation")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show the storage usage of your account",
		Args:  cobra.NoArgs,
		RunE:  newStatsRun(ctx),
	}

	cmd.AddCommand(ls, download, upload, rm, stats)

	return cmd
}

// Download fetches the files in the account storage matching search. Local files
// that differ from the remote ones are decided on by d before anything is transferred.
func Download(c stdctx.Context, ctx context.ReadsyncCtx, search string, d transfer.Decider) (transfer.Report, error) {
	candidates, err := ctx.Transfer.Candidates(c, search)
	if err != nil {
		return transfer.Report{}, errors.Wrap(err, "listing candidates")
	}

	plan := transfer.Partition(candidates)
	if len(plan.Conflicts) > 0 {
		plan, err = transfer.Resolve(c, plan, d)
		if err != nil {
			return transfer.Report{}, errors.Wrap(err, "resolving conflicts")
		}
	}

	return transfer.Run(c, plan, ctx.Transfer)
}

// Upload sends the files of the given books, or of the whole library if none is given
func Upload(c stdctx.Context, ctx context.ReadsyncCtx, refs []string) (transfer.Report, error) {
	var books []lib.Book

	if len(refs) == 0 {
		all, err := ctx.Library.List()
		if err != nil {
			return transfer.Report{}, errors.Wrap(err, "listing books")
		}
		books = all
	}

	for _, ref := range refs {
		b, err := ctx.Library.Find(ref)
		if err != nil {
			return transfer.Report{}, errors.Wrapf(err, "finding %s", ref)
		}
		books = append(books, b)
	}

	return ctx.Transfer.Upload(c, books), nil
}

// decider returns the decider for download conflicts given the flags
func decider(overwrite, skip bool) (transfer.Decider, error) {
	if overwrite && skip {
		return nil, errors.New("--overwrite and --skip cannot be used together")
	}

	if overwrite {
		return transfer.DeciderFunc(func(stdctx.Context, transfer.Candidate) (transfer.Action, error) {
			return transfer.Overwrite, nil
		}), nil
	}
	if skip {
		return transfer.DeciderFunc(func(stdctx.Context, transfer.Candidate) (transfer.Action, error) {
			return transfer.Skip, nil
		}), nil
	}

	return ui.NewPromptDecider(os.Stdin), nil
}

func newLsRun(ctx context.ReadsyncCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		if remoteFlag {
			files, err := ctx.Transfer.Remote(cmd.Context(), searchFlag)
			if err != nil {
				return errors.Wrap(err, "listing remote files")
			}

			for _, f := range files {
				log.Plainf("%s %s (%.1f MB)\n", log.ColorYellow.Sprint(f.FileKey), f.FileName, float64(f.FileSize)/(1024*1024))
			}
			return nil
		}

		books, err := ctx.Library.List()
		if err != nil {
			return errors.Wrap(err, "listing books")
		}

		for _, b := range books {
			output.BookLine(b)
		}

		return nil
	}
}

func newDownloadRun(ctx context.ReadsyncCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		d, err := decider(overwriteFlag, skipFlag)
		if err != nil {
			return err
		}

		r, err := Download(cmd.Context(), ctx, searchFlag, d)
		if err != nil {
			return err
		}

		return output.Report("downloaded", r)
	}
}

func newUploadRun(ctx context.ReadsyncCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		r, err := Upload(cmd.Context(), ctx, args)
		if err != nil {
			return err
		}

		return output.Report("uploaded", r)
	}
}

func newRmRun(ctx context.ReadsyncCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		if !yesFlag {
			ok, err := ui.Confirm("delete "+pluralFiles(len(args))+" from your account?", false)
			if err != nil {
				return errors.Wrap(err, "getting confirmation")
			}
			if !ok {
				log.Warnf("aborted by user\n")
				return nil
			}
		}

		r := ctx.Transfer.Delete(cmd.Context(), args)

		return output.Report("deleted", r)
	}
}

func pluralFiles(n int) string {
	if n == 1 {
		return "1 file"
	}

	return fmt.Sprintf("%d files", n)
}

func newStatsRun(ctx context.ReadsyncCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		st, err := ctx.Transfer.Stats(cmd.Context())
		if err != nil {
			return errors.Wrap(err, "getting storage stats")
		}

		log.Plainf("files:   %d\n", st.TotalFiles)
		if st.Quota > 0 {
			log.Plainf("storage: %s\n", status.FormatUsage(st.Usage, st.Quota))
		}

		return nil
	}
}
