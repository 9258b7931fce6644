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

package book

import (
	stdctx "context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/cmd/push"
	"github.com/readsync/readsync/pkg/cli/context"
	"github.com/readsync/readsync/pkg/cli/highlight"
	"github.com/readsync/readsync/pkg/cli/infra"
	"github.com/readsync/readsync/pkg/cli/library"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/readsync/readsync/pkg/cli/output"
	"github.com/readsync/readsync/pkg/cli/reconcile"
	"github.com/readsync/readsync/pkg/cli/snapshot"
	"github.com/readsync/readsync/pkg/cli/utils"
	"github.com/readsync/readsync/pkg/cli/validate"
	"github.com/spf13/cobra"
)

var example = `
  * Add a book file to the library
  readsync book add ~/Downloads/dune.epub

  * Record the current page of a PDF
  readsync book goto dune.pdf 42 --total 412

  * Record the position in a reflowable book
  readsync book goto dune.epub /body/DocFragment[12]/body/p[3]/text().0

  * Highlight a passage
  readsync book highlight dune.pdf --page 42 --text "Fear is the mind-killer" --color yellow

  * Finish a reading session and push it
  readsync book close dune.pdf --status finished`

var (
	totalFlag  int
	titleFlag  string
	pageFlag   string
	textFlag   string
	noteFlag   string
	colorFlag  string
	drawerFlag string
	statusFlag string
)

// NewCmd returns a new book command
func NewCmd(ctx context.ReadsyncCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "book",
		Aliases: []string{"b"},
		Short:   "Record reading progress and highlights",
		Example: example,
	}

	add := &cobra.Command{
		Use:   "add <path>",
		Short: "Add a book file to the library",
		Args:  cobra.ExactArgs(1),
		RunE:  newAddRun(ctx),
	}
	add.Flags().StringVarP(&titleFlag, "title", "t", "", "title of the book, defaults to the file name")

	gotoCmd := &cobra.Command{
		Use:   "goto <book> <page|xpointer>",
		Short: "Record the current position in a book",
		Args:  cobra.ExactArgs(2),
		RunE:  newGotoRun(ctx),
	}
	gotoCmd.Flags().IntVar(&totalFlag, "total", 0, "total number of pages of a paged document")

	hl := &cobra.Command{
		Use:   "highlight <book>",
		Short: "Highlight a passage of a book",
		Args:  cobra.ExactArgs(1),
		RunE:  newHighlightRun(ctx),
	}
	hl.Flags().StringVarP(&pageFlag, "page", "p", "", "page number or xpointer of the passage")
	hl.Flags().StringVar(&textFlag, "text", "", "highlighted text")
	hl.Flags().StringVarP(&noteFlag, "note", "n", "", "note attached to the highlight")
	hl.Flags().StringVarP(&colorFlag, "color", "c", "", "color name or hex value")
	hl.Flags().StringVar(&drawerFlag, "drawer", "lighten", "highlight style")

	closeCmd := &cobra.Command{
		Use:   "close <book>",
		Short: "Finish a reading session and push it",
		Args:  cobra.ExactArgs(1),
		RunE:  newCloseRun(ctx),
	}
	closeCmd.Flags().StringVarP(&statusFlag, "status", "s", "", "reading status: reading, finished or abandoned")

	cmd.AddCommand(add, gotoCmd, hl, closeCmd)

	return cmd
}

// backgroundPush pushes the book the way a reader does after a change. Skipped
// pushes and failures are not errors of the command.
func backgroundPush(c stdctx.Context, ctx context.ReadsyncCtx, hash string) {
	_, err := ctx.Engine.PushBooks(c, reconcile.Background, hash)
	if err == nil {
		log.Debug("pushed %s\n", hash)
		return
	}

	if reconcile.IsSkipped(err) {
		log.Debug("push skipped: %s\n", err.Error())
		return
	}

	log.Warnf("push failed: %s\n", err.Error())
}

// isInside reports whether path is inside dir
func isInside(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Add copies the file into the library directory unless it is already there, and
// registers it. The title defaults to the file name without the extension.
func Add(ctx context.ReadsyncCtx, path, title string) (library.Book, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return library.Book{}, errors.Wrapf(err, "resolving %s", path)
	}

	ok, err := utils.FileExists(abs)
	if err != nil {
		return library.Book{}, errors.Wrapf(err, "checking %s", abs)
	}
	if !ok {
		return library.Book{}, errors.Errorf("%s does not exist", path)
	}

	dest := abs
	if !isInside(abs, ctx.LibraryDir) {
		dest = filepath.Join(ctx.LibraryDir, filepath.Base(abs))
		if err := utils.CopyFile(abs, dest); err != nil {
			return library.Book{}, errors.Wrapf(err, "copying %s into the library", path)
		}
	}

	if title == "" {
		title = strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	}

	b, err := ctx.Library.Register(dest, library.Book{Title: title}, ctx.Clock.Now().UnixMilli())
	if err != nil {
		return library.Book{}, errors.Wrap(err, "registering")
	}

	if _, err := ctx.Identities.Resolve(b); err != nil {
		return library.Book{}, errors.Wrap(err, "resolving identity")
	}

	return b, nil
}

// Goto records the position in the book. A number is a page of a paged document
// and anything else is an xpointer of a reflowable one.
func Goto(ctx context.ReadsyncCtx, ref, position string, total int) (library.Book, error) {
	b, err := ctx.Library.Find(ref)
	if err != nil {
		return library.Book{}, errors.Wrapf(err, "finding %s", ref)
	}

	now := ctx.Clock.Now().UnixMilli()

	if utils.IsNumber(position) {
		if !b.Paged {
			return library.Book{}, errors.Errorf("%s is not a paged document, give an xpointer", b.FileName())
		}

		page, err := strconv.Atoi(position)
		if err != nil {
			return library.Book{}, errors.Wrapf(err, "parsing page %s", position)
		}
		if total == 0 {
			total = b.TotalPages
		}
		if err := validate.Page(page, total); err != nil {
			return library.Book{}, errors.Wrapf(err, "page %d", page)
		}

		if err := ctx.Library.SetPage(b.ContentHash, page, total, now); err != nil {
			return library.Book{}, err
		}
	} else {
		if b.Paged {
			return library.Book{}, errors.Errorf("%s is a paged document, give a page number", b.FileName())
		}
		if err := validate.XPointer(position); err != nil {
			return library.Book{}, err
		}

		if err := ctx.Library.SetXPointer(b.ContentHash, position, now); err != nil {
			return library.Book{}, err
		}
	}

	return ctx.Library.Get(b.ContentHash)
}

// Highlight is a passage to highlight
type Highlight struct {
	Page   string
	Text   string
	Note   string
	Color  string
	Drawer string
}

// AddHighlight appends the highlight to the annotations of the book
func AddHighlight(ctx context.ReadsyncCtx, ref string, h Highlight) (library.Annotation, error) {
	if err := validate.Highlight(h.Text, h.Drawer); err != nil {
		return library.Annotation{}, err
	}

	b, err := ctx.Library.Find(ref)
	if err != nil {
		return library.Annotation{}, errors.Wrapf(err, "finding %s", ref)
	}

	page := h.Page
	if page == "" {
		page = b.CurrentPage()
	}
	if page == "" {
		return library.Annotation{}, errors.New("no page given and no position recorded")
	}

	var color string
	if h.Color != "" {
		c, err := highlight.Parse(h.Color)
		if err != nil {
			return library.Annotation{}, errors.Wrapf(err, "parsing color %s", h.Color)
		}
		color = c.Hex()
	}

	a := library.Annotation{
		BookHash: b.ContentHash,
		Page:     page,
		Drawer:   h.Drawer,
		Color:    color,
		Text:     h.Text,
		Note:     h.Note,
		Datetime: ctx.Clock.Now().UTC().Format(snapshot.DatetimeLayout),
	}
	if b.Paged {
		a.PageNo, _ = strconv.Atoi(page)
	}

	if err := ctx.Library.AppendAnnotation(a); err != nil {
		return library.Annotation{}, err
	}

	return a, nil
}

// Close records the reading status, if given, and pushes the book
func Close(c stdctx.Context, ctx context.ReadsyncCtx, ref, status string) (push.Result, error) {
	b, err := ctx.Library.Find(ref)
	if err != nil {
		return push.Result{}, errors.Wrapf(err, "finding %s", ref)
	}

	if status != "" {
		st, err := validate.ReadingStatus(status)
		if err != nil {
			return push.Result{}, err
		}
		if err := ctx.Library.SetStatus(b.ContentHash, snapshot.LocalStatus(st), ctx.Clock.Now().UnixMilli()); err != nil {
			return push.Result{}, err
		}
	}

	return push.Do(c, ctx, []string{b.ContentHash})
}

func newAddRun(ctx context.ReadsyncCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		b, err := Add(ctx, args[0], titleFlag)
		if err != nil {
			return err
		}

		log.Successf("added %s\n", b.Title)
		output.BookInfo(b)
		backgroundPush(cmd.Context(), ctx, b.ContentHash)

		return nil
	}
}

func newGotoRun(ctx context.ReadsyncCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		b, err := Goto(ctx, args[0], args[1], totalFlag)
		if err != nil {
			return err
		}

		log.Successf("%s is at %s\n", b.Title, b.CurrentPage())
		backgroundPush(cmd.Context(), ctx, b.ContentHash)

		return nil
	}
}

func newHighlightRun(ctx context.ReadsyncCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		a, err := AddHighlight(ctx, args[0], Highlight{
			Page:   pageFlag,
			Text:   textFlag,
			Note:   noteFlag,
			Color:  colorFlag,
			Drawer: drawerFlag,
		})
		if err != nil {
			return err
		}

		log.Successf("highlighted on %s\n", a.Page)
		backgroundPush(cmd.Context(), ctx, a.BookHash)

		return nil
	}
}

func newCloseRun(ctx context.ReadsyncCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		res, err := Close(cmd.Context(), ctx, args[0], statusFlag)

		return push.Report(res, err)
	}
}
