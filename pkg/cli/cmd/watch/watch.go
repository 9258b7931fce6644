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

package watch

import (
	stdctx "context"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/radovskyb/watcher"
	"github.com/readsync/readsync/pkg/cli/consts"
	"github.com/readsync/readsync/pkg/cli/context"
	"github.com/readsync/readsync/pkg/cli/infra"
	"github.com/readsync/readsync/pkg/cli/library"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/readsync/readsync/pkg/cli/reconcile"
	"github.com/robfig/cron"
	"github.com/spf13/cobra"
)

// pollInterval is how often the library directory is scanned for changes
const pollInterval = 2 * time.Second

var example = `
  * Sync in the background until interrupted
  readsync watch

  * Write the log to a file
  readsync watch --log ~/.local/state/readsync.log`

var logPath string

// NewCmd returns a new watch command
func NewCmd(ctx context.ReadsyncCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "watch",
		Aliases: []string{"w"},
		Short:   "Sync in the background and push changes to the library directory",
		Example: example,
		Args:    cobra.NoArgs,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.StringVar(&logPath, "log", "", "append the output to the file instead of the terminal")

	return cmd
}

// Loop is the background sync loop. Ticks replay the queue and sync the library,
// and changes to book files schedule a deferred push of the changed book.
type Loop struct {
	ctx       context.ReadsyncCtx
	base      stdctx.Context
	scheduler *reconcile.Scheduler
}

// NewLoop returns a loop deferring pushes by delay. Pushes run with base as their context.
func NewLoop(base stdctx.Context, ctx context.ReadsyncCtx, delay time.Duration) *Loop {
	l := &Loop{
		ctx:  ctx,
		base: base,
	}
	l.scheduler = reconcile.NewScheduler(delay, l.push)

	return l
}

func (l *Loop) push(hash string) {
	_, err := l.ctx.Engine.PushBooks(l.base, reconcile.Background, hash)
	logBackground("push", err)
}

func logBackground(op string, err error) {
	switch {
	case err == nil:
		log.Debug("%s done\n", op)
	case reconcile.IsSkipped(err):
		log.Debug("%s skipped: %s\n", op, err.Error())
	default:
		log.Warnf("%s failed: %s\n", op, err.Error())
	}
}

// Tick replays the queued operations and syncs the whole library
func (l *Loop) Tick() {
	res, err := l.ctx.Queue.Process(l.base, l.ctx.Engine)
	if err != nil {
		log.Warnf("processing the queue: %s\n", err.Error())
	} else if res.Succeeded+res.Failed+res.Dropped > 0 {
		log.Infof("replayed queued operations: %d succeeded, %d failed, %d dropped\n", res.Succeeded, res.Failed, res.Dropped)
	}

	applied, err := l.ctx.Engine.Sync(l.base, reconcile.Background, false)
	logBackground("sync", err)
	if err == nil && applied.Configs+applied.Notes+applied.Books > 0 {
		log.Infof("applied %d positions and %d notes\n", applied.Configs, applied.Notes)
	}
}

// HandleEvent registers a created or changed book file and schedules its push.
// It reports whether a push was scheduled.
func (l *Loop) HandleEvent(ev watcher.Event) (bool, error) {
	if ev.IsDir() || !library.IsBookFile(ev.Path) {
		return false, nil
	}
	if ev.Op != watcher.Create && ev.Op != watcher.Write {
		return false, nil
	}

	title := filepath.Base(ev.Path)
	title = title[:len(title)-len(filepath.Ext(title))]

	b, err := l.ctx.Library.Register(ev.Path, library.Book{Title: title}, l.ctx.Clock.Now().UnixMilli())
	if err != nil {
		return false, errors.Wrapf(err, "registering %s", ev.Path)
	}
	if _, err := l.ctx.Identities.Resolve(b); err != nil {
		return false, errors.Wrapf(err, "resolving identity of %s", ev.Path)
	}

	log.Debug("%s changed, scheduling a push of %s\n", ev.Path, b.ContentHash)
	l.scheduler.Schedule(b.ContentHash)

	return true, nil
}

// Stop drops the pending push and waits for a running one
func (l *Loop) Stop() {
	l.scheduler.Cancel()
	l.scheduler.Wait()
}

// Run ticks every interval and handles the events of w until c is done
func (l *Loop) Run(c stdctx.Context, interval time.Duration, w *watcher.Watcher) error {
	cr := cron.New()
	cr.Schedule(cron.Every(interval), cron.FuncJob(l.Tick))
	cr.Start()
	defer cr.Stop()

	go l.Tick()

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Start(pollInterval)
	}()
	defer w.Close()

	for {
		select {
		case <-c.Done():
			l.Stop()
			return nil
		case ev := <-w.Event:
			if _, err := l.HandleEvent(ev); err != nil {
				log.Warnf("%s\n", err.Error())
			}
		case err := <-w.Error:
			log.Warnf("watching: %s\n", err.Error())
		case err := <-errCh:
			l.Stop()
			return errors.Wrap(err, "watching the library")
		}
	}
}

func newWatcher(dir string) (*watcher.Watcher, error) {
	w := watcher.New()
	w.FilterOps(watcher.Create, watcher.Write)
	w.IgnoreHiddenFiles(true)

	if err := w.AddRecursive(dir); err != nil {
		return nil, errors.Wrapf(err, "watching %s", dir)
	}

	return w, nil
}

func newRun(ctx context.ReadsyncCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		if logPath != "" {
			f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
			if err != nil {
				return errors.Wrapf(err, "opening %s", logPath)
			}
			defer f.Close()

			log.SetOutput(f)
		}

		w, err := newWatcher(ctx.LibraryDir)
		if err != nil {
			return err
		}

		log.Infof("watching %s, syncing every %s\n", ctx.LibraryDir, ctx.SyncInterval)

		l := NewLoop(cmd.Context(), ctx, consts.PushDelaySeconds*time.Second)
		err = l.Run(cmd.Context(), ctx.SyncInterval, w)
		ctx.Session.Wait()

		return err
	}
}
