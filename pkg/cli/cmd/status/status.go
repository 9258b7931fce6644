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

package status

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/context"
	"github.com/readsync/readsync/pkg/cli/infra"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/spf13/cobra"
)

var example = `
  readsync status`

// NewCmd returns a new status command
func NewCmd(ctx context.ReadsyncCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show the session, sync and queue state",
		Example: example,
		RunE:    newRun(ctx),
	}

	return cmd
}

// Status is a summary of the local sync state
type Status struct {
	LoggedIn     bool
	Email        string
	AutoSync     bool
	LastSyncedAt int64
	LastPulledAt int64
	Queued       int
	Books        int
	StorageUsage int64
	StorageQuota int64
}

// Get collects the status without contacting the server
func Get(ctx context.ReadsyncCtx) (Status, error) {
	s, err := ctx.Settings.Load()
	if err != nil {
		return Status{}, errors.Wrap(err, "loading settings")
	}

	needsLogin, err := ctx.Session.NeedsLogin()
	if err != nil {
		return Status{}, errors.Wrap(err, "checking session")
	}

	books, err := ctx.Library.List()
	if err != nil {
		return Status{}, errors.Wrap(err, "listing books")
	}

	return Status{
		LoggedIn:     !needsLogin,
		Email:        s.Email,
		AutoSync:     s.AutoSync,
		LastSyncedAt: s.LastSyncedAt,
		LastPulledAt: s.LastPulledAt,
		Queued:       len(s.Queue),
		Books:        len(books),
		StorageUsage: s.StorageUsage,
		StorageQuota: s.StorageQuota,
	}, nil
}

func formatTime(ms int64) string {
	if ms == 0 {
		return "never"
	}

	return time.UnixMilli(ms).Local().Format(time.DateTime)
}

func formatBool(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func printStatus(st Status) {
	if st.LoggedIn {
		log.Plainf("%s %s\n", log.ColorGreen.Sprint("logged in as"), st.Email)
	} else {
		log.Plainf("%s\n", log.ColorYellow.Sprint("not logged in"))
	}

	log.Plainf("auto sync:   %s\n", formatBool(st.AutoSync))
	log.Plainf("last push:   %s\n", formatTime(st.LastSyncedAt))
	log.Plainf("last pull:   %s\n", formatTime(st.LastPulledAt))
	log.Plainf("queued:      %d\n", st.Queued)
	log.Plainf("books:       %d\n", st.Books)
	if st.StorageQuota > 0 {
		log.Plainf("storage:     %s\n", FormatUsage(st.StorageUsage, st.StorageQuota))
	}
}

// FormatUsage formats the storage usage in megabytes along with the percentage of the quota
func FormatUsage(usage, quota int64) string {
	const mb = 1024 * 1024
	percentage := float64(usage) / float64(quota) * 100

	return fmt.Sprintf("%.1f / %.1f MB (%.0f%%)", float64(usage)/mb, float64(quota)/mb, percentage)
}

func newRun(ctx context.ReadsyncCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		st, err := Get(ctx)
		if err != nil {
			return errors.Wrap(err, "getting status")
		}

		printStatus(st)

		return nil
	}
}
