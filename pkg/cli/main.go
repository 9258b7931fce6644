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

package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/infra"
	"github.com/readsync/readsync/pkg/cli/log"

	// commands
	"github.com/readsync/readsync/pkg/cli/cmd/book"
	"github.com/readsync/readsync/pkg/cli/cmd/library"
	"github.com/readsync/readsync/pkg/cli/cmd/login"
	"github.com/readsync/readsync/pkg/cli/cmd/logout"
	"github.com/readsync/readsync/pkg/cli/cmd/pull"
	"github.com/readsync/readsync/pkg/cli/cmd/push"
	"github.com/readsync/readsync/pkg/cli/cmd/queue"
	"github.com/readsync/readsync/pkg/cli/cmd/root"
	"github.com/readsync/readsync/pkg/cli/cmd/status"
	"github.com/readsync/readsync/pkg/cli/cmd/sync"
	"github.com/readsync/readsync/pkg/cli/cmd/version"
	"github.com/readsync/readsync/pkg/cli/cmd/watch"
)

// apiEndpoint and versionTag are populated during link time
var apiEndpoint string
var versionTag = "master"

// parseDBPath extracts the --dbPath flag value from the command line arguments
// regardless of where it appears. It returns an empty string if not found.
func parseDBPath(args []string) string {
	for i, arg := range args {
		if strings.HasPrefix(arg, "--dbPath=") {
			return strings.TrimPrefix(arg, "--dbPath=")
		}
		if arg == "--dbPath" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func main() {
	// --dbPath can appear after the subcommand, which root.ParseFlags does not see
	dbPath := parseDBPath(os.Args[1:])

	ctx, err := infra.Init(versionTag, apiEndpoint, dbPath)
	if err != nil {
		panic(errors.Wrap(err, "initializing context"))
	}
	defer ctx.DB.Close()

	root.Register(login.NewCmd(*ctx))
	root.Register(logout.NewCmd(*ctx))
	root.Register(status.NewCmd(*ctx))
	root.Register(push.NewCmd(*ctx))
	root.Register(pull.NewCmd(*ctx))
	root.Register(sync.NewCmd(*ctx))
	root.Register(queue.NewCmd(*ctx))
	root.Register(library.NewCmd(*ctx))
	root.Register(book.NewCmd(*ctx))
	root.Register(watch.NewCmd(*ctx))
	root.Register(version.NewCmd(*ctx))

	c, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = root.Execute(c)
	stop()

	if err != nil {
		log.Errorf("%s\n", err.Error())
		ctx.DB.Close()
		os.Exit(1)
	}
}
