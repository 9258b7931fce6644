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

package logout

import (
	stdctx "context"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/context"
	"github.com/readsync/readsync/pkg/cli/infra"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/spf13/cobra"
)

// ErrNotLoggedIn is an error for logging out when not logged in
var ErrNotLoggedIn = errors.New("not logged in")

var example = `
  readsync logout`

var apiEndpointFlag string

// NewCmd returns a new logout command
func NewCmd(ctx context.ReadsyncCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "logout",
		Short:   "Logout from the server",
		Example: example,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.StringVar(&apiEndpointFlag, "apiEndpoint", "", "API endpoint to connect to (defaults to value in config)")

	return cmd
}

// Do performs logout. The local session is removed even if the server cannot
// be reached, in which case the error is returned.
func Do(c stdctx.Context, ctx context.ReadsyncCtx) error {
	s, err := ctx.Settings.Load()
	if err != nil {
		return errors.Wrap(err, "loading settings")
	}
	if s.AccessToken == "" && s.RefreshToken == "" {
		return ErrNotLoggedIn
	}

	if err := ctx.Session.SignOut(c); err != nil {
		return errors.Wrap(err, "requesting logout")
	}

	return nil
}

func newRun(ctx context.ReadsyncCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		// Override APIEndpoint if flag was provided
		if apiEndpointFlag != "" {
			ctx.APIEndpoint = apiEndpointFlag
			ctx.Client.Endpoint = apiEndpointFlag
		}

		err := Do(cmd.Context(), ctx)
		if err == ErrNotLoggedIn {
			log.Error("not logged in\n")
			return nil
		} else if err != nil {
			log.Warnf("%s\n", err.Error())
		}

		log.Success("logged out\n")

		return nil
	}
}
