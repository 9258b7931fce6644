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

package login

import (
	stdctx "context"
	"net/url"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/client"
	"github.com/readsync/readsync/pkg/cli/context"
	"github.com/readsync/readsync/pkg/cli/infra"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/readsync/readsync/pkg/cli/ui"
	"github.com/spf13/cobra"
)

var example = `
  readsync login
  readsync login --email alice@example.com`

var emailFlag, passwordFlag, apiEndpointFlag string

// NewCmd returns a new login command
func NewCmd(ctx context.ReadsyncCtx) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "login",
		Short:   "Login to the sync server",
		Example: example,
		RunE:    newRun(ctx),
	}

	f := cmd.Flags()
	f.StringVarP(&emailFlag, "email", "e", "", "email address of the account")
	f.StringVarP(&passwordFlag, "password", "p", "", "password of the account. Prompted if not given")
	f.StringVar(&apiEndpointFlag, "apiEndpoint", "", "API endpoint to connect to (defaults to value in config)")

	return cmd
}

// Do signs in and saves the session
func Do(c stdctx.Context, ctx context.ReadsyncCtx, email, password string) error {
	if email == "" {
		return errors.New("empty email")
	}
	if password == "" {
		return errors.New("empty password")
	}

	return ctx.Session.SignIn(c, email, password)
}

func getCredentials(email, password string) (string, string, error) {
	if email == "" {
		if err := ui.PromptInput("email", &email); err != nil {
			return "", "", errors.Wrap(err, "getting email input")
		}
	}

	if password == "" {
		if err := ui.PromptPassword("password", &password); err != nil {
			return "", "", errors.Wrap(err, "getting password input")
		}
	}

	return email, password, nil
}

// getServerDisplayURL returns the origin of the API endpoint, or an empty string
// if it cannot be determined
func getServerDisplayURL(ctx context.ReadsyncCtx) string {
	u, err := url.Parse(ctx.APIEndpoint)
	if err != nil {
		return ""
	}
	if u.Scheme == "" || u.Host == "" {
		return ""
	}

	return u.Scheme + "://" + u.Host
}

func newRun(ctx context.ReadsyncCtx) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		// Override APIEndpoint if flag was provided
		if apiEndpointFlag != "" {
			ctx.APIEndpoint = apiEndpointFlag
			ctx.Client.Endpoint = apiEndpointFlag
		}

		if u := getServerDisplayURL(ctx); u != "" {
			log.Infof("logging in to %s\n", u)
		}

		email, password, err := getCredentials(emailFlag, passwordFlag)
		if err != nil {
			return err
		}

		err = Do(cmd.Context(), ctx, email, password)
		if errors.Cause(err) == client.ErrInvalidLogin {
			log.Error("wrong login\n")
			return nil
		} else if err != nil {
			return errors.Wrap(err, "logging in")
		}

		log.Success("logged in\n")

		return nil
	}
}
