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
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/assert"
	"github.com/readsync/readsync/pkg/cli/client"
	"github.com/readsync/readsync/pkg/cli/context"
	"github.com/readsync/readsync/pkg/cli/settings"
	"github.com/readsync/readsync/pkg/cli/testutils"
)

func TestGetServerDisplayURL(t *testing.T) {
	testCases := []struct {
		apiEndpoint string
		expected    string
	}{
		{
			apiEndpoint: "https://readsync.mydomain.com/api",
			expected:    "https://readsync.mydomain.com",
		},
		{
			apiEndpoint: "https://mysubdomain.mydomain.com/readsync/api",
			expected:    "https://mysubdomain.mydomain.com",
		},
		{
			apiEndpoint: "https://readsync.mysubdomain.mydomain.com/api",
			expected:    "https://readsync.mysubdomain.mydomain.com",
		},
		{
			apiEndpoint: "some-string",
			expected:    "",
		},
		{
			apiEndpoint: "",
			expected:    "",
		},
		{
			apiEndpoint: "https://",
			expected:    "",
		},
		{
			apiEndpoint: "https://abc",
			expected:    "https://abc",
		},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("for input %s", tc.apiEndpoint), func(t *testing.T) {
			got := getServerDisplayURL(context.ReadsyncCtx{APIEndpoint: tc.apiEndpoint})
			assert.Equal(t, got, tc.expected, "result mismatch")
		})
	}
}

func TestDo(t *testing.T) {
	srv := testutils.NewFakeServer(t)
	ctx := context.InitTestCtx(t, srv.URL, settings.Default())

	err := Do(stdctx.Background(), ctx, testutils.Email, "wrong")
	assert.Equal(t, errors.Cause(err), client.ErrInvalidLogin, "error mismatch")

	needsLogin, err := ctx.Session.NeedsLogin()
	assert.NoError(t, err, "checking session")
	assert.Equal(t, needsLogin, true, "should not be logged in after a failure")

	err = Do(stdctx.Background(), ctx, testutils.Email, testutils.Password)
	assert.NoError(t, err, "logging in")

	s, err := ctx.Settings.Load()
	assert.NoError(t, err, "loading settings")
	assert.NotEqual(t, s.AccessToken, "", "access token should be saved")
	assert.NotEqual(t, s.RefreshToken, "", "refresh token should be saved")
	assert.Equal(t, s.Email, testutils.Email, "email mismatch")
}

func TestDo_emptyCredentials(t *testing.T) {
	srv := testutils.NewFakeServer(t)
	ctx := context.InitTestCtx(t, srv.URL, settings.Default())

	assert.NotEqual(t, Do(stdctx.Background(), ctx, "", testutils.Password), nil, "empty email should fail")
	assert.NotEqual(t, Do(stdctx.Background(), ctx, testutils.Email, ""), nil, "empty password should fail")
	assert.Equal(t, srv.RequestCount("POST", "/v1/auth/signin"), 0, "no request should be made")
}
