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

package client

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
)

// SigninPayload is a payload for /v1/auth/signin
type SigninPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshPayload is a payload for /v1/auth/refresh
type RefreshPayload struct {
	RefreshToken string `json:"refresh_token"`
}

// SignIn exchanges credentials for a session
func (c *Client) SignIn(ctx context.Context, email, password string) (AuthResult, error) {
	body, err := jsonBody(SigninPayload{Email: email, Password: password})
	if err != nil {
		return AuthResult{}, err
	}

	res, err := c.doReq(ctx, http.MethodPost, "/v1/auth/signin", body, nil)
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized {
			return AuthResult{}, ErrInvalidLogin
		}
		return AuthResult{}, errors.Wrap(err, "making http request")
	}

	var resp AuthResult
	if err := decodeBody(res, &resp); err != nil {
		return AuthResult{}, err
	}

	return resp, nil
}

// Refresh exchanges a refresh token for a new session. A rejected refresh token
// is reported as ErrNotAuthenticated.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	body, err := jsonBody(RefreshPayload{RefreshToken: refreshToken})
	if err != nil {
		return AuthResult{}, err
	}

	res, err := c.doReq(ctx, http.MethodPost, "/v1/auth/refresh", body, nil)
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized {
			return AuthResult{}, errors.Wrap(ErrNotAuthenticated, "refresh token rejected")
		}
		return AuthResult{}, errors.Wrap(err, "making http request")
	}

	var resp AuthResult
	if err := decodeBody(res, &resp); err != nil {
		return AuthResult{}, err
	}

	return resp, nil
}

// SignOut deletes the session on the server side
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	// share the transport, and thus the rate limiter, but do not follow redirects
	var transport http.RoundTripper
	if c.HTTPClient != nil {
		transport = c.HTTPClient.Transport
	}
	hc := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	sc := *c
	sc.Tokens = StaticToken(accessToken)

	opts := requestOptions{
		HTTPClient:     hc,
		AnyContentType: true,
	}
	res, err := sc.doAuthorizedReq(ctx, http.MethodPost, "/v1/auth/signout", nil, &opts)
	if err != nil {
		return errors.Wrap(err, "making http request")
	}
	res.Body.Close()

	return nil
}
