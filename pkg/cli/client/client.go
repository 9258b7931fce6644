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

// Package client provides interfaces for interacting with the sync server
// and the data structures for requests and responses
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/log"
	"golang.org/x/time/rate"
)

// ErrInvalidLogin is an error for invalid credentials for login
var ErrInvalidLogin = errors.New("wrong credentials")

// ErrNotAuthenticated is an error for a request rejected because the session is not valid
var ErrNotAuthenticated = errors.New("not authenticated")

// ErrContentTypeMismatch is an error for a response with an unexpected content type
var ErrContentTypeMismatch = errors.New("content type mismatch")

// HTTPError represents an HTTP error response from the server
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf(`response %d "%s"`, e.StatusCode, e.Message)
}

// IsConflict returns true if the error is a 409 Conflict error
func (e *HTTPError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

// IsAuthError reports whether the error was caused by a missing or rejected session
func IsAuthError(err error) bool {
	if errors.Is(err, ErrNotAuthenticated) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusUnauthorized
	}

	return false
}

var contentTypeApplicationJSON = "application/json"

// requestOptions contains options for requests
type requestOptions struct {
	HTTPClient *http.Client
	// ExpectedContentType is the Content-Type that the client is expecting from the server
	ExpectedContentType *string
	// AnyContentType disables the Content-Type check
	AnyContentType bool
	// ContentType is the Content-Type of the request body
	ContentType string
	// ContentLength is the size of the request body, if known
	ContentLength int64
	// Absolute marks the path as a full URL outside the api endpoint
	Absolute bool
	// Authorized attaches the access token
	Authorized bool
}

const (
	// clientRateLimitPerSecond is the max requests per second the client will make
	clientRateLimitPerSecond = 50
	// clientRateLimitBurst is the burst capacity for rate limiting
	clientRateLimitBurst = 100
)

// rateLimitedTransport wraps an http.RoundTripper with rate limiting
type rateLimitedTransport struct {
	transport http.RoundTripper
	limiter   *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.transport.RoundTrip(req)
}

// NewRateLimitedHTTPClient creates an HTTP client with rate limiting
func NewRateLimitedHTTPClient() *http.Client {
	interval := time.Second / time.Duration(clientRateLimitPerSecond)

	transport := &rateLimitedTransport{
		transport: http.DefaultTransport,
		limiter:   rate.NewLimiter(rate.Every(interval), clientRateLimitBurst),
	}
	return &http.Client{
		Transport: transport,
	}
}

// TokenSource supplies the access token attached to authorized requests
type TokenSource interface {
	AccessToken() string
}

// StaticToken is a TokenSource returning a fixed token
type StaticToken string

// AccessToken returns the token
func (s StaticToken) AccessToken() string {
	return string(s)
}

// Client talks to the sync server. It implements the auth, sync and storage services.
type Client struct {
	Endpoint   string
	Version    string
	HTTPClient *http.Client
	Tokens     TokenSource
}

// New returns a client for the given api endpoint
func New(endpoint, version string, hc *http.Client, tokens TokenSource) *Client {
	if hc == nil {
		hc = NewRateLimitedHTTPClient()
	}

	return &Client{
		Endpoint:   strings.TrimRight(endpoint, "/"),
		Version:    version,
		HTTPClient: hc,
		Tokens:     tokens,
	}
}

func (c *Client) getHTTPClient(options *requestOptions) *http.Client {
	if options != nil && options.HTTPClient != nil {
		return options.HTTPClient
	}

	if c.HTTPClient != nil {
		return c.HTTPClient
	}

	return &http.Client{}
}

func (c *Client) accessToken() string {
	if c.Tokens == nil {
		return ""
	}

	return c.Tokens.AccessToken()
}

func getExpectedContentType(options *requestOptions) string {
	if options != nil && options.ExpectedContentType != nil {
		return *options.ExpectedContentType
	}

	return contentTypeApplicationJSON
}

func (c *Client) getReq(ctx context.Context, path, method string, body io.Reader, options *requestOptions) (*http.Request, error) {
	endpoint := fmt.Sprintf("%s%s", c.Endpoint, path)
	if options != nil && options.Absolute {
		endpoint = path
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, errors.Wrap(err, "constructing http request")
	}

	if options != nil && options.ContentLength > 0 {
		req.ContentLength = options.ContentLength
	}

	if options == nil || !options.Absolute {
		req.Header.Set("CLI-Version", c.Version)
	}

	contentType := contentTypeApplicationJSON
	if options != nil && options.ContentType != "" {
		contentType = options.ContentType
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}

	if options != nil && options.Authorized {
		credential := fmt.Sprintf("Bearer %s", c.accessToken())
		req.Header.Set("Authorization", credential)
	}

	return req, nil
}

// checkRespErr checks if the given http response indicates an error and returns
// the decoded error message
func checkRespErr(res *http.Response) error {
	if res.StatusCode < 400 {
		return nil
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return errors.Wrapf(err, "server responded with %d but client could not read the response body", res.StatusCode)
	}

	bodyStr := string(body)
	return &HTTPError{
		StatusCode: res.StatusCode,
		Message:    strings.TrimRight(bodyStr, "\n"),
	}
}

func checkContentType(res *http.Response, options *requestOptions) error {
	if options != nil && options.AnyContentType {
		return nil
	}

	expected := getExpectedContentType(options)

	got := res.Header.Get("Content-Type")
	if i := strings.Index(got, ";"); i != -1 {
		got = strings.TrimSpace(got[:i])
	}
	if got != expected {
		return errors.Wrapf(ErrContentTypeMismatch, "got: '%s' want: '%s'. Did you configure your endpoint correctly?", got, expected)
	}

	return nil
}

// doReq does a http request to the given path in the api endpoint. The caller must
// close the body of a returned response.
func (c *Client) doReq(ctx context.Context, method, path string, body io.Reader, options *requestOptions) (*http.Response, error) {
	req, err := c.getReq(ctx, path, method, body, options)
	if err != nil {
		return nil, errors.Wrap(err, "getting request")
	}

	if options != nil && options.Absolute {
		log.Debug("HTTP %s %s\n", method, req.URL.Host)
	} else {
		log.Debug("HTTP %s %s\n", method, path)
	}

	hc := c.getHTTPClient(options)
	res, err := hc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "making http request")
	}

	log.Debug("HTTP %s\n", res.Status)

	if err = checkRespErr(res); err != nil {
		res.Body.Close()
		return nil, errors.Wrap(err, "server responded with an error")
	}

	if err = checkContentType(res, options); err != nil {
		res.Body.Close()
		return nil, errors.Wrap(err, "unexpected Content-Type")
	}

	return res, nil
}

// doAuthorizedReq does a http request to the given path in the api endpoint as a user,
// with the appropriate headers. The given path should include the preceding slash.
// A rejected session is reported as ErrNotAuthenticated.
func (c *Client) doAuthorizedReq(ctx context.Context, method, path string, body io.Reader, options *requestOptions) (*http.Response, error) {
	if c.accessToken() == "" {
		return nil, ErrNotAuthenticated
	}

	opts := requestOptions{}
	if options != nil {
		opts = *options
	}
	opts.Authorized = true

	res, err := c.doReq(ctx, method, path, body, &opts)
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized {
			return nil, errors.Wrap(ErrNotAuthenticated, httpErr.Message)
		}

		return nil, err
	}

	return res, nil
}

func jsonBody(v interface{}) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling payload")
	}

	return bytes.NewReader(b), nil
}

func decodeBody(res *http.Response, dest interface{}) error {
	defer res.Body.Close()

	if err := json.NewDecoder(res.Body).Decode(dest); err != nil {
		return errors.Wrap(err, "decoding payload")
	}

	return nil
}
