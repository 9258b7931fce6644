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
	"time"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/log"
)

// reachableTimeout bounds a connectivity check
const reachableTimeout = 5 * time.Second

// Reachable reports whether the server answers. A transport error or a 5xx
// response means it does not.
func (c *Client) Reachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, reachableTimeout)
	defer cancel()

	res, err := c.doReq(ctx, http.MethodGet, "/v1/health", nil, &requestOptions{AnyContentType: true})
	if err == nil {
		res.Body.Close()
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode < 500 {
		return true
	}

	log.Debug("server unreachable: %s\n", err.Error())
	return false
}
