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
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
)

// Push uploads a batch of records
func (c *Client) Push(ctx context.Context, payload PushPayload) error {
	body, err := jsonBody(payload)
	if err != nil {
		return err
	}

	opts := requestOptions{AnyContentType: true}
	res, err := c.doAuthorizedReq(ctx, http.MethodPost, "/v1/sync", body, &opts)
	if err != nil {
		return errors.Wrap(err, "pushing records")
	}
	res.Body.Close()

	return nil
}

// Pull downloads the records changed after params.Since
func (c *Client) Pull(ctx context.Context, params PullParams) (PullResponse, error) {
	v := url.Values{}
	v.Set("since", strconv.FormatInt(params.Since, 10))
	if params.Type != PullAll {
		v.Set("type", string(params.Type))
	}
	if params.Book != "" {
		v.Set("book", params.Book)
	}
	if params.MetaHash != "" {
		v.Set("meta_hash", params.MetaHash)
	}

	path := fmt.Sprintf("/v1/sync?%s", v.Encode())
	res, err := c.doAuthorizedReq(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return PullResponse{}, errors.Wrap(err, "pulling records")
	}

	var resp PullResponse
	if err := decodeBody(res, &resp); err != nil {
		return PullResponse{}, err
	}

	return resp, nil
}
