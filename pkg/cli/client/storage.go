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
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
)

type downloadURLResp struct {
	DownloadURL string `json:"download_url"`
}

// RequestUpload asks for a location to upload a book file to
func (c *Client) RequestUpload(ctx context.Context, r UploadRequest) (UploadTicket, error) {
	body, err := jsonBody(r)
	if err != nil {
		return UploadTicket{}, err
	}

	res, err := c.doAuthorizedReq(ctx, http.MethodPost, "/v1/storage/upload", body, nil)
	if err != nil {
		return UploadTicket{}, errors.Wrap(err, "requesting upload")
	}

	var ticket UploadTicket
	if err := decodeBody(res, &ticket); err != nil {
		return UploadTicket{}, err
	}

	return ticket, nil
}

// RequestDownload returns a location to download the file with the given key from
func (c *Client) RequestDownload(ctx context.Context, fileKey string) (string, error) {
	v := url.Values{}
	v.Set("file_key", fileKey)

	path := fmt.Sprintf("/v1/storage/download?%s", v.Encode())
	res, err := c.doAuthorizedReq(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return "", errors.Wrapf(err, "requesting download of %s", fileKey)
	}

	var resp downloadURLResp
	if err := decodeBody(res, &resp); err != nil {
		return "", err
	}

	return resp.DownloadURL, nil
}

// List returns a page of the files in the account storage
func (c *Client) List(ctx context.Context, params ListParams) (ListResponse, error) {
	v := url.Values{}
	if params.Page > 0 {
		v.Set("page", strconv.Itoa(params.Page))
	}
	if params.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(params.PageSize))
	}
	if params.Search != "" {
		v.Set("search", params.Search)
	}

	path := "/v1/storage/list"
	if q := v.Encode(); q != "" {
		path = fmt.Sprintf("%s?%s", path, q)
	}

	res, err := c.doAuthorizedReq(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return ListResponse{}, errors.Wrap(err, "listing files")
	}

	var resp ListResponse
	if err := decodeBody(res, &resp); err != nil {
		return ListResponse{}, err
	}

	return resp, nil
}

// Delete removes the file with the given key from the account storage
func (c *Client) Delete(ctx context.Context, fileKey string) error {
	v := url.Values{}
	v.Set("file_key", fileKey)

	path := fmt.Sprintf("/v1/storage?%s", v.Encode())
	opts := requestOptions{AnyContentType: true}
	res, err := c.doAuthorizedReq(ctx, http.MethodDelete, path, nil, &opts)
	if err != nil {
		return errors.Wrapf(err, "deleting %s", fileKey)
	}
	res.Body.Close()

	return nil
}

// Stats returns the usage of the account storage
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	res, err := c.doAuthorizedReq(ctx, http.MethodGet, "/v1/storage/stats", nil, nil)
	if err != nil {
		return Stats{}, errors.Wrap(err, "getting storage stats")
	}

	var resp Stats
	if err := decodeBody(res, &resp); err != nil {
		return Stats{}, err
	}

	return resp, nil
}

// PutToURL uploads size bytes read from r to a location returned by RequestUpload
func (c *Client) PutToURL(ctx context.Context, location string, r io.Reader, size int64) error {
	opts := requestOptions{
		Absolute:       true,
		AnyContentType: true,
		ContentType:    "application/octet-stream",
		ContentLength:  size,
	}
	res, err := c.doReq(ctx, http.MethodPut, location, r, &opts)
	if err != nil {
		return errors.Wrap(err, "uploading file")
	}
	res.Body.Close()

	return nil
}

// GetFromURL downloads from a location returned by RequestDownload into w
func (c *Client) GetFromURL(ctx context.Context, location string, w io.Writer) (int64, error) {
	opts := requestOptions{
		Absolute:       true,
		AnyContentType: true,
	}
	res, err := c.doReq(ctx, http.MethodGet, location, nil, &opts)
	if err != nil {
		return 0, errors.Wrap(err, "downloading file")
	}
	defer res.Body.Close()

	n, err := io.Copy(w, res.Body)
	if err != nil {
		return n, errors.Wrap(err, "reading file")
	}

	return n, nil
}
