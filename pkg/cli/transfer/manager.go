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

package transfer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/client"
	"github.com/readsync/readsync/pkg/cli/fingerprint"
	"github.com/readsync/readsync/pkg/cli/library"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/readsync/readsync/pkg/cli/settings"
	"github.com/readsync/readsync/pkg/clock"
)

// listPageSize is the number of files requested per page when listing the storage
const listPageSize = 100

// ErrUnsafeFileName is returned for a remote file name that does not name a
// file directly inside the library directory
var ErrUnsafeFileName = errors.New("unsafe file name")

func checkFileName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return errors.Wrapf(ErrUnsafeFileName, "%q", name)
	}

	return nil
}

// Storage is the account storage
type Storage interface {
	RequestUpload(ctx context.Context, r client.UploadRequest) (client.UploadTicket, error)
	RequestDownload(ctx context.Context, fileKey string) (string, error)
	List(ctx context.Context, params client.ListParams) (client.ListResponse, error)
	Delete(ctx context.Context, fileKey string) error
	Stats(ctx context.Context) (client.Stats, error)
	PutToURL(ctx context.Context, location string, r io.Reader, size int64) error
	GetFromURL(ctx context.Context, location string, w io.Writer) (int64, error)
}

// Library records the local book files
type Library interface {
	FindByFileName(name string) (library.Book, bool, error)
	Register(path string, meta library.Book, now int64) (library.Book, error)
}

// Manager transfers book files between the library directory and the storage
type Manager struct {
	storage  Storage
	lib      Library
	settings settings.Store
	dir      string
	clock    clock.Clock
}

// NewManager returns a manager for the given library directory
func NewManager(storage Storage, lib Library, store settings.Store, dir string, c clock.Clock) *Manager {
	return &Manager{
		storage:  storage,
		lib:      lib,
		settings: store,
		dir:      dir,
		clock:    c,
	}
}

// Remote lists every file in the storage matching search
func (m *Manager) Remote(ctx context.Context, search string) ([]client.RemoteFile, error) {
	var ret []client.RemoteFile

	for page := 1; ; page++ {
		res, err := m.storage.List(ctx, client.ListParams{Page: page, PageSize: listPageSize, Search: search})
		if err != nil {
			return nil, errors.Wrap(err, "listing remote files")
		}

		ret = append(ret, res.Files...)
		if len(res.Files) == 0 || len(ret) >= res.Total {
			break
		}
	}

	return ret, nil
}

// localHash returns the content hash of the same-named file in the library
// directory, preferring the recorded one
func (m *Manager) localHash(name string) (bool, string, error) {
	path := filepath.Join(m.dir, name)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, "", nil
	} else if err != nil {
		return false, "", errors.Wrapf(err, "checking %s", path)
	}

	b, ok, err := m.lib.FindByFileName(name)
	if err != nil {
		return false, "", err
	}
	if ok && b.ContentHash != "" {
		return true, b.ContentHash, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, "", errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	hash, err := fingerprint.ContentHash(f)
	if err != nil {
		return false, "", errors.Wrapf(err, "hashing %s", path)
	}

	return true, hash, nil
}

// Candidates returns the remote files matching search along with the state of
// the local copies. A file whose name is unsafe or whose local copy cannot be
// read carries the error instead of failing the listing.
func (m *Manager) Candidates(ctx context.Context, search string) ([]Candidate, error) {
	files, err := m.Remote(ctx, search)
	if err != nil {
		return nil, err
	}

	ret := make([]Candidate, 0, len(files))
	for _, f := range files {
		c := Candidate{
			FileKey:  f.FileKey,
			FileName: f.FileName,
			BookHash: f.BookHash,
			FileSize: f.FileSize,
		}

		if err := checkFileName(f.FileName); err != nil {
			c.Err = err
		} else if c.LocalExists, c.LocalHash, err = m.localHash(f.FileName); err != nil {
			log.Debug("local copy of %s: %s\n", f.FileName, err.Error())
			c.Err = err
		}

		ret = append(ret, c)
	}

	return ret, nil
}

// Download fetches the remote file into the library directory, replacing any
// same-named file and its record, and registers it in the library
func (m *Manager) Download(ctx context.Context, c Candidate) error {
	if err := checkFileName(c.FileName); err != nil {
		return err
	}

	location, err := m.storage.RequestDownload(ctx, c.FileKey)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return errors.Wrapf(err, "creating %s", m.dir)
	}

	tmp, err := os.CreateTemp(m.dir, ".download-*")
	if err != nil {
		return errors.Wrap(err, "creating a temporary file")
	}
	defer os.Remove(tmp.Name())

	if _, err := m.storage.GetFromURL(ctx, location, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "writing the temporary file")
	}

	path := filepath.Join(m.dir, c.FileName)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "moving download to %s", path)
	}

	meta := library.Book{Title: strings.TrimSuffix(c.FileName, filepath.Ext(c.FileName))}
	if _, err := m.lib.Register(path, meta, clock.UnixMilli(m.clock)); err != nil {
		return errors.Wrapf(err, "registering %s", path)
	}

	log.Debug("downloaded %s\n", c.FileName)

	return nil
}

func (m *Manager) upload(ctx context.Context, b library.Book) error {
	f, err := os.Open(b.FilePath)
	if err != nil {
		return errors.Wrapf(err, "opening %s", b.FilePath)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrapf(err, "reading %s", b.FilePath)
	}

	ticket, err := m.storage.RequestUpload(ctx, client.UploadRequest{
		FileName: b.FileName(),
		FileSize: info.Size(),
		BookHash: b.ContentHash,
	})
	if err != nil {
		return err
	}

	return m.storage.PutToURL(ctx, ticket.UploadURL, f, info.Size())
}

// Upload sends the files of the given books one at a time
func (m *Manager) Upload(ctx context.Context, books []library.Book) Report {
	var r Report

	for _, b := range books {
		if b.FilePath == "" || b.ContentHash == "" {
			r.add(Result{Name: b.Title, Skipped: true})
			continue
		}
		if ctx.Err() != nil {
			r.add(Result{Name: b.FileName(), Skipped: true, Err: ctx.Err()})
			continue
		}

		r.add(Result{Name: b.FileName(), Err: m.upload(ctx, b)})
	}

	return r
}

// Delete removes the given remote files one at a time
func (m *Manager) Delete(ctx context.Context, fileKeys []string) Report {
	var r Report

	for _, key := range fileKeys {
		if ctx.Err() != nil {
			r.add(Result{Name: key, Skipped: true, Err: ctx.Err()})
			continue
		}

		r.add(Result{Name: key, Err: m.storage.Delete(ctx, key)})
	}

	return r
}

// Stats returns the storage usage and caches it in the settings
func (m *Manager) Stats(ctx context.Context) (client.Stats, error) {
	st, err := m.storage.Stats(ctx)
	if err != nil {
		return client.Stats{}, err
	}

	_, err = m.settings.Update(func(s *settings.Settings) error {
		s.StorageUsage = st.Usage
		s.StorageQuota = st.Quota
		return nil
	})
	if err != nil {
		return st, errors.Wrap(err, "caching storage usage")
	}

	return st, nil
}
