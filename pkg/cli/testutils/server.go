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

package testutils

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/readsync/readsync/pkg/cli/client"
)

// Credentials accepted by a FakeServer
const (
	Email    = "alice@example.com"
	Password = "pass1234"
)

// TokenLifetime is the lifetime of the access tokens issued by a FakeServer, in seconds
const TokenLifetime = 3600

type storedFile struct {
	meta client.RemoteFile
	data []byte
}

// FakeServer is an in-memory sync server
type FakeServer struct {
	*httptest.Server

	mu sync.Mutex
	// Now returns the current unix time in seconds, used for token expiry
	Now func() int64

	books   map[string]client.Book
	configs map[string]client.Config
	notes   map[string]client.Note
	files   map[string]storedFile
	quota   int64

	accessTokens  map[string]bool
	refreshTokens map[string]bool

	offline  bool
	requests map[string]int
}

// NewFakeServer starts a FakeServer. It is closed when the test finishes.
func NewFakeServer(t *testing.T) *FakeServer {
	s := &FakeServer{
		Now:           func() int64 { return 1700000000 },
		books:         map[string]client.Book{},
		configs:       map[string]client.Config{},
		notes:         map[string]client.Note{},
		files:         map[string]storedFile{},
		quota:         1 << 30,
		accessTokens:  map[string]bool{},
		refreshTokens: map[string]bool{},
		requests:      map[string]int{},
	}

	r := mux.NewRouter()
	r.HandleFunc("/v1/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/v1/auth/signin", s.signin).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/refresh", s.refresh).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/signout", s.auth(s.signout)).Methods(http.MethodPost)
	r.HandleFunc("/v1/sync", s.auth(s.push)).Methods(http.MethodPost)
	r.HandleFunc("/v1/sync", s.auth(s.pull)).Methods(http.MethodGet)
	r.HandleFunc("/v1/storage/upload", s.auth(s.requestUpload)).Methods(http.MethodPost)
	r.HandleFunc("/v1/storage/download", s.auth(s.requestDownload)).Methods(http.MethodGet)
	r.HandleFunc("/v1/storage/list", s.auth(s.list)).Methods(http.MethodGet)
	r.HandleFunc("/v1/storage/stats", s.auth(s.stats)).Methods(http.MethodGet)
	r.HandleFunc("/v1/storage", s.auth(s.deleteFile)).Methods(http.MethodDelete)
	r.HandleFunc("/blob/{key}", s.putBlob).Methods(http.MethodPut)
	r.HandleFunc("/blob/{key}", s.getBlob).Methods(http.MethodGet)
	r.Use(s.track)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)

	return s
}

func (s *FakeServer) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[r.Method+" "+r.URL.Path]++
		offline := s.offline
		s.mu.Unlock()

		if offline {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *FakeServer) auth(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

		s.mu.Lock()
		ok := s.accessTokens[token]
		s.mu.Unlock()

		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		h(w, r)
	}
}

func respondJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// SetOffline makes every request fail with 503 until called with false
func (s *FakeServer) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.offline = offline
}

// RequestCount returns the number of requests received for the given method and path
func (s *FakeServer) RequestCount(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.requests[method+" "+path]
}

// IssueToken registers a new access token and returns it
func (s *FakeServer) IssueToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.issue().AccessToken
}

// RevokeTokens invalidates every issued token
func (s *FakeServer) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accessTokens = map[string]bool{}
	s.refreshTokens = map[string]bool{}
}

func (s *FakeServer) issue() client.AuthResult {
	access := uuid.NewString()
	refresh := uuid.NewString()
	s.accessTokens[access] = true
	s.refreshTokens[refresh] = true

	return client.AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    s.Now() + TokenLifetime,
		ExpiresIn:    TokenLifetime,
		User:         client.User{ID: "user-1", Email: Email},
	}
}

// PutBook stores a book record as if another device pushed it
func (s *FakeServer) PutBook(b client.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.books[b.BookHash] = b
}

// PutConfig stores a config record as if another device pushed it
func (s *FakeServer) PutConfig(c client.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.configs[c.BookHash] = c
}

// PutNote stores a note record as if another device pushed it
func (s *FakeServer) PutNote(n client.Note) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notes[n.ID] = n
}

// PutFile stores a book file in the account storage
func (s *FakeServer) PutFile(f client.RemoteFile, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f.FileSize = int64(len(data))
	s.files[f.FileKey] = storedFile{meta: f, data: data}
}

// Books returns the stored book records
func (s *FakeServer) Books() map[string]client.Book {
	s.mu.Lock()
	defer s.mu.Unlock()

	ret := map[string]client.Book{}
	for k, v := range s.books {
		ret[k] = v
	}
	return ret
}

// Configs returns the stored config records
func (s *FakeServer) Configs() map[string]client.Config {
	s.mu.Lock()
	defer s.mu.Unlock()

	ret := map[string]client.Config{}
	for k, v := range s.configs {
		ret[k] = v
	}
	return ret
}

// Notes returns the stored note records
func (s *FakeServer) Notes() map[string]client.Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	ret := map[string]client.Note{}
	for k, v := range s.notes {
		ret[k] = v
	}
	return ret
}

// Files returns the stored files
func (s *FakeServer) Files() map[string][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	ret := map[string][]byte{}
	for k, v := range s.files {
		ret[k] = v.data
	}
	return ret
}

func (s *FakeServer) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *FakeServer) signin(w http.ResponseWriter, r *http.Request) {
	var p client.SigninPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if p.Email != Email || p.Password != Password {
		http.Error(w, "wrong credentials", http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	res := s.issue()
	s.mu.Unlock()

	respondJSON(w, res)
}

func (s *FakeServer) refresh(w http.ResponseWriter, r *http.Request) {
	var p client.RefreshPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.refreshTokens[p.RefreshToken] {
		http.Error(w, "invalid refresh token", http.StatusUnauthorized)
		return
	}
	delete(s.refreshTokens, p.RefreshToken)

	respondJSON(w, s.issue())
}

func (s *FakeServer) signout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	s.mu.Lock()
	delete(s.accessTokens, token)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *FakeServer) push(w http.ResponseWriter, r *http.Request) {
	var p client.PushPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range p.Books {
		s.books[b.BookHash] = b
	}
	for _, c := range p.Configs {
		s.configs[c.BookHash] = c
	}
	for _, n := range p.Notes {
		s.notes[n.ID] = n
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *FakeServer) pull(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	since, _ := strconv.ParseInt(q.Get("since"), 10, 64)
	kind := client.PullType(q.Get("type"))
	book := q.Get("book")
	metaHash := q.Get("meta_hash")

	match := func(bookHash, mh string, updatedAt int64) bool {
		if updatedAt <= since {
			return false
		}
		if book != "" && bookHash != book && (metaHash == "" || mh != metaHash) {
			return false
		}
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	resp := client.PullResponse{
		Books:   []client.Book{},
		Notes:   []client.Note{},
		Configs: []client.Config{},
	}
	if kind == client.PullAll || kind == client.PullBooks {
		for _, b := range s.books {
			if match(b.BookHash, b.MetaHash, b.UpdatedAt) {
				resp.Books = append(resp.Books, b)
			}
		}
	}
	if kind == client.PullAll || kind == client.PullConfigs {
		for _, c := range s.configs {
			if match(c.BookHash, c.MetaHash, c.UpdatedAt) {
				resp.Configs = append(resp.Configs, c)
			}
		}
	}
	if kind == client.PullAll || kind == client.PullNotes {
		for _, n := range s.notes {
			if match(n.BookHash, n.MetaHash, n.UpdatedAt) {
				resp.Notes = append(resp.Notes, n)
			}
		}
		sort.Slice(resp.Notes, func(i, j int) bool { return resp.Notes[i].ID < resp.Notes[j].ID })
	}

	respondJSON(w, resp)
}

func (s *FakeServer) requestUpload(w http.ResponseWriter, r *http.Request) {
	var p client.UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key := fmt.Sprintf("%s-%s", p.BookHash, uuid.NewString())

	s.mu.Lock()
	s.files[key] = storedFile{meta: client.RemoteFile{
		FileKey:  key,
		FileName: p.FileName,
		BookHash: p.BookHash,
		FileSize: p.FileSize,
	}}
	s.mu.Unlock()

	respondJSON(w, client.UploadTicket{
		UploadURL: fmt.Sprintf("%s/blob/%s", s.URL, key),
		FileKey:   key,
	})
}

func (s *FakeServer) requestDownload(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("file_key")

	s.mu.Lock()
	_, ok := s.files[key]
	s.mu.Unlock()

	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	respondJSON(w, map[string]string{"download_url": fmt.Sprintf("%s/blob/%s", s.URL, key)})
}

func (s *FakeServer) list(w http.ResponseWriter, r *http.Request) {
	search := r.URL.Query().Get("search")

	s.mu.Lock()
	defer s.mu.Unlock()

	resp := client.ListResponse{Files: []client.RemoteFile{}}
	for _, f := range s.files {
		if search != "" && !strings.Contains(f.meta.FileName, search) {
			continue
		}
		resp.Files = append(resp.Files, f.meta)
	}
	sort.Slice(resp.Files, func(i, j int) bool { return resp.Files[i].FileName < resp.Files[j].FileName })
	resp.Total = len(resp.Files)

	respondJSON(w, resp)
}

func (s *FakeServer) stats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, f := range s.files {
		total += f.meta.FileSize
	}

	respondJSON(w, client.Stats{
		TotalFiles:      len(s.files),
		TotalSize:       total,
		Usage:           total,
		Quota:           s.quota,
		UsagePercentage: float64(total) / float64(s.quota) * 100,
	})
}

func (s *FakeServer) deleteFile(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("file_key")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[key]; !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	delete(s.files, key)

	w.WriteHeader(http.StatusNoContent)
}

func (s *FakeServer) putBlob(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[key]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	f.data = data
	f.meta.FileSize = int64(len(data))
	s.files[key] = f

	w.WriteHeader(http.StatusOK)
}

func (s *FakeServer) getBlob(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	s.mu.Lock()
	f, ok := s.files[key]
	s.mu.Unlock()

	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(f.data)
}
