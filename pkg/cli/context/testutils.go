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

package context

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/database"
	"github.com/readsync/readsync/pkg/cli/settings"
	"github.com/readsync/readsync/pkg/clock"
)

// getDefaultTestPaths creates default test paths with all paths pointing to a temp directory
func getDefaultTestPaths(t *testing.T) Paths {
	tmpDir := t.TempDir()
	return Paths{
		Home:   tmpDir,
		Cache:  tmpDir,
		Config: tmpDir,
		Data:   tmpDir,
	}
}

// InitTestCtx initializes a wired test context with an in-memory database, an in-memory
// settings store and a temporary library directory. apiEndpoint is usually the URL of
// a fake server.
func InitTestCtx(t *testing.T, apiEndpoint string, s settings.Settings) ReadsyncCtx {
	paths := getDefaultTestPaths(t)
	db := database.InitTestMemoryDB(t)

	if err := InitDirs(paths); err != nil {
		t.Fatal(errors.Wrap(err, "creating test directories"))
	}

	return Wire(ReadsyncCtx{
		DB:          db,
		Paths:       paths,
		APIEndpoint: apiEndpoint,
		Version:     "test",
		LibraryDir:  t.TempDir(),
		Clock:       clock.NewMock(), // Use a mock clock to test times
		HTTPClient:  http.DefaultClient,
		Settings:    settings.NewMemoryStore(s),
	})
}
