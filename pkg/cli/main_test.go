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

package main

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/assert"
	"github.com/readsync/readsync/pkg/cli/client"
	"github.com/readsync/readsync/pkg/cli/consts"
	"github.com/readsync/readsync/pkg/cli/database"
	"github.com/readsync/readsync/pkg/cli/settings"
	"github.com/readsync/readsync/pkg/cli/testutils"
	"github.com/readsync/readsync/pkg/cli/utils"
)

var binaryName = "test-readsync"

// newServer returns a server issuing tokens that are valid for the binary, which
// runs on the real clock
func newServer(t *testing.T) *testutils.FakeServer {
	srv := testutils.NewFakeServer(t)
	srv.Now = func() int64 { return time.Now().Unix() }

	return srv
}

// setupTestEnv creates a unique test directory and points the binary at the server
func setupTestEnv(t *testing.T, srv *testutils.FakeServer) (string, testutils.RunCmdOptions) {
	testDir := t.TempDir()
	opts := testutils.RunCmdOptions{
		Env: []string{
			fmt.Sprintf("XDG_CONFIG_HOME=%s", testDir),
			fmt.Sprintf("XDG_DATA_HOME=%s", testDir),
			fmt.Sprintf("XDG_CACHE_HOME=%s", testDir),
			fmt.Sprintf("READSYNC_API_ENDPOINT=%s", srv.URL),
		},
	}
	return testDir, opts
}

func dbPath(testDir string) string {
	return filepath.Join(testDir, consts.AppDirName, consts.DBFileName)
}

func libraryDir(testDir string) string {
	return filepath.Join(testDir, consts.AppDirName, "library")
}

func loadSettings(t *testing.T, testDir string) settings.Settings {
	db := testutils.MustOpenDatabase(t, dbPath(testDir))

	s, err := settings.NewDBStore(db).Load()
	assert.NoError(t, err, "loading settings")

	return s
}

func TestMain(m *testing.M) {
	if err := exec.Command("go", "build", "-o", binaryName).Run(); err != nil {
		log.Print(errors.Wrap(err, "building a binary").Error())
		os.Exit(1)
	}

	code := m.Run()
	os.Remove(binaryName)
	os.Exit(code)
}

func TestInit(t *testing.T) {
	srv := newServer(t)
	testDir, opts := setupTestEnv(t, srv)

	output := testutils.RunCmd(t, opts, binaryName, "version")
	assert.Equal(t, strings.HasPrefix(output, "readsync "), true, "version output mismatch")

	ok, err := utils.FileExists(filepath.Join(testDir, consts.AppDirName, consts.ConfigFilename))
	assert.NoError(t, err, "checking config file")
	assert.Equal(t, ok, true, "config file should be initialized")

	ok, err = utils.FileExists(libraryDir(testDir))
	assert.NoError(t, err, "checking library dir")
	assert.Equal(t, ok, true, "library dir should be initialized")

	db := testutils.MustOpenDatabase(t, dbPath(testDir))
	var deviceID string
	assert.NoError(t, database.GetSystem(db, consts.SystemDeviceID, &deviceID), "getting device id")
	assert.NotEqual(t, deviceID, "", "device id should be generated")
}

func TestDBPathFlag(t *testing.T) {
	srv := newServer(t)
	testDir, opts := setupTestEnv(t, srv)

	customPath := filepath.Join(testDir, "custom.db")
	testutils.RunCmd(t, opts, binaryName, "status", "--dbPath", customPath)

	ok, err := utils.FileExists(customPath)
	assert.NoError(t, err, "checking custom database")
	assert.Equal(t, ok, true, "custom database should be created")
}

func TestLoginStatusLogout(t *testing.T) {
	srv := newServer(t)
	testDir, opts := setupTestEnv(t, srv)

	testutils.RunCmd(t, opts, binaryName, "login", "--email", testutils.Email, "--password", testutils.Password)

	s := loadSettings(t, testDir)
	assert.Equal(t, s.Email, testutils.Email, "email mismatch")
	assert.NotEqual(t, s.AccessToken, "", "access token should be saved")

	output := testutils.RunCmd(t, opts, binaryName, "status")
	assert.Equal(t, strings.Contains(output, "logged in as"), true, "status should report the session")

	testutils.RunCmd(t, opts, binaryName, "logout")

	s = loadSettings(t, testDir)
	assert.Equal(t, s.AccessToken, "", "access token should be cleared")
}

func TestAddAndSync(t *testing.T) {
	srv := newServer(t)
	testDir, opts := setupTestEnv(t, srv)

	testutils.RunCmd(t, opts, binaryName, "login", "--email", testutils.Email, "--password", testutils.Password)

	src := testutils.WriteBook(t, t.TempDir(), "dune.pdf", "dune")
	testutils.RunCmd(t, opts, binaryName, "book", "add", src)
	testutils.RunCmd(t, opts, binaryName, "book", "goto", "dune.pdf", "12", "--total", "300")
	testutils.RunCmd(t, opts, binaryName, "sync")

	books := srv.Books()
	assert.Equalf(t, len(books), 1, "server book count mismatch")

	for hash := range books {
		cfg, ok := srv.Configs()[hash]
		assert.Equalf(t, ok, true, "position should be pushed")
		assert.Equal(t, cfg.Progress.Page, 12, "page mismatch")
	}

	s := loadSettings(t, testDir)
	assert.NotEqual(t, s.LastPulledAt, int64(0), "last pull should be recorded")
}

func TestQueueClear(t *testing.T) {
	srv := newServer(t)
	testDir, opts := setupTestEnv(t, srv)

	testutils.RunCmd(t, opts, binaryName, "login", "--email", testutils.Email, "--password", testutils.Password)
	testutils.WriteBook(t, libraryDir(testDir), "emma.epub", "emma")
	testutils.RunCmd(t, opts, binaryName, "book", "add", filepath.Join(libraryDir(testDir), "emma.epub"))

	srv.SetOffline(true)
	testutils.RunCmd(t, opts, binaryName, "push")
	assert.Equal(t, len(loadSettings(t, testDir).Queue), 1, "failed push should be queued")

	testutils.MustWaitCmd(t, opts, testutils.CancelClearQueue, binaryName, "queue", "clear")
	assert.Equal(t, len(loadSettings(t, testDir).Queue), 1, "queue should be kept")

	testutils.MustWaitCmd(t, opts, testutils.ConfirmClearQueue, binaryName, "queue", "clear")
	assert.Equal(t, len(loadSettings(t, testDir).Queue), 0, "queue should be cleared")
}

func TestLibraryDownloadConflict(t *testing.T) {
	srv := newServer(t)
	testDir, opts := setupTestEnv(t, srv)

	testutils.RunCmd(t, opts, binaryName, "login", "--email", testutils.Email, "--password", testutils.Password)

	remote := testutils.BookData("remote copy")
	srv.PutFile(client.RemoteFile{FileKey: "k1", FileName: "emma.epub", BookHash: "remotehash", FileSize: int64(len(remote))}, remote)

	local := testutils.WriteBook(t, libraryDir(testDir), "emma.epub", "local copy")

	testutils.MustWaitCmd(t, opts, testutils.OverwriteConflicts, binaryName, "library", "download")

	got, err := os.ReadFile(local)
	assert.NoError(t, err, "reading emma.epub")
	assert.Equal(t, string(got), string(remote), "local file should be overwritten")
}
