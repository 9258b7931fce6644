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

package infra

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/readsync/readsync/pkg/cli/client"
	"github.com/readsync/readsync/pkg/cli/config"
	"github.com/readsync/readsync/pkg/cli/consts"
	"github.com/readsync/readsync/pkg/cli/context"
	"github.com/readsync/readsync/pkg/cli/database"
	"github.com/readsync/readsync/pkg/cli/log"
	"github.com/readsync/readsync/pkg/cli/settings"
	"github.com/readsync/readsync/pkg/cli/utils"
	"github.com/readsync/readsync/pkg/clock"
	"github.com/readsync/readsync/pkg/dirs"
	"github.com/spf13/cobra"
)

// EnvAPIEndpoint overrides the configured API endpoint
const EnvAPIEndpoint = "READSYNC_API_ENDPOINT"

// RunEFunc is a function type of readsync commands
type RunEFunc func(*cobra.Command, []string) error

func getDBPath(paths context.Paths, customPath string) string {
	if customPath != "" {
		return customPath
	}

	return filepath.Join(paths.Data, consts.AppDirName, consts.DBFileName)
}

// newBaseCtx creates a minimal context with paths and database connection.
// This base context is used for file and database initialization before
// being enriched with config values by setupCtx.
func newBaseCtx(versionTag, customDBPath string) (context.ReadsyncCtx, error) {
	paths := context.Paths{
		Home:   dirs.Home,
		Config: dirs.ConfigHome,
		Data:   dirs.DataHome,
		Cache:  dirs.CacheHome,
	}

	if err := context.InitDirs(paths); err != nil {
		return context.ReadsyncCtx{}, errors.Wrap(err, "creating the readsync dirs")
	}

	db, err := database.Open(getDBPath(paths, customDBPath))
	if err != nil {
		return context.ReadsyncCtx{}, errors.Wrap(err, "connecting to db")
	}

	ctx := context.ReadsyncCtx{
		Paths:   paths,
		Version: versionTag,
		DB:      db,
		Clock:   clock.New(),
	}

	return ctx, nil
}

// Init initializes the readsync environment and returns a new readsync context.
// apiEndpoint is used when creating a new config file (e.g., from ldflags during tests).
func Init(versionTag, apiEndpoint, dbPath string) (*context.ReadsyncCtx, error) {
	ctx, err := newBaseCtx(versionTag, dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "initializing a context")
	}

	if err := initConfigFile(ctx.Paths, apiEndpoint); err != nil {
		return nil, errors.Wrap(err, "generating the config file")
	}
	if err := loadEnv(ctx.Paths); err != nil {
		return nil, errors.Wrap(err, "loading the env file")
	}

	n, err := database.Migrate(ctx.DB)
	if err != nil {
		return nil, errors.Wrap(err, "running migration")
	}
	log.Debug("applied %d migrations\n", n)

	if err := InitSystem(ctx.DB); err != nil {
		return nil, errors.Wrap(err, "initializing system data")
	}

	ctx, err = setupCtx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "setting up the context")
	}

	log.Debug("context: %+v\n", context.Redact(ctx))

	return &ctx, nil
}

// setupCtx enriches the base context with values from the config file and the
// database, and wires the sync components.
func setupCtx(ctx context.ReadsyncCtx) (context.ReadsyncCtx, error) {
	cf, err := config.Read(ctx.Paths)
	if err != nil {
		return ctx, errors.Wrap(err, "reading config")
	}

	interval, err := cf.Interval()
	if err != nil {
		return ctx, errors.Wrap(err, "reading config")
	}

	var deviceID string
	if err := database.GetSystem(ctx.DB, consts.SystemDeviceID, &deviceID); err != nil {
		return ctx, errors.Wrap(err, "finding device id")
	}

	endpoint := cf.APIEndpoint
	if v := os.Getenv(EnvAPIEndpoint); v != "" {
		endpoint = v
	}

	libraryDir := cf.LibraryDir
	if libraryDir == "" {
		libraryDir = config.Default(ctx.Paths, "").LibraryDir
	}
	if err := utils.EnsureDir(libraryDir); err != nil {
		return ctx, errors.Wrap(err, "creating the library dir")
	}

	ctx.APIEndpoint = endpoint
	ctx.DeviceID = deviceID
	ctx.LibraryDir = libraryDir
	ctx.SyncInterval = interval
	ctx.HTTPClient = client.NewRateLimitedHTTPClient()
	ctx = context.Wire(ctx)

	if err := applyAutoSync(ctx.Settings, cf.AutoSync); err != nil {
		return ctx, err
	}

	return ctx, nil
}

// applyAutoSync records the auto-sync flag of the config file in the settings
func applyAutoSync(store settings.Store, enabled bool) error {
	s, err := store.Load()
	if err != nil {
		return errors.Wrap(err, "loading settings")
	}
	if s.AutoSync == enabled {
		return nil
	}

	_, err = store.Update(func(s *settings.Settings) error {
		s.AutoSync = enabled
		return nil
	})

	return errors.Wrap(err, "saving auto sync")
}

// loadEnv loads the optional dotenv file in the config directory. Variables that are
// already set in the environment take precedence.
func loadEnv(paths context.Paths) error {
	path := filepath.Join(paths.Config, consts.AppDirName, consts.EnvFilename)
	ok, err := utils.FileExists(path)
	if err != nil {
		return errors.Wrap(err, "checking if env file exists")
	}
	if !ok {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "loading %s", path)
	}

	return nil
}

func initSystemKV(db *database.DB, key string, val string) error {
	var count int
	if err := db.QueryRow("SELECT count(*) FROM system WHERE key = ?", key).Scan(&count); err != nil {
		return errors.Wrapf(err, "counting %s", key)
	}

	if count > 0 {
		return nil
	}

	if _, err := db.Exec("INSERT INTO system (key, value) VALUES (?, ?)", key, val); err != nil {
		return errors.Wrapf(err, "inserting %s %s", key, val)
	}

	return nil
}

// InitSystem inserts system data if missing
func InitSystem(db *database.DB) error {
	log.Debug("initializing the system\n")

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning a transaction")
	}

	deviceID, err := utils.GenerateUUID()
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "generating a device id")
	}

	if err := initSystemKV(tx, consts.SystemDeviceID, deviceID); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "initializing system config for %s", consts.SystemDeviceID)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}

	return nil
}

// initConfigFile populates a new config file if it does not exist yet
func initConfigFile(paths context.Paths, apiEndpoint string) error {
	path := config.GetPath(paths)
	ok, err := utils.FileExists(path)
	if err != nil {
		return errors.Wrap(err, "checking if config exists")
	}
	if ok {
		return nil
	}

	if err := config.Write(paths, config.Default(paths, apiEndpoint)); err != nil {
		return errors.Wrap(err, "writing config")
	}

	return nil
}
