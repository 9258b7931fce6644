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

package database

import (
	"embed"
	"io/fs"
	"strings"

	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationDir = "migrations"

// validateMigrationFilename checks if filename follows format: NNN-description.sql
func validateMigrationFilename(name string) error {
	if !strings.HasSuffix(name, ".sql") {
		return errors.Errorf("invalid migration filename: must end with .sql")
	}

	name = strings.TrimSuffix(name, ".sql")
	parts := strings.SplitN(name, "-", 2)
	if len(parts) != 2 {
		return errors.Errorf("invalid migration filename: must be NNN-description.sql")
	}

	version, description := parts[0], parts[1]
	if len(version) != 3 {
		return errors.Errorf("invalid migration filename: version must be 3 digits, got %s", version)
	}
	for _, c := range version {
		if c < '0' || c > '9' {
			return errors.Errorf("invalid migration filename: version must be numeric, got %s", version)
		}
	}
	if description == "" {
		return errors.Errorf("invalid migration filename: description is required")
	}

	return nil
}

func checkMigrationFiles(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, migrationDir)
	if err != nil {
		return errors.Wrap(err, "reading migration directory")
	}

	for _, e := range entries {
		if err := validateMigrationFilename(e.Name()); err != nil {
			return errors.Wrapf(err, "checking %s", e.Name())
		}
	}

	return nil
}

// Migrate applies all pending migrations and returns the number applied
func Migrate(db *DB) (int, error) {
	if err := checkMigrationFiles(migrationFiles); err != nil {
		return 0, err
	}

	conn, err := db.sqlDB()
	if err != nil {
		return 0, err
	}

	source := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationFiles,
		Root:       migrationDir,
	}

	n, err := migrate.Exec(conn, "sqlite3", source, migrate.Up)
	if err != nil {
		return n, errors.Wrap(err, "running migrations")
	}

	return n, nil
}
