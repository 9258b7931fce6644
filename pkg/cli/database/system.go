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
	"database/sql"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// GetSystem scans the value of the system key into dest. It returns sql.ErrNoRows,
// wrapped, if the key is absent.
func GetSystem(db *DB, key string, dest interface{}) error {
	var raw string
	err := db.QueryRow("SELECT value FROM system WHERE key = ?", key).Scan(&raw)
	if err != nil {
		return errors.Wrapf(err, "finding system value %s", key)
	}

	switch d := dest.(type) {
	case *string:
		*d = raw
	case *int:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return errors.Wrapf(err, "parsing system value %s", key)
		}
		*d = v
	case *int64:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "parsing system value %s", key)
		}
		*d = v
	case *[]byte:
		*d = []byte(raw)
	default:
		return errors.Errorf("unsupported destination type %T", dest)
	}

	return nil
}

// UpsertSystem inserts or replaces the value of the system key
func UpsertSystem(db *DB, key string, val interface{}) error {
	var s string
	switch v := val.(type) {
	case []byte:
		s = string(v)
	default:
		s = fmt.Sprintf("%v", v)
	}

	_, err := db.Exec("INSERT INTO system (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value", key, s)
	if err != nil {
		return errors.Wrapf(err, "saving system value %s", key)
	}

	return nil
}

// DeleteSystem deletes the system key
func DeleteSystem(db *DB, key string) error {
	if _, err := db.Exec("DELETE FROM system WHERE key = ?", key); err != nil {
		return errors.Wrapf(err, "deleting system value %s", key)
	}

	return nil
}

// IsNotFound returns true if the error is caused by a missing row
func IsNotFound(err error) bool {
	return errors.Cause(err) == sql.ErrNoRows
}
