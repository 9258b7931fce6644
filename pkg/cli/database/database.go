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

// Package database provides the local SQLite storage for readsync
package database

import (
	"database/sql"
	"strings"

	// sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SQLCommon is the minimal interface shared by sql.DB and sql.Tx
type SQLCommon interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// DB wraps a database connection or a transaction on it
type DB struct {
	Conn     SQLCommon
	Filepath string
}

// connParams are applied to every connection. Transactions take the write lock
// when they begin so that read-modify-write sequences from separate processes
// do not interleave.
const connParams = "_foreign_keys=on&_txlock=immediate&_busy_timeout=5000"

func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + connParams
	}

	return path + "?" + connParams
}

// Open opens a connection to the SQLite database at the given path
func Open(filepath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn(filepath))
	if err != nil {
		return nil, errors.Wrap(err, "opening db connection")
	}

	// A single connection keeps in-memory databases and writes from concurrent
	// goroutines consistent.
	conn.SetMaxOpenConns(1)

	return &DB{Conn: conn, Filepath: filepath}, nil
}

// Exec executes a query without returning rows
func (d *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return d.Conn.Exec(query, args...)
}

// Query executes a query that returns rows
func (d *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return d.Conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row
func (d *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return d.Conn.QueryRow(query, args...)
}

// Begin begins a transaction. The returned DB must be committed or rolled back.
func (d *DB) Begin() (*DB, error) {
	conn, ok := d.Conn.(*sql.DB)
	if !ok {
		return nil, errors.New("nested transactions are not supported")
	}

	tx, err := conn.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "beginning a transaction")
	}

	return &DB{Conn: tx, Filepath: d.Filepath}, nil
}

// Commit commits the transaction
func (d *DB) Commit() error {
	tx, ok := d.Conn.(*sql.Tx)
	if !ok {
		return errors.New("not a transaction")
	}

	return tx.Commit()
}

// Rollback rolls back the transaction
func (d *DB) Rollback() error {
	tx, ok := d.Conn.(*sql.Tx)
	if !ok {
		return errors.New("not a transaction")
	}

	return tx.Rollback()
}

// Close closes the underlying connection
func (d *DB) Close() error {
	conn, ok := d.Conn.(*sql.DB)
	if !ok {
		return errors.New("cannot close a transaction")
	}

	return conn.Close()
}

func (d *DB) sqlDB() (*sql.DB, error) {
	conn, ok := d.Conn.(*sql.DB)
	if !ok {
		return nil, errors.New("operation is not allowed inside a transaction")
	}

	return conn, nil
}
