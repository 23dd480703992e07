// Copyright (C) 2020  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"net/url"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/lukasdietrich/briefdirect/internal/log"
)

const (
	driverName     = "sqlite3"
	changelogTable = "database_changelog"
)

//go:embed changesets/*.sql
var changesetFolder embed.FS

func init() {
	migrate.SetTable(changelogTable)
}

// Options configure the sqlite database.
type Options struct {
	// Filename of the sqlite database. ":memory:" opens a private in-memory database.
	Filename string `mapstructure:"filename"`
	// JournalMode is used for the journal_mode pragma.
	JournalMode string `mapstructure:"journalmode"`
}

// Queryer is an interface for both transactions and the database connection itself.
type Queryer interface {
	sqlx.ExtContext
}

// Tx is a database transaction, which can be rolled back or committed.
type Tx interface {
	Queryer
	Commit() error
	Rollback() error
	RollbackWith(func()) error
}

type tx struct {
	*sqlx.Tx
}

func (t tx) RollbackWith(callback func()) error {
	err := t.Rollback()

	if !errors.Is(err, sql.ErrTxDone) {
		callback()
	}

	return err
}

// Conn is a connection to the sql database.
type Conn interface {
	Queryer
	Begin(context.Context) (Tx, error)
	Close() error
}

type conn struct {
	*sqlx.DB
}

func (c conn) Begin(ctx context.Context) (Tx, error) {
	rawTx, err := c.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	return tx{rawTx}, nil
}

// OpenConnection opens an sqlite3 database connection and applies all pending migrations.
func OpenConnection(opts Options) (Conn, error) {
	sqliteVersion, _, _ := sqlite3.Version()

	dsn := createDataSourceName(opts)
	log.Info().
		Str("driver", driverName).
		Str("version", sqliteVersion).
		Str("dataSourceName", dsn).
		Msg("connecting to database")

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	// sqlite serializes writes anyway, and every connection to ":memory:" is a new database.
	db.SetMaxOpenConns(1)

	n, err := migrate.Exec(db.DB, driverName, loadChangesets(), migrate.Up)
	if err != nil {
		db.Close()
		return nil, err
	}

	if n > 0 {
		log.Info().
			Int("changesets", n).
			Msg("database changesets applied")
	}

	return conn{db}, nil
}

func createDataSourceName(opts Options) string {
	params := make(url.Values)
	params.Add("_foreign_keys", "true")

	if opts.JournalMode != "" {
		params.Add("_journal_mode", opts.JournalMode)
	}

	dsn := url.URL{
		Scheme:   "file",
		Opaque:   opts.Filename,
		RawQuery: params.Encode(),
	}

	return dsn.String()
}

func loadChangesets() migrate.MigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{
		FileSystem: changesetFolder,
		Root:       "changesets",
	}
}
