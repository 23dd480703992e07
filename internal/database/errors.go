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
	"database/sql"
	"errors"

	"github.com/mattn/go-sqlite3"
)

// IsErrNoRows reports whether err, or an error it wraps, is an empty result set.
func IsErrNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsErrUnique reports whether err is sqlite rejecting a row because of a unique index or
// the primary key.
func IsErrUnique(err error) bool {
	switch sqliteConstraint(err) {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return true
	default:
		return false
	}
}

// sqliteConstraint extracts the extended result code of a sqlite constraint violation. Any
// other error yields zero.
func sqliteConstraint(err error) sqlite3.ErrNoExtended {
	var sqliteErr sqlite3.Error

	if !errors.As(err, &sqliteErr) || sqliteErr.Code != sqlite3.ErrConstraint {
		return 0
	}

	return sqliteErr.ExtendedCode
}
