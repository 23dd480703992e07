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
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// errRowCount is returned when a statement, that must touch exactly one row, touches several.
var errRowCount = errors.New("database: statement affected more than one row")

// fetchOne scans the first row of a query into a new T.
func fetchOne[T any](ctx context.Context, q Queryer, query string, args ...any) (*T, error) {
	var row T

	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		return nil, err
	}

	return &row, nil
}

// fetchAll scans every row of a query. A query without rows yields a nil slice.
func fetchAll[T any](ctx context.Context, q Queryer, query string, args ...any) ([]T, error) {
	var rows []T

	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, err
	}

	return rows, nil
}

// insertNamed runs a named insert of a single row and returns the id sqlite assigned to it.
func insertNamed(ctx context.Context, q Queryer, query string, arg any) (int64, error) {
	result, err := sqlx.NamedExecContext(ctx, q, query, arg)
	if err != nil {
		return 0, err
	}

	if err := expectSingleRow(result); err != nil {
		return 0, err
	}

	return result.LastInsertId()
}

// updateNamed runs a named statement, that must change exactly one row. sql.ErrNoRows is
// returned if nothing matched.
func updateNamed(ctx context.Context, q Queryer, query string, arg any) error {
	result, err := sqlx.NamedExecContext(ctx, q, query, arg)
	if err != nil {
		return err
	}

	return expectSingleRow(result)
}

func expectSingleRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}

	switch {
	case n == 0:
		return sql.ErrNoRows
	case n > 1:
		return fmt.Errorf("%w: %d", errRowCount, n)
	default:
		return nil
	}
}
