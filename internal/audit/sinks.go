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

package audit

import (
	"github.com/spf13/afero"

	"github.com/lukasdietrich/briefdirect/internal/database"
)

// Options configure the sinks of the audit trail.
type Options struct {
	// Foldername enables the file sink when set.
	Foldername string `mapstructure:"foldername"`
	// Database enables the database sink.
	Database bool `mapstructure:"database"`
}

// NewSinks creates all enabled sinks.
func NewSinks(fs afero.Fs, conn database.Conn, dao database.AuditEventDao, opts Options) ([]Sink, error) {
	var sinks []Sink

	if opts.Foldername != "" {
		fileSink, err := NewFileSink(fs, opts.Foldername)
		if err != nil {
			return nil, err
		}

		sinks = append(sinks, fileSink)
	}

	if opts.Database {
		sinks = append(sinks, NewDatabaseSink(conn, dao))
	}

	return sinks, nil
}
