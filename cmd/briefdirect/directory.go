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

package main

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/lukasdietrich/briefdirect/internal/exchange"
	"github.com/lukasdietrich/briefdirect/internal/transport"
)

type directoryCommand struct {
	Transports *exchange.Transports
}

func (d *directoryCommand) run(ctx context.Context, args []string) error {
	if d.Transports.Queue == nil {
		return errNoQueue
	}

	var query transport.DirectoryQuery

	flags := pflag.NewFlagSet("directory", pflag.ContinueOnError)
	flags.StringVarP(&query.Query, "query", "q", "", "Free text search")
	flags.StringVar(&query.DirectAddress, "address", "", "Exact direct address")
	flags.StringVar(&query.NPI, "npi", "", "National provider identifier")
	flags.StringVar(&query.Organization, "organization", "", "Organization name")
	flags.IntVarP(&query.Limit, "limit", "n", 20, "Maximum number of entries")

	if err := flags.Parse(args); err != nil {
		return err
	}

	entries, err := d.Transports.Queue.DirectorySearch(ctx, query)
	if err != nil {
		return err
	}

	return printJSON(entries)
}
