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
	"errors"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/lukasdietrich/briefdirect/internal/certs"
)

type describeCommand struct {
	Store *certs.Store
}

func (d *describeCommand) run(ctx context.Context, args []string) error {
	var files []string

	flags := pflag.NewFlagSet("describe", pflag.ContinueOnError)
	flags.StringSliceVarP(&files, "file", "f", nil, "Describe a pem file instead of a stored address")

	if err := flags.Parse(args); err != nil {
		return err
	}

	if flags.NArg() == 0 && len(files) == 0 {
		return errors.New("describe: at least one address or file is required")
	}

	var infos []certs.Info

	for _, address := range flags.Args() {
		cert, err := d.Store.ResolveForAddress(address)
		if err != nil {
			return err
		}

		infos = append(infos, d.Store.Describe(cert))
	}

	for _, file := range files {
		cert, err := d.Store.Load(file)
		if err != nil {
			return fmt.Errorf("describe %q: %w", file, err)
		}

		infos = append(infos, d.Store.Describe(cert))
	}

	return printJSON(infos)
}
