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

	"github.com/lukasdietrich/briefdirect/internal/exchange"
	"github.com/lukasdietrich/briefdirect/internal/transport"
)

var errNoQueue = errors.New("the configured transport is not a queue gateway")

type statusCommand struct {
	Transports *exchange.Transports
}

func (s *statusCommand) run(ctx context.Context, args []string) error {
	if s.Transports.Queue == nil {
		return errNoQueue
	}

	if len(args) == 0 {
		return errors.New("status: at least one tracking id is required")
	}

	reports := make([]*transport.StatusReport, 0, len(args))

	for _, id := range args {
		report, err := s.Transports.Queue.Status(ctx, id)
		if err != nil {
			return err
		}

		reports = append(reports, report)
	}

	return printJSON(reports)
}
