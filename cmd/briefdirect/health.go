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
	"fmt"

	"github.com/lukasdietrich/briefdirect/internal/exchange"
	"github.com/lukasdietrich/briefdirect/internal/log"
	"github.com/lukasdietrich/briefdirect/internal/transport"
)

type healthCommand struct {
	Transports *exchange.Transports
}

func (h *healthCommand) run(ctx context.Context, args []string) error {
	ctx = log.WithTransport(ctx, string(h.Transports.Receiver.Tag()))
	health := h.Transports.Receiver.Health(ctx)

	log.InfoContext(ctx).
		Str("status", string(health.Status)).
		Dur("latency", health.Latency).
		Msg("transport checked")

	if err := printJSON(health); err != nil {
		return err
	}

	if health.Status == transport.Unhealthy {
		return fmt.Errorf("transport %s is unhealthy: %s", h.Transports.Receiver.Tag(), health.Detail)
	}

	return nil
}
