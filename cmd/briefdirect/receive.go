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

	"github.com/spf13/pflag"

	"github.com/lukasdietrich/briefdirect/internal/database"
	"github.com/lukasdietrich/briefdirect/internal/exchange"
	"github.com/lukasdietrich/briefdirect/internal/transport"
)

type receiveCommand struct {
	Options  transport.Options
	Conn     database.Conn
	Receiver *exchange.Receiver
}

func (r *receiveCommand) run(ctx context.Context, args []string) error {
	defer r.Conn.Close()

	opts, err := r.parseOptions(args)
	if err != nil {
		return err
	}

	received, err := r.Receiver.Receive(ctx, opts)
	if printErr := printJSON(received); printErr != nil && err == nil {
		err = printErr
	}

	return err
}

func (r *receiveCommand) parseOptions(args []string) (exchange.ReceiveOptions, error) {
	var (
		opts exchange.ReceiveOptions
		mode string
	)

	flags := pflag.NewFlagSet("receive", pflag.ContinueOnError)
	flags.StringVar(&opts.Scope.Folder, "folder", "",
		fmt.Sprintf("Imap folder to fetch from (default %q)", r.Options.Mailbox.Folder))
	flags.StringVar(&opts.Scope.Criteria, "criteria", "",
		fmt.Sprintf("Imap search criteria (default %q)", r.Options.Mailbox.Criteria))
	flags.IntVarP(&opts.Limit, "limit", "n", 0, "Maximum number of messages, 0 fetches all")
	flags.StringVar(&mode, "mode", transport.ModePeek.String(), "Consumption mode: peek, mark or delete")
	flags.BoolVar(&opts.Persist, "persist", true, "Store messages in the archive")
	flags.BoolVar(&opts.Acknowledge, "ack", false, "Acknowledge processed messages")

	if err := flags.Parse(args); err != nil {
		return opts, err
	}

	parsed, err := transport.ParseMode(mode)
	if err != nil {
		return opts, err
	}

	opts.Mode = parsed
	return opts, nil
}
