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

package exchange

import (
	"fmt"

	"github.com/spf13/afero"

	"github.com/lukasdietrich/briefdirect/internal/metrics"
	"github.com/lukasdietrich/briefdirect/internal/models"
	"github.com/lukasdietrich/briefdirect/internal/transport"
	"github.com/lukasdietrich/briefdirect/internal/transport/gateway"
	"github.com/lukasdietrich/briefdirect/internal/transport/imap"
	"github.com/lukasdietrich/briefdirect/internal/transport/pop3"
	"github.com/lukasdietrich/briefdirect/internal/transport/smtp"
)

// Transports are the adapters of the configured variant. Queue is only set for the gateway
// variant, Submitter only for mailbox variants with a configured smtp host.
type Transports struct {
	Receiver  transport.Receiver
	Queue     transport.Queue
	Submitter transport.Sender
}

// NewTransports creates the adapters selected by opts.Variant.
func NewTransports(fs afero.Fs, opts transport.Options, m *metrics.Metrics) (*Transports, error) {
	switch models.TransportTag(opts.Variant) {
	case models.TransportPOP3, models.TransportIMAP:
		tlsConfig, err := transport.MailboxTLSConfig(fs, opts.Mailbox)
		if err != nil {
			return nil, err
		}

		var t Transports

		if models.TransportTag(opts.Variant) == models.TransportPOP3 {
			t.Receiver = pop3.NewReceiver(opts, tlsConfig, m)
		} else {
			t.Receiver = imap.NewReceiver(opts, tlsConfig, m)
		}

		if opts.SMTP.Host != "" {
			t.Submitter = smtp.NewSubmitter(opts, m)
		}

		return &t, nil

	case models.TransportGateway:
		client, err := gateway.NewClient(opts, m)
		if err != nil {
			return nil, err
		}

		return &Transports{Receiver: client, Queue: client}, nil

	default:
		return nil, models.NewValidationError("transport.variant",
			fmt.Sprintf("unknown variant %q", opts.Variant))
	}
}
