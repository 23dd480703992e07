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

package transport

import (
	"time"
)

// Options configure the transport adapters.
type Options struct {
	// Variant selects the receiver: pop3, imap or gateway.
	Variant string `mapstructure:"variant"`
	// Timeout bounds a complete operation including connect and authentication.
	Timeout time.Duration `mapstructure:"timeout"`
	// ConnectTimeout bounds establishing a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// DegradedLatency is the health check latency above which a transport is degraded.
	DegradedLatency time.Duration `mapstructure:"degraded_latency"`

	Mailbox MailboxOptions `mapstructure:"mailbox"`
	SMTP    SMTPOptions    `mapstructure:"smtp"`
	Gateway GatewayOptions `mapstructure:"gateway"`
}

// MailboxOptions configure the pop3 and imap receivers.
type MailboxOptions struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// TLS enables implicit tls.
	TLS       bool   `mapstructure:"tls"`
	VerifyTLS bool   `mapstructure:"verify_tls"`
	CAFile    string `mapstructure:"ca_file"`
	// Folder and Criteria are the default imap scope.
	Folder   string `mapstructure:"folder"`
	Criteria string `mapstructure:"criteria"`
	// AckAction is the imap acknowledge action: seen, delete or move.
	AckAction  string `mapstructure:"ack_action"`
	MoveFolder string `mapstructure:"move_folder"`
}

// SMTPOptions configure the outbound submitter of mailbox deployments.
type SMTPOptions struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	StartTLS  bool   `mapstructure:"starttls"`
	VerifyTLS bool   `mapstructure:"verify_tls"`
	// Hostname is announced in HELO/EHLO.
	Hostname string `mapstructure:"hostname"`
}

// GatewayOptions configure the queue gateway.
type GatewayOptions struct {
	URL       string `mapstructure:"url"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	VerifyTLS bool   `mapstructure:"verify_tls"`
}

// Deadline returns the point in time an operation started now has to complete.
func (o Options) Deadline(now time.Time) time.Time {
	if o.Timeout <= 0 {
		return time.Time{}
	}

	return now.Add(o.Timeout)
}
