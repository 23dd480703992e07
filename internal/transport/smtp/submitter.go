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

package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/lukasdietrich/briefdirect/internal/log"
	"github.com/lukasdietrich/briefdirect/internal/metrics"
	"github.com/lukasdietrich/briefdirect/internal/models"
	"github.com/lukasdietrich/briefdirect/internal/transport"
)

// tag labels errors and metrics of the submitter. Outbound mail belongs to the mailbox
// deployments, so it shares their label space.
const tag = models.TransportTag("smtp")

const defaultHostname = "localhost"

var _ transport.Sender = (*Submitter)(nil)

// Submitter hands protected messages to the smtp relay of a mailbox deployment.
type Submitter struct {
	opts    transport.Options
	metrics *metrics.Metrics
}

// NewSubmitter creates a submitter for the configured relay.
func NewSubmitter(opts transport.Options, m *metrics.Metrics) *Submitter {
	return &Submitter{opts: opts, metrics: m}
}

// Submit delivers data to all recipients. The message is either accepted for every recipient or
// the submission fails.
func (s *Submitter) Submit(ctx context.Context, from string, to []string, data []byte) (err error) {
	defer func(start time.Time) {
		s.metrics.ObserveTransport(string(tag), "submit", time.Since(start), err)
	}(time.Now())

	if len(to) == 0 {
		return models.NewValidationError("to", "must not be empty")
	}

	host := s.opts.SMTP.Host
	dialer := transport.NewDialer(ctx, s.opts, nil)
	defer dialer.Close()

	conn, err := dialer.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(s.opts.SMTP.Port)))
	if err != nil {
		return transport.NewError(tag, transport.KindConnectFailure, err)
	}

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return classify(transport.KindConnectFailure, err)
	}

	defer client.Close()

	if err := s.initClient(client, host); err != nil {
		return err
	}

	if err := client.Mail(from); err != nil {
		return classify(transport.KindProtocolFailure, err)
	}

	for _, recipient := range to {
		if err := client.Rcpt(recipient); err != nil {
			return classify(transport.KindProtocolFailure, err)
		}
	}

	if err := copyData(client, data); err != nil {
		return classify(transport.KindProtocolFailure, err)
	}

	if err := client.Quit(); err != nil {
		log.DebugContext(ctx).Err(err).Msg("quit after submission failed")
	}

	log.InfoContext(ctx).
		Str("from", from).
		Int("recipients", len(to)).
		Int("size", len(data)).
		Msg("message submitted")

	return nil
}

// initClient says hello to the server, upgrades to tls if offered and authenticates if
// credentials are configured.
func (s *Submitter) initClient(client *smtp.Client, host string) error {
	hostname := s.opts.SMTP.Hostname
	if hostname == "" {
		hostname = defaultHostname
	}

	if err := client.Hello(hostname); err != nil {
		return classify(transport.KindProtocolFailure, err)
	}

	if ok, _ := client.Extension("STARTTLS"); ok && s.opts.SMTP.StartTLS {
		config := &tls.Config{
			ServerName:         host,
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: !s.opts.SMTP.VerifyTLS, // nolint:gosec
		}

		if err := client.StartTLS(config); err != nil {
			return classify(transport.KindConnectFailure, err)
		}
	}

	if s.opts.SMTP.Username == "" {
		return nil
	}

	auth := smtp.PlainAuth("", s.opts.SMTP.Username, s.opts.SMTP.Password, host)
	if err := client.Auth(auth); err != nil {
		return classify(transport.KindAuthFailure, err)
	}

	return nil
}

func copyData(client *smtp.Client, data []byte) error {
	w, err := client.Data()
	if err != nil {
		return err
	}

	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}

	return w.Close()
}

// classify maps smtp reply codes: 4xx replies are temporary, 5xx replies permanent. Reply 535
// always means rejected credentials.
func classify(kind transport.Kind, err error) error {
	var protoErr *textproto.Error
	if !errors.As(err, &protoErr) {
		return transport.NewError(tag, kind, err)
	}

	if protoErr.Code == 535 {
		kind = transport.KindAuthFailure
	}

	if kind == transport.KindConnectFailure {
		kind = transport.KindProtocolFailure
	}

	return &transport.Error{
		Kind:      kind,
		Transport: tag,
		Temporary: protoErr.Code >= 400 && protoErr.Code < 500,
		Err:       err,
	}
}
