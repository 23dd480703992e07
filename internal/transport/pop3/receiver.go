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

package pop3

import (
	"context"
	"crypto/tls"
	"errors"
	"strings"
	"time"

	pop3client "github.com/knadh/go-pop3"

	"github.com/lukasdietrich/briefdirect/internal/log"
	"github.com/lukasdietrich/briefdirect/internal/metrics"
	"github.com/lukasdietrich/briefdirect/internal/models"
	"github.com/lukasdietrich/briefdirect/internal/transport"
)

const tag = models.TransportPOP3

var _ transport.Receiver = (*Receiver)(nil)

// Receiver retrieves messages from a pop3 maildrop. Every operation uses its own session.
// Messages are identified by their UIDL, because message numbers are only valid in one session.
type Receiver struct {
	opts      transport.Options
	tlsConfig *tls.Config
	metrics   *metrics.Metrics
}

// NewReceiver creates a pop3 receiver. tlsConfig enables implicit tls if not nil.
func NewReceiver(opts transport.Options, tlsConfig *tls.Config, m *metrics.Metrics) *Receiver {
	return &Receiver{
		opts:      opts,
		tlsConfig: tlsConfig,
		metrics:   m,
	}
}

// Tag implements transport.Receiver.
func (r *Receiver) Tag() models.TransportTag {
	return tag
}

// session is an authenticated connection to the maildrop.
type session struct {
	conn   *pop3client.Conn
	dialer *transport.Dialer
}

func (r *Receiver) open(ctx context.Context) (*session, error) {
	dialer := transport.NewDialer(ctx, r.opts, r.tlsConfig)
	client := pop3client.New(pop3client.Opt{
		Host:        r.opts.Mailbox.Host,
		Port:        r.opts.Mailbox.Port,
		DialTimeout: r.opts.ConnectTimeout,
		Dialer:      dialer,
	})

	conn, err := client.NewConn()
	if err != nil {
		dialer.Close()
		return nil, transport.NewError(tag, transport.KindConnectFailure, err)
	}

	if err := conn.Auth(r.opts.Mailbox.Username, r.opts.Mailbox.Password); err != nil {
		dialer.Close()
		return nil, transport.NewError(tag, transport.KindAuthFailure, err)
	}

	return &session{conn: conn, dialer: dialer}, nil
}

// commit ends the session with QUIT, which applies pending deletions.
func (s *session) commit() error {
	defer s.dialer.Close()

	if err := s.conn.Quit(); err != nil {
		return transport.NewError(tag, transport.KindProtocolFailure, err)
	}

	return nil
}

// abort drops the connection without QUIT, so pending deletions are discarded by the server.
func (s *session) abort() {
	s.dialer.Close()
}

// Count implements transport.Receiver.
func (r *Receiver) Count(ctx context.Context, scope transport.Scope) (count int, err error) {
	defer r.observe("count", time.Now(), &err)

	if !scope.IsAll() {
		return 0, transport.Unsupported(tag, "criteria %q", scope.Criteria)
	}

	s, err := r.open(ctx)
	if err != nil {
		return 0, err
	}

	count, _, err = s.conn.Stat()
	if err != nil {
		s.abort()
		return 0, transport.NewError(tag, transport.KindProtocolFailure, err)
	}

	return count, s.commit()
}

// Fetch implements transport.Receiver. In delete mode every retrieved message is marked for
// deletion and the deletions are committed when the session ends.
func (r *Receiver) Fetch(ctx context.Context, scope transport.Scope, limit int, mode transport.Mode) (messages []transport.RawMessage, err error) {
	defer r.observe("fetch", time.Now(), &err)

	ctx = log.WithTransport(ctx, string(tag))

	if mode == transport.ModeMark {
		return nil, transport.Unsupported(tag, "mode %s", mode)
	}

	if !scope.IsAll() {
		return nil, transport.Unsupported(tag, "criteria %q", scope.Criteria)
	}

	s, err := r.open(ctx)
	if err != nil {
		return nil, err
	}

	listing, err := list(s.conn)
	if err != nil {
		s.abort()
		return nil, err
	}

	if limit > 0 && len(listing) > limit {
		listing = listing[:limit]
	}

	for _, entry := range listing {
		buf, err := s.conn.RetrRaw(entry.ID)
		if err != nil {
			s.abort()
			return messages, transport.WithNativeID(transport.NewError(tag, transport.KindProtocolFailure, err), entry.UID)
		}

		if mode == transport.ModeDelete {
			if err := s.conn.Dele(entry.ID); err != nil {
				s.abort()
				return messages, transport.WithNativeID(transport.NewError(tag, transport.KindProtocolFailure, err), entry.UID)
			}
		}

		messages = append(messages, transport.RawMessage{
			Transport:  tag,
			NativeID:   entry.UID,
			Size:       int64(entry.Size),
			ReceivedAt: time.Now().UTC(),
			Content:    buf.Bytes(),
		})
	}

	if err := s.commit(); err != nil {
		return messages, err
	}

	if mode == transport.ModeDelete {
		for i := range messages {
			messages[i].Consumed = true
		}
	}

	log.DebugContext(ctx).
		Int("count", len(messages)).
		Stringer("mode", mode).
		Msg("messages retrieved")

	return messages, nil
}

// Acknowledge implements transport.Receiver by deleting the message with the given UIDL.
func (r *Receiver) Acknowledge(ctx context.Context, nativeID string) (err error) {
	defer r.observe("acknowledge", time.Now(), &err)

	s, err := r.open(ctx)
	if err != nil {
		return transport.WithNativeID(err, nativeID)
	}

	listing, err := list(s.conn)
	if err != nil {
		s.abort()
		return transport.WithNativeID(err, nativeID)
	}

	for _, entry := range listing {
		if entry.UID != nativeID {
			continue
		}

		if err := s.conn.Dele(entry.ID); err != nil {
			s.abort()
			return transport.WithNativeID(transport.NewError(tag, transport.KindProtocolFailure, err), nativeID)
		}

		log.DebugContext(ctx).Str("uidl", nativeID).Msg("message deleted")
		return transport.WithNativeID(s.commit(), nativeID)
	}

	log.DebugContext(ctx).Str("uidl", nativeID).Msg("message already acknowledged")
	return s.commit()
}

// Health implements transport.Receiver.
func (r *Receiver) Health(ctx context.Context) transport.Health {
	return transport.CheckHealth(ctx, r.opts.DegradedLatency, func(ctx context.Context) error {
		_, err := r.Count(ctx, transport.Scope{})
		return err
	})
}

func (r *Receiver) observe(operation string, start time.Time, err *error) {
	r.metrics.ObserveTransport(string(tag), operation, time.Since(start), *err)
}

type entry struct {
	ID   int
	UID  string
	Size int
}

// list joins the UIDL and LIST responses in maildrop order.
func list(conn *pop3client.Conn) ([]entry, error) {
	uids, err := conn.Uidl(0)
	if err != nil {
		return nil, transport.NewError(tag, transport.KindProtocolFailure, err)
	}

	sizes, err := conn.List(0)
	if err != nil {
		return nil, transport.NewError(tag, transport.KindProtocolFailure, err)
	}

	sizeByID := make(map[int]int, len(sizes))
	for _, msg := range sizes {
		sizeByID[msg.ID] = msg.Size
	}

	entries := make([]entry, 0, len(uids))
	for _, msg := range uids {
		uid := strings.TrimSpace(msg.UID)
		if uid == "" {
			return nil, transport.NewError(tag, transport.KindProtocolFailure, errors.New("empty uidl"))
		}

		entries = append(entries, entry{ID: msg.ID, UID: uid, Size: sizeByID[msg.ID]})
	}

	return entries, nil
}
