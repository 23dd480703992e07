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
	"context"
	"crypto/tls"
	"net"
	"sync"
	"time"
)

// Dialer establishes connections for line based protocols. Every connection is bound to the
// deadline of the operation and closed when the context is done.
type Dialer struct {
	ctx            context.Context
	connectTimeout time.Duration
	deadline       time.Time
	tlsConfig      *tls.Config

	mu    sync.Mutex
	conns []net.Conn
}

// NewDialer creates a dialer for one operation. The deadline is the earlier of the context
// deadline and the configured total timeout. If tlsConfig is set, connections use implicit tls.
func NewDialer(ctx context.Context, opts Options, tlsConfig *tls.Config) *Dialer {
	deadline := opts.Deadline(time.Now())
	if ctxDeadline, ok := ctx.Deadline(); ok && (deadline.IsZero() || ctxDeadline.Before(deadline)) {
		deadline = ctxDeadline
	}

	return &Dialer{
		ctx:            ctx,
		connectTimeout: opts.ConnectTimeout,
		deadline:       deadline,
		tlsConfig:      tlsConfig,
	}
}

// Dial connects to address.
func (d *Dialer) Dial(network, address string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.connectTimeout, Deadline: d.deadline}

	conn, err := dialer.DialContext(d.ctx, network, address)
	if err != nil {
		return nil, err
	}

	if !d.deadline.IsZero() {
		if err := conn.SetDeadline(d.deadline); err != nil {
			conn.Close()
			return nil, err
		}
	}

	if d.tlsConfig != nil {
		tlsConn := tls.Client(conn, d.tlsConfig)

		if err := tlsConn.HandshakeContext(d.ctx); err != nil {
			conn.Close()
			return nil, err
		}

		conn = tlsConn
	}

	stop := context.AfterFunc(d.ctx, func() { conn.Close() })
	conn = &boundConn{Conn: conn, stop: stop, deadline: d.deadline}

	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()

	return conn, nil
}

// Deadline returns the deadline of the operation. The zero time means no deadline.
func (d *Dialer) Deadline() time.Time {
	return d.deadline
}

// Close closes every connection opened by the dialer.
func (d *Dialer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, conn := range d.conns {
		conn.Close()
	}

	d.conns = nil
}

// boundConn never extends its deadlines past the deadline of the operation. Protocol clients
// reset deadlines per command.
type boundConn struct {
	net.Conn
	once     sync.Once
	stop     func() bool
	deadline time.Time
}

func (c *boundConn) clamp(t time.Time) time.Time {
	if !c.deadline.IsZero() && (t.IsZero() || t.After(c.deadline)) {
		return c.deadline
	}

	return t
}

func (c *boundConn) SetDeadline(t time.Time) error {
	return c.Conn.SetDeadline(c.clamp(t))
}

func (c *boundConn) SetReadDeadline(t time.Time) error {
	return c.Conn.SetReadDeadline(c.clamp(t))
}

func (c *boundConn) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(c.clamp(t))
}

func (c *boundConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(func() { c.stop() })

	return err
}
