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
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/lukasdietrich/briefdirect/internal/models"
	"github.com/lukasdietrich/briefdirect/internal/transport"
)

func TestSubmitterTestSuite(t *testing.T) {
	suite.Run(t, new(SubmitterTestSuite))
}

type SubmitterTestSuite struct {
	suite.Suite

	relay    *fakeRelay
	listener net.Listener
}

func (s *SubmitterTestSuite) SetupTest() {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)

	s.listener = listener
	s.relay = &fakeRelay{username: "b@y.direct", password: "secret"}

	go s.relay.serve(listener)
}

func (s *SubmitterTestSuite) TearDownTest() {
	s.listener.Close()
}

func (s *SubmitterTestSuite) submitter(username, password string) *Submitter {
	return NewSubmitter(transport.Options{
		Timeout:        5 * time.Second,
		ConnectTimeout: time.Second,
		SMTP: transport.SMTPOptions{
			Host:     "127.0.0.1",
			Port:     s.listener.Addr().(*net.TCPAddr).Port,
			Username: username,
			Password: password,
			StartTLS: true,
			Hostname: "briefdirect.test",
		},
	}, nil)
}

func (s *SubmitterTestSuite) TestSubmit() {
	data := []byte("Content-Type: application/pkcs7-mime\r\n\r\nMIIB\r\n")

	err := s.submitter("b@y.direct", "secret").Submit(context.Background(), "b@y.direct", []string{"a@x.direct", "c@x.direct"}, data)
	s.Require().NoError(err)

	deliveries := s.relay.deliveries()
	s.Require().Len(deliveries, 1)

	delivered := deliveries[0]
	s.Equal("b@y.direct", delivered.from)
	s.Equal([]string{"a@x.direct", "c@x.direct"}, delivered.to)
	s.Equal(string(data), delivered.data)
	s.Equal("briefdirect.test", delivered.helo)
	s.True(delivered.authenticated)
}

func (s *SubmitterTestSuite) TestSubmitWithoutCredentials() {
	err := s.submitter("", "").Submit(context.Background(), "b@y.direct", []string{"a@x.direct"}, []byte("x\r\n"))
	s.Require().NoError(err)

	s.False(s.relay.deliveries()[0].authenticated)
}

func (s *SubmitterTestSuite) TestSubmitWithoutRecipients() {
	err := s.submitter("", "").Submit(context.Background(), "b@y.direct", nil, []byte("x\r\n"))
	s.ErrorIs(err, models.ErrValidation)
}

func (s *SubmitterTestSuite) TestAuthFailure() {
	err := s.submitter("b@y.direct", "wrong").Submit(context.Background(), "b@y.direct", []string{"a@x.direct"}, []byte("x\r\n"))
	s.ErrorIs(err, transport.ErrAuthFailure)
	s.False(transport.IsRetryable(err))
	s.Empty(s.relay.deliveries())
}

func (s *SubmitterTestSuite) TestRejectedRecipient() {
	err := s.submitter("", "").Submit(context.Background(), "b@y.direct", []string{"unknown@x.direct"}, []byte("x\r\n"))
	s.ErrorIs(err, transport.ErrProtocolFailure)
	s.False(transport.IsRetryable(err))
}

func (s *SubmitterTestSuite) TestDeferredRecipient() {
	err := s.submitter("", "").Submit(context.Background(), "b@y.direct", []string{"busy@x.direct"}, []byte("x\r\n"))
	s.ErrorIs(err, transport.ErrProtocolFailure)
	s.True(transport.IsRetryable(err))
}

func (s *SubmitterTestSuite) TestConnectFailure() {
	s.listener.Close()

	err := s.submitter("", "").Submit(context.Background(), "b@y.direct", []string{"a@x.direct"}, []byte("x\r\n"))
	s.ErrorIs(err, transport.ErrConnectFailure)
	s.True(transport.IsRetryable(err))
}

type delivery struct {
	helo          string
	from          string
	to            []string
	data          string
	authenticated bool
}

// fakeRelay is a minimal rfc5321 server, that offers AUTH PLAIN but no STARTTLS.
type fakeRelay struct {
	mu        sync.Mutex
	username  string
	password  string
	delivered []delivery
}

func (f *fakeRelay) deliveries() []delivery {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]delivery(nil), f.delivered...)
}

func (f *fakeRelay) serve(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}

		go f.handle(conn)
	}
}

func (f *fakeRelay) handle(conn net.Conn) {
	defer conn.Close()

	var (
		r       = bufio.NewReader(conn)
		current delivery
	)

	reply := func(format string, args ...interface{}) {
		fmt.Fprintf(conn, format+"\r\n", args...)
	}

	reply("220 fake relay ready")

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}

		line = strings.TrimRight(line, "\r\n")
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])

		switch verb {
		case "EHLO":
			current.helo = strings.TrimSpace(line[4:])
			reply("250-fake relay")
			reply("250-AUTH PLAIN")
			reply("250 8BITMIME")

		case "AUTH":
			fields := strings.Fields(line)
			if len(fields) != 3 {
				reply("501 syntax error")
				continue
			}

			decoded, _ := base64.StdEncoding.DecodeString(fields[2])
			if string(decoded) == "\x00"+f.username+"\x00"+f.password {
				current.authenticated = true
				reply("235 authenticated")
			} else {
				reply("535 invalid credentials")
			}

		case "MAIL":
			current.from = between(line, "<", ">")
			reply("250 ok")

		case "RCPT":
			recipient := between(line, "<", ">")

			switch {
			case strings.HasPrefix(recipient, "unknown@"):
				reply("550 no such user")
			case strings.HasPrefix(recipient, "busy@"):
				reply("450 mailbox busy")
			default:
				current.to = append(current.to, recipient)
				reply("250 ok")
			}

		case "DATA":
			reply("354 go ahead")

			var data strings.Builder
			for {
				dataLine, err := r.ReadString('\n')
				if err != nil {
					return
				}

				if dataLine == ".\r\n" {
					break
				}

				data.WriteString(strings.TrimPrefix(dataLine, "."))
			}

			current.data = data.String()

			f.mu.Lock()
			f.delivered = append(f.delivered, current)
			f.mu.Unlock()

			reply("250 queued")

		case "QUIT":
			reply("221 bye")
			return

		default:
			reply("502 not implemented")
		}
	}
}

func between(s, start, end string) string {
	i := strings.Index(s, start)
	j := strings.LastIndex(s, end)

	if i < 0 || j <= i {
		return ""
	}

	return s[i+1 : j]
}
