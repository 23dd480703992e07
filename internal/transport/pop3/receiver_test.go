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
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/lukasdietrich/briefdirect/internal/models"
	"github.com/lukasdietrich/briefdirect/internal/transport"
)

func TestReceiverTestSuite(t *testing.T) {
	suite.Run(t, new(ReceiverTestSuite))
}

type ReceiverTestSuite struct {
	suite.Suite

	maildrop *fakeMaildrop
	listener net.Listener
	receiver *Receiver
}

func (s *ReceiverTestSuite) SetupTest() {
	s.maildrop = &fakeMaildrop{
		username: "b@y.direct",
		password: "secret",
		messages: []fakeMessage{
			{uid: "uid-1", content: fixture("<1@x.direct>", "First")},
			{uid: "uid-2", content: fixture("<2@x.direct>", "Second")},
			{uid: "uid-3", content: fixture("<3@x.direct>", "Third")},
		},
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)

	s.listener = listener
	go s.maildrop.serve(listener)

	s.receiver = NewReceiver(s.options(listener.Addr(), "secret"), nil, nil)
}

func (s *ReceiverTestSuite) TearDownTest() {
	s.listener.Close()
}

func (s *ReceiverTestSuite) options(addr net.Addr, password string) transport.Options {
	return transport.Options{
		Timeout:        5 * time.Second,
		ConnectTimeout: time.Second,
		Mailbox: transport.MailboxOptions{
			Host:     "127.0.0.1",
			Port:     addr.(*net.TCPAddr).Port,
			Username: "b@y.direct",
			Password: password,
		},
	}
}

func (s *ReceiverTestSuite) TestTag() {
	s.Equal(models.TransportPOP3, s.receiver.Tag())
}

func (s *ReceiverTestSuite) TestCount() {
	count, err := s.receiver.Count(context.Background(), transport.Scope{})
	s.Require().NoError(err)
	s.Equal(3, count)
}

func (s *ReceiverTestSuite) TestFetchPeek() {
	messages, err := s.receiver.Fetch(context.Background(), transport.Scope{}, 2, transport.ModePeek)
	s.Require().NoError(err)
	s.Require().Len(messages, 2)

	s.Equal("uid-1", messages[0].NativeID)
	s.Equal("uid-2", messages[1].NativeID)
	s.Equal(models.TransportPOP3, messages[0].Transport)
	s.Contains(string(messages[0].Content), "Subject: First")
	s.EqualValues(len(s.maildrop.messages[0].wire()), messages[0].Size)

	count, err := s.receiver.Count(context.Background(), transport.Scope{})
	s.Require().NoError(err)
	s.Equal(3, count)
}

func (s *ReceiverTestSuite) TestFetchDelete() {
	messages, err := s.receiver.Fetch(context.Background(), transport.Scope{Criteria: "ALL"}, 0, transport.ModeDelete)
	s.Require().NoError(err)
	s.Len(messages, 3)

	for _, msg := range messages {
		s.True(msg.Consumed, msg.NativeID)
	}

	count, err := s.receiver.Count(context.Background(), transport.Scope{})
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *ReceiverTestSuite) TestFetchDeleteRollsBackOnFailure() {
	s.maildrop.mu.Lock()
	s.maildrop.failRetr = "uid-2"
	s.maildrop.mu.Unlock()

	messages, err := s.receiver.Fetch(context.Background(), transport.Scope{}, 0, transport.ModeDelete)
	s.ErrorIs(err, transport.ErrProtocolFailure)
	s.Require().Len(messages, 1)
	s.Equal("uid-1", messages[0].NativeID)
	s.False(messages[0].Consumed)

	count, err := s.receiver.Count(context.Background(), transport.Scope{})
	s.Require().NoError(err)
	s.Equal(3, count)
}

func (s *ReceiverTestSuite) TestFetchAcknowledge() {
	messages, err := s.receiver.Fetch(context.Background(), transport.Scope{}, 3, transport.ModePeek)
	s.Require().NoError(err)
	s.Require().Len(messages, 3)

	for _, msg := range messages {
		s.Require().NoError(s.receiver.Acknowledge(context.Background(), msg.NativeID))
	}

	count, err := s.receiver.Count(context.Background(), transport.Scope{})
	s.Require().NoError(err)
	s.Zero(count)

	s.NoError(s.receiver.Acknowledge(context.Background(), messages[0].NativeID))
}

func (s *ReceiverTestSuite) TestAcknowledgeUnknown() {
	s.Require().NoError(s.receiver.Acknowledge(context.Background(), "uid-404"))

	count, err := s.receiver.Count(context.Background(), transport.Scope{})
	s.Require().NoError(err)
	s.Equal(3, count)
}

func (s *ReceiverTestSuite) TestMarkUnsupported() {
	_, err := s.receiver.Fetch(context.Background(), transport.Scope{}, 0, transport.ModeMark)
	s.ErrorIs(err, transport.ErrUnsupported)
	s.False(transport.IsRetryable(err))
}

func (s *ReceiverTestSuite) TestCriteriaUnsupported() {
	_, err := s.receiver.Count(context.Background(), transport.Scope{Criteria: "UNSEEN"})
	s.ErrorIs(err, transport.ErrUnsupported)
}

func (s *ReceiverTestSuite) TestAuthFailure() {
	receiver := NewReceiver(s.options(s.listener.Addr(), "wrong"), nil, nil)

	_, err := receiver.Count(context.Background(), transport.Scope{})
	s.ErrorIs(err, transport.ErrAuthFailure)
	s.False(transport.IsRetryable(err))
	s.NotContains(err.Error(), "wrong")
}

func (s *ReceiverTestSuite) TestConnectFailure() {
	addr := s.listener.Addr()
	s.listener.Close()

	receiver := NewReceiver(s.options(addr, "secret"), nil, nil)

	_, err := receiver.Fetch(context.Background(), transport.Scope{}, 0, transport.ModePeek)
	s.ErrorIs(err, transport.ErrConnectFailure)
	s.True(transport.IsRetryable(err))
}

func (s *ReceiverTestSuite) TestSilentServer() {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	defer listener.Close()

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}

			defer conn.Close()
		}
	}()

	opts := s.options(listener.Addr(), "secret")
	opts.Timeout = 200 * time.Millisecond

	start := time.Now()
	_, err = NewReceiver(opts, nil, nil).Count(context.Background(), transport.Scope{})

	s.Error(err)
	s.True(transport.IsRetryable(err))
	s.Less(time.Since(start), 3*time.Second)
}

func (s *ReceiverTestSuite) TestHealth() {
	health := s.receiver.Health(context.Background())
	s.Equal(transport.Healthy, health.Status)

	s.listener.Close()

	health = s.receiver.Health(context.Background())
	s.Equal(transport.Unhealthy, health.Status)
	s.NotEmpty(health.Detail)
}

func fixture(messageID, subject string) string {
	return strings.Join([]string{
		"From: a@x.direct",
		"To: b@y.direct",
		"Subject: " + subject,
		"Message-Id: " + messageID,
		"Date: Mon, 02 Jan 2006 15:04:05 +0000",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Body of " + subject,
		"",
	}, "\r\n")
}

type fakeMessage struct {
	uid     string
	content string
}

func (m fakeMessage) wire() string {
	return m.content
}

// fakeMaildrop is a minimal rfc1939 server. Deletions are committed on QUIT only.
type fakeMaildrop struct {
	mu       sync.Mutex
	username string
	password string
	messages []fakeMessage
	failRetr string
}

func (m *fakeMaildrop) serve(listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}

		go m.handle(conn)
	}
}

func (m *fakeMaildrop) snapshot() ([]fakeMessage, string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]fakeMessage(nil), m.messages...), m.failRetr
}

func (m *fakeMaildrop) commit(deleted map[string]bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.messages[:0]
	for _, msg := range m.messages {
		if !deleted[msg.uid] {
			kept = append(kept, msg)
		}
	}

	m.messages = kept
}

func (m *fakeMaildrop) handle(conn net.Conn) {
	defer conn.Close()

	messages, failRetr := m.snapshot()

	var (
		r             = bufio.NewReader(conn)
		deleted       = make(map[string]bool)
		user          string
		authenticated bool
	)

	reply := func(format string, args ...interface{}) {
		fmt.Fprintf(conn, format+"\r\n", args...)
	}

	lookup := func(arg string) (int, bool) {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(messages) || deleted[messages[n-1].uid] {
			return 0, false
		}

		return n, true
	}

	reply("+OK fake maildrop ready")

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		command := strings.ToUpper(fields[0])
		arg := ""
		if len(fields) > 1 {
			arg = fields[1]
		}

		if !authenticated && command != "USER" && command != "PASS" && command != "QUIT" {
			reply("-ERR authenticate first")
			continue
		}

		switch command {
		case "USER":
			user = arg
			reply("+OK")

		case "PASS":
			if user == m.username && arg == m.password {
				authenticated = true
				reply("+OK maildrop locked")
			} else {
				reply("-ERR invalid credentials")
			}

		case "NOOP":
			reply("+OK")

		case "STAT":
			count, size := 0, 0
			for _, msg := range messages {
				if !deleted[msg.uid] {
					count++
					size += len(msg.wire())
				}
			}

			reply("+OK %d %d", count, size)

		case "LIST", "UIDL":
			reply("+OK")

			for i, msg := range messages {
				if deleted[msg.uid] {
					continue
				}

				if command == "LIST" {
					reply("%d %d", i+1, len(msg.wire()))
				} else {
					reply("%d %s", i+1, msg.uid)
				}
			}

			reply(".")

		case "RETR":
			n, ok := lookup(arg)
			if !ok {
				reply("-ERR no such message")
				continue
			}

			if messages[n-1].uid == failRetr {
				reply("-ERR message unavailable")
				continue
			}

			content := messages[n-1].wire()
			reply("+OK %d octets", len(content))
			fmt.Fprint(conn, content)
			reply(".")

		case "DELE":
			n, ok := lookup(arg)
			if !ok {
				reply("-ERR no such message")
				continue
			}

			deleted[messages[n-1].uid] = true
			reply("+OK message deleted")

		case "RSET":
			deleted = make(map[string]bool)
			reply("+OK")

		case "QUIT":
			m.commit(deleted)
			reply("+OK bye")
			return

		default:
			reply("-ERR unknown command")
		}
	}
}
