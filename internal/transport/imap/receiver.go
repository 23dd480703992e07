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

package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/commands"

	"github.com/lukasdietrich/briefdirect/internal/log"
	"github.com/lukasdietrich/briefdirect/internal/metrics"
	"github.com/lukasdietrich/briefdirect/internal/models"
	"github.com/lukasdietrich/briefdirect/internal/transport"
)

const (
	tag = models.TransportIMAP

	defaultFolder = "INBOX"

	// AckSeen flags acknowledged messages as seen.
	AckSeen = "seen"
	// AckDelete expunges acknowledged messages.
	AckDelete = "delete"
	// AckMove moves acknowledged messages to the move folder.
	AckMove = "move"
)

var _ transport.Receiver = (*Receiver)(nil)

// Receiver retrieves messages from an imap folder. Every operation uses its own session.
//
// Native ids have the form "<uidvalidity>:<uid>:<folder>", so an id stays meaningful across
// sessions and becomes stale when the folder is recreated.
type Receiver struct {
	opts      transport.Options
	tlsConfig *tls.Config
	metrics   *metrics.Metrics
}

// NewReceiver creates an imap receiver. tlsConfig enables implicit tls if not nil.
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

type session struct {
	client *client.Client
	dialer *transport.Dialer
}

func (r *Receiver) open(ctx context.Context) (*session, error) {
	dialer := transport.NewDialer(ctx, r.opts, r.tlsConfig)
	addr := net.JoinHostPort(r.opts.Mailbox.Host, strconv.Itoa(r.opts.Mailbox.Port))

	c, err := client.DialWithDialer(dialer, addr)
	if err != nil {
		dialer.Close()
		return nil, transport.NewError(tag, transport.KindConnectFailure, err)
	}

	c.Timeout = r.opts.Timeout

	if err := c.Login(r.opts.Mailbox.Username, r.opts.Mailbox.Password); err != nil {
		dialer.Close()
		return nil, transport.NewError(tag, transport.KindAuthFailure, err)
	}

	return &session{client: c, dialer: dialer}, nil
}

func (s *session) close(ctx context.Context) {
	if err := s.client.Logout(); err != nil {
		log.DebugContext(ctx).Err(err).Msg("could not logout")
	}

	s.dialer.Close()
}

func (r *Receiver) folder(scope transport.Scope) string {
	switch {
	case scope.Folder != "":
		return scope.Folder
	case r.opts.Mailbox.Folder != "":
		return r.opts.Mailbox.Folder
	default:
		return defaultFolder
	}
}

func (r *Receiver) criteria(scope transport.Scope) (*goimap.SearchCriteria, error) {
	expression := scope.Criteria
	if expression == "" {
		expression = r.opts.Mailbox.Criteria
	}

	criteria, err := ParseCriteria(expression)
	if err != nil {
		return nil, &transport.Error{Kind: transport.KindUnsupported, Transport: tag, Err: err}
	}

	// Messages flagged for deletion by another client are gone for our purposes.
	criteria.WithoutFlags = append(criteria.WithoutFlags, goimap.DeletedFlag)

	return criteria, nil
}

// Count implements transport.Receiver. The folder is opened read-only.
func (r *Receiver) Count(ctx context.Context, scope transport.Scope) (count int, err error) {
	defer r.observe("count", time.Now(), &err)

	criteria, err := r.criteria(scope)
	if err != nil {
		return 0, err
	}

	s, err := r.open(ctx)
	if err != nil {
		return 0, err
	}

	defer s.close(ctx)

	if _, err := s.client.Select(r.folder(scope), true); err != nil {
		return 0, transport.NewError(tag, transport.KindProtocolFailure, err)
	}

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return 0, transport.NewError(tag, transport.KindProtocolFailure, err)
	}

	return len(uids), nil
}

type fetched struct {
	uid uint32
	msg transport.RawMessage
}

// Fetch implements transport.Receiver. Messages are retrieved with BODY.PEEK, so only the mark
// and delete modes change flags.
func (r *Receiver) Fetch(ctx context.Context, scope transport.Scope, limit int, mode transport.Mode) (messages []transport.RawMessage, err error) {
	defer r.observe("fetch", time.Now(), &err)

	ctx = log.WithTransport(ctx, string(tag))
	folder := r.folder(scope)

	criteria, err := r.criteria(scope)
	if err != nil {
		return nil, err
	}

	s, err := r.open(ctx)
	if err != nil {
		return nil, err
	}

	defer s.close(ctx)

	status, err := s.client.Select(folder, mode == transport.ModePeek)
	if err != nil {
		return nil, transport.NewError(tag, transport.KindProtocolFailure, err)
	}

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, transport.NewError(tag, transport.KindProtocolFailure, err)
	}

	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	if limit > 0 && len(uids) > limit {
		uids = uids[:limit]
	}

	if len(uids) == 0 {
		return nil, nil
	}

	results, fetchErr := fetch(s.client, uids)
	sort.Slice(results, func(i, j int) bool { return results[i].uid < results[j].uid })

	done := make([]uint32, 0, len(results))
	for _, result := range results {
		result.msg.NativeID = formatNativeID(status.UidValidity, result.uid, folder)
		messages = append(messages, result.msg)
		done = append(done, result.uid)
	}

	if fetchErr != nil {
		return messages, transport.NewError(tag, transport.KindProtocolFailure, fetchErr)
	}

	switch mode {
	case transport.ModeMark:
		err = addFlags(s.client, done, goimap.SeenFlag)
	case transport.ModeDelete:
		err = expunge(s.client, done)
	}

	if err != nil {
		return messages, transport.NewError(tag, transport.KindProtocolFailure, err)
	}

	if mode == transport.ModeDelete {
		for i := range messages {
			messages[i].Consumed = true
		}
	}

	log.DebugContext(ctx).
		Str("folder", folder).
		Int("count", len(messages)).
		Stringer("mode", mode).
		Msg("messages retrieved")

	return messages, nil
}

func fetch(c *client.Client, uids []uint32) ([]fetched, error) {
	seqset := new(goimap.SeqSet)
	seqset.AddNum(uids...)

	section := &goimap.BodySectionName{Peek: true}
	items := []goimap.FetchItem{
		goimap.FetchUid,
		goimap.FetchFlags,
		goimap.FetchRFC822Size,
		goimap.FetchInternalDate,
		section.FetchItem(),
	}

	ch := make(chan *goimap.Message, 16)
	done := make(chan error, 1)

	go func() {
		done <- c.UidFetch(seqset, items, ch)
	}()

	var (
		results []fetched
		readErr error
	)

	for msg := range ch {
		if readErr != nil {
			continue
		}

		body := msg.GetBody(section)
		if body == nil {
			readErr = fmt.Errorf("no body for uid %d", msg.Uid)
			continue
		}

		content, err := io.ReadAll(body)
		if err != nil {
			readErr = err
			continue
		}

		results = append(results, fetched{
			uid: msg.Uid,
			msg: transport.RawMessage{
				Transport:  tag,
				Size:       int64(msg.Size),
				Flags:      msg.Flags,
				ReceivedAt: msg.InternalDate.UTC(),
				Content:    content,
			},
		})
	}

	if err := <-done; err != nil {
		return results, err
	}

	return results, readErr
}

func addFlags(c *client.Client, uids []uint32, flags ...string) error {
	if len(uids) == 0 {
		return nil
	}

	seqset := new(goimap.SeqSet)
	seqset.AddNum(uids...)

	values := make([]interface{}, len(flags))
	for i, flag := range flags {
		values[i] = flag
	}

	return c.UidStore(seqset, goimap.FormatFlagsOp(goimap.AddFlags, true), values, nil)
}

// expunge removes exactly the given messages if the server supports UIDPLUS (rfc4315).
// Otherwise it falls back to a plain EXPUNGE, which also removes every other message flagged
// as deleted.
func expunge(c *client.Client, uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}

	if err := addFlags(c, uids, goimap.DeletedFlag); err != nil {
		return err
	}

	uidplus, err := c.Support("UIDPLUS")
	if err != nil {
		return err
	}

	if !uidplus {
		return c.Expunge(nil)
	}

	seqset := new(goimap.SeqSet)
	seqset.AddNum(uids...)

	status, err := c.Execute(&commands.Uid{Cmd: &goimap.Command{
		Name:      "EXPUNGE",
		Arguments: []interface{}{seqset},
	}}, nil)
	if err != nil {
		return err
	}

	return status.Err()
}

// Acknowledge implements transport.Receiver with the configured ack action. Ids of messages, that
// no longer exist or belong to a recreated folder, are ignored.
func (r *Receiver) Acknowledge(ctx context.Context, nativeID string) (err error) {
	defer r.observe("acknowledge", time.Now(), &err)

	validity, uid, folder, err := parseNativeID(nativeID)
	if err != nil {
		return &transport.Error{Kind: transport.KindProtocolFailure, Transport: tag, NativeID: nativeID, Err: err}
	}

	s, err := r.open(ctx)
	if err != nil {
		return transport.WithNativeID(err, nativeID)
	}

	defer s.close(ctx)

	status, err := s.client.Select(folder, false)
	if err != nil {
		return transport.WithNativeID(transport.NewError(tag, transport.KindProtocolFailure, err), nativeID)
	}

	if status.UidValidity != validity {
		log.DebugContext(ctx).Str("id", nativeID).Msg("uid validity changed, ignoring acknowledge")
		return nil
	}

	criteria := goimap.NewSearchCriteria()
	criteria.Uid = new(goimap.SeqSet)
	criteria.Uid.AddNum(uid)

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return transport.WithNativeID(transport.NewError(tag, transport.KindProtocolFailure, err), nativeID)
	}

	if len(uids) == 0 {
		log.DebugContext(ctx).Str("id", nativeID).Msg("message already acknowledged")
		return nil
	}

	if err := r.acknowledge(s.client, uid); err != nil {
		return transport.WithNativeID(transport.NewError(tag, transport.KindProtocolFailure, err), nativeID)
	}

	return nil
}

func (r *Receiver) acknowledge(c *client.Client, uid uint32) error {
	switch strings.ToLower(r.opts.Mailbox.AckAction) {
	case "", AckSeen:
		return addFlags(c, []uint32{uid}, goimap.SeenFlag)

	case AckDelete:
		return expunge(c, []uint32{uid})

	case AckMove:
		if r.opts.Mailbox.MoveFolder == "" {
			return errors.New("no move folder configured")
		}

		seqset := new(goimap.SeqSet)
		seqset.AddNum(uid)

		if err := c.UidCopy(seqset, r.opts.Mailbox.MoveFolder); err != nil {
			return err
		}

		return expunge(c, []uint32{uid})

	default:
		return fmt.Errorf("unknown ack action %q", r.opts.Mailbox.AckAction)
	}
}

// Health implements transport.Receiver.
func (r *Receiver) Health(ctx context.Context) transport.Health {
	return transport.CheckHealth(ctx, r.opts.DegradedLatency, func(ctx context.Context) error {
		_, err := r.Count(ctx, transport.Scope{Criteria: "ALL"})
		return err
	})
}

func (r *Receiver) observe(operation string, start time.Time, err *error) {
	r.metrics.ObserveTransport(string(tag), operation, time.Since(start), *err)
}

func formatNativeID(validity, uid uint32, folder string) string {
	return fmt.Sprintf("%d:%d:%s", validity, uid, folder)
}

func parseNativeID(id string) (validity, uid uint32, folder string, err error) {
	parts := strings.SplitN(id, ":", 3)
	if len(parts) != 3 || parts[2] == "" {
		return 0, 0, "", fmt.Errorf("malformed id %q", id)
	}

	v, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, 0, "", fmt.Errorf("malformed uid validity in %q", id)
	}

	u, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil || u == 0 {
		return 0, 0, "", fmt.Errorf("malformed uid in %q", id)
	}

	return uint32(v), uint32(u), parts[2], nil
}
