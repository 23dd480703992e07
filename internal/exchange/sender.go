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
	"context"
	"crypto/x509"
	"errors"

	"github.com/lukasdietrich/briefdirect/internal/audit"
	"github.com/lukasdietrich/briefdirect/internal/certs"
	"github.com/lukasdietrich/briefdirect/internal/envelope"
	"github.com/lukasdietrich/briefdirect/internal/log"
	"github.com/lukasdietrich/briefdirect/internal/models"
	"github.com/lukasdietrich/briefdirect/internal/smime"
	"github.com/lukasdietrich/briefdirect/internal/transport"
)

// ErrNoOutbound is returned when the configured transports cannot send messages.
var ErrNoOutbound = errors.New("exchange: no outbound transport configured")

// Request is a single message to send.
type Request struct {
	envelope.Draft

	// RequestDeliveryStatus and RequestReadReceipt are only honored by queue gateways.
	RequestDeliveryStatus bool
	RequestReadReceipt    bool
}

// Result describes an accepted message.
type Result struct {
	MessageID  string   `json:"messageId"`
	From       string   `json:"from"`
	Recipients []string `json:"recipients"`
	// TrackingID and Status are reported by queue gateways.
	TrackingID string `json:"trackingId,omitempty"`
	Status     string `json:"status,omitempty"`
}

// Sender runs the outbound flow. Mailbox deployments protect every envelope and submit it via
// smtp. Queue gateways receive the plain parts, protection is done by the gateway operator.
type Sender struct {
	builder    *envelope.Builder
	store      *certs.Store
	transform  *smime.Transform
	transports *Transports
	trail      *audit.Trail
}

// NewSender creates a new Sender.
func NewSender(
	builder *envelope.Builder,
	store *certs.Store,
	transform *smime.Transform,
	transports *Transports,
	trail *audit.Trail,
) *Sender {
	return &Sender{
		builder:    builder,
		store:      store,
		transform:  transform,
		transports: transports,
		trail:      trail,
	}
}

// Send builds, protects and sends a single message.
func (s *Sender) Send(ctx context.Context, req Request) (*Result, error) {
	ctx = log.WithAddress(ctx, req.From)

	env, err := s.builder.Build(req.Draft)
	if err != nil {
		s.trail.Record(ctx, audit.Failure(models.EventMessageSent, req.From, "", err))
		return nil, err
	}

	ctx = log.WithMessageID(ctx, env.MessageID)

	switch {
	case s.transports.Queue != nil:
		return s.sendQueue(ctx, env, req)
	case s.transports.Submitter != nil:
		return s.sendMailbox(ctx, env)
	default:
		return nil, ErrNoOutbound
	}
}

func (s *Sender) sendMailbox(ctx context.Context, env *models.Envelope) (*Result, error) {
	protected, err := s.protect(ctx, env)
	if err != nil {
		s.trail.Record(ctx, audit.Failure(models.EventMessageEncrypted, env.From.String(), env.MessageID, err))
		return nil, err
	}

	s.trail.Record(ctx, audit.Success(models.EventMessageEncrypted, env.From.String(), env.MessageID))

	if err := s.transports.Submitter.Submit(ctx, protected.From, protected.To, protected.Data); err != nil {
		s.trail.Record(ctx, audit.Failure(models.EventMessageSent, env.From.String(), env.MessageID, err))
		return nil, err
	}

	s.trail.Record(ctx, audit.Success(models.EventMessageSent, env.From.String(), env.MessageID))

	log.InfoContext(ctx).
		Strs("recipients", protected.To).
		Msg("message submitted")

	return &Result{
		MessageID:  env.MessageID,
		From:       protected.From,
		Recipients: protected.To,
	}, nil
}

func (s *Sender) protect(ctx context.Context, env *models.Envelope) (*smime.ProtectedEnvelope, error) {
	identity, err := s.store.ResolveIdentity(env.From.String())
	if err != nil {
		return nil, err
	}

	recipients := make([]*x509.Certificate, len(env.To))

	for i, to := range env.To {
		cert, err := s.store.ResolveForAddress(to.String())
		if err != nil {
			return nil, err
		}

		recipients[i] = cert
	}

	return s.transform.Protect(ctx, env, identity, recipients...)
}

func (s *Sender) sendQueue(ctx context.Context, env *models.Envelope, req Request) (*Result, error) {
	msg := transport.OutboundMessage{
		Sender:                env.From.String(),
		Recipients:            env.Recipients(),
		Subject:               env.Subject,
		Parts:                 outboundParts(env),
		RequestDeliveryStatus: req.RequestDeliveryStatus,
		RequestReadReceipt:    req.RequestReadReceipt,
	}

	receipt, err := s.transports.Queue.Send(ctx, msg)
	if err != nil {
		s.trail.Record(ctx, audit.Failure(models.EventMessageSent, msg.Sender, env.MessageID, err))
		return nil, err
	}

	event := audit.Success(models.EventMessageSent, msg.Sender, env.MessageID)
	event.Context = map[string]string{"trackingId": receipt.ID}
	s.trail.Record(ctx, event)

	log.InfoContext(ctx).
		Str("trackingId", receipt.ID).
		Msg("message queued")

	messageID := receipt.MessageID
	if messageID == "" {
		messageID = env.MessageID
	}

	return &Result{
		MessageID:  messageID,
		From:       msg.Sender,
		Recipients: msg.Recipients,
		TrackingID: receipt.ID,
		Status:     receipt.Status,
	}, nil
}

func outboundParts(env *models.Envelope) []transport.Part {
	parts := []transport.Part{
		{Content: []byte(env.Body), ContentType: "text/plain"},
	}

	if env.HTMLBody != "" {
		parts = append(parts, transport.Part{Content: []byte(env.HTMLBody), ContentType: "text/html"})
	}

	for _, attachment := range env.Attachments {
		parts = append(parts, transport.Part{
			Content:     attachment.Content,
			ContentType: attachment.ContentType,
			Filename:    attachment.Filename,
		})
	}

	return parts
}

// SendAll sends every request. Failed requests are audited and skipped. When the transport cannot
// be reached at all, the batch is aborted.
func (s *Sender) SendAll(ctx context.Context, reqs []Request) ([]Result, error) {
	var (
		results []Result
		b       batch
	)

	for _, req := range reqs {
		result, err := s.Send(ctx, req)
		if err != nil {
			if isResourceFailure(err) {
				return results, err
			}

			b.fail(Outcome{Address: req.From, Err: err})
			continue
		}

		results = append(results, *result)
	}

	return results, b.err(len(reqs))
}

// isResourceFailure reports whether err affects the whole transport instead of a single item.
func isResourceFailure(err error) bool {
	return errors.Is(err, transport.ErrConnectFailure) ||
		errors.Is(err, transport.ErrAuthFailure) ||
		errors.Is(err, ErrNoOutbound)
}
