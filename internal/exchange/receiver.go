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
	"fmt"
	"time"

	"github.com/lukasdietrich/briefdirect/internal/audit"
	"github.com/lukasdietrich/briefdirect/internal/certs"
	"github.com/lukasdietrich/briefdirect/internal/database"
	"github.com/lukasdietrich/briefdirect/internal/log"
	"github.com/lukasdietrich/briefdirect/internal/mails"
	"github.com/lukasdietrich/briefdirect/internal/models"
	"github.com/lukasdietrich/briefdirect/internal/normalize"
	"github.com/lukasdietrich/briefdirect/internal/smime"
	"github.com/lukasdietrich/briefdirect/internal/storage"
	"github.com/lukasdietrich/briefdirect/internal/transport"
)

// ErrNoContent is returned for encrypted messages, that were delivered without their content.
var ErrNoContent = errors.New("exchange: encrypted message without content")

// ReceiveOptions control a single receive run.
type ReceiveOptions struct {
	Scope transport.Scope
	// Limit is the maximum number of messages to fetch. A limit <= 0 fetches all messages.
	Limit int
	Mode  transport.Mode
	// Persist stores every message in the archive.
	Persist bool
	// Acknowledge consumes every processed message. With Persist, only stored messages are
	// acknowledged.
	Acknowledge bool
}

// Received is a successfully processed message.
type Received struct {
	Message      *models.ReceivedMessage `json:"message"`
	BlobID       string                  `json:"blobId,omitempty"`
	Acknowledged bool                    `json:"acknowledged"`
}

// Receiver runs the inbound flow: fetch, normalize, open, persist and acknowledge.
type Receiver struct {
	transport transport.Receiver
	store     *certs.Store
	transform *smime.Transform
	archive   storage.Archive
	conn      database.Conn
	dao       database.ReceivedMessageDao
	trail     *audit.Trail
	now       func() time.Time
}

// NewReceiver creates a Receiver using the receiver of transports.
func NewReceiver(
	transports *Transports,
	store *certs.Store,
	transform *smime.Transform,
	archive storage.Archive,
	conn database.Conn,
	dao database.ReceivedMessageDao,
	trail *audit.Trail,
) *Receiver {
	return &Receiver{
		transport: transports.Receiver,
		store:     store,
		transform: transform,
		archive:   archive,
		conn:      conn,
		dao:       dao,
		trail:     trail,
		now:       time.Now,
	}
}

// Receive fetches messages and processes them one by one. Messages, that fail to process, are
// audited, skipped and reported in a PartialBatchFailure. If nothing could be fetched at all, the
// transport error is returned as is.
func (r *Receiver) Receive(ctx context.Context, opts ReceiveOptions) ([]Received, error) {
	ctx = log.WithTransport(ctx, string(r.transport.Tag()))

	raws, err := r.transport.Fetch(ctx, opts.Scope, opts.Limit, opts.Mode)
	if err != nil {
		r.trail.Record(ctx, audit.Failure(models.EventTransportFailure, "", "", err))

		if len(raws) == 0 {
			return nil, err
		}

		log.WarnContext(ctx).
			Err(err).
			Int("retrieved", len(raws)).
			Msg("fetch ended early, processing retrieved messages")
	}

	var (
		received []Received
		b        batch
		total    = len(raws)
	)

	if err != nil {
		var transportErr *transport.Error
		errors.As(err, &transportErr)

		outcome := Outcome{Err: err}
		if transportErr != nil {
			outcome.NativeID = transportErr.NativeID
		}

		b.fail(outcome)
		total++
	}

	for _, raw := range raws {
		item, err := r.process(ctx, raw, opts)
		if err != nil {
			outcome := Outcome{NativeID: raw.NativeID, Err: err}
			if item != nil {
				outcome.Address = item.Message.From
				outcome.MessageID = item.Message.MessageID
			}

			b.fail(outcome)
			continue
		}

		received = append(received, *item)
	}

	return received, b.err(total)
}

// process handles a single message. On failure the partially processed message is returned along
// the error, if it could be normalized.
func (r *Receiver) process(ctx context.Context, raw transport.RawMessage, opts ReceiveOptions) (*Received, error) {
	msg, err := normalize.Normalize(raw)
	if err != nil {
		r.trail.Record(ctx, receivedEvent(models.EventMessageReceived, raw, nil, err))
		return nil, err
	}

	item := &Received{Message: msg}
	ctx = log.WithMessageID(ctx, msg.MessageID)

	log.TraceContext(ctx).
		Str("nativeId", raw.NativeID).
		Bool("encrypted", msg.Encrypted).
		Int64("size", msg.Size).
		Msg("processing message")

	if msg.Encrypted {
		if err := r.open(ctx, msg); err != nil {
			r.trail.Record(ctx, receivedEvent(models.EventMessageDecrypted, raw, msg, err))
			return item, err
		}

		event := receivedEvent(models.EventMessageDecrypted, raw, msg, nil)
		event.Context["verification"] = string(msg.Verification)
		r.trail.Record(ctx, event)
	}

	var entity *models.ReceivedMessageEntity

	if opts.Persist {
		if entity, err = r.persist(ctx, msg); err != nil {
			r.trail.Record(ctx, receivedEvent(models.EventMessageReceived, raw, msg, err))
			return item, err
		}

		item.BlobID = entity.BlobID
	}

	r.trail.Record(ctx, receivedEvent(models.EventMessageReceived, raw, msg, nil))

	if opts.Mode == transport.ModeDelete {
		// The transport removed the message during the fetch, if it could commit the removal.
		item.Acknowledged = raw.Consumed
		return item, nil
	}

	if opts.Acknowledge {
		if err := r.acknowledge(ctx, raw, msg, entity); err != nil {
			return item, err
		}

		item.Acknowledged = true
	}

	return item, nil
}

// open decrypts msg with the identity of the first local recipient.
func (r *Receiver) open(ctx context.Context, msg *models.ReceivedMessage) error {
	if len(msg.Raw) == 0 {
		return ErrNoContent
	}

	recipient, err := r.recipientIdentity(msg.To)
	if err != nil {
		return err
	}

	var expectedSender *x509.Certificate

	if cert, err := r.store.ResolveForAddress(msg.From); err == nil {
		expectedSender = cert
	}

	opened, err := r.transform.Unprotect(ctx, msg.Raw, recipient, expectedSender)
	if err != nil {
		return err
	}

	normalize.Opened(msg, opened.Envelope, opened.Verification)

	if opened.Verification != models.Verified {
		log.WarnContext(ctx).
			Str("verification", string(opened.Verification)).
			Str("detail", opened.Detail).
			Msg("message opened without a trusted signature")
	}

	return nil
}

func (r *Receiver) recipientIdentity(recipients []string) (*certs.Identity, error) {
	var firstErr error

	for _, recipient := range recipients {
		identity, err := r.store.ResolveIdentity(recipient)
		if err == nil {
			return identity, nil
		}

		if firstErr == nil {
			firstErr = err
		}
	}

	if firstErr == nil {
		firstErr = &certs.CertificateError{Kind: certs.KindNotFound, Err: errors.New("message has no recipients")}
	}

	return nil, firstErr
}

// persist writes the message to the archive and indexes it. A message, that was already stored,
// is not stored again.
func (r *Receiver) persist(ctx context.Context, msg *models.ReceivedMessage) (*models.ReceivedMessageEntity, error) {
	existing, err := r.dao.FindByNativeID(ctx, r.conn, msg.Transport, msg.NativeID)
	if err == nil {
		log.DebugContext(ctx).
			Str("blob", existing.BlobID).
			Msg("message already archived")

		return existing, nil
	}

	if !database.IsErrNoRows(err) {
		return nil, err
	}

	content, err := archiveContent(msg)
	if err != nil {
		return nil, err
	}

	blobID, _, err := r.archive.Write(ctx, msg.MessageID, msg.ReceivedAt, content)
	if err != nil {
		return nil, err
	}

	entity, err := r.index(ctx, msg, blobID)
	if database.IsErrUnique(err) {
		// Another receive indexed the same message in the meantime.
		log.DebugContext(ctx).Msg("message archived concurrently")
		return r.dao.FindByNativeID(ctx, r.conn, msg.Transport, msg.NativeID)
	}

	if err != nil {
		return nil, err
	}

	log.InfoContext(ctx).
		Str("blob", blobID).
		Msg("message archived")

	return entity, nil
}

// index inserts the archive entry of blobID in its own transaction. The blob is removed, unless
// the transaction commits.
func (r *Receiver) index(ctx context.Context, msg *models.ReceivedMessage, blobID string) (*models.ReceivedMessageEntity, error) {
	discard := r.discardBlob(ctx, blobID)

	tx, err := r.conn.Begin(ctx)
	if err != nil {
		discard()
		return nil, err
	}

	defer tx.RollbackWith(discard)

	entity := models.ReceivedMessageEntity{
		BlobID:       blobID,
		Transport:    msg.Transport,
		NativeID:     msg.NativeID,
		MessageID:    msg.MessageID,
		FromAddress:  msg.From,
		Subject:      msg.Subject,
		Size:         msg.Size,
		Encrypted:    msg.Encrypted,
		Verification: msg.Verification,
		ReceivedAt:   msg.ReceivedAt.Unix(),
	}

	if err := r.dao.Insert(ctx, tx, &entity); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		discard()
		return nil, err
	}

	return &entity, nil
}

// discardBlob removes a blob, that could not be indexed. Errors are only logged, so they do not
// shadow the cause.
func (r *Receiver) discardBlob(ctx context.Context, blobID string) func() {
	return func() {
		if err := r.archive.Delete(ctx, blobID); err != nil {
			log.WarnContext(ctx).
				Err(err).
				Str("blob", blobID).
				Msg("could not remove orphaned blob")
		}
	}
}

// archiveContent returns the raw message, or composes one from the normalized fields of
// transports, that only deliver structured metadata.
func archiveContent(msg *models.ReceivedMessage) ([]byte, error) {
	if len(msg.Raw) > 0 {
		return msg.Raw, nil
	}

	env := models.Envelope{
		MessageID:   msg.MessageID,
		Subject:     msg.Subject,
		Body:        msg.Body,
		HTMLBody:    msg.HTMLBody,
		Attachments: msg.Attachments,
		CreatedAt:   msg.ReceivedAt,
	}

	if from, err := models.Parse(msg.From); err == nil {
		env.From = from
	}

	if to, _, err := models.ParseList(msg.To); err == nil {
		env.To = to
	}

	content, err := mails.ComposeBytes(&env)
	if err != nil {
		return nil, fmt.Errorf("compose archive content: %w", err)
	}

	return content, nil
}

func (r *Receiver) acknowledge(
	ctx context.Context,
	raw transport.RawMessage,
	msg *models.ReceivedMessage,
	entity *models.ReceivedMessageEntity,
) error {
	if err := r.transport.Acknowledge(ctx, raw.NativeID); err != nil {
		r.trail.Record(ctx, receivedEvent(models.EventMessageAcknowledged, raw, msg, err))
		return err
	}

	r.trail.Record(ctx, receivedEvent(models.EventMessageAcknowledged, raw, msg, nil))

	if entity == nil {
		return nil
	}

	entity.AcknowledgedAt.Int64 = r.now().Unix()
	entity.AcknowledgedAt.Valid = true

	return r.dao.MarkAcknowledged(ctx, r.conn, entity)
}

func receivedEvent(
	eventType models.AuditEventType,
	raw transport.RawMessage,
	msg *models.ReceivedMessage,
	err error,
) models.AuditEvent {
	var address, messageID string

	if msg != nil {
		address = msg.From
		messageID = msg.MessageID
	}

	event := audit.Success(eventType, address, messageID)
	if err != nil {
		event = audit.Failure(eventType, address, messageID, err)
	}

	event.Context = map[string]string{
		"transport": string(raw.Transport),
		"nativeId":  raw.NativeID,
	}

	return event
}
