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

package audit

import (
	"context"
	"time"

	"github.com/lukasdietrich/briefdirect/internal/log"
	"github.com/lukasdietrich/briefdirect/internal/metrics"
	"github.com/lukasdietrich/briefdirect/internal/models"
)

// Sink appends audit events to a permanent store.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string
	// Append stores a single event.
	Append(context.Context, models.AuditEvent) error
}

// Trail records audit events to every configured sink.
type Trail struct {
	sinks   []Sink
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewTrail creates a trail writing to sinks.
func NewTrail(m *metrics.Metrics, sinks []Sink) *Trail {
	return &Trail{
		sinks:   sinks,
		metrics: m,
		now:     time.Now,
	}
}

// Record timestamps the event, if it is not already, and appends it to all sinks. A failing sink
// is logged and counted, but never fails the caller.
func (t *Trail) Record(ctx context.Context, event models.AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = t.now()
	}

	event.Timestamp = event.Timestamp.UTC()

	log.DebugContext(ctx).
		Str("eventType", string(event.Type)).
		Str("outcome", string(event.Outcome)).
		Str("address", event.Address).
		Str("messageId", event.MessageID).
		Msg("audit event")

	for _, sink := range t.sinks {
		if err := sink.Append(ctx, event); err != nil {
			log.ErrorContext(ctx).
				Err(err).
				Str("sink", sink.Name()).
				Str("eventType", string(event.Type)).
				Msg("could not append audit event")

			t.metrics.IncrementAuditSinkFailure(sink.Name())
		}
	}
}

// Success creates an event with a successful outcome.
func Success(eventType models.AuditEventType, address, messageID string) models.AuditEvent {
	return models.AuditEvent{
		Type:      eventType,
		Address:   address,
		Outcome:   models.OutcomeSuccess,
		MessageID: messageID,
	}
}

// Failure creates an event with a failed outcome. The detail is the error message.
func Failure(eventType models.AuditEventType, address, messageID string, err error) models.AuditEvent {
	event := models.AuditEvent{
		Type:      eventType,
		Address:   address,
		Outcome:   models.OutcomeFailure,
		MessageID: messageID,
	}

	if err != nil {
		event.Detail = err.Error()
	}

	return event
}
