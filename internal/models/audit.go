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

package models

import (
	"time"
)

// AuditEventType is the kind of operation an audit event records.
type AuditEventType string

const (
	EventMessageEncrypted    AuditEventType = "MESSAGE_ENCRYPTED"
	EventMessageDecrypted    AuditEventType = "MESSAGE_DECRYPTED"
	EventMessageSent         AuditEventType = "MESSAGE_SENT"
	EventMessageReceived     AuditEventType = "MESSAGE_RECEIVED"
	EventMessageAcknowledged AuditEventType = "MESSAGE_ACKNOWLEDGED"
	EventCertificate         AuditEventType = "CERTIFICATE_OPERATION"
	EventTransportFailure    AuditEventType = "TRANSPORT_FAILURE"
)

// AuditOutcome is the result of an audited operation.
type AuditOutcome string

const (
	OutcomeSuccess AuditOutcome = "success"
	OutcomeFailure AuditOutcome = "failure"
)

// AuditEvent is a single append-only record of the audit trail.
type AuditEvent struct {
	Type      AuditEventType    `json:"event_type"`
	Timestamp time.Time         `json:"timestamp"`
	Address   string            `json:"address,omitempty"`
	Outcome   AuditOutcome      `json:"outcome"`
	MessageID string            `json:"message_id,omitempty"`
	Detail    string            `json:"detail,omitempty"`
	Context   map[string]string `json:"context,omitempty"`
}
