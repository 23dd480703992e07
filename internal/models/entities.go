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
	"database/sql"
)

// AuditEventEntity is the entity for the "audit_events" table.
type AuditEventEntity struct {
	ID         int64          `db:"id"`
	EventType  AuditEventType `db:"event_type"`
	RecordedAt int64          `db:"recorded_at"`
	Address    string         `db:"address"`
	Outcome    AuditOutcome   `db:"outcome"`
	MessageID  string         `db:"message_id"`
	Detail     string         `db:"detail"`
	Context    string         `db:"context"`
}

// ReceivedMessageEntity is the entity for the "received_messages" table. The raw content lives in
// the message archive under BlobID.
type ReceivedMessageEntity struct {
	ID             int64         `db:"id"`
	BlobID         string        `db:"blob_id"`
	Transport      TransportTag  `db:"transport"`
	NativeID       string        `db:"native_id"`
	MessageID      string        `db:"message_id"`
	FromAddress    string        `db:"from_address"`
	Subject        string        `db:"subject"`
	Size           int64         `db:"size"`
	Encrypted      bool          `db:"encrypted"`
	Verification   Verification  `db:"verification"`
	ReceivedAt     int64         `db:"received_at"`
	AcknowledgedAt sql.NullInt64 `db:"acknowledged_at"`
}
