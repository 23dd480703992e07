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
	"encoding/json"
	"fmt"
	"time"

	"github.com/lukasdietrich/briefdirect/internal/database"
	"github.com/lukasdietrich/briefdirect/internal/models"
)

// DatabaseSink appends events to the "audit_events" table.
type DatabaseSink struct {
	conn database.Conn
	dao  database.AuditEventDao
}

// NewDatabaseSink creates a sink using conn.
func NewDatabaseSink(conn database.Conn, dao database.AuditEventDao) *DatabaseSink {
	return &DatabaseSink{conn: conn, dao: dao}
}

func (*DatabaseSink) Name() string {
	return "database"
}

func (s *DatabaseSink) Append(ctx context.Context, event models.AuditEvent) error {
	entity := models.AuditEventEntity{
		EventType:  event.Type,
		RecordedAt: event.Timestamp.Unix(),
		Address:    event.Address,
		Outcome:    event.Outcome,
		MessageID:  event.MessageID,
		Detail:     event.Detail,
	}

	if len(event.Context) > 0 {
		encoded, err := json.Marshal(event.Context)
		if err != nil {
			return err
		}

		entity.Context = string(encoded)
	}

	return s.dao.Insert(ctx, s.conn, &entity)
}

// EventFromEntity restores an event read from the "audit_events" table.
func EventFromEntity(entity models.AuditEventEntity) (models.AuditEvent, error) {
	event := models.AuditEvent{
		Type:      entity.EventType,
		Timestamp: time.Unix(entity.RecordedAt, 0).UTC(),
		Address:   entity.Address,
		Outcome:   entity.Outcome,
		MessageID: entity.MessageID,
		Detail:    entity.Detail,
	}

	if entity.Context != "" {
		if err := json.Unmarshal([]byte(entity.Context), &event.Context); err != nil {
			return event, fmt.Errorf("could not decode context of audit event %d: %w", entity.ID, err)
		}
	}

	return event, nil
}
