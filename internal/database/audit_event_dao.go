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

package database

import (
	"context"

	"github.com/lukasdietrich/briefdirect/internal/models"
)

// AuditEventDao is a data access object for the append-only audit trail.
type AuditEventDao interface {
	// Insert appends an event.
	Insert(context.Context, Queryer, *models.AuditEventEntity) error
	// FindByMessageID returns all events of a message in the order they were recorded.
	FindByMessageID(context.Context, Queryer, string) ([]models.AuditEventEntity, error)
	// FindRecent returns the latest events, newest first.
	FindRecent(context.Context, Queryer, int) ([]models.AuditEventEntity, error)
}

// auditEventDao is the sqlite implementation of AuditEventDao.
type auditEventDao struct{}

// NewAuditEventDao creates a new AuditEventDao.
func NewAuditEventDao() AuditEventDao {
	return auditEventDao{}
}

func (auditEventDao) Insert(ctx context.Context, q Queryer, event *models.AuditEventEntity) error {
	const query = `
		insert into "audit_events" (
			"event_type" ,
			"recorded_at" ,
			"address" ,
			"outcome" ,
			"message_id" ,
			"detail" ,
			"context"
		) values (
			:event_type ,
			:recorded_at ,
			:address ,
			:outcome ,
			:message_id ,
			:detail ,
			:context
		) ;
	`

	id, err := insertNamed(ctx, q, query, event)
	if err != nil {
		return err
	}

	event.ID = id
	return nil
}

func (auditEventDao) FindByMessageID(
	ctx context.Context,
	q Queryer,
	messageID string,
) ([]models.AuditEventEntity, error) {
	const query = `
		select *
		from "audit_events"
		where "message_id" = $1
		order by "id" asc ;
	`

	return fetchAll[models.AuditEventEntity](ctx, q, query, messageID)
}

func (auditEventDao) FindRecent(ctx context.Context, q Queryer, limit int) ([]models.AuditEventEntity, error) {
	const query = `
		select *
		from "audit_events"
		order by "id" desc
		limit $1 ;
	`

	return fetchAll[models.AuditEventEntity](ctx, q, query, limit)
}
