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

// ReceivedMessageDao is a data access object for the index of archived messages.
type ReceivedMessageDao interface {
	// Insert inserts a new message. A message, that was already received with the same transport
	// and native id, violates a unique constraint.
	Insert(context.Context, Queryer, *models.ReceivedMessageEntity) error
	// MarkAcknowledged sets the acknowledge timestamp of a message.
	MarkAcknowledged(context.Context, Queryer, *models.ReceivedMessageEntity) error
	// FindByNativeID returns the message received with a transport under its native id.
	FindByNativeID(context.Context, Queryer, models.TransportTag, string) (*models.ReceivedMessageEntity, error)
	// FindUnacknowledged returns all messages of a transport, that are not acknowledged yet.
	FindUnacknowledged(context.Context, Queryer, models.TransportTag) ([]models.ReceivedMessageEntity, error)
	// FindBlobIDs returns the archive blob ids of all indexed messages.
	FindBlobIDs(context.Context, Queryer) ([]string, error)
}

// receivedMessageDao is the sqlite implementation of ReceivedMessageDao.
type receivedMessageDao struct{}

// NewReceivedMessageDao creates a new ReceivedMessageDao.
func NewReceivedMessageDao() ReceivedMessageDao {
	return receivedMessageDao{}
}

func (receivedMessageDao) Insert(ctx context.Context, q Queryer, message *models.ReceivedMessageEntity) error {
	const query = `
		insert into "received_messages" (
			"blob_id" ,
			"transport" ,
			"native_id" ,
			"message_id" ,
			"from_address" ,
			"subject" ,
			"size" ,
			"encrypted" ,
			"verification" ,
			"received_at" ,
			"acknowledged_at"
		) values (
			:blob_id ,
			:transport ,
			:native_id ,
			:message_id ,
			:from_address ,
			:subject ,
			:size ,
			:encrypted ,
			:verification ,
			:received_at ,
			:acknowledged_at
		) ;
	`

	id, err := insertNamed(ctx, q, query, message)
	if err != nil {
		return err
	}

	message.ID = id
	return nil
}

func (receivedMessageDao) MarkAcknowledged(
	ctx context.Context,
	q Queryer,
	message *models.ReceivedMessageEntity,
) error {
	const query = `
		update "received_messages"
		set "acknowledged_at" = :acknowledged_at
		where "id" = :id ;
	`

	return updateNamed(ctx, q, query, message)
}

func (receivedMessageDao) FindByNativeID(
	ctx context.Context,
	q Queryer,
	transport models.TransportTag,
	nativeID string,
) (*models.ReceivedMessageEntity, error) {
	const query = `
		select *
		from "received_messages"
		where "transport" = $1
		  and "native_id" = $2
		limit 1 ;
	`

	return fetchOne[models.ReceivedMessageEntity](ctx, q, query, transport, nativeID)
}

func (receivedMessageDao) FindUnacknowledged(
	ctx context.Context,
	q Queryer,
	transport models.TransportTag,
) ([]models.ReceivedMessageEntity, error) {
	const query = `
		select *
		from "received_messages"
		where "transport" = $1
		  and "acknowledged_at" is null
		order by "received_at" asc, "id" asc ;
	`

	return fetchAll[models.ReceivedMessageEntity](ctx, q, query, transport)
}

func (receivedMessageDao) FindBlobIDs(ctx context.Context, q Queryer) ([]string, error) {
	const query = `
		select "blob_id"
		from "received_messages"
		order by "blob_id" asc ;
	`

	return fetchAll[string](ctx, q, query)
}
