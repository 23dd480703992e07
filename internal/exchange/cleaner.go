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
	"errors"
	"os"

	"github.com/lukasdietrich/briefdirect/internal/database"
	"github.com/lukasdietrich/briefdirect/internal/log"
	"github.com/lukasdietrich/briefdirect/internal/storage"
)

// Cleaner removes orphaned archive blobs. A blob is orphaned, when no received message references
// it. This happens if the process stops between writing the blob and indexing the message.
//
// Clean must not run concurrently with a Receive on the same archive.
type Cleaner struct {
	archive storage.Archive
	conn    database.Conn
	dao     database.ReceivedMessageDao
}

// NewCleaner creates a new Cleaner.
func NewCleaner(archive storage.Archive, conn database.Conn, dao database.ReceivedMessageDao) *Cleaner {
	return &Cleaner{
		archive: archive,
		conn:    conn,
		dao:     dao,
	}
}

// Clean deletes all orphaned blobs and returns their ids.
func (c *Cleaner) Clean(ctx context.Context) ([]string, error) {
	blobIDs, err := c.archive.List()
	if err != nil {
		return nil, err
	}

	indexed, err := c.dao.FindBlobIDs(ctx, c.conn)
	if err != nil {
		return nil, err
	}

	referenced := make(map[string]bool, len(indexed))
	for _, blobID := range indexed {
		referenced[blobID] = true
	}

	var deleted []string

	for _, blobID := range blobIDs {
		if referenced[blobID] {
			continue
		}

		if err := c.archive.Delete(ctx, blobID); err != nil && !errors.Is(err, os.ErrNotExist) {
			return deleted, err
		}

		log.InfoContext(ctx).Str("blob", blobID).Msg("deleted orphaned blob")
		deleted = append(deleted, blobID)
	}

	return deleted, nil
}
