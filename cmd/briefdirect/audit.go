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

package main

import (
	"context"

	"github.com/spf13/pflag"

	"github.com/lukasdietrich/briefdirect/internal/audit"
	"github.com/lukasdietrich/briefdirect/internal/database"
	"github.com/lukasdietrich/briefdirect/internal/models"
)

type auditCommand struct {
	Conn database.Conn
	Dao  database.AuditEventDao
}

func (a *auditCommand) run(ctx context.Context, args []string) error {
	defer a.Conn.Close()

	var (
		messageID string
		limit     int
	)

	flags := pflag.NewFlagSet("audit", pflag.ContinueOnError)
	flags.StringVarP(&messageID, "message-id", "m", "", "Only list events of this message")
	flags.IntVarP(&limit, "limit", "n", 50, "Maximum number of recent events")

	if err := flags.Parse(args); err != nil {
		return err
	}

	var (
		entities []models.AuditEventEntity
		err      error
	)

	if messageID != "" {
		entities, err = a.Dao.FindByMessageID(ctx, a.Conn, messageID)
	} else {
		entities, err = a.Dao.FindRecent(ctx, a.Conn, limit)
	}

	if err != nil {
		return err
	}

	events := make([]models.AuditEvent, len(entities))
	for i, entity := range entities {
		if events[i], err = audit.EventFromEntity(entity); err != nil {
			return err
		}
	}

	return printJSON(events)
}
