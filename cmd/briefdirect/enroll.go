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
	"github.com/lukasdietrich/briefdirect/internal/certs"
	"github.com/lukasdietrich/briefdirect/internal/database"
	"github.com/lukasdietrich/briefdirect/internal/log"
	"github.com/lukasdietrich/briefdirect/internal/models"
)

type enrollCommand struct {
	Options certs.Options
	Conn    database.Conn
	Store   *certs.Store
	Trail   *audit.Trail
}

func (e *enrollCommand) run(ctx context.Context, args []string) error {
	defer e.Conn.Close()

	var (
		address      string
		organization string
		validityDays int
		keySize      int
		certOnly     bool
	)

	flags := pflag.NewFlagSet("enroll", pflag.ContinueOnError)
	flags.StringVarP(&address, "address", "a", "", "Direct address of the new identity")
	flags.StringVarP(&organization, "organization", "o", "", "Organization of the certificate subject")
	flags.IntVar(&validityDays, "validity-days", e.Options.ValidityDays, "Lifetime of the certificate")
	flags.IntVar(&keySize, "key-size", e.Options.KeySize, "Size of the rsa key")
	flags.BoolVar(&certOnly, "certificate-only", false, "Store the certificate without its private key")

	if err := flags.Parse(args); err != nil {
		return err
	}

	ctx = log.WithAddress(ctx, address)

	identity, err := e.Store.GenerateIdentity(address, organization, validityDays, keySize)
	if err != nil {
		e.Trail.Record(ctx, enrollEvent(audit.Failure(models.EventCertificate, address, "", err)))
		return err
	}

	if certOnly {
		identity.PrivateKey = nil
	}

	if err := e.Store.Save(ctx, identity); err != nil {
		e.Trail.Record(ctx, enrollEvent(audit.Failure(models.EventCertificate, address, "", err)))
		return err
	}

	e.Trail.Record(ctx, enrollEvent(audit.Success(models.EventCertificate, identity.Address.String(), "")))
	log.InfoContext(ctx).Bool("certificateOnly", certOnly).Msg("identity enrolled")

	return printJSON(e.Store.Describe(identity.Certificate))
}

func enrollEvent(event models.AuditEvent) models.AuditEvent {
	event.Context = map[string]string{"operation": "enroll"}
	return event
}
