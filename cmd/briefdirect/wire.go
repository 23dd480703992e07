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

//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/lukasdietrich/briefdirect/internal/audit"
	"github.com/lukasdietrich/briefdirect/internal/certs"
	"github.com/lukasdietrich/briefdirect/internal/config"
	"github.com/lukasdietrich/briefdirect/internal/crypto"
	"github.com/lukasdietrich/briefdirect/internal/database"
	"github.com/lukasdietrich/briefdirect/internal/envelope"
	"github.com/lukasdietrich/briefdirect/internal/exchange"
	"github.com/lukasdietrich/briefdirect/internal/metrics"
	"github.com/lukasdietrich/briefdirect/internal/smime"
	"github.com/lukasdietrich/briefdirect/internal/storage"
)

var wireSet = wire.NewSet(
	wire.Struct(new(enrollCommand), "*"),
	wire.Struct(new(describeCommand), "*"),
	wire.Struct(new(cleanCommand), "*"),
	wire.Struct(new(auditCommand), "*"),
	wire.Struct(new(healthCommand), "*"),
	wire.Struct(new(receiveCommand), "*"),
	wire.Struct(new(sendCommand), "*"),
	wire.Struct(new(statusCommand), "*"),
	wire.Struct(new(directoryCommand), "*"),
	wire.Struct(new(serveMetricsCommand), "*"),

	config.WireSet,
	metrics.WireSet,
	crypto.WireSet,
	storage.WireSet,
	database.WireSet,
	certs.WireSet,
	audit.WireSet,
	envelope.WireSet,
	smime.WireSet,
	exchange.WireSet,
)

func newEnrollCommand(cfg *config.Config) (*enrollCommand, error) {
	panic(wire.Build(wireSet))
}

func newDescribeCommand(cfg *config.Config) (*describeCommand, error) {
	panic(wire.Build(wireSet))
}

func newCleanCommand(cfg *config.Config) (*cleanCommand, error) {
	panic(wire.Build(wireSet))
}

func newAuditCommand(cfg *config.Config) (*auditCommand, error) {
	panic(wire.Build(wireSet))
}

func newHealthCommand(cfg *config.Config) (*healthCommand, error) {
	panic(wire.Build(wireSet))
}

func newReceiveCommand(cfg *config.Config) (*receiveCommand, error) {
	panic(wire.Build(wireSet))
}

func newSendCommand(cfg *config.Config) (*sendCommand, error) {
	panic(wire.Build(wireSet))
}

func newStatusCommand(cfg *config.Config) (*statusCommand, error) {
	panic(wire.Build(wireSet))
}

func newDirectoryCommand(cfg *config.Config) (*directoryCommand, error) {
	panic(wire.Build(wireSet))
}

func newServeMetricsCommand(cfg *config.Config) (*serveMetricsCommand, error) {
	panic(wire.Build(wireSet))
}
