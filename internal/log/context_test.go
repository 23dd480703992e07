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

package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
)

func TestContextFieldsTestSuite(t *testing.T) {
	suite.Run(t, new(ContextFieldsTestSuite))
}

type ContextFieldsTestSuite struct {
	capturingSuite
}

func (s *ContextFieldsTestSuite) TestSingleField() {
	for field, with := range map[string]func(context.Context, string) context.Context{
		"origin":    WithOrigin,
		"command":   WithCommand,
		"transport": WithTransport,
		"address":   WithAddress,
		"messageId": WithMessageID,
	} {
		InfoContext(with(context.Background(), "value of "+field)).Msg("single")

		s.requireLine(map[string]string{
			"level":   "info",
			"message": "single",
			field:     "value of " + field,
		})
	}
}

func (s *ContextFieldsTestSuite) TestPoll() {
	ctx := WithCommand(context.Background(), "serve-metrics")
	ctx = WithOrigin(ctx, "poll")
	ctx = WithTransport(ctx, "pop3")
	ctx = WithAddress(ctx, "b@y.direct")
	ctx = WithMessageID(ctx, "<1@x.direct>")

	WarnContext(ctx).Str("nativeId", "uid-1").Msg("fetch ended early")

	s.requireLine(map[string]string{
		"level":     "warn",
		"origin":    "poll",
		"command":   "serve-metrics",
		"transport": "pop3",
		"address":   "b@y.direct",
		"messageId": "<1@x.direct>",
		"nativeId":  "uid-1",
		"message":   "fetch ended early",
	})
}

func (s *ContextFieldsTestSuite) TestInnerValueWins() {
	ctx := WithTransport(context.Background(), "imap")
	ctx = WithTransport(ctx, "gateway")

	DebugContext(ctx).Msg("override")

	s.requireLine(map[string]string{"level": "debug", "transport": "gateway", "message": "override"})
}

func (s *ContextFieldsTestSuite) TestEmptyContext() {
	ErrorContext(context.Background()).Msg("bare")

	s.requireLine(map[string]string{"level": "error", "message": "bare"})
}
