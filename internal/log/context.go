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

	"github.com/rs/zerolog"
)

type fieldOrigin struct{}
type fieldCommand struct{}
type fieldTransport struct{}
type fieldAddress struct{}
type fieldMessageID struct{}

// WithOrigin adds the origin of processing to the context.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, fieldOrigin{}, origin)
}

// WithCommand adds the command name to the context.
func WithCommand(ctx context.Context, command string) context.Context {
	return context.WithValue(ctx, fieldCommand{}, command)
}

// WithTransport adds the tag of the active transport to the context.
func WithTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, fieldTransport{}, transport)
}

// WithAddress adds the direct address being worked on to the context.
func WithAddress(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, fieldAddress{}, address)
}

// WithMessageID adds the message-id being processed to the context.
func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, fieldMessageID{}, messageID)
}

// appendContextFields adds defined fields in the context to the log event.
func appendContextFields(ctx context.Context, event *zerolog.Event) *zerolog.Event {
	if origin, ok := ctx.Value(fieldOrigin{}).(string); ok {
		event.Str("origin", origin)
	}

	if command, ok := ctx.Value(fieldCommand{}).(string); ok {
		event.Str("command", command)
	}

	if transport, ok := ctx.Value(fieldTransport{}).(string); ok {
		event.Str("transport", transport)
	}

	if address, ok := ctx.Value(fieldAddress{}).(string); ok {
		event.Str("address", address)
	}

	if messageID, ok := ctx.Value(fieldMessageID{}).(string); ok {
		event.Str("messageId", messageID)
	}

	return event
}
