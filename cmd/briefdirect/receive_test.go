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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukasdietrich/briefdirect/internal/transport"
)

func TestReceiveOptionsLeaveScopeToTransport(t *testing.T) {
	r := receiveCommand{Options: transport.Options{
		Mailbox: transport.MailboxOptions{Folder: "Direct", Criteria: "UNSEEN"},
	}}

	opts, err := r.parseOptions(nil)
	require.NoError(t, err)

	assert.Empty(t, opts.Scope.Folder)
	assert.Empty(t, opts.Scope.Criteria)
	assert.True(t, opts.Scope.IsAll())
	assert.Equal(t, transport.ModePeek, opts.Mode)
	assert.True(t, opts.Persist)
	assert.False(t, opts.Acknowledge)
}

func TestReceiveOptionsFlags(t *testing.T) {
	var r receiveCommand

	opts, err := r.parseOptions([]string{
		"--folder", "Archive",
		"--criteria", "UNSEEN FROM a@x.direct",
		"-n", "5",
		"--mode", "delete",
		"--ack",
	})
	require.NoError(t, err)

	assert.Equal(t, "Archive", opts.Scope.Folder)
	assert.Equal(t, "UNSEEN FROM a@x.direct", opts.Scope.Criteria)
	assert.Equal(t, 5, opts.Limit)
	assert.Equal(t, transport.ModeDelete, opts.Mode)
	assert.True(t, opts.Acknowledge)

	_, err = r.parseOptions([]string{"--mode", "shred"})
	assert.Error(t, err)
}
