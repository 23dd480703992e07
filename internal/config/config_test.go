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

package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukasdietrich/briefdirect/internal/models"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))

	return v
}

func TestFromViperDefaults(t *testing.T) {
	c, err := FromViper(newViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, "data/certs", c.Certs.Directory)
	assert.Equal(t, 2048, c.Certs.KeySize)
	assert.Equal(t, 365, c.Certs.ValidityDays)
	assert.Equal(t, "data/messages", c.Storage.Messages.Foldername)
	assert.Equal(t, "data/briefdirect.sqlite", c.Storage.Database.Filename)
	assert.Equal(t, "wal", c.Storage.Database.JournalMode)
	assert.Equal(t, "data/audit", c.Audit.Foldername)
	assert.True(t, c.Audit.Database)
	assert.Equal(t, "imap", c.Transport.Variant)
	assert.Equal(t, time.Minute, c.Transport.Timeout)
	assert.Equal(t, 10*time.Second, c.Transport.ConnectTimeout)
	assert.Equal(t, 993, c.Transport.Mailbox.Port)
	assert.Equal(t, "INBOX", c.Transport.Mailbox.Folder)
	assert.Equal(t, "UNSEEN", c.Transport.Mailbox.Criteria)
	assert.Equal(t, "seen", c.Transport.Mailbox.AckAction)
	assert.Equal(t, 587, c.Transport.SMTP.Port)
}

func TestFromViperDefaultPorts(t *testing.T) {
	for _, tc := range []struct {
		variant string
		tls     bool
		port    int
	}{
		{"pop3", true, 995},
		{"pop3", false, 110},
		{"imap", true, 993},
		{"imap", false, 143},
		{"gateway", true, 0},
	} {
		v := newViper(t, "")
		v.Set("transport.variant", tc.variant)
		v.Set("transport.mailbox.tls", tc.tls)

		c, err := FromViper(v)
		require.NoError(t, err)
		assert.Equal(t, tc.port, c.Transport.Mailbox.Port, "%s tls=%v", tc.variant, tc.tls)
	}
}

func TestFromViperKeepsExplicitPort(t *testing.T) {
	c, err := FromViper(newViper(t, `
transport:
  variant: POP3
  mailbox:
    host: mail.example.direct
    port: 1995
`))
	require.NoError(t, err)

	assert.Equal(t, "pop3", c.Transport.Variant)
	assert.Equal(t, 1995, c.Transport.Mailbox.Port)
	assert.NoError(t, c.ValidateTransport())
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		key   string
		value any
		field string
	}{
		{"certs.directory", "", "certs.directory"},
		{"certs.key_size", 1024, "certs.key_size"},
		{"storage.database.filename", "", "storage.database.filename"},
		{"storage.messages.foldername", "", "storage.messages.foldername"},
	} {
		v := newViper(t, "")
		v.Set(tc.key, tc.value)

		_, err := FromViper(v)

		var validationErr *models.ValidationError
		require.ErrorAs(t, err, &validationErr, tc.key)
		assert.Equal(t, tc.field, validationErr.Field)
	}
}

func TestValidateTransport(t *testing.T) {
	for _, tc := range []struct {
		name  string
		yaml  string
		field string
	}{
		{
			name:  "unknown variant",
			yaml:  "transport:\n  variant: carrier-pigeon\n",
			field: "transport.variant",
		},
		{
			name:  "mailbox without host",
			yaml:  "transport:\n  variant: pop3\n",
			field: "transport.mailbox.host",
		},
		{
			name:  "port out of range",
			yaml:  "transport:\n  variant: imap\n  mailbox:\n    host: h\n    port: 70000\n",
			field: "transport.mailbox.port",
		},
		{
			name:  "unknown ack action",
			yaml:  "transport:\n  variant: imap\n  mailbox:\n    host: h\n    ack_action: burn\n",
			field: "transport.mailbox.ack_action",
		},
		{
			name:  "move without folder",
			yaml:  "transport:\n  variant: imap\n  mailbox:\n    host: h\n    ack_action: move\n",
			field: "transport.mailbox.move_folder",
		},
		{
			name:  "ack seen with criteria matching seen messages",
			yaml:  "transport:\n  variant: imap\n  mailbox:\n    host: h\n    criteria: ALL\n    ack_action: seen\n",
			field: "transport.mailbox.criteria",
		},
		{
			name:  "unparsable criteria",
			yaml:  "transport:\n  variant: imap\n  mailbox:\n    host: h\n    criteria: LARGER 10\n",
			field: "transport.mailbox.criteria",
		},
		{
			name:  "gateway without url",
			yaml:  "transport:\n  variant: gateway\n",
			field: "transport.gateway.url",
		},
		{
			name:  "gateway with bad scheme",
			yaml:  "transport:\n  variant: gateway\n  gateway:\n    url: ftp://hisp.example\n",
			field: "transport.gateway.url",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, err := FromViper(newViper(t, tc.yaml))
			require.NoError(t, err)

			err = c.ValidateTransport()

			var validationErr *models.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tc.field, validationErr.Field)
			assert.ErrorIs(t, err, models.ErrValidation)
		})
	}
}

func TestValidateTransportValid(t *testing.T) {
	c, err := FromViper(newViper(t, `
transport:
  variant: gateway
  gateway:
    url: https://hisp.example.direct/api
`))
	require.NoError(t, err)
	assert.NoError(t, c.ValidateTransport())

	c, err = FromViper(newViper(t, `
transport:
  variant: imap
  mailbox:
    host: mail.example.direct
    ack_action: move
    move_folder: Processed
`))
	require.NoError(t, err)
	assert.NoError(t, c.ValidateTransport())

	c, err = FromViper(newViper(t, `
transport:
  variant: imap
  mailbox:
    host: mail.example.direct
    criteria: ALL
    ack_action: delete
`))
	require.NoError(t, err)
	assert.NoError(t, c.ValidateTransport())

	c, err = FromViper(newViper(t, `
transport:
  variant: pop3
  mailbox:
    host: mail.example.direct
    criteria: ALL
`))
	require.NoError(t, err)
	assert.NoError(t, c.ValidateTransport())
}
