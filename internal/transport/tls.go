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

package transport

import (
	"crypto/tls"

	"github.com/spf13/afero"

	"github.com/lukasdietrich/briefdirect/internal/certs"
)

// MailboxTLSConfig returns the implicit tls configuration of the mailbox receivers, or nil if tls
// is disabled.
func MailboxTLSConfig(fs afero.Fs, opts MailboxOptions) (*tls.Config, error) {
	if !opts.TLS {
		return nil, nil
	}

	return certs.NewTLSConfig(fs, certs.TLSOptions{
		ServerName: opts.Host,
		Verify:     opts.VerifyTLS,
		CAFile:     opts.CAFile,
	})
}
