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

package certs

import (
	"crypto/tls"
	"crypto/x509"
	"errors"

	"github.com/spf13/afero"
)

// TLSOptions configure the client side of a transport connection.
type TLSOptions struct {
	// ServerName is the host name, that the server certificate is checked against.
	ServerName string
	// Verify enables verification of the server certificate.
	Verify bool
	// CAFile is an optional PEM bundle used instead of the system roots.
	CAFile string
}

// NewTLSConfig creates the client tls configuration for a transport.
func NewTLSConfig(fs afero.Fs, opts TLSOptions) (*tls.Config, error) {
	config := &tls.Config{
		ServerName:         opts.ServerName,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !opts.Verify, // nolint:gosec
	}

	if opts.CAFile == "" {
		return config, nil
	}

	data, err := afero.ReadFile(fs, opts.CAFile)
	if err != nil {
		return nil, parseError(opts.CAFile, err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, parseError(opts.CAFile, errors.New("no certificates in bundle"))
	}

	config.RootCAs = pool
	return config, nil
}
