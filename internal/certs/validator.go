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
	"crypto/x509"
	"fmt"
	"time"
)

// Validator decides whether a certificate may be used at a point in time.
type Validator interface {
	Validate(cert *x509.Certificate, at time.Time) error
}

// WindowValidator only checks the validity window. It is the default.
type WindowValidator struct{}

// Validate implements Validator.
func (WindowValidator) Validate(cert *x509.Certificate, at time.Time) error {
	if !isWithinWindow(cert, at) {
		return &CertificateError{
			Kind:    KindExpired,
			Address: firstAddress(cert),
			Err: fmt.Errorf("valid from %s to %s",
				cert.NotBefore.Format(time.RFC3339),
				cert.NotAfter.Format(time.RFC3339)),
		}
	}

	return nil
}

// ChainValidator checks the validity window and requires a chain to one of the roots, that allows
// the email protection usage.
type ChainValidator struct {
	Roots         *x509.CertPool
	Intermediates *x509.CertPool
}

// Validate implements Validator.
func (v ChainValidator) Validate(cert *x509.Certificate, at time.Time) error {
	if err := (WindowValidator{}).Validate(cert, at); err != nil {
		return err
	}

	_, err := cert.Verify(x509.VerifyOptions{
		Roots:         v.Roots,
		Intermediates: v.Intermediates,
		CurrentTime:   at,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageEmailProtection},
	})

	if err != nil {
		return &CertificateError{Kind: KindUntrusted, Address: firstAddress(cert), Err: err}
	}

	return nil
}

// isWithinWindow checks not-before <= at <= not-after.
func isWithinWindow(cert *x509.Certificate, at time.Time) bool {
	return !at.Before(cert.NotBefore) && !at.After(cert.NotAfter)
}

func firstAddress(cert *x509.Certificate) string {
	if len(cert.EmailAddresses) > 0 {
		return cert.EmailAddresses[0]
	}

	return ""
}
