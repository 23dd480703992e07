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
	"bytes"
	"crypto/x509"
	"fmt"
	"time"
)

// Info is the structured description of a certificate.
type Info struct {
	Subject    string    `json:"subject"`
	Issuer     string    `json:"issuer"`
	Serial     string    `json:"serial"`
	NotBefore  time.Time `json:"notBefore"`
	NotAfter   time.Time `json:"notAfter"`
	Address    string    `json:"address"`
	KeyUsage   []string  `json:"keyUsage"`
	SelfSigned bool      `json:"selfSigned"`
	Valid      bool      `json:"valid"`
}

var keyUsageNames = []struct {
	usage x509.KeyUsage
	name  string
}{
	{x509.KeyUsageDigitalSignature, "digitalSignature"},
	{x509.KeyUsageContentCommitment, "contentCommitment"},
	{x509.KeyUsageKeyEncipherment, "keyEncipherment"},
	{x509.KeyUsageDataEncipherment, "dataEncipherment"},
	{x509.KeyUsageKeyAgreement, "keyAgreement"},
	{x509.KeyUsageCertSign, "keyCertSign"},
	{x509.KeyUsageCRLSign, "cRLSign"},
	{x509.KeyUsageEncipherOnly, "encipherOnly"},
	{x509.KeyUsageDecipherOnly, "decipherOnly"},
}

// Describe returns the metadata of a certificate. Validity is evaluated with the store clock.
func (s *Store) Describe(cert *x509.Certificate) Info {
	info := Info{
		Subject:    cert.Subject.String(),
		Issuer:     cert.Issuer.String(),
		Serial:     fmt.Sprintf("%x", cert.SerialNumber),
		NotBefore:  cert.NotBefore,
		NotAfter:   cert.NotAfter,
		Address:    firstAddress(cert),
		SelfSigned: bytes.Equal(cert.RawIssuer, cert.RawSubject),
		Valid:      s.VerifyValidity(cert),
	}

	if info.Address == "" {
		for _, name := range cert.Subject.Names {
			if name.Type.Equal(oidEmailAddress) {
				info.Address, _ = name.Value.(string)
				break
			}
		}
	}

	for _, ku := range keyUsageNames {
		if cert.KeyUsage&ku.usage != 0 {
			info.KeyUsage = append(info.KeyUsage, ku.name)
		}
	}

	return info
}
