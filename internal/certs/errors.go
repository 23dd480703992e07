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
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a CertificateError.
type Kind int

const (
	_ Kind = iota
	// KindNotFound means no certificate or key is stored for an address.
	KindNotFound
	// KindParseFailure means stored material is malformed or does not belong together.
	KindParseFailure
	// KindExpired means a certificate is outside of its validity window.
	KindExpired
	// KindGenerationFailure means a new identity could not be created.
	KindGenerationFailure
	// KindUntrusted means a certificate does not chain to a configured trust anchor.
	KindUntrusted
)

var (
	// ErrNotFound matches CertificateErrors of KindNotFound.
	ErrNotFound = errors.New("certificate not found")
	// ErrParseFailure matches CertificateErrors of KindParseFailure.
	ErrParseFailure = errors.New("certificate parse failure")
	// ErrExpired matches CertificateErrors of KindExpired.
	ErrExpired = errors.New("certificate expired")
	// ErrGenerationFailure matches CertificateErrors of KindGenerationFailure.
	ErrGenerationFailure = errors.New("certificate generation failure")
	// ErrUntrusted matches CertificateErrors of KindUntrusted.
	ErrUntrusted = errors.New("certificate untrusted")
)

var kindErrors = map[Kind]error{
	KindNotFound:          ErrNotFound,
	KindParseFailure:      ErrParseFailure,
	KindExpired:           ErrExpired,
	KindGenerationFailure: ErrGenerationFailure,
	KindUntrusted:         ErrUntrusted,
}

// CertificateError identifies the identity an operation on certificate material failed for.
type CertificateError struct {
	Kind    Kind
	Address string
	Path    string
	Err     error
}

func (e *CertificateError) Error() string {
	var b strings.Builder
	b.WriteString("certs: ")
	b.WriteString(kindErrors[e.Kind].Error())

	if e.Address != "" {
		fmt.Fprintf(&b, " (address %s)", e.Address)
	}

	if e.Path != "" {
		fmt.Fprintf(&b, " (path %s)", e.Path)
	}

	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}

	return b.String()
}

func (e *CertificateError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the kind.
func (e *CertificateError) Is(target error) bool {
	return kindErrors[e.Kind] == target
}
