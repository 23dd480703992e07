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

package models

import (
	"database/sql/driver"
	"errors"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrInvalidAddressFormat is used for addresses of zero length, without an "@" sign or with an
	// empty local-part or domain.
	ErrInvalidAddressFormat = errors.New("address: invalid format")

	// ErrPathTooLong is used for addresses, that are too long or contain a path
	// that is too long according to RFC#5321.
	ErrPathTooLong = errors.New("address: path too long")

	// ZeroAddress is an invalid, zero value Address.
	ZeroAddress Address
)

// Address is a direct address of the form "local-part@domain".
type Address struct {
	raw string
	at  int
}

// Parse splits an address at the last "@" sign, requires both sides to be non-empty and checks
// for size limits. Whitespace and characters, that would break a header line, are rejected.
func Parse(raw string) (Address, error) {
	raw = strings.TrimSpace(raw)

	if len(raw) == 0 || strings.ContainsAny(raw, " \t\r\n<>,;\"") {
		return ZeroAddress, ErrInvalidAddressFormat
	}

	at := strings.LastIndex(raw, "@")
	if at <= 0 || at == len(raw)-1 {
		return ZeroAddress, ErrInvalidAddressFormat
	}

	// see RFC#5321 4.5.3.1
	if at > 64 || len(raw)-at > 256 || len(raw) > 256 {
		return ZeroAddress, ErrPathTooLong
	}

	return Address{raw, at}, nil
}

// ParseList parses every raw address and stops at the first invalid one. The index of the
// offending element is returned together with the error.
func ParseList(raws []string) ([]Address, int, error) {
	list := make([]Address, 0, len(raws))

	for i, raw := range raws {
		addr, err := Parse(raw)
		if err != nil {
			return nil, i, err
		}

		list = append(list, addr)
	}

	return list, -1, nil
}

// String returns the raw address provided to Parse.
func (a Address) String() string {
	return a.raw
}

// IsZero reports whether a is the zero address.
func (a Address) IsZero() bool {
	return a.raw == ""
}

// LocalPart returns the part left of the "@" sign (exclusive).
func (a Address) LocalPart() string {
	return a.raw[:a.at]
}

// Domain return the part right of the "@" sign (exclusive).
func (a Address) Domain() string {
	return a.raw[a.at+1:]
}

// Folded returns the address with both parts case-folded. Direct addresses are compared and
// stored in this form.
func (a Address) Folded() Address {
	if a.IsZero() {
		return a
	}

	localPart := fold.String(a.LocalPart())

	return Address{
		raw: localPart + "@" + strings.ToLower(a.Domain()),
		at:  len(localPart),
	}
}

// Equal compares two addresses ignoring case.
func (a Address) Equal(b Address) bool {
	return a.Folded().raw == b.Folded().raw
}

// MarshalText implements the encoding.TextMarshaler interface.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.raw), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (a *Address) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}

	*a = v
	return nil
}

// Scan implements the sql.Scanner interface.
func (a *Address) Scan(src interface{}) error {
	s, err := driver.String.ConvertValue(src)
	if err != nil {
		return err
	}

	v, err := Parse(s.(string))
	if err != nil {
		return err
	}

	*a = v
	return nil
}

// Value implements the sql/driver.Valuer interface.
func (a Address) Value() (driver.Value, error) {
	return a.raw, nil
}

// domainProfile maps domains for lookup with IDNA2008 semantics. Deviation characters such as
// "ß" are kept instead of being mapped transitionally, independent of the go version.
var domainProfile = idna.New(idna.MapForLookup(), idna.BidiRule(), idna.Transitional(false))

// DomainToUnicode normalizes a punycode domain to unicode and applies the
// NFC normal form.
func DomainToUnicode(domain string) (string, error) {
	mapped, err := domainProfile.ToUnicode(domain)
	if err != nil {
		return domain, err
	}

	return norm.NFC.String(mapped), nil
}

// DomainToASCII transforms a unicode domain to punycode.
func DomainToASCII(domain string) (string, error) {
	mapped, err := DomainToUnicode(domain)
	if err != nil {
		return domain, err
	}

	return domainProfile.ToASCII(mapped)
}

// fold is a cases.Caser to fold unicode text. Folding is more or less "compatible" lowercase.
var fold = cases.Fold()
