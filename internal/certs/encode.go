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
	"fmt"
	"strings"
)

// EncodeAddress maps an address to a name, that is safe to use as a file name on every common
// filesystem. The mapping is deterministic and injective for case-folded addresses.
func EncodeAddress(address string) string {
	var b strings.Builder

	for _, c := range []byte(strings.ToLower(address)) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '.', c == '+', c == '-':
			b.WriteByte(c)
		case c == '@':
			b.WriteString("_at_")
		default:
			fmt.Fprintf(&b, "_%02x", c)
		}
	}

	return b.String()
}

// legacyEncodeAddress is the flat naming used by older enrollment tooling. It is only used to find
// existing material.
func legacyEncodeAddress(address string) string {
	return strings.NewReplacer("@", "_at_", ".", "_").Replace(address)
}
