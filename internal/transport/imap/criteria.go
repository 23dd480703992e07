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

package imap

import (
	"fmt"
	"strings"
	"time"

	goimap "github.com/emersion/go-imap"
)

var dateLayouts = []string{
	"02-Jan-2006",
	"2-Jan-2006",
	"2006-01-02",
}

// ParseCriteria parses a search expression of ANDed keys: ALL, SEEN, UNSEEN, SINCE <date>,
// BEFORE <date>, FROM <address> and SUBJECT <text>. Text arguments may be double quoted.
func ParseCriteria(expression string) (*goimap.SearchCriteria, error) {
	criteria := goimap.NewSearchCriteria()

	tokens, err := tokenize(expression)
	if err != nil {
		return nil, err
	}

	for i := 0; i < len(tokens); i++ {
		key := strings.ToUpper(tokens[i])

		switch key {
		case "ALL":
			continue
		case "SEEN":
			criteria.WithFlags = append(criteria.WithFlags, goimap.SeenFlag)
			continue
		case "UNSEEN":
			criteria.WithoutFlags = append(criteria.WithoutFlags, goimap.SeenFlag)
			continue
		}

		if i+1 >= len(tokens) {
			return nil, fmt.Errorf("search key %s needs an argument", key)
		}

		i++
		arg := tokens[i]

		switch key {
		case "SINCE":
			date, err := parseDate(arg)
			if err != nil {
				return nil, err
			}

			criteria.Since = date

		case "BEFORE":
			date, err := parseDate(arg)
			if err != nil {
				return nil, err
			}

			criteria.Before = date

		case "FROM":
			criteria.Header.Add("From", arg)

		case "SUBJECT":
			criteria.Header.Add("Subject", arg)

		default:
			return nil, fmt.Errorf("unsupported search key %s", key)
		}
	}

	return criteria, nil
}

// ExcludesSeen reports whether the search expression only matches messages without the seen flag.
func ExcludesSeen(expression string) (bool, error) {
	criteria, err := ParseCriteria(expression)
	if err != nil {
		return false, err
	}

	for _, flag := range criteria.WithoutFlags {
		if flag == goimap.SeenFlag {
			return true, nil
		}
	}

	return false, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if date, err := time.Parse(layout, s); err == nil {
			return date, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func tokenize(s string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		quoted  bool
		pending bool
	)

	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			pending = true
		case !quoted && (r == ' ' || r == '\t'):
			if pending {
				tokens = append(tokens, current.String())
				current.Reset()
				pending = false
			}
		default:
			current.WriteRune(r)
			pending = true
		}
	}

	if quoted {
		return nil, fmt.Errorf("unterminated quote in %q", s)
	}

	if pending {
		tokens = append(tokens, current.String())
	}

	return tokens, nil
}
