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

package log

import (
	"bytes"
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
)

// capturingSuite points the global Logger at a buffer for the duration of a test.
type capturingSuite struct {
	suite.Suite

	output   bytes.Buffer
	previous zerolog.Logger
}

func (s *capturingSuite) SetupTest() {
	s.previous = Logger
	s.output.Reset()

	Logger = zerolog.New(&s.output).Level(zerolog.TraceLevel)
}

func (s *capturingSuite) TearDownTest() {
	Logger = s.previous
}

// lines decodes and consumes the json lines written so far.
func (s *capturingSuite) lines() []map[string]string {
	var lines []map[string]string

	decoder := json.NewDecoder(&s.output)
	for decoder.More() {
		var line map[string]string
		s.Require().NoError(decoder.Decode(&line))
		lines = append(lines, line)
	}

	return lines
}

// requireLine asserts that exactly one line with exactly the given fields was written.
func (s *capturingSuite) requireLine(fields map[string]string) {
	lines := s.lines()
	s.Require().Len(lines, 1)
	s.Equal(fields, lines[0])
}
