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

package envelope

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/lukasdietrich/briefdirect/internal/crypto"
	"github.com/lukasdietrich/briefdirect/internal/models"
)

func TestBuilderTestSuite(t *testing.T) {
	suite.Run(t, new(BuilderTestSuite))
}

type BuilderTestSuite struct {
	suite.Suite

	idGen   *crypto.MockIDGenerator
	builder *Builder
}

func (s *BuilderTestSuite) SetupTest() {
	s.idGen = new(crypto.MockIDGenerator)
	s.builder = NewBuilder(s.idGen)
	s.builder.now = func() time.Time {
		return time.Date(2026, 3, 14, 15, 9, 26, 535897932, time.FixedZone("CET", 3600))
	}
}

func (s *BuilderTestSuite) TearDownTest() {
	mock.AssertExpectationsForObjects(s.T(), s.idGen)
}

func (s *BuilderTestSuite) draft() Draft {
	return Draft{
		From:    "a@x.direct",
		To:      []string{"b@y.direct"},
		Subject: "Result",
		Body:    "See attached",
		Attachments: []models.Attachment{
			{Filename: "report.pdf", ContentType: "application/pdf", Content: make([]byte, 37)},
		},
	}
}

func (s *BuilderTestSuite) TestBuild() {
	s.idGen.On("GenerateMessageID", "x.direct").Return("<id1@x.direct>", nil)

	env, err := s.builder.Build(s.draft())
	s.Require().NoError(err)

	s.Assert().Equal("<id1@x.direct>", env.MessageID)
	s.Assert().Equal("a@x.direct", env.From.String())
	s.Assert().Equal([]string{"b@y.direct"}, env.Recipients())
	s.Assert().True(time.Date(2026, 3, 14, 14, 9, 26, 0, time.UTC).Equal(env.CreatedAt))
	s.Require().Len(env.Attachments, 1)
	s.Assert().EqualValues(37, env.Attachments[0].Size)
}

func (s *BuilderTestSuite) TestBuildDeduplicatesRecipients() {
	s.idGen.On("GenerateMessageID", "x.direct").Return("<id2@x.direct>", nil)

	draft := s.draft()
	draft.To = []string{"b@y.direct", "c@y.direct", "B@Y.direct"}

	env, err := s.builder.Build(draft)
	s.Require().NoError(err)
	s.Assert().Equal([]string{"b@y.direct", "c@y.direct"}, env.Recipients())
}

func (s *BuilderTestSuite) TestBuildUnicodeDomain() {
	s.idGen.On("GenerateMessageID", "xn--dmin-moa0i.example").Return("<id3@xn--dmin-moa0i.example>", nil)

	draft := s.draft()
	draft.From = "a@dömäin.example"

	_, err := s.builder.Build(draft)
	s.Require().NoError(err)
}

func (s *BuilderTestSuite) TestBuildIDError() {
	s.idGen.On("GenerateMessageID", "x.direct").Return("", errors.New("no entropy"))

	_, err := s.builder.Build(s.draft())
	s.Assert().EqualError(err, "no entropy")
}

func (s *BuilderTestSuite) TestBuildValidation() {
	for field, modify := range map[string]func(*Draft){
		"from":       func(d *Draft) { d.From = "nobody" },
		"to":         func(d *Draft) { d.To = []string{"b@y.direct", "@y.direct"} },
		"subject":    func(d *Draft) { d.Subject = "  " },
		"body":       func(d *Draft) { d.Body = "" },
		"attachment": func(d *Draft) { d.Attachments = []models.Attachment{{ContentType: "application/pdf"}} },
	} {
		draft := s.draft()
		modify(&draft)

		env, err := s.builder.Build(draft)
		s.Assert().Nil(env)

		var validationErr *models.ValidationError
		s.Require().True(errors.As(err, &validationErr), field)
		s.Assert().Equal(field, validationErr.Field)
	}
}

func (s *BuilderTestSuite) TestBuildFirstViolationWins() {
	draft := s.draft()
	draft.From = "broken"
	draft.Subject = ""

	_, err := s.builder.Build(draft)

	var validationErr *models.ValidationError
	s.Require().True(errors.As(err, &validationErr))
	s.Assert().Equal("from", validationErr.Field)
}

func (s *BuilderTestSuite) TestBuildWithoutRecipients() {
	draft := s.draft()
	draft.To = nil

	_, err := s.builder.Build(draft)
	s.Assert().EqualError(err, "validation: to: at least one recipient is required")
}

func (s *BuilderTestSuite) TestSerializeParse() {
	s.idGen.On("GenerateMessageID", "x.direct").Return("<id4@x.direct>", nil)

	draft := s.draft()
	draft.Body = "line one\nline two"
	draft.HTMLBody = "<p>line one</p>"

	env, err := s.builder.Build(draft)
	s.Require().NoError(err)

	raw, err := Serialize(env)
	s.Require().NoError(err)

	parsed, err := Parse(raw)
	s.Require().NoError(err)

	s.Assert().Equal(env.MessageID, parsed.MessageID)
	s.Assert().Equal(env.From, parsed.From)
	s.Assert().Equal(env.To, parsed.To)
	s.Assert().Equal(env.Subject, parsed.Subject)
	s.Assert().Equal(env.Body, parsed.Body)
	s.Assert().Equal(env.HTMLBody, parsed.HTMLBody)
	s.Assert().True(env.CreatedAt.Equal(parsed.CreatedAt))
	s.Require().Len(parsed.Attachments, 1)
	s.Assert().Equal(env.Attachments[0], parsed.Attachments[0])
}

func (s *BuilderTestSuite) TestSerializeInvalid() {
	_, err := Serialize(&models.Envelope{})
	s.Assert().True(errors.Is(err, models.ErrValidation))
}

func (s *BuilderTestSuite) TestParseInvalidSender() {
	_, err := Parse([]byte("From: nobody\r\nTo: b@y.direct\r\nSubject: x\r\n\r\nbody"))
	s.Assert().True(errors.Is(err, models.ErrValidation))
}
