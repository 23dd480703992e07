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

package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/lukasdietrich/briefdirect/internal/metrics"
	"github.com/lukasdietrich/briefdirect/internal/models"
)

type mockSink struct {
	mock.Mock
	name string
}

func (m *mockSink) Name() string {
	return m.name
}

func (m *mockSink) Append(ctx context.Context, event models.AuditEvent) error {
	return m.Called(ctx, event).Error(0)
}

func TestTrailTestSuite(t *testing.T) {
	suite.Run(t, new(TrailTestSuite))
}

type TrailTestSuite struct {
	suite.Suite

	first   *mockSink
	second  *mockSink
	metrics *metrics.Metrics
	trail   *Trail
	now     time.Time
}

func (s *TrailTestSuite) SetupTest() {
	s.first = &mockSink{name: "first"}
	s.second = &mockSink{name: "second"}
	s.metrics = metrics.New(metrics.NewRegistry())
	s.now = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	s.trail = NewTrail(s.metrics, []Sink{s.first, s.second})
	s.trail.now = func() time.Time { return s.now }
}

func (s *TrailTestSuite) TearDownTest() {
	mock.AssertExpectationsForObjects(s.T(), s.first, s.second)
}

func (s *TrailTestSuite) TestRecordTimestamps() {
	expected := Success(models.EventMessageSent, "a@x.direct", "<1@x.direct>")
	expected.Timestamp = s.now

	s.first.On("Append", mock.Anything, expected).Return(nil).Once()
	s.second.On("Append", mock.Anything, expected).Return(nil).Once()

	s.trail.Record(context.TODO(), Success(models.EventMessageSent, "a@x.direct", "<1@x.direct>"))
}

func (s *TrailTestSuite) TestRecordKeepsTimestamp() {
	local := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))

	event := Success(models.EventMessageReceived, "b@y.direct", "<2@x.direct>")
	event.Timestamp = local

	expected := event
	expected.Timestamp = local.UTC()

	s.first.On("Append", mock.Anything, expected).Return(nil).Once()
	s.second.On("Append", mock.Anything, expected).Return(nil).Once()

	s.trail.Record(context.TODO(), event)
}

func (s *TrailTestSuite) TestRecordSinkFailure() {
	s.first.On("Append", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()
	s.second.On("Append", mock.Anything, mock.Anything).Return(nil).Once()

	s.trail.Record(context.TODO(), Success(models.EventCertificate, "a@x.direct", ""))

	s.Assert().Equal(1.0, testutil.ToFloat64(s.metrics.AuditSinkFailures.WithLabelValues("first")))
	s.Assert().Equal(0.0, testutil.ToFloat64(s.metrics.AuditSinkFailures.WithLabelValues("second")))
}

func (s *TrailTestSuite) TestRecordWithoutSinks() {
	trail := NewTrail(nil, nil)

	s.Assert().NotPanics(func() {
		trail.Record(context.TODO(), Success(models.EventMessageSent, "", ""))
	})
}

func (s *TrailTestSuite) TestFailure() {
	event := Failure(models.EventMessageDecrypted, "b@y.direct", "<1@x.direct>", errors.New("bad key"))

	s.Assert().Equal(models.OutcomeFailure, event.Outcome)
	s.Assert().Equal("bad key", event.Detail)

	event = Failure(models.EventTransportFailure, "", "", nil)
	s.Assert().Empty(event.Detail)
}
