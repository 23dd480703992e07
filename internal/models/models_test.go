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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := error(NewValidationError("subject", "subject is required"))

	assert.EqualError(t, err, "validation: subject: subject is required")
	assert.True(t, errors.Is(err, ErrValidation))

	var validationErr *ValidationError
	assert.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "subject", validationErr.Field)
}

func TestValidationErrorUnwrap(t *testing.T) {
	err := &ValidationError{Field: "from", Reason: "invalid address", Err: ErrInvalidAddressFormat}

	assert.True(t, errors.Is(err, ErrInvalidAddressFormat))
	assert.EqualError(t, err, "validation: from: invalid address: address: invalid format")
}

func TestNewAttachmentSize(t *testing.T) {
	attachment := NewAttachment("report.pdf", "application/pdf", make([]byte, 37))
	assert.EqualValues(t, 37, attachment.Size)
}

func TestRecipientProjection(t *testing.T) {
	msg := ReceivedMessage{To: []string{"a@x.direct", "b@y.direct"}}
	assert.Equal(t, "a@x.direct, b@y.direct", msg.Recipient())

	assert.Equal(t, "", new(ReceivedMessage).Recipient())
}
