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
	"fmt"
)

// ErrValidation matches every ValidationError using errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError is a caller fault in an envelope or address. It names the first violated
// invariant and is never worth retrying.
type ValidationError struct {
	// Field is the name of the offending field, e.g. "from", "to", "subject" or "body".
	Field string
	// Reason is a human readable description of the violation.
	Reason string
	// Err is the underlying parse error, if any.
	Err error
}

// NewValidationError creates a ValidationError without an underlying cause.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation: %s: %s: %v", e.Field, e.Reason, e.Err)
	}

	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is makes ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
