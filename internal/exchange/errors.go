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

package exchange

import (
	"fmt"
	"strings"
)

// Outcome is the failure of a single item of a batch.
type Outcome struct {
	Address   string
	MessageID string
	NativeID  string
	Err       error
}

func (o Outcome) String() string {
	var ids []string

	for _, id := range []string{o.Address, o.MessageID, o.NativeID} {
		if id != "" {
			ids = append(ids, id)
		}
	}

	return fmt.Sprintf("[%s] %v", strings.Join(ids, " "), o.Err)
}

// PartialBatchFailure is returned by batch operations, when some items failed and the remaining
// items were processed.
type PartialBatchFailure struct {
	Total    int
	Outcomes []Outcome
}

func (e *PartialBatchFailure) Error() string {
	if len(e.Outcomes) == 0 {
		return "exchange: batch failed"
	}

	return fmt.Sprintf("exchange: %d of %d items failed, first %s",
		len(e.Outcomes), e.Total, e.Outcomes[0])
}

// Unwrap returns the errors of all failed items.
func (e *PartialBatchFailure) Unwrap() []error {
	errs := make([]error, len(e.Outcomes))

	for i, outcome := range e.Outcomes {
		errs[i] = outcome.Err
	}

	return errs
}

type batch struct {
	failure PartialBatchFailure
}

func (b *batch) fail(outcome Outcome) {
	b.failure.Outcomes = append(b.failure.Outcomes, outcome)
}

func (b *batch) err(total int) error {
	if len(b.failure.Outcomes) == 0 {
		return nil
	}

	b.failure.Total = total
	return &b.failure
}
