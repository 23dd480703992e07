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

package main

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in/report.pdf", []byte("%PDF-1.4"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/in/blob", []byte{1, 2, 3}, 0644))
	require.NoError(t, afero.WriteFile(fs, "/in/batch.json", []byte(`[
		{
			"from": "a@x.direct",
			"to": ["b@y.direct"],
			"subject": "Referral",
			"body": "see attachment",
			"attachments": ["/in/report.pdf", "/in/blob"],
			"requestDeliveryStatus": true
		},
		{
			"from": "a@x.direct",
			"to": ["c@y.direct"],
			"subject": "Follow up",
			"body": "hello"
		}
	]`), 0644))

	reqs, err := loadBatch(fs, "/in/batch.json")
	require.NoError(t, err)
	require.Len(t, reqs, 2)

	assert.Equal(t, "a@x.direct", reqs[0].From)
	assert.Equal(t, []string{"b@y.direct"}, reqs[0].To)
	assert.True(t, reqs[0].RequestDeliveryStatus)
	assert.False(t, reqs[0].RequestReadReceipt)

	require.Len(t, reqs[0].Attachments, 2)
	assert.Equal(t, "report.pdf", reqs[0].Attachments[0].Filename)
	assert.Equal(t, "application/pdf", reqs[0].Attachments[0].ContentType)
	assert.EqualValues(t, 8, reqs[0].Attachments[0].Size)
	assert.Equal(t, "blob", reqs[0].Attachments[1].Filename)
	assert.Equal(t, "application/octet-stream", reqs[0].Attachments[1].ContentType)

	assert.Empty(t, reqs[1].Attachments)
}

func TestLoadBatchMissingAttachment(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/batch.json", []byte(`[{"attachments": ["/missing"]}]`), 0644))

	_, err := loadBatch(fs, "/batch.json")
	assert.ErrorContains(t, err, "batch entry 0")
}

func TestLoadBatchInvalidJSON(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/batch.json", []byte(`{`), 0644))

	_, err := loadBatch(fs, "/batch.json")
	assert.ErrorContains(t, err, "could not parse batch file")
}

func TestCommandsAreDocumented(t *testing.T) {
	for name, spec := range commands {
		assert.NotEmpty(t, spec.usage, name)
		assert.NotNil(t, spec.init, name)
	}
}
