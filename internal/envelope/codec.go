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
	"bytes"
	"strings"

	"github.com/lukasdietrich/briefdirect/internal/mails"
	"github.com/lukasdietrich/briefdirect/internal/models"
)

// Serialize writes an envelope as rfc5322 bytes.
func Serialize(env *models.Envelope) ([]byte, error) {
	if err := Validate(env); err != nil {
		return nil, err
	}

	return mails.ComposeBytes(env)
}

// Parse reads bytes created by Serialize back into an envelope. Line breaks in the bodies are
// normalized to "\n".
func Parse(raw []byte) (*models.Envelope, error) {
	msg, err := mails.Read(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	from, err := models.Parse(msg.From)
	if err != nil {
		return nil, &models.ValidationError{Field: "from", Reason: "invalid from address", Err: err}
	}

	to, err := parseRecipients(msg.To)
	if err != nil {
		return nil, err
	}

	return &models.Envelope{
		MessageID:   msg.MessageID,
		From:        from,
		To:          to,
		Subject:     msg.Subject,
		Body:        normalizeLineBreaks(msg.Text),
		HTMLBody:    normalizeLineBreaks(msg.HTML),
		Attachments: msg.Attachments,
		CreatedAt:   msg.Date.UTC(),
	}, nil
}

func normalizeLineBreaks(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}
