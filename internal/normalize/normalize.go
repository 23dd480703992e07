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

package normalize

import (
	"bytes"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/lukasdietrich/briefdirect/internal/mails"
	"github.com/lukasdietrich/briefdirect/internal/models"
	"github.com/lukasdietrich/briefdirect/internal/smime"
	"github.com/lukasdietrich/briefdirect/internal/transport"
)

// dateLayouts are tried in order for dates reported by queue gateways.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize converts a message of any transport into the canonical received message. Mime content
// is parsed first, structured metadata of the transport overlays the parsed fields. Missing fields
// stay empty.
func Normalize(raw transport.RawMessage) (*models.ReceivedMessage, error) {
	msg := models.ReceivedMessage{
		Transport:  raw.Transport,
		NativeID:   raw.NativeID,
		Size:       raw.Size,
		ReceivedAt: raw.ReceivedAt,
	}

	if len(raw.Content) > 0 {
		if err := applyContent(&msg, raw.Content); err != nil {
			return nil, fmt.Errorf("normalize %s message %q: %w", raw.Transport, raw.NativeID, err)
		}
	}

	if raw.Metadata != nil {
		applyMetadata(&msg, raw.Metadata)
	}

	if msg.Size <= 0 {
		msg.Size = int64(len(raw.Content))
	}

	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}

	return &msg, nil
}

func applyContent(msg *models.ReceivedMessage, content []byte) error {
	parsed, err := mails.Read(bytes.NewReader(content))
	if err != nil {
		return err
	}

	msg.Raw = content
	msg.MessageID = parsed.MessageID
	msg.From = parsed.From
	msg.To = parsed.To
	msg.Subject = parsed.Subject
	msg.Date = formatDate(parsed.Date)
	msg.Encrypted = smime.Detect(content)

	// the parts of an encrypted message are only known after it was opened.
	if !msg.Encrypted {
		msg.Body = parsed.Text
		msg.HTMLBody = parsed.HTML
		msg.Attachments = parsed.Attachments
	}

	return nil
}

func applyMetadata(msg *models.ReceivedMessage, meta *transport.Metadata) {
	overlay(&msg.MessageID, meta.MessageID)
	overlay(&msg.From, meta.From)
	overlay(&msg.Subject, meta.Subject)
	overlay(&msg.Date, parseDate(meta.ReceivedDate))

	if len(meta.To) > 0 {
		msg.To = meta.To
	}

	if smime.DetectContentType(meta.ContentType) {
		msg.Encrypted = true
	}

	if msg.Body == "" && msg.HTMLBody == "" && !msg.Encrypted {
		if strings.HasPrefix(strings.ToLower(meta.ContentType), "text/html") {
			msg.HTMLBody = meta.Body
		} else {
			msg.Body = meta.Body
		}
	}

	if len(msg.Attachments) == 0 {
		for _, attachment := range meta.Attachments {
			msg.Attachments = append(msg.Attachments, models.Attachment{
				Filename:    attachment.Filename,
				ContentType: attachment.ContentType,
				Size:        attachment.Size,
			})
		}
	}
}

// Opened replaces the content fields of msg with the opened envelope of an encrypted message.
func Opened(msg *models.ReceivedMessage, env *models.Envelope, verification models.Verification) {
	if env.MessageID != "" {
		msg.MessageID = env.MessageID
	}

	msg.From = env.From.String()
	msg.To = env.Recipients()
	msg.Subject = env.Subject
	msg.Body = env.Body
	msg.HTMLBody = env.HTMLBody
	msg.Attachments = env.Attachments
	msg.Verification = verification

	if msg.Date == "" && !env.CreatedAt.IsZero() {
		msg.Date = formatDate(env.CreatedAt)
	}
}

func overlay(field *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*field = value
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339)
}

// parseDate converts a reported date into iso-8601. Unknown formats are kept verbatim.
func parseDate(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	if t, err := mail.ParseDate(value); err == nil {
		return formatDate(t)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return formatDate(t)
		}
	}

	return value
}
