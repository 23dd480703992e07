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
	"strings"
	"time"

	"github.com/lukasdietrich/briefdirect/internal/crypto"
	"github.com/lukasdietrich/briefdirect/internal/models"
)

// Draft is the unvalidated input of an envelope.
type Draft struct {
	From        string
	To          []string
	Subject     string
	Body        string
	HTMLBody    string
	Attachments []models.Attachment
}

// Builder creates validated envelopes.
type Builder struct {
	idGen crypto.IDGenerator
	now   func() time.Time
}

// NewBuilder creates a new Builder.
func NewBuilder(idGen crypto.IDGenerator) *Builder {
	return &Builder{
		idGen: idGen,
		now:   time.Now,
	}
}

// Build validates a draft and turns it into an envelope with a fresh message-id. Duplicate
// recipients are dropped, keeping the first occurrence.
func (b *Builder) Build(draft Draft) (*models.Envelope, error) {
	from, err := models.Parse(draft.From)
	if err != nil {
		return nil, &models.ValidationError{Field: "from", Reason: "invalid from address", Err: err}
	}

	to, err := parseRecipients(draft.To)
	if err != nil {
		return nil, err
	}

	env := &models.Envelope{
		From:        from,
		To:          to,
		Subject:     draft.Subject,
		Body:        draft.Body,
		HTMLBody:    draft.HTMLBody,
		Attachments: sizedAttachments(draft.Attachments),
		CreatedAt:   b.now().UTC().Truncate(time.Second),
	}

	if err := Validate(env); err != nil {
		return nil, err
	}

	domain, err := models.DomainToASCII(from.Domain())
	if err != nil {
		domain = from.Domain()
	}

	if env.MessageID, err = b.idGen.GenerateMessageID(domain); err != nil {
		return nil, err
	}

	return env, nil
}

// Validate checks the invariants every envelope has to satisfy before it is transmitted. The
// returned ValidationError names the first violation.
func Validate(env *models.Envelope) error {
	if env.From.IsZero() {
		return models.NewValidationError("from", "invalid from address")
	}

	if len(env.To) == 0 {
		return models.NewValidationError("to", "at least one recipient is required")
	}

	for _, to := range env.To {
		if to.IsZero() {
			return models.NewValidationError("to", "invalid to address")
		}
	}

	if strings.TrimSpace(env.Subject) == "" {
		return models.NewValidationError("subject", "subject is required")
	}

	if strings.TrimSpace(env.Body) == "" {
		return models.NewValidationError("body", "message body is required")
	}

	for _, attachment := range env.Attachments {
		if strings.TrimSpace(attachment.Filename) == "" {
			return models.NewValidationError("attachment", "attachment filename is required")
		}
	}

	return nil
}

func parseRecipients(raws []string) ([]models.Address, error) {
	to, index, err := models.ParseList(raws)
	if err != nil {
		return nil, &models.ValidationError{
			Field:  "to",
			Reason: "invalid to address " + strings.TrimSpace(raws[index]),
			Err:    err,
		}
	}

	unique := to[:0]
	seen := make(map[string]bool, len(to))

	for _, addr := range to {
		key := addr.Folded().String()

		if !seen[key] {
			seen[key] = true
			unique = append(unique, addr)
		}
	}

	return unique, nil
}

func sizedAttachments(attachments []models.Attachment) []models.Attachment {
	sized := make([]models.Attachment, len(attachments))

	for i, attachment := range attachments {
		sized[i] = models.NewAttachment(attachment.Filename, attachment.ContentType, attachment.Content)
	}

	return sized
}
