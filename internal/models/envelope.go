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
	"time"
)

// Attachment is a named binary part of a message.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	// Size is the number of bytes of the decoded content. It may be set without Content, when a
	// transport reports attachments before they are downloaded.
	Size    int64  `json:"size"`
	Content []byte `json:"-"`
}

// NewAttachment creates an attachment and computes its size.
func NewAttachment(filename, contentType string, content []byte) Attachment {
	return Attachment{
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(content)),
		Content:     content,
	}
}

// Envelope is the canonical outbound message before it is protected.
type Envelope struct {
	// MessageID is the globally unique id of the form "<uuid@domain>".
	MessageID   string
	From        Address
	To          []Address
	Subject     string
	Body        string
	HTMLBody    string
	Attachments []Attachment
	CreatedAt   time.Time
}

// Recipients returns the recipient addresses as strings in their original order.
func (e *Envelope) Recipients() []string {
	recipients := make([]string, len(e.To))

	for i, to := range e.To {
		recipients[i] = to.String()
	}

	return recipients
}
