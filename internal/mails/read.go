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

package mails

import (
	"errors"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	"github.com/lukasdietrich/briefdirect/internal/models"
)

var wordDecoder = new(mime.WordDecoder)

// Parts are the leaves of a message classified into bodies and attachments.
type Parts struct {
	Text        string
	HTML        string
	Attachments []models.Attachment
}

// Message is a parsed rfc5322 message. Header fields, that could not be parsed, are left empty.
type Message struct {
	Parts

	MessageID   string
	From        string
	To          []string
	Subject     string
	Date        time.Time
	ContentType string
}

// Read parses the header and walks all parts of a message. The first text/plain and the first
// text/html leaf become the bodies. Every leaf with an attachment disposition or a filename, and
// every leaf, that is neither text/plain nor text/html, becomes an attachment.
func Read(r io.Reader) (*Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, err
	}

	msg := Message{
		MessageID: headerMessageID(mr.Header),
		From:      headerFirstAddress(mr.Header, "From"),
		To:        headerAddresses(mr.Header, "To"),
		Subject:   headerText(mr.Header, "Subject"),
	}

	msg.Date, _ = mr.Header.Date()
	msg.ContentType, _, _ = mr.Header.ContentType()

	if err := walkParts(mr, &msg.Parts); err != nil {
		return nil, err
	}

	return &msg, nil
}

// ExtractParts reads a message and only returns the classified parts.
func ExtractParts(r io.Reader) (*Parts, error) {
	msg, err := Read(r)
	if err != nil {
		return nil, err
	}

	return &msg.Parts, nil
}

func walkParts(mr *mail.Reader, parts *Parts) error {
	var seenText, seenHTML bool

	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil && (p == nil || !message.IsUnknownCharset(err)) {
			return err
		}

		var h message.Header

		switch ph := p.Header.(type) {
		case *mail.InlineHeader:
			h = ph.Header
		case *mail.AttachmentHeader:
			h = ph.Header
		default:
			continue
		}

		content, err := io.ReadAll(p.Body)
		if err != nil {
			return err
		}

		mediaType, ctParams, err := h.ContentType()
		if err != nil || mediaType == "" {
			mediaType = "text/plain"
		}

		disposition, dispParams, _ := h.ContentDisposition()

		filename := dispParams["filename"]
		if filename == "" {
			filename = ctParams["name"]
		}

		filename = decodeWord(filename)
		isAttachment := strings.EqualFold(disposition, "attachment") || filename != ""

		switch {
		case !isAttachment && mediaType == "text/plain":
			if !seenText {
				parts.Text = trimLineBreak(content)
				seenText = true
			}

		case !isAttachment && mediaType == "text/html":
			if !seenHTML {
				parts.HTML = trimLineBreak(content)
				seenHTML = true
			}

		default:
			if filename == "" {
				filename = defaultFilename(mediaType)
			}

			parts.Attachments = append(parts.Attachments,
				models.NewAttachment(filename, mediaType, content))
		}
	}
}

// trimLineBreak removes the line break, that terminates the last line of a text part on the wire.
func trimLineBreak(content []byte) string {
	text := string(content)

	if strings.HasSuffix(text, "\r\n") {
		return text[:len(text)-2]
	}

	return strings.TrimSuffix(text, "\n")
}

func defaultFilename(mediaType string) string {
	if i := strings.IndexByte(mediaType, '/'); i >= 0 && i < len(mediaType)-1 {
		return "attachment." + mediaType[i+1:]
	}

	return "attachment"
}

func headerMessageID(h mail.Header) string {
	return strings.TrimSpace(h.Get("Message-Id"))
}

func headerText(h mail.Header, key string) string {
	if text, err := h.Text(key); err == nil {
		return text
	}

	return h.Get(key)
}

func headerAddresses(h mail.Header, key string) []string {
	list, err := h.AddressList(key)
	if err == nil {
		addresses := make([]string, 0, len(list))

		for _, addr := range list {
			addresses = append(addresses, addr.Address)
		}

		return addresses
	}

	var addresses []string

	for _, raw := range strings.Split(h.Get(key), ",") {
		if raw = strings.Trim(strings.TrimSpace(raw), "<>"); raw != "" {
			addresses = append(addresses, raw)
		}
	}

	return addresses
}

func headerFirstAddress(h mail.Header, key string) string {
	if addresses := headerAddresses(h, key); len(addresses) > 0 {
		return addresses[0]
	}

	return ""
}

func decodeWord(s string) string {
	if decoded, err := wordDecoder.DecodeHeader(s); err == nil {
		return decoded
	}

	return s
}
