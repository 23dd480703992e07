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
	"bytes"
	"io"
	"mime"
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/lukasdietrich/briefdirect/internal/models"
)

const defaultContentType = "application/octet-stream"

// Compose writes an envelope as an rfc5322 message. A plain body is written as a single part, an
// html alternative turns the body into multipart/alternative and attachments wrap the body into
// multipart/mixed.
func Compose(w io.Writer, env *models.Envelope) error {
	h := composeHeader(env)

	if len(env.Attachments) == 0 {
		if env.HTMLBody == "" {
			setTextHeader(&h.Header, "text/plain")

			body, err := mail.CreateSingleInlineWriter(w, h)
			if err != nil {
				return err
			}

			return writeAndClose(body, []byte(env.Body))
		}

		iw, err := mail.CreateInlineWriter(w, h)
		if err != nil {
			return err
		}

		if err := writeAlternative(iw, env); err != nil {
			return err
		}

		return iw.Close()
	}

	mw, err := mail.CreateWriter(w, h)
	if err != nil {
		return err
	}

	if err := writeBody(mw, env); err != nil {
		return err
	}

	for _, attachment := range env.Attachments {
		if err := writeAttachment(mw, attachment); err != nil {
			return err
		}
	}

	return mw.Close()
}

// ComposeBytes is a shorthand for Compose into a buffer.
func ComposeBytes(env *models.Envelope) ([]byte, error) {
	var buf bytes.Buffer

	if err := Compose(&buf, env); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func composeHeader(env *models.Envelope) mail.Header {
	var h mail.Header

	h.SetDate(env.CreatedAt.UTC())
	h.SetAddressList("From", []*mail.Address{{Address: env.From.String()}})
	h.SetAddressList("To", toMailAddresses(env.To))
	h.SetSubject(env.Subject)
	h.Set("Message-Id", env.MessageID)
	h.Set("MIME-Version", "1.0")

	return h
}

func writeBody(mw *mail.Writer, env *models.Envelope) error {
	if env.HTMLBody == "" {
		var th mail.InlineHeader
		setTextHeader(&th.Header, "text/plain")

		body, err := mw.CreateSingleInline(th)
		if err != nil {
			return err
		}

		return writeAndClose(body, []byte(env.Body))
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return err
	}

	if err := writeAlternative(iw, env); err != nil {
		return err
	}

	return iw.Close()
}

func writeAlternative(iw *mail.InlineWriter, env *models.Envelope) error {
	for _, part := range []struct {
		contentType string
		content     string
	}{
		{"text/plain", env.Body},
		{"text/html", env.HTMLBody},
	} {
		var th mail.InlineHeader
		setTextHeader(&th.Header, part.contentType)

		w, err := iw.CreatePart(th)
		if err != nil {
			return err
		}

		if err := writeAndClose(w, []byte(part.content)); err != nil {
			return err
		}
	}

	return nil
}

func writeAttachment(mw *mail.Writer, attachment models.Attachment) error {
	var ah mail.AttachmentHeader

	mediaType, params := parseContentType(attachment.ContentType)
	ah.SetContentType(mediaType, params)
	ah.SetFilename(attachment.Filename)
	ah.Set("Content-Transfer-Encoding", "base64")

	w, err := mw.CreateAttachment(ah)
	if err != nil {
		return err
	}

	return writeAndClose(w, attachment.Content)
}

type headerSetter interface {
	Set(key, value string)
	SetContentType(t string, params map[string]string)
}

func setTextHeader(h headerSetter, contentType string) {
	h.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")
}

func parseContentType(contentType string) (string, map[string]string) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.Contains(mediaType, "/") {
		return defaultContentType, nil
	}

	return mediaType, params
}

func toMailAddresses(list []models.Address) []*mail.Address {
	addresses := make([]*mail.Address, len(list))

	for i, addr := range list {
		addresses[i] = &mail.Address{Address: addr.String()}
	}

	return addresses
}

func writeAndClose(w io.WriteCloser, content []byte) error {
	if _, err := w.Write(content); err != nil {
		w.Close()
		return err
	}

	return w.Close()
}
