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

package smime

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
)

const (
	typeEnveloped = "enveloped-data"
	typeSigned    = "signed-data"

	mediaPKCS7Mime      = "application/pkcs7-mime"
	mediaXPKCS7Mime     = "application/x-pkcs7-mime"
	mediaPKCS7Signature = "application/pkcs7-signature"
	mediaMultiSigned    = "multipart/signed"
)

// Detect reports whether raw is an enveloped s/mime entity. Only the header is inspected.
func Detect(raw []byte) bool {
	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return false
	}

	return DetectContentType(h.Get("Content-Type"))
}

// DetectContentType reports whether a Content-Type header value belongs to the pkcs7-mime family
// and is not explicitly a signed-only entity.
func DetectContentType(contentType string) bool {
	var h message.Header
	h.Set("Content-Type", contentType)

	mediaType, params, err := h.ContentType()
	if err != nil {
		return false
	}

	return isPKCS7Mime(mediaType) && !strings.EqualFold(params["smime-type"], typeSigned)
}

func isPKCS7Mime(mediaType string) bool {
	return mediaType == mediaPKCS7Mime || mediaType == mediaXPKCS7Mime
}

// entity is a decoded single part s/mime entity.
type entity struct {
	header    message.Header
	mediaType string
	params    map[string]string
	body      []byte
}

func readEntity(raw []byte) (*entity, error) {
	e, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, err
	}

	mediaType, params, err := e.Header.ContentType()
	if err != nil {
		mediaType, params = "text/plain", nil
	}

	body, err := io.ReadAll(e.Body)
	if err != nil {
		return nil, err
	}

	return &entity{header: e.Header, mediaType: mediaType, params: params, body: body}, nil
}

// writeEntity writes der as a base64 encoded pkcs7-mime entity. The header h may carry additional
// fields to echo on the entity.
func writeEntity(w io.Writer, h mail.Header, smimeType string, der []byte) error {
	h.Set("MIME-Version", "1.0")
	h.SetContentType(mediaPKCS7Mime, map[string]string{
		"smime-type": smimeType,
		"name":       "smime.p7m",
	})
	h.SetContentDisposition("attachment", map[string]string{"filename": "smime.p7m"})
	h.Set("Content-Transfer-Encoding", "base64")

	ew, err := message.CreateWriter(w, h.Header)
	if err != nil {
		return err
	}

	if _, err := ew.Write(der); err != nil {
		ew.Close()
		return err
	}

	return ew.Close()
}

// splitDetached separates a multipart/signed body into the raw signed content, including its
// header, and the der encoded detached signature.
func splitDetached(header message.Header, body []byte, boundary string) ([]byte, []byte, error) {
	if boundary == "" {
		return nil, nil, errors.New("multipart/signed without boundary")
	}

	delimiter := []byte("--" + boundary)

	start := bytes.Index(body, delimiter)
	if start < 0 {
		return nil, nil, errors.New("missing opening boundary")
	}

	start += len(delimiter)
	switch {
	case bytes.HasPrefix(body[start:], []byte("\r\n")):
		start += 2
	case bytes.HasPrefix(body[start:], []byte("\n")):
		start++
	}

	end := bytes.Index(body[start:], append([]byte("\r\n"), delimiter...))
	if end < 0 {
		return nil, nil, errors.New("missing closing boundary")
	}

	content := body[start : start+end]

	e, err := message.New(header, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}

	mr := e.MultipartReader()
	if mr == nil {
		return nil, nil, errors.New("not a multipart entity")
	}

	for {
		part, err := mr.NextPart()
		if err != nil {
			if err == io.EOF {
				return nil, nil, errors.New("missing signature part")
			}

			return nil, nil, err
		}

		mediaType, _, _ := part.Header.ContentType()
		if mediaType != mediaPKCS7Signature && mediaType != "application/x-pkcs7-signature" {
			continue
		}

		signature, err := io.ReadAll(part.Body)
		if err != nil {
			return nil, nil, err
		}

		return content, signature, nil
	}
}
