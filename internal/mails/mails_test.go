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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukasdietrich/briefdirect/internal/models"
)

func testEnvelope(t *testing.T) *models.Envelope {
	from, err := models.Parse("a@x.direct")
	require.NoError(t, err)
	to, err := models.Parse("b@y.direct")
	require.NoError(t, err)

	return &models.Envelope{
		MessageID: "<4a1c0a5e-0000-4000-8000-000000000001@x.direct>",
		From:      from,
		To:        []models.Address{to},
		Subject:   "Result",
		Body:      "See attached",
		CreatedAt: time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC),
	}
}

func TestComposePlain(t *testing.T) {
	raw, err := ComposeBytes(testEnvelope(t))
	require.NoError(t, err)

	text := string(raw)
	assert.Contains(t, text, "Date: Sat, 14 Mar 2026 15:09:26 +0000\r\n")
	assert.Contains(t, text, "Message-Id: <4a1c0a5e-0000-4000-8000-000000000001@x.direct>\r\n")
	assert.Contains(t, text, "Mime-Version: 1.0\r\n")
	assert.Contains(t, text, "Content-Type: text/plain; charset=utf-8\r\n")
	assert.NotContains(t, text, "multipart")

	msg, err := Read(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "a@x.direct", msg.From)
	assert.Equal(t, []string{"b@y.direct"}, msg.To)
	assert.Equal(t, "Result", msg.Subject)
	assert.Equal(t, "See attached", msg.Text)
	assert.Empty(t, msg.HTML)
	assert.Empty(t, msg.Attachments)
	assert.Equal(t, "<4a1c0a5e-0000-4000-8000-000000000001@x.direct>", msg.MessageID)
	assert.True(t, msg.Date.Equal(time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)))
}

func TestComposeAlternative(t *testing.T) {
	env := testEnvelope(t)
	env.HTMLBody = "<p>See attached</p>"

	raw, err := ComposeBytes(env)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "multipart/alternative")
	assert.NotContains(t, string(raw), "multipart/mixed")

	msg, err := Read(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", msg.ContentType)
	assert.Equal(t, "See attached", msg.Text)
	assert.Equal(t, "<p>See attached</p>", msg.HTML)
}

func TestComposeMixedWithAlternative(t *testing.T) {
	pdf := bytes.Repeat([]byte{0x25, 0x00, 0xff}, 12)
	pdf = append(pdf, 0x0a)

	env := testEnvelope(t)
	env.HTMLBody = "<p>See attached</p>"
	env.Attachments = []models.Attachment{
		models.NewAttachment("report.pdf", "application/pdf", pdf),
		models.NewAttachment("notes.csv", "text/csv; charset=utf-8", []byte("a,b\n1,2\n")),
	}

	raw, err := ComposeBytes(env)
	require.NoError(t, err)

	text := string(raw)
	mixed := strings.Index(text, "multipart/mixed")
	alternative := strings.Index(text, "multipart/alternative")
	assert.True(t, mixed >= 0 && alternative > mixed)

	msg, err := Read(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "See attached", msg.Text)
	assert.Equal(t, "<p>See attached</p>", msg.HTML)
	require.Len(t, msg.Attachments, 2)

	assert.Equal(t, "report.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)
	assert.EqualValues(t, 37, msg.Attachments[0].Size)
	assert.Equal(t, pdf, msg.Attachments[0].Content)

	assert.Equal(t, "notes.csv", msg.Attachments[1].Filename)
	assert.Equal(t, "text/csv", msg.Attachments[1].ContentType)
	assert.Equal(t, "a,b\n1,2\n", string(msg.Attachments[1].Content))
}

func TestComposeUnknownContentType(t *testing.T) {
	env := testEnvelope(t)
	env.Attachments = []models.Attachment{models.NewAttachment("blob", "", []byte("x"))}

	raw, err := ComposeBytes(env)
	require.NoError(t, err)

	parts, err := ExtractParts(bytes.NewReader(raw))
	require.NoError(t, err)
	require.Len(t, parts.Attachments, 1)
	assert.Equal(t, "application/octet-stream", parts.Attachments[0].ContentType)
}

const nestedMessage = "From: Lab <lab@y.direct>\r\n" +
	"To: a@x.direct, \"Second\" <c@x.direct>\r\n" +
	"Subject: =?utf-8?q?Befund_f=C3=BCr?= Patient\r\n" +
	"Message-ID: <nested@y.direct>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=outer\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: multipart/alternative; boundary=inner\r\n" +
	"\r\n" +
	"--inner\r\n" +
	"Content-Type: text/plain; charset=windows-1252\r\n" +
	"Content-Transfer-Encoding: quoted-printable\r\n" +
	"\r\n" +
	"Gr=FC=DFe\r\n" +
	"--inner\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<b>hi</b>\r\n" +
	"--inner--\r\n" +
	"--outer\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"second plain part\r\n" +
	"--outer\r\n" +
	"Content-Type: image/png; name=\"scan.png\"\r\n" +
	"Content-Disposition: inline\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"iVBORw0=\r\n" +
	"--outer\r\n" +
	"Content-Type: application/xml\r\n" +
	"\r\n" +
	"<ClinicalDocument/>\r\n" +
	"--outer--\r\n"

func TestReadNested(t *testing.T) {
	msg, err := Read(strings.NewReader(nestedMessage))
	require.NoError(t, err)

	assert.Equal(t, "lab@y.direct", msg.From)
	assert.Equal(t, []string{"a@x.direct", "c@x.direct"}, msg.To)
	assert.Equal(t, "Befund für Patient", msg.Subject)
	assert.Equal(t, "<nested@y.direct>", msg.MessageID)
	assert.Equal(t, "Grüße", msg.Text)
	assert.Equal(t, "<b>hi</b>", msg.HTML)

	require.Len(t, msg.Attachments, 2)
	assert.Equal(t, "scan.png", msg.Attachments[0].Filename)
	assert.Equal(t, "image/png", msg.Attachments[0].ContentType)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G', 0x0d}, msg.Attachments[0].Content)
	assert.EqualValues(t, 5, msg.Attachments[0].Size)

	assert.Equal(t, "attachment.xml", msg.Attachments[1].Filename)
	assert.Equal(t, "<ClinicalDocument/>", string(msg.Attachments[1].Content))
}

func TestReadMissingHeaders(t *testing.T) {
	msg, err := Read(strings.NewReader("\r\njust a body"))
	require.NoError(t, err)

	assert.Empty(t, msg.From)
	assert.Empty(t, msg.To)
	assert.Empty(t, msg.Subject)
	assert.True(t, msg.Date.IsZero())
	assert.Equal(t, "just a body", msg.Text)
}

func TestReadTrimsFinalLineBreak(t *testing.T) {
	for raw, expected := range map[string]string{
		"Subject: a\r\n\r\nbody\r\n":     "body",
		"Subject: a\n\nbody\n":           "body",
		"Subject: a\r\n\r\nbody\r\n\r\n": "body\r\n",
		"Subject: a\r\n\r\nbody":         "body",
	} {
		msg, err := Read(strings.NewReader(raw))
		require.NoError(t, err, raw)
		assert.Equal(t, expected, msg.Text, raw)
	}
}

func TestReadLenientAddresses(t *testing.T) {
	msg, err := Read(strings.NewReader("From: <broken@@y.direct>\r\nTo: one@x.direct,, <two@x.direct>\r\n\r\nbody"))
	require.NoError(t, err)

	assert.Equal(t, "broken@@y.direct", msg.From)
	assert.Equal(t, []string{"one@x.direct", "two@x.direct"}, msg.To)
}
