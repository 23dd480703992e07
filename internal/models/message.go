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
	"strings"
	"time"
)

// TransportTag identifies the transport variant a message was received with.
type TransportTag string

const (
	// TransportPOP3 is the stateless mailbox variant.
	TransportPOP3 TransportTag = "pop3"
	// TransportIMAP is the stateful folder mailbox variant.
	TransportIMAP TransportTag = "imap"
	// TransportGateway is the queue based rest gateway.
	TransportGateway TransportTag = "gateway"
)

// Verification is the outcome of checking the signature of an opened message.
type Verification string

const (
	// VerificationNone is used for messages, that were not protected at all.
	VerificationNone Verification = ""
	// Verified means the signature matches the content and the signer certificate.
	Verified Verification = "verified"
	// SignatureMissing means the decrypted content was not signed.
	SignatureMissing Verification = "signature-missing"
	// SignatureInvalid means the content was signed, but the signature could not be trusted.
	SignatureInvalid Verification = "signature-invalid"
	// SenderCertUnavailable means neither an expected nor an embedded signer certificate exists.
	SenderCertUnavailable Verification = "sender-cert-unavailable"
)

// ReceivedMessage is the transport independent representation of an inbound message.
type ReceivedMessage struct {
	Transport    TransportTag `json:"transport"`
	MessageID    string       `json:"messageId"`
	From         string       `json:"from"`
	To           []string     `json:"to"`
	Subject      string       `json:"subject"`
	Date         string       `json:"date"`
	Size         int64        `json:"size"`
	Encrypted    bool         `json:"encrypted"`
	Verification Verification `json:"verification,omitempty"`
	Body         string       `json:"body"`
	HTMLBody     string       `json:"htmlBody,omitempty"`
	Attachments  []Attachment `json:"attachments"`
	NativeID     string       `json:"nativeId"`
	ReceivedAt   time.Time    `json:"receivedAt"`

	// Raw holds the original content as received, if the transport delivered rfc5322 bytes.
	Raw []byte `json:"-"`
}

// Recipient is the scalar projection of the recipient list.
func (m *ReceivedMessage) Recipient() string {
	return strings.Join(m.To, ", ")
}
