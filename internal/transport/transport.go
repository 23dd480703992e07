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

package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lukasdietrich/briefdirect/internal/models"
)

// Mode is the consumption mode of a fetch.
type Mode int

const (
	// ModePeek retrieves messages without side effects on the remote side.
	ModePeek Mode = iota
	// ModeMark flags retrieved messages as seen.
	ModeMark
	// ModeDelete removes retrieved messages from the remote side.
	ModeDelete
)

var modeNames = map[Mode]string{
	ModePeek:   "peek",
	ModeMark:   "mark",
	ModeDelete: "delete",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}

	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode parses the name of a mode.
func ParseMode(name string) (Mode, error) {
	for mode, modeName := range modeNames {
		if strings.EqualFold(name, modeName) {
			return mode, nil
		}
	}

	return ModePeek, models.NewValidationError("mode", fmt.Sprintf("unknown mode %q", name))
}

// Scope selects the messages of a count or fetch. Folder and criteria are only meaningful for
// imap. Other variants accept an empty scope or the criteria "ALL".
type Scope struct {
	Folder   string
	Criteria string
}

// IsAll reports whether the scope matches every message.
func (s Scope) IsAll() bool {
	criteria := strings.TrimSpace(s.Criteria)
	return criteria == "" || strings.EqualFold(criteria, "ALL")
}

// RawMessage is a message as retrieved from a transport, before normalization.
type RawMessage struct {
	Transport  models.TransportTag
	NativeID   string
	Size       int64
	Flags      []string
	ReceivedAt time.Time
	// Content is the raw rfc5322 message, if the transport provides it.
	Content []byte
	// Metadata is set by transports, that deliver structured fields.
	Metadata *Metadata
	// Consumed reports that a delete mode fetch removed the message from the transport.
	// It is only set once the removal is committed.
	Consumed bool
}

// Metadata are the structured message fields of a queue gateway.
type Metadata struct {
	MessageID    string
	From         string
	To           []string
	Subject      string
	ReceivedDate string
	Body         string
	ContentType  string
	Attachments  []AttachmentMetadata
}

// AttachmentMetadata describes an attachment, that can be downloaded separately.
type AttachmentMetadata struct {
	ID          string
	Filename    string
	ContentType string
	Size        int64
}

// HealthStatus is the coarse result of a health check.
type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Degraded  HealthStatus = "degraded"
	Unhealthy HealthStatus = "unhealthy"
)

// Health is the result of a health check.
type Health struct {
	Status  HealthStatus  `json:"status"`
	Detail  string        `json:"detail,omitempty"`
	Latency time.Duration `json:"latency"`
}

// Receiver retrieves messages from a remote mailbox or queue.
type Receiver interface {
	// Tag identifies the transport variant.
	Tag() models.TransportTag
	// Count returns the number of messages in scope.
	Count(ctx context.Context, scope Scope) (int, error)
	// Fetch retrieves up to limit messages in transport order. A limit <= 0 means all messages. If
	// an error occurs after some messages were retrieved, they are returned along the error.
	Fetch(ctx context.Context, scope Scope, limit int, mode Mode) ([]RawMessage, error)
	// Acknowledge marks a message as consumed. Acknowledging an absent message is a no-op.
	Acknowledge(ctx context.Context, nativeID string) error
	// Health checks the transport. It never fails, problems are reported in the result.
	Health(ctx context.Context) Health
}

// Part is a body or attachment of an outbound queue message.
type Part struct {
	Content     []byte
	ContentType string
	Filename    string
}

// OutboundMessage is a message submitted to a queue gateway.
type OutboundMessage struct {
	Sender                string
	Recipients            []string
	Subject               string
	Parts                 []Part
	RequestDeliveryStatus bool
	RequestReadReceipt    bool
}

// SendReceipt is returned by a queue for an accepted message.
type SendReceipt struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	MessageID string `json:"messageId"`
}

// DeliveryStatus is the normalized state of an outbound message.
type DeliveryStatus string

const (
	StatusQueued    DeliveryStatus = "queued"
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusFailed    DeliveryStatus = "failed"
	StatusUnknown   DeliveryStatus = "unknown"
)

// StatusReport is the delivery state of an outbound message.
type StatusReport struct {
	ID            string         `json:"id"`
	Status        DeliveryStatus `json:"status"`
	Detail        string         `json:"detail,omitempty"`
	Notifications []string       `json:"notifications,omitempty"`
}

// DirectoryQuery filters a provider directory search. Empty fields are ignored.
type DirectoryQuery struct {
	Query         string
	DirectAddress string
	NPI           string
	Organization  string
	Limit         int
}

// DirectoryEntry is a provider or organization of the directory.
type DirectoryEntry struct {
	Address       string   `json:"address"`
	Name          string   `json:"name"`
	Organization  string   `json:"organization,omitempty"`
	NPI           string   `json:"npi,omitempty"`
	Specialties   []string `json:"specialties,omitempty"`
	PostalAddress string   `json:"postalAddress,omitempty"`
}

// Queue is a receiver, that also accepts outbound messages and offers a provider directory.
type Queue interface {
	Receiver

	Send(ctx context.Context, msg OutboundMessage) (*SendReceipt, error)
	Status(ctx context.Context, id string) (*StatusReport, error)
	DirectorySearch(ctx context.Context, query DirectoryQuery) ([]DirectoryEntry, error)
	DownloadAttachment(ctx context.Context, nativeID, attachmentID string) ([]byte, error)
}

// Sender submits raw messages for delivery.
type Sender interface {
	Submit(ctx context.Context, from string, to []string, data []byte) error
}
