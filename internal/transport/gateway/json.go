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

package gateway

import (
	"bytes"
	"encoding/json"
	"strings"
)

// recipients accepts a single address or a list of addresses.
type recipients []string

func (r *recipients) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if bytes.Equal(data, []byte("null")) {
		*r = nil
		return nil
	}

	if len(data) > 0 && data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}

		*r = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}

	*r = nil
	for _, addr := range strings.Split(single, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			*r = append(*r, addr)
		}
	}

	return nil
}

// flexibleText accepts a string or any other json value, which is kept in compact form.
type flexibleText string

func (t *flexibleText) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = flexibleText(s)
		return nil
	}

	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*t = ""
		return nil
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, data); err != nil {
		return err
	}

	*t = flexibleText(compact.String())
	return nil
}

type inboxAttachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type inboxMessage struct {
	ID             string            `json:"id"`
	MessageID      string            `json:"messageId"`
	From           string            `json:"from"`
	To             recipients        `json:"to"`
	Subject        string            `json:"subject"`
	ReceivedDate   string            `json:"receivedDate"`
	Size           int64             `json:"size"`
	HasAttachments bool              `json:"hasAttachments"`
	Body           string            `json:"body"`
	ContentType    string            `json:"contentType"`
	Attachments    []inboxAttachment `json:"attachments"`
	Raw            string            `json:"raw"`
}

type outboxPart struct {
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
	Filename    string `json:"filename,omitempty"`
}

type outboxRequest struct {
	Sender                string       `json:"sender"`
	Recipients            []string     `json:"recipients"`
	Subject               string       `json:"subject"`
	MessageParts          []outboxPart `json:"messageParts"`
	RequestDeliveryStatus bool         `json:"requestDeliveryStatus"`
	RequestReadReceipt    bool         `json:"requestReadReceipt"`
}

type outboxStatus struct {
	ID                    string         `json:"id"`
	Status                string         `json:"status"`
	StatusDetails         string         `json:"statusDetails"`
	DeliveryNotifications []flexibleText `json:"deliveryNotifications"`
}

type directoryEntry struct {
	DirectAddress string       `json:"directAddress"`
	Name          string       `json:"name"`
	NPI           string       `json:"npi"`
	Organization  string       `json:"organization"`
	Address       flexibleText `json:"address"`
	Specialties   []string     `json:"specialties"`
}
