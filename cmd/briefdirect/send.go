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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/lukasdietrich/briefdirect/internal/database"
	"github.com/lukasdietrich/briefdirect/internal/envelope"
	"github.com/lukasdietrich/briefdirect/internal/exchange"
	"github.com/lukasdietrich/briefdirect/internal/models"
)

type sendCommand struct {
	Fs     afero.Fs
	Conn   database.Conn
	Sender *exchange.Sender
}

// batchMessage is a single entry of a batch file. Attachments are file paths.
type batchMessage struct {
	From                  string   `json:"from"`
	To                    []string `json:"to"`
	Subject               string   `json:"subject"`
	Body                  string   `json:"body"`
	HTMLBody              string   `json:"htmlBody"`
	Attachments           []string `json:"attachments"`
	RequestDeliveryStatus bool     `json:"requestDeliveryStatus"`
	RequestReadReceipt    bool     `json:"requestReadReceipt"`
}

func (s *sendCommand) run(ctx context.Context, args []string) error {
	defer s.Conn.Close()

	var (
		msg       batchMessage
		bodyFile  string
		htmlFile  string
		batchFile string
	)

	flags := pflag.NewFlagSet("send", pflag.ContinueOnError)
	flags.StringVarP(&msg.From, "from", "f", "", "Direct address of the sender")
	flags.StringSliceVarP(&msg.To, "to", "t", nil, "Direct addresses of the recipients")
	flags.StringVarP(&msg.Subject, "subject", "s", "", "Subject of the message")
	flags.StringVarP(&msg.Body, "body", "b", "", "Plain text body")
	flags.StringVar(&bodyFile, "body-file", "", "Read the plain text body from a file")
	flags.StringVar(&htmlFile, "html-file", "", "Read the html body from a file")
	flags.StringSliceVarP(&msg.Attachments, "attach", "a", nil, "Attach a file")
	flags.BoolVar(&msg.RequestDeliveryStatus, "delivery-status", false, "Request delivery status notifications")
	flags.BoolVar(&msg.RequestReadReceipt, "read-receipt", false, "Request a read receipt")
	flags.StringVar(&batchFile, "batch", "", "Send every message of a json file")

	if err := flags.Parse(args); err != nil {
		return err
	}

	if batchFile != "" {
		return s.sendBatch(ctx, batchFile)
	}

	var err error

	if bodyFile != "" {
		if msg.Body, err = readText(s.Fs, bodyFile); err != nil {
			return err
		}
	}

	if htmlFile != "" {
		if msg.HTMLBody, err = readText(s.Fs, htmlFile); err != nil {
			return err
		}
	}

	req, err := newRequest(s.Fs, msg)
	if err != nil {
		return err
	}

	result, err := s.Sender.Send(ctx, req)
	if err != nil {
		return err
	}

	return printJSON(result)
}

func (s *sendCommand) sendBatch(ctx context.Context, filename string) error {
	reqs, err := loadBatch(s.Fs, filename)
	if err != nil {
		return err
	}

	results, err := s.Sender.SendAll(ctx, reqs)
	if printErr := printJSON(results); printErr != nil && err == nil {
		err = printErr
	}

	var partial *exchange.PartialBatchFailure
	if errors.As(err, &partial) {
		for _, outcome := range partial.Outcomes {
			if outcome.Err != nil {
				fmt.Fprintln(stdout, outcome.String())
			}
		}
	}

	return err
}

func loadBatch(fs afero.Fs, filename string) ([]exchange.Request, error) {
	data, err := afero.ReadFile(fs, filename)
	if err != nil {
		return nil, err
	}

	var messages []batchMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("could not parse batch file %q: %w", filename, err)
	}

	reqs := make([]exchange.Request, len(messages))

	for i, msg := range messages {
		if reqs[i], err = newRequest(fs, msg); err != nil {
			return nil, fmt.Errorf("batch entry %d: %w", i, err)
		}
	}

	return reqs, nil
}

func newRequest(fs afero.Fs, msg batchMessage) (exchange.Request, error) {
	req := exchange.Request{
		Draft: envelope.Draft{
			From:     msg.From,
			To:       msg.To,
			Subject:  msg.Subject,
			Body:     msg.Body,
			HTMLBody: msg.HTMLBody,
		},
		RequestDeliveryStatus: msg.RequestDeliveryStatus,
		RequestReadReceipt:    msg.RequestReadReceipt,
	}

	for _, filename := range msg.Attachments {
		attachment, err := loadAttachment(fs, filename)
		if err != nil {
			return req, err
		}

		req.Attachments = append(req.Attachments, attachment)
	}

	return req, nil
}

func loadAttachment(fs afero.Fs, filename string) (models.Attachment, error) {
	content, err := afero.ReadFile(fs, filename)
	if err != nil {
		return models.Attachment{}, err
	}

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return models.NewAttachment(filepath.Base(filename), contentType, content), nil
}

func readText(fs afero.Fs, filename string) (string, error) {
	content, err := afero.ReadFile(fs, filename)
	return string(content), err
}
