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
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lukasdietrich/briefdirect/internal/log"
	"github.com/lukasdietrich/briefdirect/internal/metrics"
	"github.com/lukasdietrich/briefdirect/internal/models"
	"github.com/lukasdietrich/briefdirect/internal/transport"
)

const (
	tag = models.TransportGateway

	defaultTimeout        = 30 * time.Second
	defaultDirectoryLimit = 50
	maxErrorBody          = 512
)

// StatusError is the cause of transport errors for unexpected http status codes.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Code)
	}

	return fmt.Sprintf("http %d: %s", e.Code, e.Message)
}

var _ transport.Queue = (*Client)(nil)

// Client talks to a queue gateway over its rest api.
type Client struct {
	opts    transport.Options
	base    *url.URL
	http    *http.Client
	metrics *metrics.Metrics
}

// NewClient creates a gateway client. Credentials embedded in the url are ignored, the configured
// username and password are used for basic authentication.
func NewClient(opts transport.Options, m *metrics.Metrics) (*Client, error) {
	base, err := url.Parse(opts.Gateway.URL)
	if err != nil {
		return nil, models.NewValidationError("transport.gateway.url", err.Error())
	}

	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, models.NewValidationError("transport.gateway.url", "scheme must be http or https")
	}

	base.User = nil

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
	httpTransport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: opts.ConnectTimeout,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: !opts.Gateway.VerifyTLS, // nolint:gosec
		},
	}

	return &Client{
		opts:    opts,
		base:    base,
		http:    &http.Client{Timeout: timeout, Transport: httpTransport},
		metrics: m,
	}, nil
}

// Tag implements transport.Receiver.
func (c *Client) Tag() models.TransportTag {
	return tag
}

// Count implements transport.Receiver.
func (c *Client) Count(ctx context.Context, scope transport.Scope) (count int, err error) {
	defer c.observe("count", time.Now(), &err)

	if !scope.IsAll() {
		return 0, transport.Unsupported(tag, "criteria %q", scope.Criteria)
	}

	var list []inboxMessage
	if err := c.do(ctx, http.MethodGet, c.endpoint("inbox"), nil, nil, &list); err != nil {
		return 0, err
	}

	return len(list), nil
}

// Fetch implements transport.Receiver. Each listed message is retrieved completely. In delete mode
// every message is acknowledged right after retrieval.
func (c *Client) Fetch(ctx context.Context, scope transport.Scope, limit int, mode transport.Mode) (messages []transport.RawMessage, err error) {
	defer c.observe("fetch", time.Now(), &err)

	ctx = log.WithTransport(ctx, string(tag))

	if mode == transport.ModeMark {
		return nil, transport.Unsupported(tag, "mode %s", mode)
	}

	if !scope.IsAll() {
		return nil, transport.Unsupported(tag, "criteria %q", scope.Criteria)
	}

	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var list []inboxMessage
	if err := c.do(ctx, http.MethodGet, c.endpoint("inbox"), query, nil, &list); err != nil {
		return nil, err
	}

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	for _, item := range list {
		var full inboxMessage
		if err := c.do(ctx, http.MethodGet, c.endpoint("inbox", item.ID), nil, nil, &full); err != nil {
			return messages, transport.WithNativeID(err, item.ID)
		}

		if full.ID == "" {
			full.ID = item.ID
		}

		raw := toRawMessage(full)

		if mode == transport.ModeDelete {
			if err := c.acknowledge(ctx, item.ID); err != nil {
				return append(messages, raw), err
			}

			raw.Consumed = true
		}

		messages = append(messages, raw)
	}

	log.DebugContext(ctx).
		Int("count", len(messages)).
		Stringer("mode", mode).
		Msg("messages retrieved")

	return messages, nil
}

func toRawMessage(msg inboxMessage) transport.RawMessage {
	raw := transport.RawMessage{
		Transport:  tag,
		NativeID:   msg.ID,
		Size:       msg.Size,
		ReceivedAt: time.Now().UTC(),
		Metadata: &transport.Metadata{
			MessageID:    msg.MessageID,
			From:         msg.From,
			To:           msg.To,
			Subject:      msg.Subject,
			ReceivedDate: msg.ReceivedDate,
			Body:         msg.Body,
			ContentType:  msg.ContentType,
		},
	}

	if msg.Raw != "" {
		raw.Content = decodeRaw(msg.Raw)
	}

	if raw.Size == 0 {
		raw.Size = int64(len(raw.Content))
	}

	if date, err := time.Parse(time.RFC3339, msg.ReceivedDate); err == nil {
		raw.ReceivedAt = date.UTC()
	}

	for _, attachment := range msg.Attachments {
		raw.Metadata.Attachments = append(raw.Metadata.Attachments, transport.AttachmentMetadata{
			ID:          attachment.ID,
			Filename:    attachment.Filename,
			ContentType: attachment.ContentType,
			Size:        attachment.Size,
		})
	}

	return raw
}

// decodeRaw accepts the full mime message either verbatim or base64 encoded.
func decodeRaw(raw string) []byte {
	if strings.Contains(raw, ":") {
		return []byte(raw)
	}

	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return decoded
	}

	return []byte(raw)
}

// Acknowledge implements transport.Receiver. A message unknown to the gateway counts as
// acknowledged.
func (c *Client) Acknowledge(ctx context.Context, nativeID string) (err error) {
	defer c.observe("acknowledge", time.Now(), &err)
	return c.acknowledge(ctx, nativeID)
}

func (c *Client) acknowledge(ctx context.Context, nativeID string) error {
	err := c.do(ctx, http.MethodDelete, c.endpoint("inbox", nativeID), nil, nil, nil)

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		log.DebugContext(ctx).Str("id", nativeID).Msg("message already acknowledged")
		return nil
	}

	return transport.WithNativeID(err, nativeID)
}

// DownloadAttachment returns the content of an attachment of an inbox message.
func (c *Client) DownloadAttachment(ctx context.Context, nativeID, attachmentID string) (content []byte, err error) {
	defer c.observe("download", time.Now(), &err)

	var buf bytes.Buffer
	if err := c.do(ctx, http.MethodGet, c.endpoint("inbox", nativeID, "attachments", attachmentID), nil, nil, &buf); err != nil {
		return nil, transport.WithNativeID(err, nativeID)
	}

	return buf.Bytes(), nil
}

// Send submits a message to the outbox. Parts with a filename are attachments and are sent base64
// encoded, other parts are sent as text.
func (c *Client) Send(ctx context.Context, msg transport.OutboundMessage) (receipt *transport.SendReceipt, err error) {
	defer c.observe("send", time.Now(), &err)

	if msg.Sender == "" {
		return nil, models.NewValidationError("sender", "must not be empty")
	}

	if len(msg.Recipients) == 0 {
		return nil, models.NewValidationError("recipients", "must not be empty")
	}

	request := outboxRequest{
		Sender:                msg.Sender,
		Recipients:            msg.Recipients,
		Subject:               msg.Subject,
		RequestDeliveryStatus: msg.RequestDeliveryStatus,
		RequestReadReceipt:    msg.RequestReadReceipt,
	}

	for _, part := range msg.Parts {
		outPart := outboxPart{ContentType: part.ContentType, Filename: part.Filename}

		if part.Filename != "" {
			outPart.Content = base64.StdEncoding.EncodeToString(part.Content)
		} else {
			outPart.Content = string(part.Content)
		}

		if outPart.ContentType == "" {
			outPart.ContentType = "text/plain"
		}

		request.MessageParts = append(request.MessageParts, outPart)
	}

	receipt = new(transport.SendReceipt)
	if err := c.do(ctx, http.MethodPost, c.endpoint("outbox"), nil, request, receipt); err != nil {
		return nil, err
	}

	log.InfoContext(ctx).
		Str("id", receipt.ID).
		Str("messageId", receipt.MessageID).
		Int("recipients", len(msg.Recipients)).
		Msg("message queued at gateway")

	return receipt, nil
}

// Status returns the delivery state of an outbox message.
func (c *Client) Status(ctx context.Context, id string) (report *transport.StatusReport, err error) {
	defer c.observe("status", time.Now(), &err)

	var status outboxStatus
	if err := c.do(ctx, http.MethodGet, c.endpoint("outbox", id), nil, nil, &status); err != nil {
		return nil, transport.WithNativeID(err, id)
	}

	report = &transport.StatusReport{
		ID:     status.ID,
		Status: parseDeliveryStatus(status.Status),
		Detail: status.StatusDetails,
	}

	if report.ID == "" {
		report.ID = id
	}

	for _, notification := range status.DeliveryNotifications {
		report.Notifications = append(report.Notifications, string(notification))
	}

	return report, nil
}

func parseDeliveryStatus(s string) transport.DeliveryStatus {
	switch status := transport.DeliveryStatus(strings.ToLower(strings.TrimSpace(s))); status {
	case transport.StatusQueued, transport.StatusSent, transport.StatusDelivered, transport.StatusFailed:
		return status
	default:
		return transport.StatusUnknown
	}
}

// DirectorySearch queries the provider directory. The result keeps the order of the gateway and is
// capped at the limit.
func (c *Client) DirectorySearch(ctx context.Context, q transport.DirectoryQuery) (entries []transport.DirectoryEntry, err error) {
	defer c.observe("directory", time.Now(), &err)

	limit := q.Limit
	if limit <= 0 {
		limit = defaultDirectoryLimit
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	setIfNotEmpty(query, "q", q.Query)
	setIfNotEmpty(query, "directAddress", q.DirectAddress)
	setIfNotEmpty(query, "npi", q.NPI)
	setIfNotEmpty(query, "organization", q.Organization)

	var list []directoryEntry
	if err := c.do(ctx, http.MethodGet, c.endpoint("directory"), query, nil, &list); err != nil {
		return nil, err
	}

	if len(list) > limit {
		list = list[:limit]
	}

	entries = make([]transport.DirectoryEntry, len(list))
	for i, entry := range list {
		entries[i] = transport.DirectoryEntry{
			Address:       entry.DirectAddress,
			Name:          entry.Name,
			Organization:  entry.Organization,
			NPI:           entry.NPI,
			Specialties:   entry.Specialties,
			PostalAddress: string(entry.Address),
		}
	}

	return entries, nil
}

func setIfNotEmpty(query url.Values, key, value string) {
	if value != "" {
		query.Set(key, value)
	}
}

// Health implements transport.Receiver. Throttling and server errors degrade the gateway, every
// other failure makes it unhealthy.
func (c *Client) Health(ctx context.Context) transport.Health {
	var checkErr error

	health := transport.CheckHealth(ctx, c.opts.DegradedLatency, func(ctx context.Context) error {
		checkErr = c.do(ctx, http.MethodGet, c.endpoint("inbox"), url.Values{"limit": []string{"1"}}, nil, nil)
		return checkErr
	})

	var statusErr *StatusError
	if errors.As(checkErr, &statusErr) && (statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500) {
		health.Status = transport.Degraded
	}

	return health
}

func (c *Client) endpoint(segments ...string) string {
	u := *c.base

	escaped := make([]string, len(segments))
	for i, segment := range segments {
		escaped[i] = url.PathEscape(segment)
	}

	u.Path = strings.TrimSuffix(c.base.Path, "/") + "/" + strings.Join(segments, "/")
	u.RawPath = strings.TrimSuffix(c.base.EscapedPath(), "/") + "/" + strings.Join(escaped, "/")

	return u.String()
}

// do performs a request with basic authentication. A non-nil in is sent as json. The response is
// decoded as json into out, unless out is a *bytes.Buffer, which receives the raw body.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return transport.NewError(tag, transport.KindProtocolFailure, err)
		}

		body = bytes.NewReader(data)
	}

	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return transport.NewError(tag, transport.KindProtocolFailure, err)
	}

	req.SetBasicAuth(c.opts.Gateway.Username, c.opts.Gateway.Password)
	req.Header.Set("Accept", "application/json")

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transport.NewError(tag, transport.KindConnectFailure, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return classifyStatus(resp)
	}

	switch out := out.(type) {
	case nil:
		_, err = io.Copy(io.Discard, resp.Body)
	case *bytes.Buffer:
		_, err = io.Copy(out, resp.Body)
	default:
		var data []byte
		if data, err = io.ReadAll(resp.Body); err == nil && len(bytes.TrimSpace(data)) > 0 {
			err = json.Unmarshal(data, out)
		}
	}

	if err != nil {
		return transport.NewError(tag, transport.KindProtocolFailure, err)
	}

	return nil
}

// classifyStatus maps an error response to a transport error. Authentication problems are never
// retried, throttling and server errors are.
func classifyStatus(resp *http.Response) error {
	message, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	cause := &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(message))}

	switch code := resp.StatusCode; {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &transport.Error{Kind: transport.KindAuthFailure, Transport: tag, Err: cause}
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500:
		return &transport.Error{Kind: transport.KindProtocolFailure, Transport: tag, Temporary: true, Err: cause}
	default:
		return &transport.Error{Kind: transport.KindProtocolFailure, Transport: tag, Err: cause}
	}
}

func (c *Client) observe(operation string, start time.Time, err *error) {
	c.metrics.ObserveTransport(string(tag), operation, time.Since(start), *err)
}
