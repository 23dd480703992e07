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
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/lukasdietrich/briefdirect/internal/models"
)

// Kind classifies a transport Error.
type Kind int

const (
	_ Kind = iota
	KindConnectFailure
	KindAuthFailure
	KindProtocolFailure
	KindTimeout
	KindUnsupported
)

var (
	// ErrConnectFailure matches Errors of KindConnectFailure.
	ErrConnectFailure = errors.New("connect failure")
	// ErrAuthFailure matches Errors of KindAuthFailure.
	ErrAuthFailure = errors.New("authentication failure")
	// ErrProtocolFailure matches Errors of KindProtocolFailure.
	ErrProtocolFailure = errors.New("protocol failure")
	// ErrTimeout matches Errors of KindTimeout.
	ErrTimeout = errors.New("timeout")
	// ErrUnsupported matches Errors of KindUnsupported.
	ErrUnsupported = errors.New("unsupported")
)

var kindErrors = map[Kind]error{
	KindConnectFailure:  ErrConnectFailure,
	KindAuthFailure:     ErrAuthFailure,
	KindProtocolFailure: ErrProtocolFailure,
	KindTimeout:         ErrTimeout,
	KindUnsupported:     ErrUnsupported,
}

// Error is returned by all transport operations.
type Error struct {
	Kind      Kind
	Transport models.TransportTag
	NativeID  string
	// Temporary marks protocol failures, that may succeed when retried.
	Temporary bool
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "transport %s: %s", e.Transport, kindErrors[e.Kind])

	if e.NativeID != "" {
		fmt.Fprintf(&b, " (id %s)", e.NativeID)
	}

	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the kind.
func (e *Error) Is(target error) bool {
	return kindErrors[e.Kind] == target
}

// Retryable reports whether the operation may succeed when attempted again.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindConnectFailure, KindTimeout:
		return true
	case KindProtocolFailure:
		return e.Temporary
	default:
		return false
	}
}

// NewError creates an Error. Timeouts hidden in err take precedence over the given kind.
func NewError(tag models.TransportTag, kind Kind, err error) *Error {
	var transportErr *Error
	if errors.As(err, &transportErr) {
		return transportErr
	}

	if isTimeout(err) {
		kind = KindTimeout
	}

	return &Error{Kind: kind, Transport: tag, Err: redact(err)}
}

// Unsupported creates an Error of KindUnsupported.
func Unsupported(tag models.TransportTag, format string, args ...interface{}) *Error {
	return &Error{Kind: KindUnsupported, Transport: tag, Err: fmt.Errorf(format, args...)}
}

// WithNativeID sets the native id of a transport error in place and returns it.
func WithNativeID(err error, nativeID string) error {
	var transportErr *Error
	if errors.As(err, &transportErr) && transportErr.NativeID == "" {
		transportErr.NativeID = nativeID
	}

	return err
}

// IsRetryable reports whether err is a retryable transport error.
func IsRetryable(err error) bool {
	var transportErr *Error
	return errors.As(err, &transportErr) && transportErr.Retryable()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// redact removes credentials from urls in err.
func redact(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}

	if u, parseErr := url.Parse(urlErr.URL); parseErr == nil && u.User != nil {
		u.User = nil
		urlErr.URL = u.String()
	}

	return err
}
