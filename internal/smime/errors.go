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
	"errors"
	"fmt"
	"strings"
)

// Op is the step of the secure transform, that failed.
type Op int

const (
	_ Op = iota
	// OpSign means the signed structure could not be created.
	OpSign
	// OpEncrypt means the enveloped structure could not be created.
	OpEncrypt
	// OpDecrypt means the protected entity could not be opened or its content not be read.
	OpDecrypt
	// OpVerify means a signed structure could not be processed at all.
	OpVerify
)

var (
	// ErrSignFailure matches CryptoErrors of OpSign.
	ErrSignFailure = errors.New("sign failure")
	// ErrEncryptFailure matches CryptoErrors of OpEncrypt.
	ErrEncryptFailure = errors.New("encrypt failure")
	// ErrDecryptFailure matches CryptoErrors of OpDecrypt.
	ErrDecryptFailure = errors.New("decrypt failure")
	// ErrVerificationFailure matches CryptoErrors of OpVerify.
	ErrVerificationFailure = errors.New("verification failure")

	// ErrNotProtected is returned by Unprotect for entities, that are not enveloped s/mime.
	ErrNotProtected = errors.New("not an enveloped s/mime entity")
)

var opErrors = map[Op]error{
	OpSign:    ErrSignFailure,
	OpEncrypt: ErrEncryptFailure,
	OpDecrypt: ErrDecryptFailure,
	OpVerify:  ErrVerificationFailure,
}

var opLabels = map[Op]string{
	OpSign:    "sign-failure",
	OpEncrypt: "encrypt-failure",
	OpDecrypt: "decrypt-failure",
	OpVerify:  "verification-failure",
}

// CryptoError is returned when signing, encryption or decryption fails.
type CryptoError struct {
	Op        Op
	MessageID string
	Err       error
}

func (e *CryptoError) Error() string {
	var b strings.Builder
	b.WriteString("smime: ")
	b.WriteString(opErrors[e.Op].Error())

	if e.MessageID != "" {
		fmt.Fprintf(&b, " (message-id %s)", e.MessageID)
	}

	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}

	return b.String()
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the op.
func (e *CryptoError) Is(target error) bool {
	return opErrors[e.Op] == target
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}

	var cryptoErr *CryptoError
	if errors.As(err, &cryptoErr) {
		return opLabels[cryptoErr.Op]
	}

	return "rejected"
}
