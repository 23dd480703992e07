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
	"bytes"
	"context"
	"crypto/x509"
	"errors"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/smallstep/pkcs7"

	"github.com/lukasdietrich/briefdirect/internal/certs"
	"github.com/lukasdietrich/briefdirect/internal/envelope"
	"github.com/lukasdietrich/briefdirect/internal/log"
	"github.com/lukasdietrich/briefdirect/internal/metrics"
	"github.com/lukasdietrich/briefdirect/internal/models"
)

func init() {
	pkcs7.ContentEncryptionAlgorithm = pkcs7.EncryptionAlgorithmAES256CBC
}

// ProtectedEnvelope is a signed and encrypted envelope ready for transport.
type ProtectedEnvelope struct {
	MessageID string
	From      string
	To        []string
	// Data is the complete s/mime entity including the echoed header.
	Data []byte
}

// Opened is the result of Unprotect.
type Opened struct {
	Envelope     *models.Envelope
	Verification models.Verification
	// Signer is the certificate the signature was checked against, if any.
	Signer *x509.Certificate
	// Detail explains a verification result other than verified.
	Detail string
}

// Transform signs and encrypts envelopes and reverses the process.
type Transform struct {
	validator certs.Validator
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewTransform creates a transform, that validates certificates the same way as store.
func NewTransform(store *certs.Store, m *metrics.Metrics) *Transform {
	return &Transform{
		validator: store.Validator(),
		metrics:   m,
		now:       store.Now,
	}
}

// Protect signs env with the identity of the sender and encrypts the signed entity for every
// recipient certificate.
func (t *Transform) Protect(ctx context.Context, env *models.Envelope, sender *certs.Identity, recipients ...*x509.Certificate) (*ProtectedEnvelope, error) {
	protected, err := t.protect(env, sender, recipients)
	t.metrics.IncrementCrypto("protect", outcomeLabel(err))

	if err != nil {
		log.WarnContext(ctx).Err(err).Str("messageId", env.MessageID).Msg("could not protect envelope")
		return nil, err
	}

	log.DebugContext(ctx).
		Str("messageId", env.MessageID).
		Int("recipients", len(recipients)).
		Int("size", len(protected.Data)).
		Msg("envelope protected")

	return protected, nil
}

func (t *Transform) protect(env *models.Envelope, sender *certs.Identity, recipients []*x509.Certificate) (*ProtectedEnvelope, error) {
	if err := envelope.Validate(env); err != nil {
		return nil, err
	}

	if sender == nil || !sender.CanSign() {
		return nil, &CryptoError{Op: OpSign, MessageID: env.MessageID, Err: errors.New("sender has no private key")}
	}

	now := t.now()
	if err := t.validator.Validate(sender.Certificate, now); err != nil {
		return nil, err
	}

	if len(recipients) == 0 {
		return nil, &CryptoError{Op: OpEncrypt, MessageID: env.MessageID, Err: errors.New("no recipient certificates")}
	}

	for _, cert := range recipients {
		if err := t.validator.Validate(cert, now); err != nil {
			return nil, err
		}
	}

	content, err := envelope.Serialize(env)
	if err != nil {
		return nil, err
	}

	signed, err := sign(content, sender)
	if err != nil {
		return nil, &CryptoError{Op: OpSign, MessageID: env.MessageID, Err: err}
	}

	var inner bytes.Buffer
	if err := writeEntity(&inner, mail.Header{}, typeSigned, signed); err != nil {
		return nil, &CryptoError{Op: OpSign, MessageID: env.MessageID, Err: err}
	}

	enveloped, err := pkcs7.Encrypt(inner.Bytes(), recipients)
	if err != nil {
		return nil, &CryptoError{Op: OpEncrypt, MessageID: env.MessageID, Err: err}
	}

	var h mail.Header
	h.SetDate(env.CreatedAt)
	h.SetAddressList("From", []*mail.Address{{Address: env.From.String()}})
	h.SetAddressList("To", toMailAddresses(env.To))
	h.Set("Message-Id", env.MessageID)

	var outer bytes.Buffer
	if err := writeEntity(&outer, h, typeEnveloped, enveloped); err != nil {
		return nil, &CryptoError{Op: OpEncrypt, MessageID: env.MessageID, Err: err}
	}

	return &ProtectedEnvelope{
		MessageID: env.MessageID,
		From:      env.From.String(),
		To:        env.Recipients(),
		Data:      outer.Bytes(),
	}, nil
}

func sign(content []byte, sender *certs.Identity) ([]byte, error) {
	sd, err := pkcs7.NewSignedData(content)
	if err != nil {
		return nil, err
	}

	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)

	if err := sd.AddSigner(sender.Certificate, sender.PrivateKey, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, err
	}

	return sd.Finish()
}

// Unprotect decrypts raw with the identity of the recipient and verifies the signature of the
// content. If expectedSender is set, the content must be signed by that certificate. Verification
// problems are reported in the result and are not errors.
func (t *Transform) Unprotect(ctx context.Context, raw []byte, recipient *certs.Identity, expectedSender *x509.Certificate) (*Opened, error) {
	opened, err := t.unprotect(raw, recipient, expectedSender)
	t.metrics.IncrementCrypto("unprotect", outcomeLabel(err))

	if err != nil {
		log.WarnContext(ctx).Err(err).Msg("could not unprotect message")
		return nil, err
	}

	event := log.DebugContext(ctx)
	if opened.Verification != models.Verified {
		event = log.WarnContext(ctx)
	}

	event.
		Str("messageId", opened.Envelope.MessageID).
		Str("verification", string(opened.Verification)).
		Str("detail", opened.Detail).
		Msg("message unprotected")

	return opened, nil
}

func (t *Transform) unprotect(raw []byte, recipient *certs.Identity, expectedSender *x509.Certificate) (*Opened, error) {
	if recipient == nil || !recipient.CanSign() {
		return nil, &CryptoError{Op: OpDecrypt, Err: errors.New("recipient has no private key")}
	}

	outer, err := readEntity(raw)
	if err != nil {
		return nil, &CryptoError{Op: OpDecrypt, Err: err}
	}

	if !isPKCS7Mime(outer.mediaType) {
		return nil, &CryptoError{Op: OpDecrypt, Err: ErrNotProtected}
	}

	p7, err := pkcs7.Parse(outer.body)
	if err != nil {
		return nil, &CryptoError{Op: OpDecrypt, Err: err}
	}

	decrypted, err := p7.Decrypt(recipient.Certificate, recipient.PrivateKey)
	if err != nil {
		return nil, &CryptoError{Op: OpDecrypt, Err: err}
	}

	inner, err := readEntity(decrypted)
	if err != nil {
		return nil, &CryptoError{Op: OpDecrypt, Err: err}
	}

	var (
		opened  Opened
		content []byte
	)

	switch {
	case isPKCS7Mime(inner.mediaType):
		signed, err := pkcs7.Parse(inner.body)
		if err != nil {
			return nil, &CryptoError{Op: OpVerify, Err: err}
		}

		content = signed.Content
		opened.Signer, opened.Verification, opened.Detail = t.verify(signed, expectedSender)

	case inner.mediaType == mediaMultiSigned:
		signedContent, signature, err := splitDetached(inner.header, inner.body, inner.params["boundary"])
		if err != nil {
			return nil, &CryptoError{Op: OpVerify, Err: err}
		}

		signed, err := pkcs7.Parse(signature)
		if err != nil {
			return nil, &CryptoError{Op: OpVerify, Err: err}
		}

		signed.Content = signedContent
		content = signedContent
		opened.Signer, opened.Verification, opened.Detail = t.verify(signed, expectedSender)

	default:
		content = decrypted
		opened.Verification = models.SignatureMissing
		opened.Detail = "content is not signed"
	}

	env, err := envelope.Parse(content)
	if err != nil {
		return nil, &CryptoError{Op: OpDecrypt, Err: err}
	}

	opened.Envelope = env

	if opened.Verification == models.Verified && !certs.BindsAddress(opened.Signer, env.From) {
		opened.Verification = models.SignatureInvalid
		opened.Detail = "signer certificate does not bind the sender address"
	}

	return &opened, nil
}

func (t *Transform) verify(p7 *pkcs7.PKCS7, expectedSender *x509.Certificate) (*x509.Certificate, models.Verification, string) {
	if len(p7.Signers) == 0 {
		return nil, models.SignatureMissing, "signed structure without signer"
	}

	candidates := p7.Certificates
	if expectedSender != nil {
		candidates = []*x509.Certificate{expectedSender}
	}

	signer := findSigner(candidates, p7)
	if signer == nil {
		if expectedSender != nil {
			return nil, models.SignatureInvalid, "not signed by the expected sender"
		}

		return nil, models.SenderCertUnavailable, "signer certificate is not available"
	}

	p7.Certificates = []*x509.Certificate{signer}

	if err := p7.Verify(); err != nil {
		return signer, models.SignatureInvalid, err.Error()
	}

	if err := t.validator.Validate(signer, t.now()); err != nil {
		return signer, models.SignatureInvalid, err.Error()
	}

	return signer, models.Verified, ""
}

func findSigner(candidates []*x509.Certificate, p7 *pkcs7.PKCS7) *x509.Certificate {
	ias := p7.Signers[0].IssuerAndSerialNumber

	for _, cert := range candidates {
		if cert.SerialNumber.Cmp(ias.SerialNumber) == 0 && bytes.Equal(cert.RawIssuer, ias.IssuerName.FullBytes) {
			return cert
		}
	}

	return nil
}

func toMailAddresses(list []models.Address) []*mail.Address {
	addresses := make([]*mail.Address, len(list))
	for i, addr := range list {
		addresses[i] = &mail.Address{Address: addr.String()}
	}

	return addresses
}
