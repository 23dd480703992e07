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

package certs

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/lukasdietrich/briefdirect/internal/log"
	"github.com/lukasdietrich/briefdirect/internal/models"
)

const (
	publicFolder  = "public"
	privateFolder = "private"

	certificateExt = ".crt"
	keyExt         = ".key"

	minKeySize = 2048
	maxKeySize = 8192
)

// oidEmailAddress is the PKCS#9 emailAddress attribute used in certificate subjects.
var oidEmailAddress = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 1}

// Options configure the certificate store.
type Options struct {
	// Directory is the root of the certificate directory.
	Directory string `mapstructure:"directory"`
	// TrustAnchors is an optional PEM bundle. When set, certificates must chain to one of them.
	TrustAnchors string `mapstructure:"trust_anchors"`
	// KeySize is the default rsa key size for new identities.
	KeySize int `mapstructure:"key_size"`
	// ValidityDays is the default lifetime of new identities.
	ValidityDays int `mapstructure:"validity_days"`
}

// Identity binds a direct address to its certificate and, for local addresses, a private key.
type Identity struct {
	Address     models.Address
	Certificate *x509.Certificate
	PrivateKey  *rsa.PrivateKey
}

// CanSign reports whether the identity carries a private key.
func (i *Identity) CanSign() bool {
	return i.PrivateKey != nil
}

// Store generates, loads and resolves identity material below a certificate directory.
type Store struct {
	fs        afero.Fs
	opts      Options
	validator Validator
	now       func() time.Time
}

// NewStore creates a store and ensures the folder layout exists. The private folder is only
// accessible by the owner.
func NewStore(fs afero.Fs, opts Options) (*Store, error) {
	if err := fs.MkdirAll(filepath.Join(opts.Directory, publicFolder), 0755); err != nil {
		return nil, err
	}

	if err := fs.MkdirAll(filepath.Join(opts.Directory, privateFolder), 0700); err != nil {
		return nil, err
	}

	s := &Store{
		fs:        fs,
		opts:      opts,
		validator: WindowValidator{},
		now:       time.Now,
	}

	if opts.TrustAnchors != "" {
		roots, err := s.loadPool(opts.TrustAnchors)
		if err != nil {
			return nil, err
		}

		s.validator = ChainValidator{Roots: roots}
	}

	return s, nil
}

// Validator returns the validator configured for this store.
func (s *Store) Validator() Validator {
	return s.validator
}

// Now returns the current time of the store clock.
func (s *Store) Now() time.Time {
	return s.now()
}

// GenerateIdentity creates an rsa keypair and a self-signed certificate, that binds the address as
// common name and rfc822 subject alternative name. A zero validityDays or keySize uses the
// configured default.
func (s *Store) GenerateIdentity(address, organization string, validityDays, keySize int) (*Identity, error) {
	if validityDays == 0 {
		validityDays = s.opts.ValidityDays
	}

	if keySize == 0 {
		keySize = s.opts.KeySize
	}

	addr, err := models.Parse(address)
	if err != nil {
		return nil, generationError(address, err)
	}

	if keySize < minKeySize || keySize > maxKeySize {
		return nil, generationError(address, fmt.Errorf("unsupported key size %d", keySize))
	}

	if validityDays <= 0 {
		return nil, generationError(address, fmt.Errorf("invalid validity of %d days", validityDays))
	}

	key, err := rsa.GenerateKey(rand.Reader, keySize)
	if err != nil {
		return nil, generationError(address, err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, generationError(address, err)
	}

	name := pkix.Name{
		CommonName: addr.String(),
		ExtraNames: []pkix.AttributeTypeAndValue{
			{Type: oidEmailAddress, Value: addr.String()},
		},
	}

	if organization != "" {
		name.Organization = []string{organization}
	}

	now := s.now().UTC()
	template := &x509.Certificate{
		SerialNumber:          serial.Add(serial, big.NewInt(1)),
		Subject:               name,
		NotBefore:             now,
		NotAfter:              now.AddDate(0, 0, validityDays),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageEmailProtection},
		EmailAddresses:        []string{addr.String()},
		BasicConstraintsValid: true,
		SignatureAlgorithm:    x509.SHA256WithRSA,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, generationError(address, err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, generationError(address, err)
	}

	return &Identity{Address: addr, Certificate: cert, PrivateKey: key}, nil
}

// Save writes the certificate and, if present, the private key of an identity. Existing files are
// replaced atomically.
func (s *Store) Save(ctx context.Context, identity *Identity) error {
	certPath := s.CertificatePath(identity.Address)
	certPem := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: identity.Certificate.Raw})

	if err := writeFileAtomic(s.fs, certPath, certPem, 0644); err != nil {
		return err
	}

	log.InfoContext(ctx).
		Str("address", identity.Address.String()).
		Str("filename", certPath).
		Msg("certificate stored")

	if identity.PrivateKey == nil {
		return nil
	}

	der, err := x509.MarshalPKCS8PrivateKey(identity.PrivateKey)
	if err != nil {
		return err
	}

	keyPath := s.KeyPath(identity.Address)
	keyPem := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	if err := writeFileAtomic(s.fs, keyPath, keyPem, 0600); err != nil {
		return err
	}

	log.InfoContext(ctx).
		Str("address", identity.Address.String()).
		Str("filename", keyPath).
		Msg("private key stored")

	return nil
}

// CertificatePath returns the filename of the certificate for an address.
func (s *Store) CertificatePath(addr models.Address) string {
	return filepath.Join(s.opts.Directory, publicFolder, EncodeAddress(addr.Folded().String())+certificateExt)
}

// KeyPath returns the filename of the private key for an address.
func (s *Store) KeyPath(addr models.Address) string {
	return filepath.Join(s.opts.Directory, privateFolder, EncodeAddress(addr.Folded().String())+keyExt)
}

// Load reads a pem or der encoded certificate.
func (s *Store) Load(path string) (*x509.Certificate, error) {
	data, err := s.readFile(path)
	if err != nil {
		return nil, err
	}

	der := data
	if block, _ := pem.Decode(data); block != nil {
		if block.Type != "CERTIFICATE" {
			return nil, parseError(path, fmt.Errorf("unexpected pem block %q", block.Type))
		}

		der = block.Bytes
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, parseError(path, err)
	}

	return cert, nil
}

// LoadKey reads a pem encoded rsa private key in PKCS#8 or PKCS#1 form.
func (s *Store) LoadKey(path string) (*rsa.PrivateKey, error) {
	data, err := s.readFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, parseError(path, errors.New("no pem block"))
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, parseError(path, err)
		}

		return key, nil

	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, parseError(path, err)
		}

		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, parseError(path, fmt.Errorf("unsupported key type %T", parsed))
		}

		return key, nil

	default:
		return nil, parseError(path, fmt.Errorf("unexpected pem block %q", block.Type))
	}
}

// VerifyValidity checks the validity window of a certificate against the store clock.
func (s *Store) VerifyValidity(cert *x509.Certificate) bool {
	return isWithinWindow(cert, s.now())
}

// ResolveForAddress finds the certificate of an address. The certificate has to bind the address.
func (s *Store) ResolveForAddress(address string) (*x509.Certificate, error) {
	addr, err := models.Parse(address)
	if err != nil {
		return nil, &CertificateError{Kind: KindNotFound, Address: address, Err: err}
	}

	cert, err := s.loadFirst(address,
		s.CertificatePath(addr),
		filepath.Join(s.opts.Directory, legacyEncodeAddress(addr.String())+certificateExt))
	if err != nil {
		return nil, err
	}

	if !BindsAddress(cert, addr) {
		return nil, &CertificateError{
			Kind:    KindParseFailure,
			Address: address,
			Err:     errors.New("certificate does not bind the address"),
		}
	}

	return cert, nil
}

// ResolveIdentity finds the certificate and private key of a local address.
func (s *Store) ResolveIdentity(address string) (*Identity, error) {
	cert, err := s.ResolveForAddress(address)
	if err != nil {
		return nil, err
	}

	addr, _ := models.Parse(address)
	key, err := s.loadFirstKey(address,
		s.KeyPath(addr),
		filepath.Join(s.opts.Directory, privateFolder, legacyEncodeAddress(addr.String())+keyExt))
	if err != nil {
		return nil, err
	}

	if pub, ok := cert.PublicKey.(*rsa.PublicKey); !ok || !pub.Equal(&key.PublicKey) {
		return nil, &CertificateError{
			Kind:    KindParseFailure,
			Address: address,
			Err:     errors.New("private key does not match certificate"),
		}
	}

	return &Identity{Address: addr, Certificate: cert, PrivateKey: key}, nil
}

func (s *Store) loadFirst(address string, paths ...string) (*x509.Certificate, error) {
	for _, path := range paths {
		cert, err := s.Load(path)
		if errors.Is(err, ErrNotFound) {
			continue
		}

		return cert, withAddress(err, address)
	}

	return nil, &CertificateError{Kind: KindNotFound, Address: address}
}

func (s *Store) loadFirstKey(address string, paths ...string) (*rsa.PrivateKey, error) {
	for _, path := range paths {
		key, err := s.LoadKey(path)
		if errors.Is(err, ErrNotFound) {
			continue
		}

		return key, withAddress(err, address)
	}

	return nil, &CertificateError{Kind: KindNotFound, Address: address, Err: errors.New("no private key")}
}

func (s *Store) readFile(path string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &CertificateError{Kind: KindNotFound, Path: path}
		}

		return nil, parseError(path, err)
	}

	return data, nil
}

func (s *Store) loadPool(path string) (*x509.CertPool, error) {
	data, err := s.readFile(path)
	if err != nil {
		return nil, err
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, parseError(path, errors.New("no certificates in bundle"))
	}

	return pool, nil
}

// BindsAddress reports whether one of the rfc822 names of cert equals addr.
func BindsAddress(cert *x509.Certificate, addr models.Address) bool {
	for _, email := range cert.EmailAddresses {
		if bound, err := models.Parse(email); err == nil && bound.Equal(addr) {
			return true
		}
	}

	return false
}

func withAddress(err error, address string) error {
	var certErr *CertificateError
	if errors.As(err, &certErr) {
		certErr.Address = address
	}

	return err
}

func generationError(address string, err error) error {
	return &CertificateError{Kind: KindGenerationFailure, Address: address, Err: err}
}

func parseError(path string, err error) error {
	return &CertificateError{Kind: KindParseFailure, Path: path, Err: err}
}
