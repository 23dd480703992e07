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
	"crypto/x509"
	"encoding/pem"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

type StoreTestSuite struct {
	suite.Suite

	fs    afero.Fs
	store *Store
}

func (s *StoreTestSuite) SetupTest() {
	s.fs = afero.NewMemMapFs()

	store, err := NewStore(s.fs, Options{Directory: "/certs", KeySize: 2048, ValidityDays: 365})
	s.Require().NoError(err)

	s.store = store
}

func (s *StoreTestSuite) TestNewStoreLayout() {
	info, err := s.fs.Stat("/certs/private")
	s.Require().NoError(err)
	s.Assert().True(info.IsDir())
	s.Assert().Equal("drwx------", info.Mode().String())

	info, err = s.fs.Stat("/certs/public")
	s.Require().NoError(err)
	s.Assert().True(info.IsDir())
}

func (s *StoreTestSuite) TestGenerateIdentity() {
	identity, err := s.store.GenerateIdentity("a@x.direct", "X Clinic", 365, 2048)
	s.Require().NoError(err)
	s.Require().NotNil(identity)

	s.Assert().True(identity.CanSign())
	s.Assert().True(s.store.VerifyValidity(identity.Certificate))
	s.Assert().Equal(2048, identity.PrivateKey.N.BitLen())

	info := s.store.Describe(identity.Certificate)
	s.Assert().Equal("a@x.direct", info.Address)
	s.Assert().True(info.SelfSigned)
	s.Assert().True(info.Valid)
	s.Assert().Equal(info.Subject, info.Issuer)
	s.Assert().Contains(info.Subject, "CN=a@x.direct")
	s.Assert().Contains(info.Subject, "O=X Clinic")
	s.Assert().Equal([]string{"digitalSignature", "keyEncipherment"}, info.KeyUsage)
	s.Assert().WithinDuration(info.NotBefore.AddDate(0, 0, 365), info.NotAfter, time.Second)
	s.Assert().Equal([]x509.ExtKeyUsage{x509.ExtKeyUsageEmailProtection}, identity.Certificate.ExtKeyUsage)
}

func (s *StoreTestSuite) TestGenerateIdentityDefaults() {
	identity, err := s.store.GenerateIdentity("a@x.direct", "", 0, 0)
	s.Require().NoError(err)

	s.Assert().Equal(2048, identity.PrivateKey.N.BitLen())
	s.Assert().Empty(identity.Certificate.Subject.Organization)
}

func (s *StoreTestSuite) TestGenerateIdentityExpired() {
	s.store.now = func() time.Time { return time.Now().AddDate(0, 0, -3) }

	identity, err := s.store.GenerateIdentity("a@x.direct", "", 1, 2048)
	s.Require().NoError(err)

	s.store.now = time.Now
	s.Assert().False(s.store.VerifyValidity(identity.Certificate))
	s.Assert().False(s.store.Describe(identity.Certificate).Valid)
}

func (s *StoreTestSuite) TestGenerateIdentityInvalid() {
	for _, tc := range []struct {
		address      string
		validityDays int
		keySize      int
	}{
		{"not-an-address", 365, 2048},
		{"a@", 365, 2048},
		{"a@x.direct", 365, 1024},
		{"a@x.direct", 365, 16384},
		{"a@x.direct", -1, 2048},
	} {
		identity, err := s.store.GenerateIdentity(tc.address, "", tc.validityDays, tc.keySize)
		s.Assert().Nil(identity)
		s.Assert().True(errors.Is(err, ErrGenerationFailure), "%+v: %v", tc, err)
	}
}

func (s *StoreTestSuite) TestSaveAndResolve() {
	identity, err := s.store.GenerateIdentity("Dr.Who@X.direct", "", 365, 2048)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Save(context.TODO(), identity))

	cert, err := s.store.ResolveForAddress("dr.who@x.direct")
	s.Require().NoError(err)
	s.Assert().True(cert.Equal(identity.Certificate))

	resolved, err := s.store.ResolveIdentity("DR.WHO@x.direct")
	s.Require().NoError(err)
	s.Assert().True(resolved.PrivateKey.Equal(identity.PrivateKey))

	keyInfo, err := s.fs.Stat("/certs/private/dr.who_at_x.direct.key")
	s.Require().NoError(err)
	s.Assert().Equal("-rw-------", keyInfo.Mode().String())

	certInfo, err := s.fs.Stat("/certs/public/dr.who_at_x.direct.crt")
	s.Require().NoError(err)
	s.Assert().Equal("-rw-r--r--", certInfo.Mode().String())

	leftovers, err := afero.Glob(s.fs, "/certs/*/.*tmp*")
	s.Require().NoError(err)
	s.Assert().Empty(leftovers)
}

func (s *StoreTestSuite) TestSaveReplaces() {
	first, err := s.store.GenerateIdentity("a@x.direct", "", 365, 2048)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Save(context.TODO(), first))

	second, err := s.store.GenerateIdentity("a@x.direct", "", 365, 2048)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Save(context.TODO(), second))

	resolved, err := s.store.ResolveIdentity("a@x.direct")
	s.Require().NoError(err)
	s.Assert().True(resolved.Certificate.Equal(second.Certificate))
}

func (s *StoreTestSuite) TestSavePublicOnly() {
	identity, err := s.store.GenerateIdentity("b@y.direct", "", 365, 2048)
	s.Require().NoError(err)

	identity.PrivateKey = nil
	s.Require().NoError(s.store.Save(context.TODO(), identity))

	_, err = s.store.ResolveForAddress("b@y.direct")
	s.Assert().NoError(err)

	_, err = s.store.ResolveIdentity("b@y.direct")
	s.Assert().True(errors.Is(err, ErrNotFound))
}

func (s *StoreTestSuite) TestResolveNotFound() {
	cert, err := s.store.ResolveForAddress("missing@y.direct")
	s.Assert().Nil(cert)
	s.Require().True(errors.Is(err, ErrNotFound))

	var certErr *CertificateError
	s.Require().True(errors.As(err, &certErr))
	s.Assert().Equal("missing@y.direct", certErr.Address)
}

func (s *StoreTestSuite) TestResolveInvalidAddress() {
	_, err := s.store.ResolveForAddress("missing")
	s.Assert().True(errors.Is(err, ErrNotFound))
}

func (s *StoreTestSuite) TestResolveLegacyLayout() {
	identity, err := s.store.GenerateIdentity("b@y.direct", "", 365, 2048)
	s.Require().NoError(err)

	s.writePem("/certs/b_at_y_direct.crt", "CERTIFICATE", identity.Certificate.Raw)
	s.writePem("/certs/private/b_at_y_direct.key", "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(identity.PrivateKey))

	resolved, err := s.store.ResolveIdentity("b@y.direct")
	s.Require().NoError(err)
	s.Assert().True(resolved.Certificate.Equal(identity.Certificate))
	s.Assert().True(resolved.PrivateKey.Equal(identity.PrivateKey))
}

func (s *StoreTestSuite) TestResolveAddressMismatch() {
	identity, err := s.store.GenerateIdentity("b@y.direct", "", 365, 2048)
	s.Require().NoError(err)

	s.writePem("/certs/public/c_at_y.direct.crt", "CERTIFICATE", identity.Certificate.Raw)

	_, err = s.store.ResolveForAddress("c@y.direct")
	s.Assert().True(errors.Is(err, ErrParseFailure))
}

func (s *StoreTestSuite) TestResolveIdentityKeyMismatch() {
	a, err := s.store.GenerateIdentity("a@x.direct", "", 365, 2048)
	s.Require().NoError(err)
	b, err := s.store.GenerateIdentity("b@y.direct", "", 365, 2048)
	s.Require().NoError(err)

	a.PrivateKey = b.PrivateKey
	s.Require().NoError(s.store.Save(context.TODO(), a))

	_, err = s.store.ResolveIdentity("a@x.direct")
	s.Assert().True(errors.Is(err, ErrParseFailure))
}

func (s *StoreTestSuite) TestLoadMalformed() {
	s.Require().NoError(afero.WriteFile(s.fs, "/certs/broken.crt", []byte("garbage"), 0644))
	s.writePem("/certs/wrong.crt", "PUBLIC KEY", []byte{1, 2, 3})

	for _, path := range []string{"/certs/broken.crt", "/certs/wrong.crt"} {
		cert, err := s.store.Load(path)
		s.Assert().Nil(cert)
		s.Assert().True(errors.Is(err, ErrParseFailure), path)
	}

	_, err := s.store.LoadKey("/certs/broken.crt")
	s.Assert().True(errors.Is(err, ErrParseFailure))
}

func (s *StoreTestSuite) TestLoadDer() {
	identity, err := s.store.GenerateIdentity("a@x.direct", "", 365, 2048)
	s.Require().NoError(err)
	s.Require().NoError(afero.WriteFile(s.fs, "/certs/a.der", identity.Certificate.Raw, 0644))

	cert, err := s.store.Load("/certs/a.der")
	s.Require().NoError(err)
	s.Assert().True(cert.Equal(identity.Certificate))
}

func (s *StoreTestSuite) TestTrustAnchors() {
	anchor, err := s.store.GenerateIdentity("ca@x.direct", "", 365, 2048)
	s.Require().NoError(err)
	stranger, err := s.store.GenerateIdentity("b@y.direct", "", 365, 2048)
	s.Require().NoError(err)

	s.writePem("/anchors.pem", "CERTIFICATE", anchor.Certificate.Raw)

	store, err := NewStore(s.fs, Options{Directory: "/certs", TrustAnchors: "/anchors.pem"})
	s.Require().NoError(err)
	s.Require().IsType(ChainValidator{}, store.Validator())

	s.Assert().NoError(store.Validator().Validate(anchor.Certificate, time.Now()))
	s.Assert().True(errors.Is(store.Validator().Validate(stranger.Certificate, time.Now()), ErrUntrusted))
	s.Assert().True(errors.Is(store.Validator().Validate(anchor.Certificate, time.Now().AddDate(2, 0, 0)), ErrExpired))
}

func (s *StoreTestSuite) TestTrustAnchorsMissing() {
	_, err := NewStore(s.fs, Options{Directory: "/certs", TrustAnchors: "/missing.pem"})
	s.Assert().True(errors.Is(err, ErrNotFound))
}

func (s *StoreTestSuite) writePem(filename, blockType string, der []byte) {
	s.Require().NoError(s.fs.MkdirAll(filepath.Dir(filename), 0755))
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	s.Require().NoError(afero.WriteFile(s.fs, filename, data, 0644))
}

func TestEncodeAddress(t *testing.T) {
	for address, expected := range map[string]string{
		"a@x.direct":         "a_at_x.direct",
		"A@X.Direct":         "a_at_x.direct",
		"dr_who@x.direct":    "dr_5fwho_at_x.direct",
		"dr+lab@x.direct":    "dr+lab_at_x.direct",
		"../../etc@x.direct": ".._2f.._2fetc_at_x.direct",
	} {
		assert.Equal(t, expected, EncodeAddress(address), address)
	}
}

func TestLegacyEncodeAddress(t *testing.T) {
	assert.Equal(t, "a_at_x_direct", legacyEncodeAddress("a@x.direct"))
}

func TestCertificateErrorMessage(t *testing.T) {
	err := &CertificateError{Kind: KindNotFound, Address: "a@x.direct", Path: "/certs/a.crt"}
	assert.EqualError(t, err, "certs: certificate not found (address a@x.direct) (path /certs/a.crt)")
}

func TestNewTLSConfig(t *testing.T) {
	fs := afero.NewMemMapFs()

	config, err := NewTLSConfig(fs, TLSOptions{ServerName: "mail.x.direct", Verify: false})
	require.NoError(t, err)
	assert.True(t, config.InsecureSkipVerify)
	assert.Equal(t, "mail.x.direct", config.ServerName)
	assert.Nil(t, config.RootCAs)

	_, err = NewTLSConfig(fs, TLSOptions{Verify: true, CAFile: "/missing.pem"})
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/empty.pem", []byte("nothing"), 0644))
	_, err = NewTLSConfig(fs, TLSOptions{Verify: true, CAFile: "/empty.pem"})
	assert.True(t, errors.Is(err, ErrParseFailure))
}
