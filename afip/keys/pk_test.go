package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blendpos/go-afip-client/afip/internal/testcert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPrivateKey_PlainPKCS8(t *testing.T) {
	f := testcert.Generate(t, t.TempDir())

	key, err := LoadPrivateKeyFromFile(f.KeyPath, nil)
	require.NoError(t, err)
	assert.True(t, MatchesCertificate(f.Cert, key))
}

func TestLoadPrivateKey_Encrypted(t *testing.T) {
	f := testcert.GenerateEncrypted(t, t.TempDir(), []byte("s3cret"))

	_, err := LoadPrivateKeyFromFile(f.KeyPath, nil)
	assert.Error(t, err, "password required")

	_, err = LoadPrivateKeyFromFile(f.KeyPath, []byte("wrong"))
	assert.Error(t, err)

	key, err := LoadPrivateKeyFromFile(f.KeyPath, []byte("s3cret"))
	require.NoError(t, err)
	assert.True(t, MatchesCertificate(f.Cert, key))
}

func TestLoadPrivateKey_PKCS1(t *testing.T) {
	f := testcert.Generate(t, t.TempDir())
	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(f.Key)})

	// certificate block first, key second
	key, err := LoadPrivateKey(append(f.CertPEM, pkcs1...), nil)
	require.NoError(t, err)
	assert.True(t, MatchesCertificate(f.Cert, key))
}

func TestLoadPrivateKey_Errors(t *testing.T) {
	_, err := LoadPrivateKey([]byte("not pem"), nil)
	assert.Error(t, err)

	_, err = LoadPrivateKeyFromFile(filepath.Join(t.TempDir(), "missing.key"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadPrivateKey(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: []byte{1, 2, 3}}), nil)
	assert.Error(t, err)
}

func TestMatchesCertificate_OtherKey(t *testing.T) {
	f := testcert.Generate(t, t.TempDir())
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	assert.False(t, MatchesCertificate(f.Cert, other))
}

func TestLoadCertificate_PEMAndDER(t *testing.T) {
	f := testcert.Generate(t, t.TempDir())

	c1, err := LoadCertificateFromFile(f.CertPath)
	require.NoError(t, err)
	c2, err := LoadCertificate(f.Cert.Raw)
	require.NoError(t, err)
	assert.True(t, c1.Equal(c2))

	_, err = LoadCertificate(f.KeyPEM)
	assert.Error(t, err, "key block is not a certificate")

	assert.NoError(t, CheckValidity(c1, time.Now()))
	assert.Error(t, CheckValidity(c1, time.Now().Add(48*time.Hour)))
	assert.Error(t, CheckValidity(c1, time.Now().Add(-48*time.Hour)))
}
