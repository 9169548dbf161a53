// Package testcert generates throwaway WSAA certificates for tests.
package testcert

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/youmark/pkcs8"
)

type Files struct {
	CertPath string
	KeyPath  string
	Cert     *x509.Certificate
	Key      *rsa.PrivateKey
	CertPEM  []byte
	KeyPEM   []byte
}

// Generate writes a self-signed certificate and an unencrypted PKCS#8 key into dir.
func Generate(t testing.TB, dir string) Files {
	t.Helper()
	return generate(t, dir, nil)
}

// GenerateEncrypted is like Generate but the key is an ENCRYPTED PRIVATE KEY block.
func GenerateEncrypted(t testing.TB, dir string, password []byte) Files {
	t.Helper()
	return generate(t, dir, password)
}

func generate(t testing.TB, dir string, password []byte) Files {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("create dir: %v", err)
	}

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	tpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			CommonName:   "blendpos-test",
			SerialNumber: "CUIT 20123456789",
			Organization: []string{"BlendPOS"},
		},
		NotBefore:   time.Now().Add(-time.Hour),
		NotAfter:    time.Now().Add(24 * time.Hour),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	var keyPEM []byte
	if len(password) > 0 {
		enc, err := pkcs8.MarshalPrivateKey(key, password, nil)
		if err != nil {
			t.Fatalf("encrypt key: %v", err)
		}
		keyPEM = pem.EncodeToMemory(&pem.Block{Type: "ENCRYPTED PRIVATE KEY", Bytes: enc})
	} else {
		plain, err := pkcs8.MarshalPrivateKey(key, nil, nil)
		if err != nil {
			t.Fatalf("marshal key: %v", err)
		}
		keyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: plain})
	}

	f := Files{
		CertPath: filepath.Join(dir, "afip.crt"),
		KeyPath:  filepath.Join(dir, "afip.key"),
		Cert:     cert,
		Key:      key,
		CertPEM:  certPEM,
		KeyPEM:   keyPEM,
	}
	if err := os.WriteFile(f.CertPath, certPEM, 0o600); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(f.KeyPath, keyPEM, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return f
}
