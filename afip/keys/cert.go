package keys

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"time"

	"github.com/go-faster/errors"
)

func LoadCertificateFromFile(path string) (*x509.Certificate, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read cert file")
	}
	return LoadCertificate(b)
}

// LoadCertificate accepts PEM or raw DER.
func LoadCertificate(certBytes []byte) (*x509.Certificate, error) {
	// PEM?
	if block, _ := pem.Decode(certBytes); block != nil {
		if block.Type != "CERTIFICATE" {
			return nil, errors.Errorf("unexpected PEM block: %s", block.Type)
		}
		certBytes = block.Bytes
	}

	cert, err := x509.ParseCertificate(certBytes)
	if err != nil {
		return nil, err
	}
	return cert, nil
}

// CheckValidity fails when now is outside the certificate validity window.
func CheckValidity(cert *x509.Certificate, now time.Time) error {
	if now.Before(cert.NotBefore) {
		return errors.Errorf("certificate not valid before %s", cert.NotBefore.Format(time.RFC3339))
	}
	if now.After(cert.NotAfter) {
		return errors.Errorf("certificate expired at %s", cert.NotAfter.Format(time.RFC3339))
	}
	return nil
}
