package wsaa

import (
	"crypto"
	"crypto/x509"
	"time"

	"github.com/blendpos/go-afip-client/afip"
	"github.com/blendpos/go-afip-client/afip/keys"
	"github.com/go-faster/errors"
	"github.com/smallstep/pkcs7"
)

// Signer produces a DER CMS SignedData over content.
type Signer interface {
	Sign(content []byte) ([]byte, error)
}

// CMSSigner signs with SHA-256 and embeds the signed content, as loginCms requires.
type CMSSigner struct {
	cert *x509.Certificate
	key  crypto.Signer
}

func NewCMSSigner(cert *x509.Certificate, key crypto.Signer) *CMSSigner {
	return &CMSSigner{cert: cert, key: key}
}

// LoadCMSSigner reads the certificate and key. Every failure is an *afip.ConfigError.
func LoadCMSSigner(certPath, keyPath string, password []byte, now time.Time) (*CMSSigner, error) {
	if certPath == "" {
		return nil, &afip.ConfigError{Field: "certificate", Err: errors.New("path not set")}
	}
	if keyPath == "" {
		return nil, &afip.ConfigError{Field: "private key", Err: errors.New("path not set")}
	}

	cert, err := keys.LoadCertificateFromFile(certPath)
	if err != nil {
		return nil, &afip.ConfigError{Field: "certificate " + certPath, Err: err}
	}
	if err := keys.CheckValidity(cert, now); err != nil {
		return nil, &afip.ConfigError{Field: "certificate " + certPath, Err: err}
	}

	key, err := keys.LoadPrivateKeyFromFile(keyPath, password)
	if err != nil {
		return nil, &afip.ConfigError{Field: "private key " + keyPath, Err: err}
	}
	if !keys.MatchesCertificate(cert, key) {
		return nil, &afip.ConfigError{Field: "private key " + keyPath, Err: errors.New("key does not match certificate")}
	}

	return NewCMSSigner(cert, key), nil
}

func (s *CMSSigner) Certificate() *x509.Certificate { return s.cert }

func (s *CMSSigner) Sign(content []byte) ([]byte, error) {
	sd, err := pkcs7.NewSignedData(content)
	if err != nil {
		return nil, errors.Wrap(err, "init signed data")
	}
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	if err := sd.AddSigner(s.cert, s.key, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, errors.Wrap(err, "add signer")
	}
	der, err := sd.Finish()
	if err != nil {
		return nil, errors.Wrap(err, "finish signed data")
	}
	return der, nil
}
