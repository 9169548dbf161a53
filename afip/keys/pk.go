package keys

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"

	"github.com/go-faster/errors"
	"github.com/youmark/pkcs8"
)

// LoadPrivateKeyFromFile reads a PEM key file, see LoadPrivateKey.
func LoadPrivateKeyFromFile(path string, password []byte) (crypto.Signer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read key file")
	}
	return LoadPrivateKey(b, password)
}

// LoadPrivateKey returns the first usable key in pemBytes. It accepts ENCRYPTED PRIVATE KEY
// (password required), PRIVATE KEY, RSA PRIVATE KEY and EC PRIVATE KEY blocks.
// The keys issued by the openssl commands in the AFIP manual are PKCS#1.
func LoadPrivateKey(pemBytes []byte, password []byte) (crypto.Signer, error) {
	for len(pemBytes) > 0 {
		var block *pem.Block
		block, pemBytes = pem.Decode(pemBytes)
		if block == nil {
			break
		}

		var (
			keyAny any
			err    error
		)
		switch block.Type {
		case "ENCRYPTED PRIVATE KEY":
			if len(password) == 0 {
				return nil, errors.New("password is required for ENCRYPTED PRIVATE KEY")
			}
			keyAny, err = pkcs8.ParsePKCS8PrivateKey(block.Bytes, password)
		case "PRIVATE KEY":
			keyAny, err = pkcs8.ParsePKCS8PrivateKey(block.Bytes)
		case "RSA PRIVATE KEY":
			keyAny, err = x509.ParsePKCS1PrivateKey(block.Bytes)
		case "EC PRIVATE KEY":
			keyAny, err = x509.ParseECPrivateKey(block.Bytes)
		default:
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", block.Type)
		}

		switch k := keyAny.(type) {
		case *rsa.PrivateKey:
			return k, nil
		case *ecdsa.PrivateKey:
			return k, nil
		default:
			return nil, errors.Errorf("unsupported key type: %T (expected RSA or ECDSA)", keyAny)
		}
	}

	return nil, errors.New("no private key block found in PEM")
}

type publicKeyEqualer interface {
	Equal(crypto.PublicKey) bool
}

// MatchesCertificate reports whether key is the private half of cert.
func MatchesCertificate(cert *x509.Certificate, key crypto.Signer) bool {
	pub, ok := key.Public().(publicKeyEqualer)
	return ok && pub.Equal(cert.PublicKey)
}
