package wsbridge

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

type IdentityConfig struct {
	CertificatePEM []byte         // X.509 сертификат в PEM, CommonName - ID узла
	PrivateKeyPEM  []byte         // EC приватный ключ в PEM
	RootCAs        *x509.CertPool // Доверенные CA для проверки сертификата партнёра
	ExpectedPeerID string         // Ожидаемый ID партнёра (опционально)
}

type identity struct {
	priv    *ecdsa.PrivateKey
	localID string
	certPEM []byte

	rootCAs        *x509.CertPool
	expectedPeerID string
}

func newIdentity(cfg *IdentityConfig) (*identity, error) {
	cert, err := parseCertificate(cfg.CertificatePEM)
	if err != nil {
		return nil, err
	}

	keyBlock, _ := pem.Decode(cfg.PrivateKeyPEM)
	if keyBlock == nil {
		return nil, ErrInvalidKey
	}

	priv, err := x509.ParseECPrivateKey(keyBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	if !priv.PublicKey.Equal(cert.PublicKey) {
		return nil, fmt.Errorf("%w: private key does not match certificate", ErrInvalidKey)
	}

	if cert.Subject.CommonName == "" {
		return nil, fmt.Errorf("%w: certificate must have CommonName as ID", ErrInvalidCert)
	}

	return &identity{
		priv:           priv,
		localID:        cert.Subject.CommonName,
		certPEM:        cfg.CertificatePEM,
		rootCAs:        cfg.RootCAs,
		expectedPeerID: cfg.ExpectedPeerID,
	}, nil
}

// verifyPeer проверяет сертификат партнёра и возвращает его ID и ключ.
func (id *identity) verifyPeer(certPEM string) (string, *ecdsa.PublicKey, error) {
	if certPEM == "" {
		return "", nil, fmt.Errorf("%w: peer did not present a certificate", ErrInvalidCert)
	}

	cert, err := parseCertificate([]byte(certPEM))
	if err != nil {
		return "", nil, err
	}

	if id.rootCAs != nil {
		opts := x509.VerifyOptions{
			Roots: id.rootCAs,
			KeyUsages: []x509.ExtKeyUsage{
				x509.ExtKeyUsageClientAuth,
				x509.ExtKeyUsageServerAuth,
			},
		}

		if _, err := cert.Verify(opts); err != nil {
			return "", nil, ErrCertNotTrusted
		}
	}

	peerID := cert.Subject.CommonName
	if peerID == "" {
		return "", nil, fmt.Errorf("%w: peer certificate must have CommonName as ID", ErrInvalidCert)
	}

	if id.expectedPeerID != "" && peerID != id.expectedPeerID {
		return "", nil, ErrPeerIDMismatch
	}

	pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return "", nil, fmt.Errorf("%w: peer key is not ECDSA", ErrInvalidCert)
	}

	return peerID, pub, nil
}

func (id *identity) sign(nonce string) ([]byte, error) {
	digest := sha256.Sum256([]byte(nonce))
	return ecdsa.SignASN1(rand.Reader, id.priv, digest[:])
}

func verifyProof(pub *ecdsa.PublicKey, nonce string, proof []byte) error {
	digest := sha256.Sum256([]byte(nonce))
	if !ecdsa.VerifyASN1(pub, digest[:], proof) {
		return ErrInvalidProof
	}

	return nil
}

func parseCertificate(certPEM []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, ErrInvalidCert
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, errors.Join(ErrInvalidCert, err)
	}

	return cert, nil
}
