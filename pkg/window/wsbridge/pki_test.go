package wsbridge_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LLIEPJIOK/framebridge/pkg/window/wsbridge"
)

// testPKI содержит CA для выпуска тестовых сертификатов
type testPKI struct {
	caCert  *x509.Certificate
	caKey   *ecdsa.PrivateKey
	rootCAs *x509.CertPool
}

func newTestPKI(t *testing.T) *testPKI {
	t.Helper()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Test CA"},
			CommonName:   "Test CA",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &caKey.PublicKey, caKey)
	require.NoError(t, err)

	caCert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	rootCAs := x509.NewCertPool()
	rootCAs.AddCert(caCert)

	return &testPKI{caCert: caCert, caKey: caKey, rootCAs: rootCAs}
}

// identity выпускает сертификат с CommonName=id, подписанный CA
func (pki *testPKI) identity(t *testing.T, id string) *wsbridge.IdentityConfig {
	t.Helper()

	certPEM, keyPEM := issueCert(t, id, pki.caCert, pki.caKey)

	return &wsbridge.IdentityConfig{
		CertificatePEM: certPEM,
		PrivateKeyPEM:  keyPEM,
		RootCAs:        pki.rootCAs,
	}
}

// selfSigned выпускает самоподписанный сертификат
func selfSigned(t *testing.T, id string, rootCAs *x509.CertPool) *wsbridge.IdentityConfig {
	t.Helper()

	certPEM, keyPEM := issueCert(t, id, nil, nil)

	return &wsbridge.IdentityConfig{
		CertificatePEM: certPEM,
		PrivateKeyPEM:  keyPEM,
		RootCAs:        rootCAs,
	}
}

func issueCert(t *testing.T, id string, parent *x509.Certificate, parentKey *ecdsa.PrivateKey) (certPEM, keyPEM []byte) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			Organization: []string{"Test Org"},
			CommonName:   id,
		},
		NotBefore: time.Now(),
		NotAfter:  time.Now().Add(time.Hour),
		KeyUsage:  x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{
			x509.ExtKeyUsageServerAuth,
			x509.ExtKeyUsageClientAuth,
		},
		BasicConstraintsValid: true,
	}

	if parent == nil {
		parent, parentKey = template, key
	}

	der, err := x509.CreateCertificate(rand.Reader, template, parent, &key.PublicKey, parentKey)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	return certPEM, keyPEM
}
