package tls

import (
	stdtls "crypto/tls"
	"crypto/x509"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSelfSignedCert(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")

	require.NoError(t, GenerateSelfSignedCert(certPath, keyPath, []string{"localhost", "127.0.0.1"}))

	pair, err := stdtls.LoadX509KeyPair(certPath, keyPath)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(pair.Certificate[0])
	require.NoError(t, err)

	assert.Equal(t, []string{"localhost"}, cert.DNSNames)
	require.Len(t, cert.IPAddresses, 1)
	assert.True(t, cert.IPAddresses[0].Equal(net.ParseIP("127.0.0.1")))
	assert.Equal(t, []string{"Floorflow Dev"}, cert.Subject.Organization)

	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestGenerateSelfSignedCert_NoHosts(t *testing.T) {
	dir := t.TempDir()
	err := GenerateSelfSignedCert(filepath.Join(dir, "c"), filepath.Join(dir, "k"), nil)
	assert.Error(t, err)
}

func TestEnsureCert(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "cert.pem")
	keyPath := filepath.Join(dir, "key.pem")

	created, err := EnsureCert(certPath, keyPath, []string{"localhost"})
	require.NoError(t, err)
	assert.True(t, created)

	before, err := os.ReadFile(certPath)
	require.NoError(t, err)

	created, err = EnsureCert(certPath, keyPath, []string{"localhost"})
	require.NoError(t, err)
	assert.False(t, created)

	after, err := os.ReadFile(certPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
