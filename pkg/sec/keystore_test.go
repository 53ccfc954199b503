package sec

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sirena/pkg/proto"
)

func genKey(t *testing.T) *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	return key
}

func TestKeyContainerReset(t *testing.T) {
	k := NewKeyContainer(nil)
	_, err := k.SymmetricBlock()
	assert.ErrorIs(t, err, proto.ErrNoSymmetricKey)

	require.NoError(t, k.ResetSymmetricKey())
	first := append([]byte(nil), k.SymmetricSeed()...)
	assert.Len(t, first, SymKeySeedSize)
	k.SetSymmetricKeyId(7)
	b1, err := k.SymmetricBlock()
	require.NoError(t, err)

	require.NoError(t, k.ResetSymmetricKey())
	assert.NotEqual(t, first, k.SymmetricSeed())
	assert.Equal(t, uint32(0), k.SymmetricKeyId())
	b2, err := k.SymmetricBlock()
	require.NoError(t, err)
	assert.NotSame(t, b1, b2)
}

func TestKeyContainerSetSymmetricKey(t *testing.T) {
	k := NewKeyContainer(nil)
	assert.Error(t, k.SetSymmetricKey([]byte("short"), 1))
	assert.False(t, k.HasSymmetricKey())

	seed := []byte("12345678")
	require.NoError(t, k.SetSymmetricKey(seed, 3))
	seed[0] = 'x'
	assert.Equal(t, []byte("12345678"), k.SymmetricSeed())
	assert.Equal(t, uint32(3), k.SymmetricKeyId())
}

func TestKeyContainerAsymmetric(t *testing.T) {
	priv := genKey(t)
	k := NewKeyContainer(priv)
	assert.False(t, k.HasAsymmetricKeys())
	k.SetServerPublicKey(&genKey(t).PublicKey)
	assert.True(t, k.HasAsymmetricKeys())
	assert.Same(t, priv, k.PrivateKey())
}

func TestLoadPrivateKey(t *testing.T) {
	key := genKey(t)
	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pkcs8 := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	for _, data := range [][]byte{pkcs1, pkcs8} {
		got, err := LoadPrivateKey(string(data), "")
		require.NoError(t, err)
		assert.True(t, key.Equal(got))
	}

	path := filepath.Join(t.TempDir(), "client.pem")
	require.NoError(t, os.WriteFile(path, pkcs1, 0600))
	got, err := LoadPrivateKey("", path)
	require.NoError(t, err)
	assert.True(t, key.Equal(got))

	_, err = LoadPrivateKey("", "")
	assert.ErrorIs(t, err, ErrNoPrivateKey)
	_, err = LoadPrivateKey("", filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)
	_, err = LoadPrivateKey("not a key", "")
	assert.Error(t, err)
}

func TestParsePublicKey(t *testing.T) {
	key := &genKey(t).PublicKey
	pkix, err := MarshalPublicKey(key)
	require.NoError(t, err)
	pkcs1 := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(key)}))
	der, err := x509.MarshalPKIXPublicKey(key)
	require.NoError(t, err)
	bare := base64.StdEncoding.EncodeToString(der)

	for _, text := range []string{pkix, "\n  " + pkix, pkcs1, bare} {
		got, err := ParsePublicKey(text)
		require.NoError(t, err)
		assert.True(t, key.Equal(got))
	}

	for _, text := range []string{"", "   ", "!!!", base64.StdEncoding.EncodeToString([]byte("junk"))} {
		_, err := ParsePublicKey(text)
		assert.ErrorIs(t, err, ErrInvalidPublicKey, text)
	}
}
