package proto

import (
	"bytes"
	"crypto/cipher"
	"crypto/des"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testKeys struct {
	block  cipher.Block
	keyId  uint32
	server *rsa.PrivateKey
	client *rsa.PrivateKey
}

func (k *testKeys) SymmetricBlock() (cipher.Block, error) {
	if k.block == nil {
		return nil, ErrNoSymmetricKey
	}
	return k.block, nil
}
func (k *testKeys) SymmetricKeyId() uint32          { return k.keyId }
func (k *testKeys) ServerPublicKey() *rsa.PublicKey { return &k.server.PublicKey }
func (k *testKeys) PrivateKey() *rsa.PrivateKey     { return k.client }

func newTestKeys(t *testing.T) *testKeys {
	block, err := des.NewCipher([]byte("8bytekey"))
	require.NoError(t, err)
	server, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	client, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	return &testKeys{block: block, keyId: 17, server: server, client: client}
}

func TestPadUnpad(t *testing.T) {
	for l := 0; l <= 33; l++ {
		body := bytes.Repeat([]byte{'x'}, l)
		padded := Pad(body, 8)
		assert.Equal(t, 0, len(padded)%8, "len %d", l)
		n := len(padded) - l
		assert.True(t, n >= 1 && n <= 8, "len %d", l)
		if l%8 == 0 {
			assert.Equal(t, 8, n, "aligned body gets a full block")
		}
		assert.Equal(t, body, Unpad(padded, 8), "len %d", l)
	}
}

func TestUnpadLeavesUnpadded(t *testing.T) {
	tests := [][]byte{
		{},
		[]byte("abcdefg\x00"),
		[]byte("abcdefg\x09"),
		[]byte("abcdefgh"),
	}
	for _, in := range tests {
		assert.Equal(t, in, Unpad(in, 8))
	}
	assert.Equal(t, []byte("abcde"), Unpad([]byte("abcde\x03\x03\x03"), 8))
}

func TestSelectEncryption(t *testing.T) {
	assert.Equal(t, EncryptionNone, SelectEncryption(MethodKeyInfo))
	assert.Equal(t, EncryptionNone, SelectEncryption(MethodClientPubKey))
	assert.Equal(t, EncryptionAsymmetric, SelectEncryption(MethodAsymHandshake))
	assert.Equal(t, EncryptionSymmetric, SelectEncryption("order"))
	assert.Equal(t, EncryptionSymmetric, SelectEncryption("KEY_INFO"))
}

func TestPlainRoundTrip(t *testing.T) {
	tests := []struct {
		compress bool
		body     string
	}{
		{false, ""},
		{true, ""},
		{false, "<sirena><query><key_info/></query></sirena>"},
		{true, strings.Repeat("<segment/>", 100)},
	}
	for _, tc := range tests {
		enc := Encoder{ClientId: 5, CompressRequest: tc.compress, AcceptCompressed: true}
		m, err := enc.EncodePlain(3, []byte(tc.body))
		require.NoError(t, err)
		assert.False(t, m.IsSymmetric())
		assert.False(t, m.IsAsymmetric())
		assert.Equal(t, tc.compress, m.Flags&FlagCompressed != 0)
		assert.True(t, m.Flags&FlagAcceptCompressed != 0)
		assert.Equal(t, uint32(len(m.Body)), m.BodyLength)

		resp, err := Decode(m, nil)
		require.NoError(t, err)
		assert.Equal(t, tc.body, resp.Payload)
	}
}

func TestSymmetricRoundTrip(t *testing.T) {
	keys := newTestKeys(t)
	for _, compress := range []bool{false, true} {
		for _, body := range []string{"", "1234567", "12345678", "<sirena><query><order/></query></sirena>"} {
			enc := Encoder{ClientId: 5, CompressRequest: compress}
			m, err := enc.Encode(9, "order", []byte(body), keys)
			require.NoError(t, err)
			assert.True(t, m.IsSymmetric())
			assert.Equal(t, uint32(17), m.SymKeyId)
			assert.Equal(t, 0, len(m.Body)%8)

			resp, err := Decode(m, keys)
			require.NoError(t, err)
			assert.Equal(t, body, resp.Payload)
		}
	}
}

func TestSymmetricNeedsKey(t *testing.T) {
	enc := Encoder{}
	_, err := enc.Encode(1, "order", []byte("x"), &testKeys{})
	assert.ErrorIs(t, err, ErrNoSymmetricKey)
	_, err = enc.Encode(1, "order", []byte("x"), nil)
	assert.ErrorIs(t, err, ErrNoSymmetricKey)
}

// asymReply builds what the gateway sends back for a handshake: the key
// encrypted with the client public key.
func asymReply(t *testing.T, pub *rsa.PublicKey, key []byte) *RawMessage {
	ct, err := rsa.EncryptPKCS1v15(rand.Reader, pub, key)
	require.NoError(t, err)
	m := &RawMessage{Body: make([]byte, 4+len(ct))}
	binary.BigEndian.PutUint32(m.Body, uint32(len(ct)))
	copy(m.Body[4:], ct)
	m.SetFlag(FlagAsymmetric, true)
	return m
}

func TestAsymmetricRequest(t *testing.T) {
	keys := newTestKeys(t)
	enc := Encoder{CompressRequest: true, AcceptCompressed: true}
	seed := []byte("seed0001")
	m, err := enc.Encode(2, MethodAsymHandshake, seed, keys)
	require.NoError(t, err)
	assert.True(t, m.IsAsymmetric())
	assert.Equal(t, MetaFlag(0), m.Flags&(FlagCompressed|FlagAcceptCompressed))
	assert.Equal(t, uint32(0), m.SymKeyId)

	n := binary.BigEndian.Uint32(m.Body)
	ct := m.Body[4 : 4+n]
	plain, err := rsa.DecryptPKCS1v15(nil, keys.server, ct)
	require.NoError(t, err)
	assert.Equal(t, seed, plain)
	assert.Equal(t, keys.client.Size(), len(m.Body)-4-int(n))
}

func TestAsymmetricResponse(t *testing.T) {
	keys := newTestKeys(t)
	resp, err := Decode(asymReply(t, &keys.client.PublicKey, []byte("seed0001")), keys)
	require.NoError(t, err)
	assert.Contains(t, resp.Payload, "<asym_hand_shake>"+base64.StdEncoding.EncodeToString([]byte("seed0001"))+"</asym_hand_shake>")
}

func TestAsymmetricResponseUndecryptable(t *testing.T) {
	keys := newTestKeys(t)
	// encrypted for the wrong key
	m := asymReply(t, &keys.server.PublicKey, []byte("seed0001"))
	resp, err := Decode(m, keys)
	require.NoError(t, err)
	assert.Contains(t, resp.Payload, `<error code="-42">Unable to decrypt`)

	m.Body = []byte{0x7f, 0, 0, 0, 1}
	resp, err = Decode(m, keys)
	require.NoError(t, err)
	assert.Contains(t, resp.Payload, `code="-42"`)
}

func TestDecodeRetryFlag(t *testing.T) {
	m := &RawMessage{}
	m.Status = StatusNotProcessed
	resp, err := Decode(m, nil)
	require.NoError(t, err)
	assert.True(t, resp.ShouldRetry())
}
