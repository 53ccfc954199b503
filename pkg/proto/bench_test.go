package proto

import (
	"bytes"
	"crypto/des"
	"testing"
)

var (
	gBody  []byte
	gKeys  *testKeys
	gPlain = Encoder{ClientId: 3340}
	gZip   = Encoder{ClientId: 3340, CompressRequest: true, AcceptCompressed: true}
)

func BenchmarkEncodeSymmetric(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := gPlain.EncodeSymmetric(uint32(i), gBody, gKeys.block, gKeys.keyId); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncodeSymmetricCompressed(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := gZip.EncodeSymmetric(uint32(i), gBody, gKeys.block, gKeys.keyId); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeSymmetricCompressed(b *testing.B) {
	m, err := gZip.EncodeSymmetric(1, gBody, gKeys.block, gKeys.keyId)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Decode(m, gKeys); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkReadRawMessage(b *testing.B) {
	m, err := gPlain.EncodePlain(1, gBody)
	if err != nil {
		b.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err = m.Write(&buf); err != nil {
		b.Fatal(err)
	}
	wire := buf.Bytes()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var raw RawMessage
		if _, err := raw.Read(bytes.NewReader(wire), 0); err != nil {
			b.Fatal(err)
		}
	}
}

func init() {
	gBody = bytes.Repeat([]byte("<segment><flight>SU1234</flight><class>Y</class></segment>"), 40)
	block, err := des.NewCipher([]byte("8bytekey"))
	if err != nil {
		panic(err)
	}
	gKeys = &testKeys{block: block, keyId: 17}
}
