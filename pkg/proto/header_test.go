package proto

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderEncodeDecode(t *testing.T) {
	defer func() { timeNow = time.Now }()
	timeNow = func() time.Time { return time.Unix(1700000000, 0) }

	tests := []Header{
		{},
		{BodyLength: 1, MessageId: 1, ClientId: 1},
		{BodyLength: 0xffffffff, MessageId: 0xfffffffe, ClientId: 0xffff, Flags: FlagSymmetric | FlagCompressed, SymKeyId: 42},
		{BodyLength: 512, MessageId: 7, ClientId: 3340, Flags: FlagAsymmetric, Status: StatusNotProcessed},
		{Timestamp: 12345, Flags: FlagAcceptCompressed},
	}
	for _, h := range tests {
		in := h
		var raw [HeaderSize]byte
		in.Encode(raw[:])

		var out Header
		require.NoError(t, out.Decode(raw[:]))
		assert.Equal(t, uint32(1700000000), out.Timestamp)
		h.Timestamp = out.Timestamp
		assert.Equal(t, h, out)
	}
}

func TestHeaderLayout(t *testing.T) {
	h := Header{BodyLength: 0x01020304, MessageId: 0x0a0b0c0d, ClientId: 0x1122, Flags: FlagSymmetric, Status: StatusNotProcessed, SymKeyId: 0x55667788}
	var raw [HeaderSize]byte
	h.Encode(raw[:])

	assert.Equal(t, []byte{1, 2, 3, 4}, raw[0:4])
	assert.Equal(t, []byte{0x0a, 0x0b, 0x0c, 0x0d}, raw[8:12])
	assert.Equal(t, make([]byte, 32), raw[12:44])
	assert.Equal(t, []byte{0x11, 0x22}, raw[44:46])
	assert.Equal(t, byte(0x08), raw[46])
	assert.Equal(t, byte(0x01), raw[47])
	assert.Equal(t, []byte{0x55, 0x66, 0x77, 0x88}, raw[48:52])
	assert.Equal(t, make([]byte, 48), raw[52:100])
}

func TestHeaderDecodeShort(t *testing.T) {
	var h Header
	assert.Error(t, h.Decode(make([]byte, HeaderSize-1)))
}

// trickleReader hands out at most one byte per Read call.
type trickleReader struct {
	r *bytes.Reader
}

func (t *trickleReader) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}
	return t.r.Read(p)
}

func TestRawMessageReadAccumulates(t *testing.T) {
	msg := &RawMessage{Body: []byte("<sirena><answer/></sirena>")}
	msg.MessageId = 99
	var buf bytes.Buffer
	_, err := msg.Write(&buf)
	require.NoError(t, err)

	var got RawMessage
	n, err := got.Read(&trickleReader{bytes.NewReader(buf.Bytes())}, 4)
	require.NoError(t, err)
	assert.Equal(t, buf.Len(), n)
	assert.Equal(t, uint32(99), got.MessageId)
	assert.Equal(t, msg.Body, got.Body)
}

func TestRawMessageReadEmpty(t *testing.T) {
	var m RawMessage
	_, err := m.Read(bytes.NewReader(nil), 0)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestRawMessageReadTruncated(t *testing.T) {
	var m RawMessage
	_, err := m.Read(bytes.NewReader(make([]byte, 10)), 0)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyResponse)

	msg := &RawMessage{Body: []byte("0123456789")}
	var buf bytes.Buffer
	msg.Write(&buf)
	_, err = m.Read(bytes.NewReader(buf.Bytes()[:buf.Len()-3]), 0)
	assert.Error(t, err)
}
