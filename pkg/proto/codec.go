//  
//  Copyright 2023 PayPal Inc.
//  
//  Licensed to the Apache Software Foundation (ASF) under one or more
//  contributor license agreements.  See the NOTICE file distributed with
//  this work for additional information regarding copyright ownership.
//  The ASF licenses this file to You under the Apache License, Version 2.0
//  (the "License"); you may not use this file except in compliance with
//  the License.  You may obtain a copy of the License at
//  
//     http://www.apache.org/licenses/LICENSE-2.0
//  
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.
//  

package proto

import (
	"bytes"
	"crypto/cipher"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Pad appends 1..blockSize bytes, each holding the pad length. A body that is
// already block aligned gets a full block.
func Pad(body []byte, blockSize int) []byte {
	n := blockSize - len(body)%blockSize
	out := make([]byte, len(body)+n)
	copy(out, body)
	for i := len(body); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

// Unpad strips the count of bytes given by the trailing byte when that count
// is in (0, blockSize]. Anything else is taken as an unpadded body.
func Unpad(body []byte, blockSize int) []byte {
	if len(body) == 0 {
		return body
	}
	n := int(body[len(body)-1])
	if n == 0 || n > blockSize || n > len(body) {
		return body
	}
	return body[:len(body)-n]
}

func encryptECB(block cipher.Block, src []byte) ([]byte, error) {
	bs := block.BlockSize()
	if len(src)%bs != 0 {
		return nil, &ProtocolError{fmt.Sprintf("plaintext of %d bytes is not block aligned", len(src))}
	}
	dst := make([]byte, len(src))
	for i := 0; i < len(src); i += bs {
		block.Encrypt(dst[i:i+bs], src[i:i+bs])
	}
	return dst, nil
}

func decryptECB(block cipher.Block, src []byte) ([]byte, error) {
	bs := block.BlockSize()
	if len(src)%bs != 0 {
		return nil, &ProtocolError{fmt.Sprintf("ciphertext of %d bytes is not block aligned", len(src))}
	}
	dst := make([]byte, len(src))
	for i := 0; i < len(src); i += bs {
		block.Decrypt(dst[i:i+bs], src[i:i+bs])
	}
	return dst, nil
}

func compress(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(body); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decompress inflates a zlib stream. Bytes after the end of the stream, such
// as cipher padding, are ignored.
func decompress(body []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// looksCompressed checks for a zlib stream header (RFC 1950, section 2.2).
func looksCompressed(body []byte) bool {
	if len(body) < 2 {
		return false
	}
	cmf, flg := body[0], body[1]
	return cmf&0x0f == 8 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}
