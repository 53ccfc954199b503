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
	"crypto/rsa"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"unicode/utf8"
)

const (
	// CodeAsymDecryptFailed is the error code embedded in the synthetic
	// handshake answer when the gateway reply cannot be decrypted.
	CodeAsymDecryptFailed = "-42"

	xmlProlog = `<?xml version="1.0" encoding="UTF-8"?>`
)

type Response struct {
	Header
	Payload string
}

// ShouldRetry reports whether the gateway asked for the request to be resent.
func (r *Response) ShouldRetry() bool {
	return r.NotProcessed()
}

// Decode turns a received message into a response, undoing encryption and
// compression as the header flags say.
func Decode(m *RawMessage, keys KeyRing) (*Response, error) {
	resp := &Response{Header: m.Header}

	var (
		body []byte
		err  error
	)
	switch m.Encryption() {
	case EncryptionAsymmetric:
		var priv *rsa.PrivateKey
		if keys != nil {
			priv = keys.PrivateKey()
		}
		resp.Payload = decodeAsymmetric(m.Body, priv)
		return resp, nil
	case EncryptionSymmetric:
		body, err = decodeSymmetric(m, keys)
	default:
		body, err = decodePlain(m)
	}
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(body) {
		body = bytes.ToValidUTF8(body, []byte("�"))
	}
	resp.Payload = string(body)
	return resp, nil
}

func decodePlain(m *RawMessage) ([]byte, error) {
	if m.IsCompressed() && looksCompressed(m.Body) {
		body, err := decompress(m.Body)
		if err != nil {
			return nil, fmt.Errorf("decompress response: %w", err)
		}
		return body, nil
	}
	return m.Body, nil
}

func decodeSymmetric(m *RawMessage, keys KeyRing) ([]byte, error) {
	if keys == nil {
		return nil, ErrNoSymmetricKey
	}
	block, err := keys.SymmetricBlock()
	if err != nil {
		return nil, err
	}
	body, err := decryptECB(block, m.Body)
	if err != nil {
		return nil, err
	}
	if m.IsCompressed() && looksCompressed(body) {
		if body, err = decompress(body); err != nil {
			return nil, fmt.Errorf("decompress response: %w", err)
		}
		return body, nil
	}
	return Unpad(body, block.BlockSize()), nil
}

// decodeAsymmetric never fails: a reply that cannot be decrypted becomes an
// answer carrying an error node, so handshake errors are handled like any
// other gateway error.
func decodeAsymmetric(body []byte, priv *rsa.PrivateKey) string {
	if priv == nil {
		return asymErrorPayload("private key is not loaded")
	}
	if len(body) < 4 {
		return asymErrorPayload(fmt.Sprintf("body of %d bytes has no length prefix", len(body)))
	}
	n := int32(binary.BigEndian.Uint32(body))
	if n < 0 || int(n) > len(body)-4 {
		return asymErrorPayload(fmt.Sprintf("bad ciphertext length %d", n))
	}
	key, err := rsa.DecryptPKCS1v15(nil, priv, body[4:4+n])
	if err != nil {
		return asymErrorPayload(err.Error())
	}
	return xmlProlog + "<sirena><answer><" + MethodAsymHandshake + ">" +
		base64.StdEncoding.EncodeToString(key) +
		"</" + MethodAsymHandshake + "></answer></sirena>"
}

func asymErrorPayload(reason string) string {
	var buf bytes.Buffer
	buf.WriteString(xmlProlog)
	buf.WriteString("<sirena><answer><" + MethodAsymHandshake + "><error code=\"" + CodeAsymDecryptFailed + "\">")
	xml.EscapeText(&buf, []byte("Unable to decrypt handshake answer: "+reason))
	buf.WriteString("</error></" + MethodAsymHandshake + "></answer></sirena>")
	return buf.String()
}
