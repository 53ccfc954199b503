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
	"crypto"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
)

// KeyRing gives the codec access to session key material.
type KeyRing interface {
	SymmetricBlock() (cipher.Block, error)
	SymmetricKeyId() uint32
	ServerPublicKey() *rsa.PublicKey
	PrivateKey() *rsa.PrivateKey
}

type Encoder struct {
	ClientId         uint16
	CompressRequest  bool
	AcceptCompressed bool
}

// Encode frames body for method, picking the encryption the method requires.
func (e *Encoder) Encode(msgId uint32, method string, body []byte, keys KeyRing) (*RawMessage, error) {
	switch SelectEncryption(method) {
	case EncryptionNone:
		return e.EncodePlain(msgId, body)
	case EncryptionAsymmetric:
		if keys == nil {
			return nil, ErrNoAsymmetricKeys
		}
		return e.EncodeAsymmetric(msgId, body, keys.ServerPublicKey(), keys.PrivateKey())
	}
	if keys == nil {
		return nil, ErrNoSymmetricKey
	}
	block, err := keys.SymmetricBlock()
	if err != nil {
		return nil, err
	}
	return e.EncodeSymmetric(msgId, body, block, keys.SymmetricKeyId())
}

func (e *Encoder) newMessage(msgId uint32) *RawMessage {
	m := &RawMessage{}
	m.MessageId = msgId
	m.ClientId = e.ClientId
	m.SetFlag(FlagAcceptCompressed, e.AcceptCompressed)
	return m
}

func (e *Encoder) compressBody(m *RawMessage, body []byte) ([]byte, error) {
	if !e.CompressRequest {
		return body, nil
	}
	zipped, err := compress(body)
	if err != nil {
		return nil, fmt.Errorf("compress request: %w", err)
	}
	m.SetFlag(FlagCompressed, true)
	return zipped, nil
}

func (e *Encoder) EncodePlain(msgId uint32, body []byte) (m *RawMessage, err error) {
	m = e.newMessage(msgId)
	if m.Body, err = e.compressBody(m, body); err != nil {
		return nil, err
	}
	m.BodyLength = uint32(len(m.Body))
	return
}

func (e *Encoder) EncodeSymmetric(msgId uint32, body []byte, block cipher.Block, keyId uint32) (m *RawMessage, err error) {
	if block == nil {
		return nil, ErrNoSymmetricKey
	}
	m = e.newMessage(msgId)
	if body, err = e.compressBody(m, body); err != nil {
		return nil, err
	}
	if m.Body, err = encryptECB(block, Pad(body, block.BlockSize())); err != nil {
		return nil, err
	}
	m.SetFlag(FlagSymmetric, true)
	m.SymKeyId = keyId
	m.BodyLength = uint32(len(m.Body))
	return
}

// EncodeAsymmetric encrypts body with the server public key and signs the
// ciphertext with the client private key. The body is never compressed.
func (e *Encoder) EncodeAsymmetric(msgId uint32, body []byte, pub *rsa.PublicKey, priv *rsa.PrivateKey) (*RawMessage, error) {
	if pub == nil || priv == nil {
		return nil, ErrNoAsymmetricKeys
	}
	encrypted, err := rsa.EncryptPKCS1v15(rand.Reader, pub, body)
	if err != nil {
		return nil, fmt.Errorf("encrypt handshake body: %w", err)
	}
	digest := sha1.Sum(encrypted)
	signature, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA1, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign handshake body: %w", err)
	}

	m := &RawMessage{}
	m.MessageId = msgId
	m.ClientId = e.ClientId
	m.SetFlag(FlagAsymmetric, true)
	m.Body = make([]byte, 4+len(encrypted)+len(signature))
	binary.BigEndian.PutUint32(m.Body, uint32(len(encrypted)))
	copy(m.Body[4:], encrypted)
	copy(m.Body[4+len(encrypted):], signature)
	m.BodyLength = uint32(len(m.Body))
	return m, nil
}
