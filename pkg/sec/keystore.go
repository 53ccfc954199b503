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

package sec

import (
	"crypto/cipher"
	"crypto/des"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"

	"sirena/pkg/proto"
)

const SymKeySeedSize = des.BlockSize

// KeyContainer holds the key material of one gateway session. It is owned
// by a single connection and is not safe for concurrent use.
type KeyContainer struct {
	privateKey *rsa.PrivateKey
	serverKey  *rsa.PublicKey

	seed  []byte
	block cipher.Block
	keyId uint32
}

func NewKeyContainer(privateKey *rsa.PrivateKey) *KeyContainer {
	return &KeyContainer{privateKey: privateKey}
}

// ResetSymmetricKey draws a fresh seed and drops the derived cipher and key
// id. It starts every handshake.
func (k *KeyContainer) ResetSymmetricKey() error {
	seed := make([]byte, SymKeySeedSize)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return fmt.Errorf("generate symmetric key: %w", err)
	}
	k.seed = seed
	k.block = nil
	k.keyId = 0
	return nil
}

// SetSymmetricKey adopts a seed and id negotiated earlier.
func (k *KeyContainer) SetSymmetricKey(seed []byte, keyId uint32) error {
	if len(seed) != SymKeySeedSize {
		return fmt.Errorf("symmetric key seed must be %d bytes, got %d", SymKeySeedSize, len(seed))
	}
	k.seed = append([]byte(nil), seed...)
	k.block = nil
	k.keyId = keyId
	return nil
}

func (k *KeyContainer) SetSymmetricKeyId(keyId uint32) {
	k.keyId = keyId
}

func (k *KeyContainer) SymmetricSeed() []byte {
	return k.seed
}

func (k *KeyContainer) HasSymmetricKey() bool {
	return len(k.seed) == SymKeySeedSize
}

// SymmetricBlock returns the DES cipher built from the current seed.
func (k *KeyContainer) SymmetricBlock() (cipher.Block, error) {
	if !k.HasSymmetricKey() {
		return nil, proto.ErrNoSymmetricKey
	}
	if k.block == nil {
		block, err := des.NewCipher(k.seed)
		if err != nil {
			return nil, err
		}
		k.block = block
	}
	return k.block, nil
}

func (k *KeyContainer) SymmetricKeyId() uint32 {
	return k.keyId
}

func (k *KeyContainer) SetServerPublicKey(key *rsa.PublicKey) {
	k.serverKey = key
}

func (k *KeyContainer) ServerPublicKey() *rsa.PublicKey {
	return k.serverKey
}

func (k *KeyContainer) PrivateKey() *rsa.PrivateKey {
	return k.privateKey
}

func (k *KeyContainer) SetPrivateKey(key *rsa.PrivateKey) {
	k.privateKey = key
}

func (k *KeyContainer) HasAsymmetricKeys() bool {
	return k.privateKey != nil && k.serverKey != nil
}
