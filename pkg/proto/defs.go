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
	"errors"
)

type (
	MetaFlag   uint8
	StatusFlag uint8
	Encryption uint8
)

const (
	HeaderSize = 100

	MaxBodySize          = 64 << 20
	DefaultReadChunkSize = 1024
)

const (
	FlagCompressed       = MetaFlag(0x04)
	FlagSymmetric        = MetaFlag(0x08)
	FlagAcceptCompressed = MetaFlag(0x10)
	FlagAsymmetric       = MetaFlag(0x40)

	StatusNotProcessed = StatusFlag(0x01)
)

const (
	EncryptionNone = Encryption(iota)
	EncryptionSymmetric
	EncryptionAsymmetric
)

const (
	MethodKeyInfo       = "key_info"
	MethodClientPubKey  = "iclient_pub_key"
	MethodAsymHandshake = "asym_hand_shake"
)

var (
	ErrEmptyResponse    = errors.New("empty response from gateway")
	ErrBodyTooLarge     = errors.New("message body exceeds limit")
	ErrNoSymmetricKey   = errors.New("symmetric key is not set")
	ErrNoAsymmetricKeys = errors.New("asymmetric keys are not set")
)

type ProtocolError struct {
	what string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.what
}

var publicMethods = map[string]struct{}{
	MethodKeyInfo:      {},
	MethodClientPubKey: {},
}

// IsPublicMethod reports whether the method is served without session keys.
func IsPublicMethod(method string) bool {
	_, ok := publicMethods[method]
	return ok
}

func SelectEncryption(method string) Encryption {
	if IsPublicMethod(method) {
		return EncryptionNone
	}
	if method == MethodAsymHandshake {
		return EncryptionAsymmetric
	}
	return EncryptionSymmetric
}

func (e Encryption) String() string {
	switch e {
	case EncryptionNone:
		return "plain"
	case EncryptionSymmetric:
		return "sym"
	case EncryptionAsymmetric:
		return "asym"
	}
	return "unknown"
}
