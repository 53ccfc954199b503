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
	"encoding/binary"
	"fmt"
	"time"
)

const (
	offBodyLength = 0
	offTimestamp  = 4
	offMessageId  = 8
	offClientId   = 44
	offFlags      = 46
	offStatus     = 47
	offSymKeyId   = 48
)

var timeNow = time.Now

type Header struct {
	BodyLength uint32
	Timestamp  uint32
	MessageId  uint32
	ClientId   uint16
	Flags      MetaFlag
	Status     StatusFlag
	SymKeyId   uint32
}

func (h *Header) Reset() {
	*h = Header{}
}

// Encode refreshes the timestamp and writes the header into raw, which must
// hold at least HeaderSize bytes. Reserved areas are zeroed.
func (h *Header) Encode(raw []byte) {
	h.Timestamp = uint32(timeNow().Unix())
	for i := 0; i < HeaderSize; i++ {
		raw[i] = 0
	}
	binary.BigEndian.PutUint32(raw[offBodyLength:], h.BodyLength)
	binary.BigEndian.PutUint32(raw[offTimestamp:], h.Timestamp)
	binary.BigEndian.PutUint32(raw[offMessageId:], h.MessageId)
	binary.BigEndian.PutUint16(raw[offClientId:], h.ClientId)
	raw[offFlags] = uint8(h.Flags)
	raw[offStatus] = uint8(h.Status)
	binary.BigEndian.PutUint32(raw[offSymKeyId:], h.SymKeyId)
}

func (h *Header) Decode(raw []byte) error {
	if len(raw) < HeaderSize {
		return &ProtocolError{fmt.Sprintf("header too short: %d bytes", len(raw))}
	}
	h.BodyLength = binary.BigEndian.Uint32(raw[offBodyLength:])
	h.Timestamp = binary.BigEndian.Uint32(raw[offTimestamp:])
	h.MessageId = binary.BigEndian.Uint32(raw[offMessageId:])
	h.ClientId = binary.BigEndian.Uint16(raw[offClientId:])
	h.Flags = MetaFlag(raw[offFlags])
	h.Status = StatusFlag(raw[offStatus])
	h.SymKeyId = binary.BigEndian.Uint32(raw[offSymKeyId:])
	return nil
}

func (h *Header) IsSymmetric() bool {
	return h.Flags&FlagSymmetric != 0
}

func (h *Header) IsAsymmetric() bool {
	return h.Flags&FlagAsymmetric != 0
}

func (h *Header) IsCompressed() bool {
	return h.Flags&(FlagCompressed|FlagAcceptCompressed) != 0
}

// NotProcessed reports whether the gateway asked for the message to be resent.
func (h *Header) NotProcessed() bool {
	return h.Status&StatusNotProcessed != 0
}

func (h *Header) SetFlag(f MetaFlag, on bool) {
	if on {
		h.Flags |= f
	} else {
		h.Flags &^= f
	}
}

func (h *Header) Encryption() Encryption {
	switch {
	case h.IsAsymmetric():
		return EncryptionAsymmetric
	case h.IsSymmetric():
		return EncryptionSymmetric
	}
	return EncryptionNone
}

func (h Header) String() string {
	return fmt.Sprintf("len=%d,ts=%d,msgid=%d,client=%d,flags=0x%02x,status=0x%02x,keyid=%d",
		h.BodyLength, h.Timestamp, h.MessageId, h.ClientId, uint8(h.Flags), uint8(h.Status), h.SymKeyId)
}
