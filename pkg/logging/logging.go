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

package logging

import (
	"bytes"
	"strconv"
	"time"
)

type KeyValueBuffer struct {
	bytes.Buffer
	delimiter     byte
	pairDelimiter byte
}

func NewKVBufferForLog() *KeyValueBuffer {
	b := &KeyValueBuffer{
		delimiter:     '=',
		pairDelimiter: ',',
	}
	return b
}

func NewKVBuffer() *KeyValueBuffer {
	b := &KeyValueBuffer{
		pairDelimiter: '&',
		delimiter:     '=',
	}
	return b
}

var (
	logDataKeyMethod     []byte = []byte("method")
	logDataKeyMsgId      []byte = []byte("msgid")
	logDataKeyKeyId      []byte = []byte("keyid")
	logDataKeyConn       []byte = []byte("conn")
	logDataKeyAddr       []byte = []byte("addr")
	logDataKeyStatus     []byte = []byte("st")
	logDataKeyError      []byte = []byte("err")
	logDataKeyElapsed    []byte = []byte("rht")
	logDataKeyPayloadLen []byte = []byte("len")
	logDataKeyTryNo      []byte = []byte("try_no")
	logDataKeyBatchSize  []byte = []byte("batch")
)

func (b *KeyValueBuffer) AddBytes(key []byte, value []byte) *KeyValueBuffer {
	if b.Len() > 0 {
		b.WriteByte(b.pairDelimiter)
	}
	b.Write(key)
	b.WriteByte(b.delimiter)
	b.Write(value)
	return b
}

func (b *KeyValueBuffer) Add(key []byte, value string) *KeyValueBuffer {
	if b.Len() > 0 {
		b.WriteByte(b.pairDelimiter)
	}
	b.Write(key)
	b.WriteByte(b.delimiter)
	b.WriteString(value)
	return b
}

func (b *KeyValueBuffer) AddInt(key []byte, value int) *KeyValueBuffer {
	return b.Add(key, strconv.Itoa(value))
}

func (b *KeyValueBuffer) AddUInt64(key []byte, value uint64) *KeyValueBuffer {
	return b.Add(key, strconv.FormatUint(value, 10))
}

func (b *KeyValueBuffer) AddMethod(method string) *KeyValueBuffer {
	return b.Add(logDataKeyMethod, method)
}

func (b *KeyValueBuffer) AddMsgId(id uint32) *KeyValueBuffer {
	return b.AddUInt64(logDataKeyMsgId, uint64(id))
}

func (b *KeyValueBuffer) AddKeyId(id uint32) *KeyValueBuffer {
	if id != 0 {
		b.AddUInt64(logDataKeyKeyId, uint64(id))
	}
	return b
}

func (b *KeyValueBuffer) AddConnId(id string) *KeyValueBuffer {
	return b.Add(logDataKeyConn, id)
}

func (b *KeyValueBuffer) AddAddr(addr string) *KeyValueBuffer {
	return b.Add(logDataKeyAddr, addr)
}

func (b *KeyValueBuffer) AddStatus(st string) *KeyValueBuffer {
	return b.Add(logDataKeyStatus, st)
}

func (b *KeyValueBuffer) AddError(err error) *KeyValueBuffer {
	if err != nil {
		b.Add(logDataKeyError, err.Error())
	}
	return b
}

// AddElapsed logs d in microseconds.
func (b *KeyValueBuffer) AddElapsed(d time.Duration) *KeyValueBuffer {
	return b.AddInt(logDataKeyElapsed, int(d.Microseconds()))
}

func (b *KeyValueBuffer) AddPayloadLen(n int) *KeyValueBuffer {
	return b.AddInt(logDataKeyPayloadLen, n)
}

func (b *KeyValueBuffer) AddTryNo(n int) *KeyValueBuffer {
	return b.AddInt(logDataKeyTryNo, n)
}

func (b *KeyValueBuffer) AddBatchSize(n int) *KeyValueBuffer {
	return b.AddInt(logDataKeyBatchSize, n)
}
