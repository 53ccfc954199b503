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
	"fmt"
	"io"
)

type RawMessage struct {
	Header
	Body []byte
}

func (m *RawMessage) Reset() {
	m.Header.Reset()
	m.Body = nil
}

// Read reads one message from r. The header is accumulated until all
// HeaderSize bytes are in; the body is then read in chunks of at most
// chunkSize bytes. A stream that ends before any byte arrives yields
// ErrEmptyResponse.
//
// Note: read timeout is set at conn level
func (m *RawMessage) Read(r io.Reader, chunkSize int) (n int, err error) {
	var hBuffer [HeaderSize]byte

	n, err = io.ReadFull(r, hBuffer[:])
	if err != nil {
		m.Reset()
		if n == 0 && errors.Is(err, io.EOF) {
			err = ErrEmptyResponse
		}
		return
	}
	if err = m.Header.Decode(hBuffer[:]); err != nil {
		m.Reset()
		return
	}

	var nbody int
	nbody, err = m.readBody(r, chunkSize)
	n += nbody
	if err != nil {
		m.Reset()
	}
	return
}

func (m *RawMessage) readBody(r io.Reader, chunkSize int) (n int, err error) {
	size := int(m.BodyLength)
	if size > MaxBodySize {
		err = fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, size)
		return
	}
	if chunkSize <= 0 {
		chunkSize = DefaultReadChunkSize
	}
	m.Body = make([]byte, size)
	for n < size {
		end := n + chunkSize
		if end > size {
			end = size
		}
		var k int
		k, err = io.ReadFull(r, m.Body[n:end])
		n += k
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return
		}
	}
	return
}

// Write sends header and body with a single write call. The body length is
// taken from the body itself.
//
// Note: this api is not thread safe
func (m *RawMessage) Write(w io.Writer) (n int, err error) {
	buf := make([]byte, HeaderSize+len(m.Body))
	m.BodyLength = uint32(len(m.Body))
	m.Header.Encode(buf)
	copy(buf[HeaderSize:], m.Body)
	return w.Write(buf)
}

func (m *RawMessage) Size() int {
	return HeaderSize + len(m.Body)
}
