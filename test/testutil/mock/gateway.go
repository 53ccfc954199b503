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

// Package mock provides an in-process gateway speaking the full wire
// protocol: key_info, asym_hand_shake and symmetric queries, with knobs to
// inject not-processed replies, key expiry and reply reordering.
package mock

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/binary"
	"encoding/pem"
	"encoding/xml"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/golang/glog"

	"sirena/pkg/io"
	"sirena/pkg/proto"
	"sirena/pkg/proto/envelope"
	"sirena/pkg/sec"
)

const (
	KeyBits = 1024

	// burstGap is how long the gateway waits for more pipelined requests
	// before flushing reordered replies.
	burstGap = 30 * time.Millisecond
)

type (
	// Request is a decoded client request as seen by the gateway. Seq counts
	// the requests of Method received so far, starting at 1.
	Request struct {
		Method    string
		MessageId uint32
		KeyId     uint32
		Seq       int
		Query     *envelope.Node
	}

	// Handler returns the inner XML of the method element of the answer.
	Handler func(r *Request) string

	Gateway struct {
		listener  net.Listener
		serverKey *rsa.PrivateKey
		serverPEM string

		mtx          sync.Mutex
		clientKey    *rsa.PublicKey
		keys         map[uint32]*sec.KeyContainer
		nextKeyId    uint32
		handler      Handler
		retryFilter  func(r *Request) bool
		rejectNext   int
		alwaysReject bool
		reverse      bool
		delay        time.Duration
		counters     map[string]int
		accepted     int
		conns        map[net.Conn]struct{}

		wg sync.WaitGroup
	}
)

// EchoHandler answers with the body the request carried.
func EchoHandler(r *Request) string {
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	for _, c := range r.Query.Children {
		enc.Encode(c)
	}
	enc.Flush()
	return buf.String()
}

// NewClientKey generates a client key pair and returns the private key as
// PEM text, as a client configuration carries it.
func NewClientKey(t testing.TB) (privatePEM string, pub *rsa.PublicKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		t.Fatal(err)
	}
	privatePEM = string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}))
	return privatePEM, &key.PublicKey
}

// Start runs a gateway on a random local port. It is closed when t ends.
func Start(t testing.TB) *Gateway {
	t.Helper()
	g, err := NewGateway("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(g.Close)
	return g
}

func NewGateway(addr string) (*Gateway, error) {
	serverKey, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, err
	}
	serverPEM, err := sec.MarshalPublicKey(&serverKey.PublicKey)
	if err != nil {
		return nil, err
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	g := &Gateway{
		listener:  l,
		serverKey: serverKey,
		serverPEM: serverPEM,
		keys:      make(map[uint32]*sec.KeyContainer),
		nextKeyId: 100,
		handler:   EchoHandler,
		counters:  make(map[string]int),
		conns:     make(map[net.Conn]struct{}),
	}
	g.wg.Add(1)
	go g.serve()
	return g, nil
}

func (g *Gateway) Addr() string {
	return g.listener.Addr().String()
}

func (g *Gateway) Endpoint() io.ServiceEndpoint {
	addr := g.listener.Addr().(*net.TCPAddr)
	return io.ServiceEndpoint{Host: addr.IP.String(), Port: addr.Port}
}

func (g *Gateway) Close() {
	g.listener.Close()
	g.DropConnections()
	g.wg.Wait()
}

// DropConnections closes every client connection from the gateway side.
func (g *Gateway) DropConnections() {
	g.mtx.Lock()
	for c := range g.conns {
		c.Close()
	}
	g.mtx.Unlock()
}

// SetClientKey registers the client key used to verify handshake
// signatures and to encrypt handshake replies.
func (g *Gateway) SetClientKey(pub *rsa.PublicKey) {
	g.mtx.Lock()
	g.clientKey = pub
	g.mtx.Unlock()
}

func (g *Gateway) SetHandler(h Handler) {
	g.mtx.Lock()
	g.handler = h
	g.mtx.Unlock()
}

// SetRetryFilter answers "not processed" to every request f selects.
func (g *Gateway) SetRetryFilter(f func(r *Request) bool) {
	g.mtx.Lock()
	g.retryFilter = f
	g.mtx.Unlock()
}

// RejectNextKeys rejects the symmetric key of the next n requests.
func (g *Gateway) RejectNextKeys(n int) {
	g.mtx.Lock()
	g.rejectNext = n
	g.mtx.Unlock()
}

func (g *Gateway) AlwaysRejectKeys(on bool) {
	g.mtx.Lock()
	g.alwaysReject = on
	g.mtx.Unlock()
}

// ReverseReplies sends the replies of every pipelined burst in reverse.
func (g *Gateway) ReverseReplies(on bool) {
	g.mtx.Lock()
	g.reverse = on
	g.mtx.Unlock()
}

func (g *Gateway) SetDelay(d time.Duration) {
	g.mtx.Lock()
	g.delay = d
	g.mtx.Unlock()
}

// RegisterSymmetricKey makes the gateway accept a key negotiated elsewhere.
func (g *Gateway) RegisterSymmetricKey(seed []byte, keyId uint32) error {
	k := sec.NewKeyContainer(nil)
	if err := k.SetSymmetricKey(seed, keyId); err != nil {
		return err
	}
	g.mtx.Lock()
	g.keys[keyId] = k
	g.mtx.Unlock()
	return nil
}

// ExpireKeys forgets every negotiated key.
func (g *Gateway) ExpireKeys() {
	g.mtx.Lock()
	g.keys = make(map[uint32]*sec.KeyContainer)
	g.mtx.Unlock()
}

// Count returns the number of requests received for method.
func (g *Gateway) Count(method string) int {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	return g.counters[method]
}

// Handshakes counts asym_hand_shake requests.
func (g *Gateway) Handshakes() int {
	return g.Count(proto.MethodAsymHandshake)
}

// Accepted counts the connections accepted so far.
func (g *Gateway) Accepted() int {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	return g.accepted
}

func (g *Gateway) serve() {
	defer g.wg.Done()
	for {
		c, err := g.listener.Accept()
		if err != nil {
			return
		}
		g.mtx.Lock()
		g.accepted++
		g.conns[c] = struct{}{}
		g.mtx.Unlock()

		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			g.handleConn(c)
			g.mtx.Lock()
			delete(g.conns, c)
			g.mtx.Unlock()
			c.Close()
		}()
	}
}

func (g *Gateway) handleConn(c net.Conn) {
	var burst []*proto.RawMessage
	flush := func() error {
		for i := len(burst) - 1; i >= 0; i-- {
			if _, err := burst[i].Write(c); err != nil {
				return err
			}
		}
		burst = burst[:0]
		return nil
	}

	for {
		if len(burst) > 0 {
			c.SetReadDeadline(time.Now().Add(burstGap))
		} else {
			c.SetReadDeadline(time.Time{})
		}
		var m proto.RawMessage
		if _, err := m.Read(c, 0); err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() && len(burst) > 0 {
				if err = flush(); err != nil {
					return
				}
				continue
			}
			return
		}

		reply := g.process(&m)

		g.mtx.Lock()
		reverse, delay := g.reverse, g.delay
		g.mtx.Unlock()
		if delay > 0 {
			time.Sleep(delay)
		}
		if reverse {
			burst = append(burst, reply)
			continue
		}
		if _, err := reply.Write(c); err != nil {
			return
		}
	}
}

func (g *Gateway) process(m *proto.RawMessage) *proto.RawMessage {
	switch m.Encryption() {
	case proto.EncryptionAsymmetric:
		return g.handshake(m)
	case proto.EncryptionSymmetric:
		return g.symmetric(m)
	}
	return g.plain(m)
}

func (g *Gateway) newRequest(m *proto.RawMessage, payload string) (*Request, error) {
	root := &envelope.Node{}
	if err := xml.Unmarshal([]byte(payload), root); err != nil {
		return nil, err
	}
	query := root.Child("query")
	if query == nil || len(query.Children) == 0 {
		return nil, fmt.Errorf("no query in %q", payload)
	}
	r := &Request{
		Method:    query.Children[0].Name(),
		MessageId: m.MessageId,
		KeyId:     m.SymKeyId,
		Query:     query.Children[0],
	}
	g.mtx.Lock()
	g.counters[r.Method]++
	r.Seq = g.counters[r.Method]
	g.mtx.Unlock()
	return r, nil
}

func (g *Gateway) plain(m *proto.RawMessage) *proto.RawMessage {
	resp, err := proto.Decode(m, nil)
	if err != nil {
		return errorReply(m, "-2", "", err.Error())
	}
	r, err := g.newRequest(m, resp.Payload)
	if err != nil {
		return errorReply(m, "-3", "", err.Error())
	}
	if g.shouldRetry(r) {
		return notProcessedReply(m)
	}
	switch r.Method {
	case proto.MethodKeyInfo:
		inner := "<key_manager><server_public_key>" + g.serverPEM + "</server_public_key></key_manager>"
		return g.answer(m, r.Method, inner, nil, 0)
	case proto.MethodClientPubKey:
		return g.answer(m, r.Method, "<ok/>", nil, 0)
	}
	return errorReply(m, "-1", "", "method "+r.Method+" requires encryption")
}

func (g *Gateway) handshake(m *proto.RawMessage) *proto.RawMessage {
	g.mtx.Lock()
	g.counters[proto.MethodAsymHandshake]++
	clientKey := g.clientKey
	g.mtx.Unlock()

	if clientKey == nil {
		return errorReply(m, "-7", "", "client public key is not registered")
	}
	body := m.Body
	if len(body) < 4 {
		return errorReply(m, "-4", "", "short handshake body")
	}
	n := int(binary.BigEndian.Uint32(body))
	if n <= 0 || 4+n > len(body) {
		return errorReply(m, "-4", "", "bad handshake length")
	}
	encrypted, signature := body[4:4+n], body[4+n:]
	digest := sha1.Sum(encrypted)
	if err := rsa.VerifyPKCS1v15(clientKey, crypto.SHA1, digest[:], signature); err != nil {
		return errorReply(m, "-5", "", "bad handshake signature")
	}
	seed, err := rsa.DecryptPKCS1v15(nil, g.serverKey, encrypted)
	if err != nil {
		return errorReply(m, "-6", "", err.Error())
	}

	k := sec.NewKeyContainer(nil)
	g.mtx.Lock()
	g.nextKeyId++
	keyId := g.nextKeyId
	if err = k.SetSymmetricKey(seed, keyId); err == nil {
		g.keys[keyId] = k
	}
	g.mtx.Unlock()
	if err != nil {
		return errorReply(m, "-6", "", err.Error())
	}

	var enc proto.Encoder
	reply, err := enc.EncodeAsymmetric(m.MessageId, seed, clientKey, g.serverKey)
	if err != nil {
		return errorReply(m, "-6", "", err.Error())
	}
	reply.ClientId = m.ClientId
	reply.SymKeyId = keyId
	return reply
}

func (g *Gateway) keyFor(m *proto.RawMessage) *sec.KeyContainer {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	if g.alwaysReject {
		return nil
	}
	if g.rejectNext > 0 {
		g.rejectNext--
		return nil
	}
	return g.keys[m.SymKeyId]
}

func (g *Gateway) symmetric(m *proto.RawMessage) *proto.RawMessage {
	keys := g.keyFor(m)
	if keys == nil {
		g.mtx.Lock()
		g.counters["rejected"]++
		g.mtx.Unlock()
		return errorReply(m, "-1", "4", "symmetric key expired")
	}
	resp, err := proto.Decode(m, keys)
	if err != nil {
		return errorReply(m, "-2", "", err.Error())
	}
	r, err := g.newRequest(m, resp.Payload)
	if err != nil {
		return errorReply(m, "-3", "", err.Error())
	}
	if g.shouldRetry(r) {
		return notProcessedReply(m)
	}
	g.mtx.Lock()
	handler := g.handler
	g.mtx.Unlock()
	return g.answer(m, r.Method, handler(r), keys, keys.SymmetricKeyId())
}

func (g *Gateway) shouldRetry(r *Request) bool {
	g.mtx.Lock()
	f := g.retryFilter
	g.mtx.Unlock()
	return f != nil && f(r)
}

func (g *Gateway) answer(m *proto.RawMessage, method string, inner string, keys *sec.KeyContainer, keyId uint32) *proto.RawMessage {
	payload := []byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		"<sirena><answer><" + method + ">" + inner + "</" + method + "></answer></sirena>")
	enc := proto.Encoder{ClientId: m.ClientId, CompressRequest: m.Flags&proto.FlagAcceptCompressed != 0}

	var (
		reply *proto.RawMessage
		err   error
	)
	if keys != nil {
		block, berr := keys.SymmetricBlock()
		if berr != nil {
			return errorReply(m, "-2", "", berr.Error())
		}
		reply, err = enc.EncodeSymmetric(m.MessageId, payload, block, keyId)
	} else {
		reply, err = enc.EncodePlain(m.MessageId, payload)
	}
	if err != nil {
		glog.Errorf("mock gateway: %s", err)
		return errorReply(m, "-2", "", err.Error())
	}
	reply.SetFlag(proto.FlagAcceptCompressed, false)
	return reply
}

func errorReply(m *proto.RawMessage, code string, cryptError string, text string) *proto.RawMessage {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?><sirena><answer><error code="` + code + `"`)
	if cryptError != "" {
		buf.WriteString(` crypt_error="` + cryptError + `"`)
	}
	buf.WriteString(">")
	xml.EscapeText(&buf, []byte(text))
	buf.WriteString("</error></answer></sirena>")

	reply := &proto.RawMessage{Body: buf.Bytes()}
	reply.MessageId = m.MessageId
	reply.ClientId = m.ClientId
	reply.BodyLength = uint32(len(reply.Body))
	return reply
}

func notProcessedReply(m *proto.RawMessage) *proto.RawMessage {
	reply := &proto.RawMessage{}
	reply.MessageId = m.MessageId
	reply.ClientId = m.ClientId
	reply.Status |= proto.StatusNotProcessed
	return reply
}
