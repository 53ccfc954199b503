package io

import (
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sirena/pkg/util"
)

// echoServer accepts connections and echoes what it reads.
type echoServer struct {
	ln    net.Listener
	mtx   sync.Mutex
	conns []net.Conn
}

func newEchoServer(t *testing.T) *echoServer {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &echoServer{ln: ln}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			s.mtx.Lock()
			s.conns = append(s.conns, c)
			s.mtx.Unlock()
			go func() {
				buf := make([]byte, 512)
				for {
					n, err := c.Read(buf)
					if err != nil {
						return
					}
					if _, err = c.Write(buf[:n]); err != nil {
						return
					}
				}
			}()
		}
	}()
	t.Cleanup(s.Close)
	return s
}

func (s *echoServer) endpoint() ServiceEndpoint {
	addr := s.ln.Addr().(*net.TCPAddr)
	return ServiceEndpoint{Host: addr.IP.String(), Port: addr.Port}
}

func (s *echoServer) accepted() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.conns)
}

func (s *echoServer) Close() {
	s.ln.Close()
	s.mtx.Lock()
	for _, c := range s.conns {
		c.Close()
	}
	s.mtx.Unlock()
}

// closedEndpoint returns an address nobody listens on.
func closedEndpoint(t *testing.T) ServiceEndpoint {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()
	n, _ := strconv.Atoi(port)
	return ServiceEndpoint{Host: "127.0.0.1", Port: n}
}

func fastConfig() OutboundConfig {
	return OutboundConfig{
		ConnectTimeout:  util.Duration{Duration: time.Second},
		ReadTimeout:     util.Duration{Duration: time.Second},
		ConnectAttempts: 2,
		BackoffMin:      util.Duration{Duration: 10 * time.Millisecond},
		BackoffMax:      util.Duration{Duration: 20 * time.Millisecond},
	}
}
