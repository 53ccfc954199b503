package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	"sirena/pkg/io"
	"sirena/pkg/logging"
	"sirena/pkg/logging/otel"
	"sirena/pkg/proto"
	"sirena/pkg/proto/envelope"
	"sirena/pkg/sec"
	"sirena/pkg/util"
)

// connState is the key material negotiated on one connection. It rides on
// the connection as its attachment and survives reconnects.
type connState struct {
	keys *sec.KeyContainer
	done bool
}

func stateOf(c *io.Connection) *connState {
	if st, ok := c.Attachment().(*connState); ok {
		return st
	}
	st := &connState{keys: sec.NewKeyContainer(nil)}
	c.SetAttachment(st)
	return st
}

// Result is one decoded gateway reply. Answer is nil when the gateway asked
// for the request to be sent again.
type Result struct {
	Method   string
	Response *proto.Response
	Answer   *envelope.Answer
}

func (r *Result) ShouldRetry() bool {
	return r == nil || r.Response.ShouldRetry()
}

func (r *Result) keyRejected() bool {
	return r != nil && r.Answer != nil && r.Answer.KeyRejected()
}

// Session is a connection held by one caller between Acquire and Release.
// Requests issued on it run back to back and never interleave with other
// callers. A Session is not safe for concurrent use.
type Session struct {
	proc  *Processor
	conn  *io.Connection
	state *connState
}

func newSession(p *Processor, c *io.Connection) *Session {
	return &Session{proc: p, conn: c, state: stateOf(c)}
}

func (s *Session) Conn() *io.Connection {
	return s.conn
}

// HandshakeDone reports whether the connection holds a usable symmetric key.
func (s *Session) HandshakeDone() bool {
	return s.state != nil && s.state.done
}

// Release hands the connection back to the pool, or closes it when the
// processor has no pool. It is idempotent.
func (s *Session) Release() {
	if s.conn == nil {
		return
	}
	if s.proc.IsPooled() {
		s.proc.pool.Release(s.conn)
	} else {
		s.conn.Disconnect()
	}
	s.conn = nil
}

// begin redials the connection if an earlier failure closed it and binds it
// to ctx.
func (s *Session) begin(ctx context.Context) (end func(), err error) {
	if s.conn == nil {
		return nil, NewError(KindTransport, "session already released", io.ErrNotConnected)
	}
	if err = s.conn.Connect(ctx); err != nil {
		return nil, transportError("connect", err)
	}
	return s.conn.Bind(ctx), nil
}

// Handshake negotiates a symmetric key on the connection unless it already
// holds one. force drops the current key first.
func (s *Session) Handshake(ctx context.Context, force bool) error {
	end, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer end()
	return s.handshake(ctx, force)
}

// Query sends one request, handshaking first if needed, and returns the
// parsed answer. Domain errors inside the answer are not treated as
// failures here.
func (s *Session) Query(ctx context.Context, request envelope.IRequest) (*Result, error) {
	method := request.MethodName()
	timeStart := time.Now()
	result, err := s.doQuery(ctx, request)
	s.record(method, result, err, time.Since(timeStart))
	return result, err
}

func (s *Session) doQuery(ctx context.Context, request envelope.IRequest) (*Result, error) {
	end, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer end()
	if err = s.handshake(ctx, false); err != nil {
		return nil, err
	}
	method := request.MethodName()
	body, err := request.Payload()
	if err != nil {
		return nil, NewError(KindProtocol, "build "+method+" request", err)
	}
	return s.queryWithRetry(ctx, method, body, true)
}

func (s *Session) record(method string, result *Result, err error, elapsed time.Duration) {
	s.proc.stats.Put(method, elapsed, err)
	status := otel.StatusSuccess
	if err != nil {
		status = otel.StatusError
	} else if result.Answer.HasError() {
		status = otel.StatusDomain
	}
	otel.RecordRequest(method, status, elapsed)

	if err != nil {
		glog.Warningf("query failed %s", logging.NewKVBufferForLog().
			AddMethod(method).AddConnId(s.connId()).AddElapsed(elapsed).AddError(err).String())
	} else if glog.V(2) {
		glog.Infof("query %s", logging.NewKVBufferForLog().
			AddMethod(method).AddConnId(s.connId()).AddMsgId(result.Response.MessageId).
			AddStatus(status).AddElapsed(elapsed).AddPayloadLen(len(result.Response.Payload)).String())
	}
}

func (s *Session) connId() string {
	if s.conn == nil {
		return ""
	}
	return s.conn.Id()
}

// queryWithRetry resends under a fresh message id while the gateway reports
// the request as not processed. A rejected key triggers one forced handshake
// when rehandshake is set; it does not use up an attempt.
func (s *Session) queryWithRetry(ctx context.Context, method string, body []byte, rehandshake bool) (*Result, error) {
	handshakeRetried := false
	for try := 1; try <= s.proc.maxRetries; try++ {
		result, err := s.send(method, body)
		if err != nil {
			return nil, err
		}
		if result.ShouldRetry() {
			otel.RecordRetry(method, otel.RetryNotProcessed)
			if glog.V(2) {
				glog.Infof("gateway asks to resend %s", logging.NewKVBufferForLog().
					AddMethod(method).AddMsgId(result.Response.MessageId).AddTryNo(try).String())
			}
			continue
		}
		if result.keyRejected() {
			if !rehandshake || handshakeRetried {
				return nil, keyRejectedError(result.Answer.Error)
			}
			handshakeRetried = true
			otel.RecordRetry(method, otel.RetryKeyRejected)
			glog.Warningf("symmetric key rejected, forcing handshake %s", logging.NewKVBufferForLog().
				AddMethod(method).AddConnId(s.connId()).AddKeyId(s.state.keys.SymmetricKeyId()).String())
			if err = s.handshake(ctx, true); err != nil {
				return nil, err
			}
			try--
			continue
		}
		return result, nil
	}
	return nil, NewError(KindMaxRetries, fmt.Sprintf("%s: no answer after %d attempts", method, s.proc.maxRetries), nil)
}

// send performs one request/reply exchange under a fresh message id.
func (s *Session) send(method string, body []byte) (*Result, error) {
	msgId := s.proc.nextMessageId()
	m, err := s.proc.encoder.Encode(msgId, method, body, s.state.keys)
	if err != nil {
		return nil, NewError(KindProtocol, "encode "+method, err)
	}
	if _, err = m.Write(s.conn); err != nil {
		return nil, transportError("write "+method, err)
	}
	// a failed read may leave part of the reply on the stream
	var reply proto.RawMessage
	if _, err = reply.Read(s.conn, s.proc.chunkSize); err != nil {
		s.conn.Disconnect()
		return nil, transportError("read "+method, err)
	}
	if reply.MessageId != msgId {
		s.conn.Disconnect()
		return nil, NewError(KindProtocol,
			fmt.Sprintf("%s: reply message id %d, expected %d", method, reply.MessageId, msgId), nil)
	}
	return s.decode(method, &reply)
}

func (s *Session) decode(method string, reply *proto.RawMessage) (*Result, error) {
	if glog.V(4) {
		var hdr [proto.HeaderSize]byte
		h := reply.Header
		h.Encode(hdr[:])
		glog.Infof("%s reply header:\n%s", method, util.HexDumpString(hdr[:]))
	}
	resp, err := proto.Decode(reply, s.state.keys)
	if err != nil {
		return nil, NewError(KindProtocol, "decode "+method, err)
	}
	result := &Result{Method: method, Response: resp}
	if resp.ShouldRetry() {
		return result, nil
	}
	if result.Answer, err = envelope.Parse(method, resp.Payload); err != nil {
		return nil, NewError(KindProtocol, method, err)
	}
	return result, nil
}
