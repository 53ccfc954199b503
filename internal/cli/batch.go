package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"sirena/pkg/logging"
	"sirena/pkg/logging/otel"
	"sirena/pkg/proto"
	"sirena/pkg/proto/envelope"
)

const batchStatsName = "batch"

// BatchQuery pipelines requests over the session's connection: every
// unsettled request is written back to back and the replies are matched to
// requests by message id in whatever order they arrive. Only requests the
// gateway did not process are sent again.
//
// Results come back in input order. When the attempts run out the results
// hold the settled answers, nil for the rest, and the error is
// ErrMaxRetriesExceeded.
func (s *Session) BatchQuery(ctx context.Context, requests []envelope.IRequest) ([]*Result, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	timeStart := time.Now()
	results, err := s.doBatch(ctx, requests)
	elapsed := time.Since(timeStart)
	s.proc.stats.Put(batchStatsName, elapsed, err)

	status := otel.StatusSuccess
	if err != nil {
		status = otel.StatusError
		glog.Warningf("batch failed %s", logging.NewKVBufferForLog().
			AddBatchSize(len(requests)).AddConnId(s.connId()).AddElapsed(elapsed).AddError(err).String())
	} else if glog.V(2) {
		glog.Infof("batch %s", logging.NewKVBufferForLog().
			AddBatchSize(len(requests)).AddConnId(s.connId()).AddElapsed(elapsed).String())
	}
	otel.RecordRequest(batchStatsName, status, elapsed)
	return results, err
}

func (s *Session) doBatch(ctx context.Context, requests []envelope.IRequest) ([]*Result, error) {
	end, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer end()
	if err = s.handshake(ctx, false); err != nil {
		return nil, err
	}

	tracker := newPendingTracker(len(requests))
	for _, request := range requests {
		method := request.MethodName()
		body, err := request.Payload()
		if err != nil {
			return nil, NewError(KindProtocol, "build "+method+" request", err)
		}
		tracker.Add(method, body, s.proc.nextMessageId())
	}
	if err = s.encodePending(tracker); err != nil {
		return nil, err
	}

	handshakeRetried := false
	for try := 1; try <= s.proc.maxRetries; try++ {
		rejected, err := s.round(tracker)
		if err != nil {
			return nil, err
		}
		if rejected != nil {
			if handshakeRetried {
				return tracker.Results(), keyRejectedError(rejected)
			}
			handshakeRetried = true
			otel.RecordRetry(rejected.Method, otel.RetryKeyRejected)
			glog.Warningf("symmetric key rejected in batch, forcing handshake %s", logging.NewKVBufferForLog().
				AddConnId(s.connId()).AddKeyId(s.state.keys.SymmetricKeyId()).String())
			if err = s.handshake(ctx, true); err != nil {
				return nil, err
			}
			if err = s.encodePending(tracker); err != nil {
				return nil, err
			}
			try--
			continue
		}

		n := tracker.NumRetriesNeeded()
		if n == 0 {
			return tracker.Results(), nil
		}
		for _, r := range tracker.Pending() {
			otel.RecordRetry(r.method, otel.RetryNotProcessed)
		}
		if glog.V(2) {
			glog.Infof("gateway asks to resend %d of batch %s", n, logging.NewKVBufferForLog().
				AddBatchSize(len(requests)).AddTryNo(try).String())
		}
	}
	return tracker.Results(), NewError(KindMaxRetries,
		fmt.Sprintf("batch: %d of %d requests unanswered after %d attempts",
			tracker.NumRetriesNeeded(), len(requests), s.proc.maxRetries), nil)
}

// encodePending encodes the unsettled entries with the current key. Message
// ids are kept.
func (s *Session) encodePending(tracker *PendingTracker) (err error) {
	for _, r := range tracker.Pending() {
		if r.message, err = s.proc.encoder.Encode(r.msgId, r.method, r.body, s.state.keys); err != nil {
			return NewError(KindProtocol, "encode "+r.method, err)
		}
	}
	return nil
}

// round sends every pending entry and reads exactly as many replies. The
// first key rejection is reported once the round is drained, so the stream
// stays in step. On any other failure the connection is closed since
// unread replies may remain on it.
func (s *Session) round(tracker *PendingTracker) (rejected *envelope.GatewayError, err error) {
	pending := tracker.Pending()

	var g errgroup.Group
	g.Go(func() error {
		for _, r := range pending {
			if _, err := r.message.Write(s.conn); err != nil {
				return transportError("write "+r.method, err)
			}
		}
		return nil
	})

	rejected, err = s.readRound(tracker, len(pending))
	if err != nil {
		s.conn.Disconnect()
		g.Wait()
		return nil, err
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}
	return
}

func (s *Session) readRound(tracker *PendingTracker, count int) (rejected *envelope.GatewayError, err error) {
	for received := 0; received < count; received++ {
		var reply proto.RawMessage
		if _, err = reply.Read(s.conn, s.proc.chunkSize); err != nil {
			return nil, transportError("read batch reply", err)
		}
		r, found := tracker.Lookup(reply.MessageId)
		if !found {
			return nil, NewError(KindProtocol, fmt.Sprintf("reply to unknown message id %d", reply.MessageId), nil)
		}
		if r.result, err = s.decode(r.method, &reply); err != nil {
			return nil, err
		}
		if r.result.keyRejected() && rejected == nil {
			rejected = r.result.Answer.Error
		}
	}
	return
}
