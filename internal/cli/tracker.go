package cli

import (
	"sirena/pkg/proto"
)

// PendingRequest is one entry of a batch. message is the encoded request
// sent on every round until the entry settles.
type PendingRequest struct {
	index   int
	method  string
	body    []byte
	msgId   uint32
	message *proto.RawMessage
	result  *Result
}

// settled entries have a processed reply that did not reject the key.
func (r *PendingRequest) settled() bool {
	return r.result != nil && !r.result.ShouldRetry() && !r.result.keyRejected()
}

type PendingTracker struct {
	requests        []*PendingRequest
	mapRequestsSent map[uint32]*PendingRequest
}

func newPendingTracker(size int) *PendingTracker {
	return &PendingTracker{
		requests:        make([]*PendingRequest, 0, size),
		mapRequestsSent: make(map[uint32]*PendingRequest, size),
	}
}

func (t *PendingTracker) Add(method string, body []byte, msgId uint32) *PendingRequest {
	r := &PendingRequest{index: len(t.requests), method: method, body: body, msgId: msgId}
	t.requests = append(t.requests, r)
	t.mapRequestsSent[msgId] = r
	return r
}

func (t *PendingTracker) Lookup(msgId uint32) (r *PendingRequest, found bool) {
	r, found = t.mapRequestsSent[msgId]
	return
}

// Pending returns the entries to send in the next round, in input order.
func (t *PendingTracker) Pending() (pending []*PendingRequest) {
	for _, r := range t.requests {
		if !r.settled() {
			pending = append(pending, r)
		}
	}
	return
}

func (t *PendingTracker) NumRetriesNeeded() (n int) {
	for _, r := range t.requests {
		if !r.settled() {
			n++
		}
	}
	return
}

// Results lists the settled results in input order, nil for the others.
func (t *PendingTracker) Results() []*Result {
	results := make([]*Result, len(t.requests))
	for i, r := range t.requests {
		if r.settled() {
			results[i] = r.result
		}
	}
	return results
}
