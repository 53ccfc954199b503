/*
package client implements the Sirena gateway client API.

Query returns the decoded answer of one request. When the answer carries an
error node the matching domain error is returned with the response, unless
WithSilent is given:

	resp, err := cli.Query(ctx, envelope.NewQuery("order", body))
	if errors.Is(err, client.ErrPultBusy) {
		// try again later
	}

Errors of the call itself

  - ErrConfig: the private key cannot be loaded
  - ErrEmptyResponse: the gateway closed the connection without a reply
  - ErrEncryptionKey: the symmetric key was rejected after a fresh handshake
  - ErrMaxRetriesExceeded: every attempt asked for a resend
  - ErrPoolClosed
  - transport errors wrapping the network error

BatchQuery sends all requests on one connection and never returns domain
errors; check Response.Err of each entry.
*/
package client

import (
	"context"

	"sirena/pkg/proto/envelope"
	"sirena/pkg/stats"
)

type IClient interface {
	Query(ctx context.Context, request envelope.IRequest, opts ...IOption) (*Response, error)
	BatchQuery(ctx context.Context, requests []envelope.IRequest, opts ...IOption) ([]*Response, error)
	QueryAsync(ctx context.Context, request envelope.IRequest, opts ...IOption) <-chan AsyncResult
	// Do runs fn on a single acquired connection, released when fn returns.
	Do(ctx context.Context, fn func(ISession) error) error
	Stats() *stats.Statistics
	Close() error
}

// ISession is a client bound to one connection for the duration of Do.
type ISession interface {
	Query(ctx context.Context, request envelope.IRequest, opts ...IOption) (*Response, error)
	BatchQuery(ctx context.Context, requests []envelope.IRequest, opts ...IOption) ([]*Response, error)
	Handshake(ctx context.Context, force bool) error
}

type AsyncResult struct {
	Response *Response
	Err      error
}

type Response struct {
	Method    string
	MessageId uint32
	KeyId     uint32
	Payload   string
	Answer    *envelope.Answer
}

// Data is the method element of the answer.
func (r *Response) Data() *envelope.Node {
	if r == nil || r.Answer == nil {
		return nil
	}
	return r.Answer.Data
}

// Err maps the error node of the answer, nil if there is none.
func (r *Response) Err() error {
	if r == nil || r.Answer == nil {
		return nil
	}
	return domainError(r.Answer.Error)
}
