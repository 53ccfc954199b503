package cli

import (
	"errors"

	"sirena/pkg/io"
	"sirena/pkg/proto"
	"sirena/pkg/proto/envelope"
)

type IRetryable interface {
	Retryable() bool
}

type Kind uint8

const (
	KindTransport Kind = iota + 1
	KindEmptyResponse
	KindProtocol
	KindKeyRejected
	KindMaxRetries
	KindGateway
	KindConfig
	KindPoolClosed
)

var kindNames = map[Kind]string{
	KindTransport:     "transport error",
	KindEmptyResponse: "empty response",
	KindProtocol:      "protocol error",
	KindKeyRejected:   "encryption key error",
	KindMaxRetries:    "max retries exceeded",
	KindGateway:       "gateway error",
	KindConfig:        "configuration error",
	KindPoolClosed:    "pool closed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown error"
}

// Error is returned by every Processor and Session operation. Code holds the
// gateway error code for KindGateway and KindKeyRejected errors that came
// from an answer.
type Error struct {
	Kind Kind
	What string
	Code string
	Err  error
}

var (
	ErrEmptyResponse      = &Error{Kind: KindEmptyResponse}
	ErrMaxRetriesExceeded = &Error{Kind: KindMaxRetries}
	ErrKeyRejected        = &Error{Kind: KindKeyRejected}
	ErrConfig             = &Error{Kind: KindConfig}
	ErrPoolClosed         = &Error{Kind: KindPoolClosed}
)

func NewError(kind Kind, what string, err error) *Error {
	return &Error{Kind: kind, What: what, Err: err}
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.What != "" {
		s += ": " + e.What
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any error of the same kind, so errors.Is(err, ErrKeyRejected)
// holds for every key rejection.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Retryable reports whether repeating the whole call may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTransport, KindEmptyResponse, KindMaxRetries:
		return true
	}
	return false
}

func transportError(what string, err error) error {
	switch {
	case errors.Is(err, proto.ErrEmptyResponse):
		return NewError(KindEmptyResponse, what, err)
	case errors.Is(err, io.ErrPoolClosed):
		return NewError(KindPoolClosed, what, err)
	case errors.Is(err, proto.ErrBodyTooLarge):
		return NewError(KindProtocol, what, err)
	}
	return NewError(KindTransport, what, err)
}

func gatewayError(ge *envelope.GatewayError) *Error {
	kind := KindGateway
	if ge.Code == proto.CodeAsymDecryptFailed {
		kind = KindKeyRejected
	}
	return &Error{Kind: kind, What: ge.Method, Code: ge.Code, Err: ge}
}

func keyRejectedError(ge *envelope.GatewayError) *Error {
	return &Error{Kind: KindKeyRejected, What: ge.Method, Code: ge.Code, Err: ge}
}
