package client

import (
	"context"
	"time"
)

type optionData struct {
	silent  bool
	timeout time.Duration
}

type IOption func(data interface{})

// WithSilent leaves the error answer of a query in Response.Err instead of
// returning it.
func WithSilent() IOption {
	return func(i interface{}) {
		if data, ok := i.(*optionData); ok {
			data.silent = true
		}
	}
}

// WithTimeout bounds the whole call, retries and handshake included.
func WithTimeout(d time.Duration) IOption {
	return func(i interface{}) {
		if data, ok := i.(*optionData); ok {
			data.timeout = d
		}
	}
}

func newOptionData(opts ...IOption) *optionData {
	data := &optionData{}
	for _, op := range opts {
		op(data)
	}
	return data
}

func (d *optionData) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout > 0 {
		return context.WithTimeout(ctx, d.timeout)
	}
	return ctx, func() {}
}
