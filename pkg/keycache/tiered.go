package keycache

import (
	"context"
	"errors"

	"github.com/golang/glog"
)

// Tiered puts a fast cache in front of a shared one. Reads fall through to
// the back tier and refill the front; writes and purges go to both.
type Tiered struct {
	front ISymKeyCache
	back  ISymKeyCache
}

func NewTiered(front, back ISymKeyCache) ISymKeyCache {
	if back == nil {
		return front
	}
	return &Tiered{front: front, back: back}
}

func (t *Tiered) SpinUp(ctx context.Context) error {
	return errors.Join(t.front.SpinUp(ctx), t.back.SpinUp(ctx))
}

func (t *Tiered) IsAvailable() bool {
	return t.front.IsAvailable() || t.back.IsAvailable()
}

func (t *Tiered) Get(ctx context.Context) (e Entry, found bool, err error) {
	if t.front.IsAvailable() {
		if e, found, err = t.front.Get(ctx); found {
			return
		}
		if err != nil {
			glog.Warningf("key cache front tier: %s", err)
		}
	}
	if !t.back.IsAvailable() {
		return Entry{}, false, nil
	}
	if e, found, err = t.back.Get(ctx); found && t.front.IsAvailable() {
		if err := t.front.Set(ctx, e); err != nil {
			glog.Warningf("key cache refill: %s", err)
		}
	}
	return
}

func (t *Tiered) Set(ctx context.Context, e Entry) error {
	var errs []error
	if t.front.IsAvailable() {
		errs = append(errs, t.front.Set(ctx, e))
	}
	if t.back.IsAvailable() {
		errs = append(errs, t.back.Set(ctx, e))
	}
	return errors.Join(errs...)
}

func (t *Tiered) Purge(ctx context.Context) error {
	var errs []error
	if t.front.IsAvailable() {
		errs = append(errs, t.front.Purge(ctx))
	}
	if t.back.IsAvailable() {
		errs = append(errs, t.back.Purge(ctx))
	}
	return errors.Join(errs...)
}

// Close closes the front tier only; the back tier may be shared.
func (t *Tiered) Close() error {
	return t.front.Close()
}
