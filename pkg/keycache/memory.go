package keycache

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process cache. It is always available.
type Memory struct {
	mtx   sync.Mutex
	entry *Entry
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (m *Memory) SpinUp(context.Context) error {
	return nil
}

func (m *Memory) IsAvailable() bool {
	return true
}

func (m *Memory) Get(context.Context) (e Entry, found bool, err error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.entry == nil {
		return
	}
	if m.now().Unix() >= m.entry.ExpireAt {
		m.entry = nil
		return
	}
	e = *m.entry
	e.Seed = append([]byte(nil), e.Seed...)
	return e, true, nil
}

func (m *Memory) Set(_ context.Context, e Entry) error {
	e.Seed = append([]byte(nil), e.Seed...)
	m.mtx.Lock()
	m.entry = &e
	m.mtx.Unlock()
	return nil
}

func (m *Memory) Purge(context.Context) error {
	m.mtx.Lock()
	m.entry = nil
	m.mtx.Unlock()
	return nil
}

func (m *Memory) Close() error {
	return nil
}
