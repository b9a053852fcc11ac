// Package kvtest provides kv.Store doubles for tests in other packages.
package kvtest

import (
	"context"
	"errors"
	"sync/atomic"

	"skillforge/cmd/internal/kv"
)

// ErrBroken is the default failure returned by Failing.
var ErrBroken = errors.New("kvtest: backend broken")

// Failing is a kv.Store whose calls fail once Broken is set. Reads and writes
// are served by an inner Memory until then.
type Failing struct {
	mem    *kv.Memory
	Broken atomic.Bool
	Calls  atomic.Int64
}

var _ kv.Store = (*Failing)(nil)

// NewFailing returns a healthy store; set Broken to make it fail.
func NewFailing() *Failing { return &Failing{mem: kv.NewMemory()} }

// NewBroken returns a store that fails from the first call.
func NewBroken() *Failing {
	f := NewFailing()
	f.Broken.Store(true)
	return f
}

func (f *Failing) Get(ctx context.Context, key string) ([]byte, error) {
	f.Calls.Add(1)
	if f.Broken.Load() {
		return nil, ErrBroken
	}
	return f.mem.Get(ctx, key)
}

func (f *Failing) Set(ctx context.Context, key string, value []byte) error {
	f.Calls.Add(1)
	if f.Broken.Load() {
		return ErrBroken
	}
	return f.mem.Set(ctx, key, value)
}

func (f *Failing) Delete(ctx context.Context, key string) error {
	f.Calls.Add(1)
	if f.Broken.Load() {
		return ErrBroken
	}
	return f.mem.Delete(ctx, key)
}

func (f *Failing) Ping(ctx context.Context) error {
	if f.Broken.Load() {
		return ErrBroken
	}
	return f.mem.Ping(ctx)
}

func (f *Failing) Close() error { return nil }
