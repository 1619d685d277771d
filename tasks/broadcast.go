// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package tasks

import "sync"

// broadcaster lets any number of goroutines wait (via a channel usable in a
// select) for the next of a series of events. sync.Cond provides the same
// idea but can't be combined with ctx.Done()/other channels in a select, so
// this module uses the channel-swap form of the pattern instead: every
// broadcast closes the current channel (waking everyone selecting on it)
// and installs a fresh one for the next round.
type broadcaster struct {
	mu sync.Mutex
	ch chan struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{ch: make(chan struct{})}
}

// wait returns the channel to select on; it closes the next time broadcast
// is called.
func (b *broadcaster) wait() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ch
}

func (b *broadcaster) broadcast() {
	b.mu.Lock()
	close(b.ch)
	b.ch = make(chan struct{})
	b.mu.Unlock()
}
