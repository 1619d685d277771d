// Copyright 2025 The relaymcp Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package streamable

import "sync"

// broadcaster is the channel-swap wakeup primitive also used by package
// tasks: every broadcast closes the current channel, waking everyone
// selecting on it, then installs a fresh one for the next round. Kept as
// its own small type here (rather than exported from tasks) so the two
// packages don't need to depend on each other just to share it.
type broadcaster struct {
	mu sync.Mutex
	ch chan struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{ch: make(chan struct{})}
}

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
