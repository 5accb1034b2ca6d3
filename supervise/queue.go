// Copyright 2026 The Wanlink Authors
// SPDX-License-Identifier: Apache-2.0

package supervise

import "sync"

// lineQueue buffers output lines between a child's stream reader
// goroutine (the single writer) and the supervision loop (the single
// reader). Unbounded: a child producing output faster than the loop
// drains it costs memory, never blocks the reader, and never stalls
// observation of sibling children.
type lineQueue struct {
	mu    sync.Mutex
	lines []string
	head  int
}

// push appends a line. Called only by the stream reader goroutine.
func (q *lineQueue) push(line string) {
	q.mu.Lock()
	q.lines = append(q.lines, line)
	q.mu.Unlock()
}

// tryPop removes and returns the oldest buffered line. Never blocks;
// absence of output is not an error.
func (q *lineQueue) tryPop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.lines) {
		// Reset storage so a drained queue does not pin the backing
		// array of a large burst.
		q.lines = nil
		q.head = 0
		return "", false
	}
	line := q.lines[q.head]
	q.head++
	return line, true
}
