/* Copyright 2024 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sio

import (
	"io"
	"strings"
	"sync"
)

// Lines buffers raw input into lines and hands them out on request.
//
// Couplings Write whatever data they get, in whatever bursts, and call
// End when there's no more.  Lines are split on "\n" or "\r\n" with
// the terminator removed.  An unterminated fragment waits for the
// next Write or becomes the last line at End.
//
// Lines implements core.LineSource.  Callbacks run on the goroutine
// that made a line available (Write, End, or Request) and must not
// call Request themselves.
type Lines struct {
	mu        sync.Mutex
	pending   string
	lines     []string
	callbacks []func(string)
	final     bool
	closed    bool

	// deliver serializes callback invocations so that callbacks
	// see lines in arrival order.
	deliver sync.Mutex
}

func NewLines() *Lines {
	return &Lines{}
}

// Write adds a burst of input.  After Close, Write returns
// io.ErrClosedPipe, which stops an io.Copy that's feeding us.
func (l *Lines) Write(p []byte) (int, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	if !l.final {
		parts := strings.Split(l.pending+string(p), "\n")
		l.pending = parts[len(parts)-1]
		for _, line := range parts[:len(parts)-1] {
			l.lines = append(l.lines, strings.TrimSuffix(line, "\r"))
		}
	}
	l.mu.Unlock()

	l.check()
	return len(p), nil
}

// End marks the end of input.  Every outstanding and future Request
// will get "" once the buffered lines are gone.
func (l *Lines) End() {
	l.mu.Lock()
	if !l.final {
		if l.pending != "" {
			l.lines = append(l.lines, strings.TrimSuffix(l.pending, "\r"))
			l.pending = ""
		}
		l.final = true
	}
	l.mu.Unlock()

	l.check()
}

// CloseWrite is End for callers that want an error return.
func (l *Lines) CloseWrite() error {
	l.End()
	return nil
}

// Request queues the callback for the next line.
func (l *Lines) Request(f func(line string)) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.callbacks = append(l.callbacks, f)
	l.mu.Unlock()

	l.check()
}

// Close releases the Lines.  Queued callbacks are dropped and later
// Requests are ignored.
func (l *Lines) Close() error {
	l.mu.Lock()
	l.closed = true
	l.callbacks = nil
	l.lines = nil
	l.mu.Unlock()
	return nil
}

// Buffered returns the number of complete lines not yet requested.
func (l *Lines) Buffered() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

type delivery struct {
	f    func(string)
	line string
}

func (l *Lines) check() {
	l.deliver.Lock()
	defer l.deliver.Unlock()

	l.mu.Lock()
	var ds []delivery
	for 0 < len(l.lines) && 0 < len(l.callbacks) {
		ds = append(ds, delivery{l.callbacks[0], l.lines[0]})
		l.callbacks, l.lines = l.callbacks[1:], l.lines[1:]
	}
	if l.final && len(l.lines) == 0 {
		for _, f := range l.callbacks {
			ds = append(ds, delivery{f, ""})
		}
		l.callbacks = nil
	}
	l.mu.Unlock()

	for _, d := range ds {
		d.f(d.line)
	}
}
