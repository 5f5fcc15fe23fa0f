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

package core

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/edwingeng/deque"
)

var (
	// DefaultControl will be used by Machine.Run if the
	// Machine's Control is nil.
	DefaultControl = &Control{}

	// NoLineSource occurs when an input command runs on a Machine
	// without a LineSource.
	NoLineSource = errors.New("no line source for input")
)

// StopReason represents the possible reasons for Run to return.
type StopReason int

const (
	Done     StopReason = iota // The whole flowchart ran.
	Stalled                    // Nothing left to do but the flowchart didn't finish.
	Limited                    // Too many turns.
	Canceled                   // The context was canceled.
	Failed                     // Syntax, structural, or output error.
)

func (r StopReason) String() string {
	switch r {
	case Done:
		return "Done"
	case Stalled:
		return "Stalled"
	case Limited:
		return "Limited"
	case Canceled:
		return "Canceled"
	case Failed:
		return "Failed"
	default:
		return "StopReason(?)"
	}
}

// Control influences how Run operates.
type Control struct {
	// Limit is the maximum number of turns that Run will take.
	// Zero means no limit.
	Limit int
}

// Result reports how a Run ended.
type Result struct {
	Reason StopReason `json:"reason"`

	// Turns is the number of continuations that ran.
	Turns int `json:"turns"`
}

// LineSource provides input lines on request.
//
// Request queues the callback to receive the next line.  Lines go to
// callbacks in arrival order, one line per callback.  Once input is
// exhausted, every queued and future callback receives "".  Callbacks
// may be called from any goroutine, including synchronously from
// Request.
//
// Close releases the source.
type LineSource interface {
	Request(func(line string))
	Close() error
}

// Continuation is deferred work: what to do once the current step is
// done.
type Continuation func() error

// Machine executes a flowchart.
//
// Execution is trampolined.  Each construct, when it's done, pops
// the next pending continuation off a stack and schedules it on a run
// queue instead of calling it.  Run takes one continuation at a time
// off that queue.  So the native call stack stays flat no matter how
// long a sequence or loop is, and an input request just registers a
// callback and returns.
//
// All Machine state belongs to the goroutine calling Run.  Lines from
// the LineSource are handed over via an inbox.
type Machine struct {
	Flowchart   *Node
	Env         *Env
	Interpreter Interpreter
	Control     *Control

	// Out receives the text of output commands and input
	// prompts.
	Out io.Writer

	// In satisfies input commands.
	In LineSource

	// Verbose turns on logging of each executed node.
	Verbose bool

	ctx      context.Context
	stack    deque.Deque
	runq     deque.Deque
	waiting  int
	done     bool
	compiled map[*Node]Program

	mu      sync.Mutex
	arrived []Continuation
	wake    chan struct{}
}

// NewMachine makes a Machine for the flowchart with a fresh Env.
//
// The flowchart must have an environment.
func NewMachine(flowchart *Node, in LineSource, out io.Writer) (*Machine, error) {
	env, err := NewEnv(flowchart)
	if err != nil {
		return nil, err
	}
	return &Machine{
		Flowchart:   flowchart,
		Env:         env,
		Interpreter: Native,
		Out:         out,
		In:          in,
	}, nil
}

func (m *Machine) logf(format string, args ...interface{}) {
	if m.Verbose {
		log.Printf("flowchart "+format, args...)
	}
}

// Run executes the flowchart's top-level sequence.
//
// Run returns when the flowchart finishes, when nothing else can
// happen, when the Control's Limit is reached, or when ctx is
// done.  Syntax and structural errors stop the run immediately and
// are returned.  Output already written and variables already set
// stay that way.
func (m *Machine) Run(ctx context.Context) (*Result, error) {
	c := m.Control
	if c == nil {
		c = DefaultControl
	}
	if m.Interpreter == nil {
		m.Interpreter = Native
	}
	if m.Env == nil {
		env, err := NewEnv(m.Flowchart)
		if err != nil {
			return &Result{Reason: Failed}, err
		}
		m.Env = env
	}

	m.ctx = ctx
	m.stack = deque.NewDeque()
	m.runq = deque.NewDeque()
	m.wake = make(chan struct{}, 1)
	m.compiled = make(map[*Node]Program)
	m.waiting = 0
	m.done = false

	r := &Result{}

	seq, err := m.Flowchart.FirstChild(TagSequence)
	if err != nil {
		r.Reason = Failed
		return r, err
	}

	m.queue(m.finish)
	if err := m.execSequence(seq); err != nil {
		r.Reason = Failed
		return r, err
	}

	for {
		if m.runq.Empty() {
			m.collect()
		}

		if !m.runq.Empty() {
			select {
			case <-ctx.Done():
				r.Reason = Canceled
				return r, ctx.Err()
			default:
			}
			if 0 < c.Limit && c.Limit <= r.Turns {
				r.Reason = Limited
				return r, nil
			}
			k := m.runq.PopFront().(Continuation)
			r.Turns++
			if err := k(); err != nil {
				r.Reason = Failed
				return r, err
			}
			continue
		}

		if m.done {
			r.Reason = Done
			return r, nil
		}

		if m.waiting == 0 {
			m.logf("stalled after %d turns", r.Turns)
			r.Reason = Stalled
			return r, nil
		}

		select {
		case <-ctx.Done():
			r.Reason = Canceled
			return r, ctx.Err()
		case <-m.wake:
		}
	}
}

// queue pushes a continuation onto the pending stack.
func (m *Machine) queue(k Continuation) {
	m.stack.PushBack(k)
}

// next schedules the most recently queued continuation.
func (m *Machine) next() {
	if !m.stack.Empty() {
		m.runq.PushBack(m.stack.PopBack())
	}
}

// post hands a continuation to the Run goroutine.  Safe to call from
// any goroutine.
func (m *Machine) post(k Continuation) {
	m.mu.Lock()
	m.arrived = append(m.arrived, k)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// collect moves posted continuations to the run queue.
func (m *Machine) collect() {
	m.mu.Lock()
	arrived := m.arrived
	m.arrived = nil
	m.mu.Unlock()
	for _, k := range arrived {
		m.runq.PushBack(k)
	}
}

func (m *Machine) finish() error {
	m.done = true
	m.logf("finished")
	if m.In != nil {
		return m.In.Close()
	}
	return nil
}

// compile compiles the text of the named child, caching by node.
func (m *Machine) compile(n *Node, tag string) (Program, error) {
	c, err := n.FirstChild(tag)
	if err != nil {
		return nil, err
	}
	if p, have := m.compiled[c]; have {
		return p, nil
	}
	p, err := m.Interpreter.Compile(m.ctx, c.Text())
	if err != nil {
		return nil, err
	}
	m.compiled[c] = p
	return p, nil
}

// write evaluates each expression and writes its text before
// evaluating the next one.
func (m *Machine) write(p Program) error {
	for _, x := range p {
		v, err := x.Eval(m.ctx, m.Env)
		if err != nil {
			return err
		}
		if _, err = io.WriteString(m.Out, v.String()); err != nil {
			return err
		}
	}
	return nil
}

// test evaluates the node's test and reports its truthiness.
func (m *Machine) test(n *Node) (bool, error) {
	p, err := m.compile(n, TagTest)
	if err != nil {
		return false, err
	}
	v, err := p[0].Eval(m.ctx, m.Env)
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}

func (m *Machine) execElement(n *Node) error {
	m.logf("exec %s %s", n.Name, n.Attr(AttrType))
	switch n.Name {
	case TagCommand:
		return m.execCommand(n)
	case TagBranch:
		return m.execBranch(n)
	case TagPreLoop, TagPostLoop:
		return m.execLoop(n)
	case TagSequence:
		return m.execSequence(n)
	default:
		return &StructuralError{
			Parent:     TagSequence,
			Tag:        n.Name,
			Unexpected: true,
		}
	}
}

// execSequence runs each child in order.  Text and comment children
// are skipped, but they still take a turn.
func (m *Machine) execSequence(seq *Node) error {
	i := 0
	var step Continuation
	step = func() error {
		if len(seq.Children) <= i {
			m.next()
			return nil
		}
		child := seq.Children[i]
		i++
		m.queue(step)
		if !child.IsElement() {
			m.next()
			return nil
		}
		return m.execElement(child)
	}
	return step()
}

func (m *Machine) execCommand(cmd *Node) error {
	switch cmd.Attr(AttrType) {
	case CommandOutput:
		return m.execOutput(cmd)
	case CommandInput:
		return m.execInput(cmd)
	case CommandAssignment:
		return m.execAssignment(cmd)
	default:
		m.next()
		return nil
	}
}

func (m *Machine) execOutput(cmd *Node) error {
	p, err := m.compile(cmd, TagValue)
	if err != nil {
		return err
	}
	if err = m.write(p); err != nil {
		return err
	}
	if cmd.Attr(AttrEndl) == "true" {
		if _, err = io.WriteString(m.Out, "\n"); err != nil {
			return err
		}
	}
	m.next()
	return nil
}

func (m *Machine) execInput(cmd *Node) error {
	p, err := m.compile(cmd, TagPrompt)
	if err != nil {
		return err
	}
	// The prompt goes out even if the variable is missing.
	if err = m.write(p); err != nil {
		return err
	}
	name, err := cmd.ChildText(TagVariable)
	if err != nil {
		return err
	}
	if m.In == nil {
		return NoLineSource
	}

	m.waiting++
	m.In.Request(func(line string) {
		m.post(func() error {
			m.waiting--
			m.Env.Set(name, m.Env.Coerce(name, line))
			m.logf("input %s = %q", name, line)
			m.next()
			return nil
		})
	})
	return nil
}

// execAssignment stores the first expression's value.  Any other
// expressions are compiled but not evaluated.
func (m *Machine) execAssignment(cmd *Node) error {
	name, err := cmd.ChildText(TagLValue)
	if err != nil {
		return err
	}
	p, err := m.compile(cmd, TagRValue)
	if err != nil {
		return err
	}
	v, err := p[0].Eval(m.ctx, m.Env)
	if err != nil {
		return err
	}
	m.Env.Set(name, v)
	m.next()
	return nil
}

func (m *Machine) execBranch(branch *Node) error {
	ok, err := m.test(branch)
	if err != nil {
		return err
	}
	arms := branch.ChildrenNamed(TagSequence)
	switch {
	case ok && 0 < len(arms):
		return m.execSequence(arms[0])
	case ok:
		_, err = branch.FirstChild(TagSequence)
		return err
	case 1 < len(arms):
		return m.execSequence(arms[1])
	default:
		m.next()
		return nil
	}
}

// execLoop handles both loop kinds.  A preloop tests first.  A
// postloop runs its body once before the first test.
func (m *Machine) execLoop(loop *Node) error {
	body, err := loop.FirstChild(TagSequence)
	if err != nil {
		return err
	}

	var again Continuation
	again = func() error {
		ok, err := m.test(loop)
		if err != nil {
			return err
		}
		if ok {
			m.queue(again)
			return m.execSequence(body)
		}
		m.next()
		return nil
	}

	if loop.Name == TagPostLoop {
		m.queue(again)
		return m.execSequence(body)
	}
	return again()
}
