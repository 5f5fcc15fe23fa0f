package tools

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"strings"
	"time"

	"github.com/Comcast/flowcmd/core"
	"github.com/Comcast/flowcmd/sio"
	"github.com/Comcast/flowcmd/util"

	"github.com/jsccast/yaml"
)

// Case is one conversation with a flowchart: the input lines to send
// and what should come out.
type Case struct {
	// Doc is an opaque documentation string.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// WaitBefore is the time to wait before sending the first line.
	WaitBefore time.Duration `json:"waitBefore,omitempty" yaml:"waitBefore,omitempty"`

	// WaitBetween is the time to wait between lines.
	WaitBetween time.Duration `json:"waitBetween,omitempty" yaml:"waitBetween,omitempty"`

	// Inputs are the lines to send.  Input ends after the last
	// one.
	Inputs []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`

	// Output, if not empty, must be exactly the flowchart's
	// output.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// Contains are strings that must appear in the output.
	Contains []string `json:"contains,omitempty" yaml:"contains,omitempty"`

	// Vars are required final variable values as text.
	Vars map[string]string `json:"vars,omitempty" yaml:"vars,omitempty"`

	// Reason is the required StopReason.  Defaults to "Done".
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// Timeout is the optional timeout for this case.
	// Session.DefaultTimeout is the default value.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Session is mostly a sequence of Cases run against one flowchart.
type Session struct {
	// Doc is an opaque documentation string.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// Interpreter names the expression interpreter.
	Interpreter string `json:"interpreter,omitempty" yaml:"interpreter,omitempty"`

	// Limit is the Control's turn limit for each run.
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty"`

	// Cases is the sequence of Cases that this session will run.
	Cases []Case `json:"cases" yaml:"cases"`

	// DefaultTimeout is the default timeout for each Case.
	DefaultTimeout time.Duration `json:"defaultTimeout,omitempty" yaml:"defaultTimeout,omitempty"`

	// Interpreters is where Interpreter is looked up.  Nil means
	// core.DefaultInterpreters.
	Interpreters core.InterpretersMap `json:"-" yaml:"-"`

	Verbose bool `json:"verbose,omitempty" yaml:"verbose,omitempty"`
}

// Failure describes a Case that didn't go as expected.
type Failure struct {
	Case     int    `json:"case"`
	Doc      string `json:"doc,omitempty"`
	Problem  string `json:"problem"`
	Output   string `json:"output"`
	Reason   string `json:"reason"`
	RunError string `json:"runError,omitempty"`
}

func (f *Failure) Error() string {
	if f.Doc == "" {
		return fmt.Sprintf("case %d: %s", f.Case, f.Problem)
	}
	return fmt.Sprintf("case %d (%s): %s", f.Case, f.Doc, f.Problem)
}

// ReadSession reads a YAML (or JSON) session file.
func ReadSession(filename string) (*Session, error) {
	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var s Session
	if err = yaml.Unmarshal(bs, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Run runs every Case against the flowchart.
//
// The returned error is for problems that prevent running at all (an
// unknown interpreter, say).  Cases that run but don't match their
// expectations are returned as Failures.
func (s *Session) Run(ctx context.Context, f *core.Node) ([]*Failure, error) {
	var fs []*Failure
	for i := range s.Cases {
		failure, err := s.RunCase(ctx, f, i)
		if err != nil {
			return fs, err
		}
		if failure != nil {
			fs = append(fs, failure)
		}
	}
	return fs, nil
}

// RunCase runs the Case at index i with a fresh Machine.
func (s *Session) RunCase(ctx context.Context, f *core.Node, i int) (*Failure, error) {
	c := s.Cases[i]

	interpreter, err := core.FindInterpreter(s.Interpreters, s.Interpreter)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, s.Interpreter)
	}

	var (
		lines = sio.NewLines()
		out   bytes.Buffer
	)

	m, err := core.NewMachine(f, lines, &out)
	if err != nil {
		return nil, err
	}
	m.Interpreter = interpreter
	m.Control = &core.Control{Limit: s.Limit}
	m.Verbose = s.Verbose

	timeout := c.Timeout
	if timeout == 0 {
		timeout = s.DefaultTimeout
	}
	if 0 < timeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	go s.feed(ctx, lines, c)

	r, runErr := m.Run(ctx)

	want := c.Reason
	if want == "" {
		want = core.Done.String()
	}

	failure := &Failure{
		Case:   i,
		Doc:    c.Doc,
		Output: out.String(),
		Reason: r.Reason.String(),
	}
	if runErr != nil {
		failure.RunError = runErr.Error()
	}

	if s.Verbose {
		util.Logf("case %d stopped %s after %d turns: %q", i, r.Reason, r.Turns, failure.Output)
	}

	if failure.Reason != want {
		failure.Problem = fmt.Sprintf("stopped %s, not %s", failure.Reason, want)
		if runErr != nil {
			failure.Problem += ": " + runErr.Error()
		}
		return failure, nil
	}

	if c.Output != "" && c.Output != failure.Output {
		failure.Problem = fmt.Sprintf("output %q, not %q", failure.Output, c.Output)
		return failure, nil
	}

	for _, sub := range c.Contains {
		if !strings.Contains(failure.Output, sub) {
			failure.Problem = fmt.Sprintf("output %q doesn't contain %q", failure.Output, sub)
			return failure, nil
		}
	}

	for name, x := range c.Vars {
		v, have := m.Env.Context[name]
		if !have {
			failure.Problem = fmt.Sprintf("%s isn't set", name)
			return failure, nil
		}
		if v.String() != x {
			failure.Problem = fmt.Sprintf("%s is %q, not %q", name, v.String(), x)
			return failure, nil
		}
	}

	return nil, nil
}

// feed writes the Case's inputs to the Lines and then ends them.
func (s *Session) feed(ctx context.Context, lines *sio.Lines, c Case) {
	defer lines.End()

	if !pause(ctx, c.WaitBefore) {
		return
	}
	for i, line := range c.Inputs {
		if 0 < i && !pause(ctx, c.WaitBetween) {
			return
		}
		if _, err := lines.Write([]byte(line + "\n")); err != nil {
			// Closed because the flowchart finished.
			return
		}
	}
}

// pause waits for d unless ctx is done first.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
