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
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Comcast/flowcmd/expr"
	. "github.com/Comcast/flowcmd/util/testutil"
)

// silent never delivers anything.
type silent struct{}

func (s *silent) Request(f func(string)) {}
func (s *silent) Close() error           { return nil }

type run struct {
	out    string
	result *Result
	err    error
	m      *Machine
}

func runXML(t *testing.T, src string, in LineSource, c *Control) *run {
	t.Helper()
	f, err := ParseXML(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	out := &bytes.Buffer{}
	m, err := NewMachine(f, in, out)
	if err != nil {
		t.Fatal(err)
	}
	m.Control = c
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := m.Run(ctx)
	return &run{
		out:    out.String(),
		result: r,
		err:    err,
		m:      m,
	}
}

func (r *run) ok(t *testing.T, out string) {
	t.Helper()
	if r.err != nil {
		t.Fatal(r.err)
	}
	if r.result.Reason != Done {
		t.Fatalf("stopped: %s", r.result.Reason)
	}
	if r.out != out {
		t.Fatalf("output %q; wanted %q", r.out, out)
	}
}

func TestMachineOutput(t *testing.T) {
	src := Flowchart("", Output(`"Hello", " ", 2 + 3`, true)+Output(`"x"`, false)+Output(`"y"`, true))
	runXML(t, src, nil, nil).ok(t, "Hello 5\nxy\n")
}

func TestMachineEmptySequence(t *testing.T) {
	runXML(t, Flowchart("", ""), nil, nil).ok(t, "")
}

func TestMachineSkipsText(t *testing.T) {
	src := Flowchart("", "\n  <!-- hi -->\n  "+Output(`1`, false)+"\n  "+Output(`2`, false)+"\n")
	runXML(t, src, nil, nil).ok(t, "12")
}

func TestMachineNestedSequence(t *testing.T) {
	src := Flowchart("", Output(`"a"`, false)+"<sequence>"+Output(`"b"`, false)+"</sequence>"+Output(`"c"`, false))
	runXML(t, src, nil, nil).ok(t, "abc")
}

func TestMachineBranch(t *testing.T) {
	for _, tc := range []struct {
		test string
		arms string
		want string
	}{
		{"1 < 2", "<sequence>" + Output(`"then"`, false) + "</sequence><sequence>" + Output(`"else"`, false) + "</sequence>", "then!"},
		{"1 > 2", "<sequence>" + Output(`"then"`, false) + "</sequence><sequence>" + Output(`"else"`, false) + "</sequence>", "else!"},
		{"1 > 2", "<sequence>" + Output(`"then"`, false) + "</sequence>", "!"},
		{`""`, "<sequence>" + Output(`"then"`, false) + "</sequence>", "!"},
		{`"0"`, "<sequence>" + Output(`"then"`, false) + "</sequence>", "then!"},
	} {
		src := Flowchart("", "<branch><test>"+tc.test+"</test>"+tc.arms+"</branch>"+Output(`"!"`, false))
		runXML(t, src, nil, nil).ok(t, tc.want)
	}
}

func TestMachineBranchMissingArm(t *testing.T) {
	src := Flowchart("", "<branch><test>True</test></branch>")
	r := runXML(t, src, nil, nil)
	var se *StructuralError
	if !errors.As(r.err, &se) {
		t.Fatalf("got %v", r.err)
	}
	if se.Parent != TagBranch || se.Tag != TagSequence {
		t.Fatal(se)
	}
}

func TestMachinePreLoop(t *testing.T) {
	src := Flowchart("",
		Assign("i", "0")+
			"<preloop><test>i &lt; 3</test><sequence>"+
			Output(`i`, false)+
			Assign("i", "i + 1")+
			"</sequence></preloop>"+
			Output(`"."`, false))
	runXML(t, src, nil, nil).ok(t, "012.")

	// Never runs.
	src = Flowchart("", `<preloop><test>False</test><sequence>`+Output(`"x"`, false)+`</sequence></preloop>`)
	runXML(t, src, nil, nil).ok(t, "")
}

func TestMachinePostLoop(t *testing.T) {
	src := Flowchart("", `<postloop><test>False</test><sequence>`+Output(`"x"`, false)+`</sequence></postloop>`+Output(`"."`, false))
	runXML(t, src, nil, nil).ok(t, "x.")

	src = Flowchart("",
		Assign("i", "3")+
			"<postloop><test>0 &lt; i</test><sequence>"+
			Assign("i", "i - 1")+
			Output(`i`, false)+
			"</sequence></postloop>")
	runXML(t, src, nil, nil).ok(t, "210")
}

func TestMachineDeepLoop(t *testing.T) {
	src := Flowchart("",
		Assign("i", "0")+
			"<preloop><test>i &lt; 100000</test><sequence>"+
			Assign("i", "i + 1")+
			"</sequence></preloop>"+
			Output(`i`, false))
	r := runXML(t, src, nil, nil)
	r.ok(t, "100000")
	if r.result.Turns < 100000 {
		t.Fatalf("only %d turns", r.result.Turns)
	}
}

func TestMachineInput(t *testing.T) {
	env := `<variable type="double">n</variable><variable type="bool">b</variable><variable>s</variable>`
	seq := Input(`"n? "`, "n") + Input(`"b? "`, "b") + Input(`"s? "`, "s") +
		Output(`n + 1, " ", b, " ", s + 1`, true)
	for _, sync := range []bool{false, true} {
		in := &Script{
			Lines: []string{" 41 ", "no", "41"},
			Sync:  sync,
		}
		r := runXML(t, Flowchart(env, seq), in, nil)
		r.ok(t, "n? b? s? 42 True 411\n")
		if !in.Closed() {
			t.Fatal("line source not closed")
		}
	}
}

func TestMachineInputCoercion(t *testing.T) {
	env := `<variable type="double">n</variable><variable type="bool">b</variable>`
	seq := Input(`""`, "n") + Input(`""`, "b") + Output(`n, " ", b`, false)
	for _, tc := range []struct {
		lines []string
		want  string
	}{
		{[]string{"abc", ""}, "NaN False"},
		{[]string{"", "x"}, "0 True"},
		{[]string{"0x10", " "}, "16 True"},
	} {
		r := runXML(t, Flowchart(env, seq), &Script{Lines: tc.lines}, nil)
		r.ok(t, tc.want)
	}
}

func TestMachineInputEOF(t *testing.T) {
	env := `<variable type="double">n</variable>`
	seq := Input(`"n? "`, "n") + Input(`"s? "`, "s") + Output(`n, "|", s, "|"`, false)
	r := runXML(t, Flowchart(env, seq), &Script{}, nil)
	r.ok(t, "n? s? 0||")
	if v := r.m.Env.Context["s"]; v.Kind != expr.TextKind {
		t.Fatalf("s = %#v", v)
	}
}

func TestMachineNoLineSource(t *testing.T) {
	r := runXML(t, Flowchart("", Input(`""`, "x")), nil, nil)
	if r.err != NoLineSource {
		t.Fatal(r.err)
	}
}

func TestMachineSyntaxError(t *testing.T) {
	src := Flowchart("", Output(`"a"`, false)+Output(`2 +`, false)+Output(`"b"`, false))
	r := runXML(t, src, nil, nil)
	var se *expr.SyntaxError
	if !errors.As(r.err, &se) {
		t.Fatalf("got %v", r.err)
	}
	if r.result.Reason != Failed {
		t.Fatal(r.result.Reason)
	}
	if r.out != "a" {
		t.Fatalf("output %q", r.out)
	}
}

func TestMachineStructuralErrors(t *testing.T) {
	for _, tc := range []struct {
		seq    string
		parent string
		tag    string
	}{
		{`<command type="output"></command>`, TagCommand, TagValue},
		{`<command type="input"><variable>x</variable></command>`, TagCommand, TagPrompt},
		{`<command type="input"><prompt>""</prompt></command>`, TagCommand, TagVariable},
		{`<command type="assignment"><rvalue>1</rvalue></command>`, TagCommand, TagLValue},
		{`<command type="assignment"><lvalue>x</lvalue></command>`, TagCommand, TagRValue},
		{`<branch><sequence></sequence></branch>`, TagBranch, TagTest},
		{`<preloop><test>True</test></preloop>`, TagPreLoop, TagSequence},
	} {
		r := runXML(t, Flowchart("", tc.seq), &Script{}, nil)
		var se *StructuralError
		if !errors.As(r.err, &se) {
			t.Fatalf("%s: got %v", tc.seq, r.err)
		}
		if se.Parent != tc.parent || se.Tag != tc.tag || se.Unexpected {
			t.Fatalf("%s: %#v", tc.seq, se)
		}
	}

	r := runXML(t, Flowchart("", `<goto>x</goto>`), nil, nil)
	var se *StructuralError
	if !errors.As(r.err, &se) || !se.Unexpected {
		t.Fatalf("got %v", r.err)
	}
}

func TestMachineMissingSections(t *testing.T) {
	f, err := ParseXML(strings.NewReader(`<flowchart><sequence></sequence></flowchart>`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err = NewMachine(f, nil, &bytes.Buffer{}); err == nil {
		t.Fatal("no environment but no error")
	}

	f, err = ParseXML(strings.NewReader(`<flowchart><environment/></flowchart>`))
	if err != nil {
		t.Fatal(err)
	}
	m, err := NewMachine(f, nil, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err = m.Run(context.Background()); err == nil {
		t.Fatal("no sequence but no error")
	}
}

func TestMachineUnknownCommand(t *testing.T) {
	src := Flowchart("", `<command type="beep"/>`+Output(`"ok"`, false))
	runXML(t, src, nil, nil).ok(t, "ok")
}

func TestMachineLimit(t *testing.T) {
	src := Flowchart("", `<preloop><test>True</test><sequence>`+Output(`"x"`, false)+`</sequence></preloop>`)
	r := runXML(t, src, nil, &Control{Limit: 10})
	if r.err != nil {
		t.Fatal(r.err)
	}
	if r.result.Reason != Limited || r.result.Turns != 10 {
		t.Fatalf("%s after %d turns", r.result.Reason, r.result.Turns)
	}
}

func TestMachineCanceled(t *testing.T) {
	f, err := ParseXML(strings.NewReader(Flowchart("", Input(`"? "`, "x"))))
	if err != nil {
		t.Fatal(err)
	}
	out := &bytes.Buffer{}
	m, err := NewMachine(f, &silent{}, out)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r, err := m.Run(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("got %v", err)
	}
	if r.Reason != Canceled {
		t.Fatal(r.Reason)
	}
	if out.String() != "? " {
		t.Fatalf("output %q", out.String())
	}
}

func TestMachineCanceledBusy(t *testing.T) {
	f, err := ParseXML(strings.NewReader(Flowchart(Variable("i", "double"),
		Assign("i", "0")+PreLoop("True", Assign("i", "i + 1")))))
	if err != nil {
		t.Fatal(err)
	}
	m, err := NewMachine(f, &silent{}, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	var (
		r      *Result
		runErr error
	)
	go func() {
		r, runErr = m.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run ignored the canceled context")
	}
	if runErr != context.DeadlineExceeded {
		t.Fatalf("got %v", runErr)
	}
	if r.Reason != Canceled {
		t.Fatal(r.Reason)
	}
	if r.Turns == 0 {
		t.Fatal("no turns taken")
	}
}

func TestMachineInputPromptBeforeVariable(t *testing.T) {
	f, err := ParseXML(strings.NewReader(Flowchart("",
		`<command type="input"><prompt>"? "</prompt></command>`)))
	if err != nil {
		t.Fatal(err)
	}
	out := &bytes.Buffer{}
	m, err := NewMachine(f, &silent{}, out)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = m.Run(context.Background()); err == nil {
		t.Fatal("missing variable accepted")
	}
	var se *StructuralError
	if !errors.As(err, &se) {
		t.Fatalf("got %v", err)
	}
	if out.String() != "? " {
		t.Fatalf("output %q", out.String())
	}
}

func TestMachineUndeclaredKinds(t *testing.T) {
	src := Flowchart("", Input(`""`, "s")+Assign("i", "1 + 1"))
	r := runXML(t, src, &Script{Lines: []string{"42"}, Sync: true}, nil)
	r.ok(t, "")
	if k := r.m.Env.Context["s"].Kind; k != expr.TextKind {
		t.Fatalf("input stored as %v", k)
	}
	if k := r.m.Env.Context["i"].Kind; k != expr.NumberKind {
		t.Fatalf("assignment stored as %v", k)
	}
}

func TestMachineAssignmentFirstOnly(t *testing.T) {
	src := Flowchart("", Assign("x", `1, 2`)+Output(`x`, false))
	runXML(t, src, nil, nil).ok(t, "1")
}

func TestMachineReusesCompilation(t *testing.T) {
	counting := &countingInterpreter{}
	src := Flowchart("",
		Assign("i", "0")+
			"<preloop><test>i &lt; 5</test><sequence>"+
			Assign("i", "i + 1")+
			"</sequence></preloop>")
	f, err := ParseXML(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	m, err := NewMachine(f, nil, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	m.Interpreter = counting
	if _, err = m.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	// "0", the test, and "i + 1".
	if counting.n != 3 {
		t.Fatalf("%d compilations", counting.n)
	}
}

type countingInterpreter struct {
	n int
}

func (i *countingInterpreter) Compile(ctx context.Context, src string) (Program, error) {
	i.n++
	return Native.Compile(ctx, src)
}
