package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Comcast/flowcmd/storage"
	"github.com/Comcast/flowcmd/storage/bolt"
)

func capture(t *testing.T) *bytes.Buffer {
	buf := &bytes.Buffer{}
	stdout = buf
	t.Cleanup(func() { stdout = os.Stdout })
	return buf
}

func TestCheck(t *testing.T) {
	out := capture(t)
	if err := Do(&Checker{}, []string{"../../flowcharts/countdown.xml"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "inputs: 2") {
		t.Fatal(out.String())
	}

	out.Reset()
	if err := Do(&Checker{}, []string{"-json", "../../flowcharts/average.yaml"}); err != nil {
		t.Fatal(err)
	}
	var x map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &x); err != nil {
		t.Fatal(err)
	}
}

func TestCheckProblems(t *testing.T) {
	dir, err := ioutil.TempDir("", "flowtool")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	filename := filepath.Join(dir, "bad.xml")
	src := `<flowchart><environment/><sequence><command type="output"><value>1 +</value></command></sequence></flowchart>`
	if err = ioutil.WriteFile(filename, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	capture(t)
	if err = Do(&Checker{}, []string{filename}); err != Problems {
		t.Fatalf("got %v", err)
	}
}

func TestDot(t *testing.T) {
	dir, err := ioutil.TempDir("", "flowtool")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	filename := filepath.Join(dir, "g.dot")

	if err = Do(&Grapher{}, []string{"-o", filename, "../../flowcharts/average.yaml"}); err != nil {
		t.Fatal(err)
	}
	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(bs), "digraph G {") {
		t.Fatal(string(bs))
	}
}

func TestHTMLAndJSON(t *testing.T) {
	out := capture(t)
	if err := Do(&HTMLRenderer{}, []string{"-css", "a.css", "../../flowcharts/hello.xml"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `href="a.css"`) {
		t.Fatal(out.String())
	}

	out.Reset()
	if err := Do(&JSONer{}, []string{"../../flowcharts/hello.xml"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), `"name": "flowchart"`) {
		t.Fatal(out.String())
	}
}

func TestDoArgs(t *testing.T) {
	if err := Do(&JSONer{}, nil); err == nil {
		t.Fatal("no error")
	}
}

func TestMermaid(t *testing.T) {
	out := capture(t)
	if err := Do(&Mermaider{}, []string{"-d", "LR", "../../flowcharts/hello.xml"}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "flowchart LR\n") {
		t.Fatal(out.String())
	}
}

func TestExpect(t *testing.T) {
	out := capture(t)
	args := []string{"-s", "../../flowcharts/countdown.session.yaml", "../../flowcharts/countdown.xml"}
	if err := Do(&Expecter{}, args); err != nil {
		t.Fatal(err)
	}
	if strings.Count(out.String(), "ok   case") != 3 {
		t.Fatal(out.String())
	}

	// Same session, wrong flowchart.
	out.Reset()
	args = []string{"-s", "../../flowcharts/countdown.session.yaml", "../../flowcharts/hello.xml"}
	if err := Do(&Expecter{}, args); err != Problems {
		t.Fatalf("got %v", err)
	}
	if !strings.Contains(out.String(), "FAIL case 0") {
		t.Fatal(out.String())
	}
}

func TestRuns(t *testing.T) {
	dir, err := ioutil.TempDir("", "flowtool")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	db := filepath.Join(dir, "runs.db")
	flowchart := "../../flowcharts/hello.xml"

	ctx := context.Background()
	s, _ := bolt.NewStorage(db)
	if err = s.Open(ctx); err != nil {
		t.Fatal(err)
	}
	rs := []*storage.RunRecord{
		{Rid: "0000000001", Filename: flowchart, Reason: "Done", Turns: 7},
		{Rid: "0000000002", Filename: flowchart, Reason: "Failed", Turns: 1, Error: "boom"},
	}
	if err = s.WriteRuns(ctx, flowchart, rs); err != nil {
		t.Fatal(err)
	}
	if err = s.Close(ctx); err != nil {
		t.Fatal(err)
	}

	out := capture(t)
	if err = Do(&RunLister{}, []string{"-db", db, flowchart}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatal(out.String())
	}
	if !strings.HasPrefix(lines[0], "0000000001 ") || !strings.Contains(lines[1], "error: boom") {
		t.Fatal(out.String())
	}

	if err = Do(&RunLister{}, []string{"-db", db, "-clear", flowchart}); err != nil {
		t.Fatal(err)
	}
	// Clearing twice is fine.
	if err = Do(&RunLister{}, []string{"-db", db, "-clear", flowchart}); err != nil {
		t.Fatal(err)
	}

	out.Reset()
	if err = Do(&RunLister{}, []string{"-db", db, "-json", flowchart}); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != "[]" {
		t.Fatal(out.String())
	}
}
