package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Comcast/flowcmd/core"
	"github.com/Comcast/flowcmd/interpreters"
	"github.com/Comcast/flowcmd/storage"
	"github.com/Comcast/flowcmd/storage/bolt"
	"github.com/Comcast/flowcmd/tools"

	"github.com/fatih/color"
	bbolt "go.etcd.io/bbolt"
	"gopkg.in/yaml.v2"
)

var Mods = map[string]Mod{
	"check":   &Checker{},
	"dot":     &Grapher{},
	"expect":  &Expecter{},
	"html":    &HTMLRenderer{},
	"json":    &JSONer{},
	"mermaid": &Mermaider{},
	"runs":    &RunLister{},
}

// Problems is returned by Checker when the analysis found any and by
// Expecter when a case failed.
var Problems = errors.New("problems found")

type Mod interface {
	F(f *core.Node, filename string) error
	Doc() string
	Flags() *flag.FlagSet
}

// stdout is where Mods write by default.
var stdout io.Writer = os.Stdout

type Checker struct {
	JSON bool
}

func (m *Checker) F(f *core.Node, filename string) error {
	a, err := tools.Analyze(f)
	if err != nil {
		return err
	}
	var bs []byte
	if m.JSON {
		bs, err = json.MarshalIndent(&a, "", "  ")
	} else {
		bs, err = yaml.Marshal(&a)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s\n", strings.TrimRight(string(bs), "\n"))

	if 0 < len(a.Errors) {
		for _, e := range a.Errors {
			color.New(color.FgRed).Fprintf(os.Stderr, "%s: %s\n", filename, e)
		}
		return Problems
	}
	color.New(color.FgGreen).Fprintf(os.Stderr, "%s: ok\n", filename)
	return nil
}

func (m *Checker) Doc() string {
	return "Statically analyze the flowchart: structure, expression syntax, and variable use."
}

func (m *Checker) Flags() *flag.FlagSet {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.BoolVar(&m.JSON, "json", false, "write JSON instead of YAML")
	return fs
}

type Grapher struct {
	OutputFilename string
	PNG            bool
}

func (m *Grapher) F(f *core.Node, filename string) error {
	if m.PNG {
		basename := strings.TrimSuffix(m.OutputFilename, ".dot")
		_, err := tools.PNG(f, basename, nil)
		return err
	}

	out, err := os.Create(m.OutputFilename)
	if err != nil {
		return err
	}

	return tools.Dot(f, out, nil) // Will Close out.
}

func (m *Grapher) Doc() string {
	return "Write a Graphviz dot file for the flowchart."
}

func (m *Grapher) Flags() *flag.FlagSet {
	fs := flag.NewFlagSet("dot", flag.ContinueOnError)
	fs.StringVar(&m.OutputFilename, "o", "flowchart.dot", "output filename")
	fs.BoolVar(&m.PNG, "png", false, "also run dot to make a PNG")
	return fs
}

type HTMLRenderer struct {
	CSSFiles string
}

func (m *HTMLRenderer) F(f *core.Node, filename string) error {
	var css []string
	if m.CSSFiles != "" {
		css = strings.Split(m.CSSFiles, ",")
	}
	return tools.RenderFlowchartPage(f, filename, stdout, css)
}

func (m *HTMLRenderer) Doc() string {
	return "Write an HTML page for the flowchart."
}

func (m *HTMLRenderer) Flags() *flag.FlagSet {
	fs := flag.NewFlagSet("html", flag.ContinueOnError)
	fs.StringVar(&m.CSSFiles, "css", "", "comma-separated CSS URLs")
	return fs
}

type JSONer struct {
}

func (m *JSONer) F(f *core.Node, filename string) error {
	bs, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s\n", bs)
	return nil
}

func (m *JSONer) Doc() string {
	return "Write the flowchart's element tree as JSON."
}

func (m *JSONer) Flags() *flag.FlagSet {
	return flag.NewFlagSet("json", flag.ContinueOnError)
}

type Mermaider struct {
	OutputFilename string
	Direction      string
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}

func (m *Mermaider) F(f *core.Node, filename string) error {
	var out io.WriteCloser = nopCloser{stdout}
	if m.OutputFilename != "-" {
		file, err := os.Create(m.OutputFilename)
		if err != nil {
			return err
		}
		out = file
	}

	opts := &tools.MermaidOpts{
		Direction:   m.Direction,
		CommandFill: "#bcf2db",
		ShowPrompts: true,
	}

	return tools.Mermaid(f, out, opts) // Will Close out.
}

func (m *Mermaider) Doc() string {
	return "Write a Mermaid flowchart definition."
}

func (m *Mermaider) Flags() *flag.FlagSet {
	fs := flag.NewFlagSet("mermaid", flag.ContinueOnError)
	fs.StringVar(&m.OutputFilename, "o", "-", "output filename (- for stdout)")
	fs.StringVar(&m.Direction, "d", "TB", "direction (TB, LR, BT, RL)")
	return fs
}

type Expecter struct {
	SessionFilename string
	Interpreter     string
	Timeout         time.Duration
	Verbose         bool
}

func (m *Expecter) F(f *core.Node, filename string) error {
	s, err := tools.ReadSession(m.SessionFilename)
	if err != nil {
		return err
	}
	s.Interpreters = interpreters.Standard()
	if m.Interpreter != "" {
		s.Interpreter = m.Interpreter
	}
	if m.Verbose {
		s.Verbose = true
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.Timeout)
	defer cancel()

	fs, err := s.Run(ctx, f)
	if err != nil {
		return err
	}

	failed := make(map[int]*tools.Failure, len(fs))
	for _, failure := range fs {
		failed[failure.Case] = failure
	}
	for i, c := range s.Cases {
		if failure, have := failed[i]; have {
			color.New(color.FgRed).Fprintf(stdout, "FAIL %s\n", failure.Error())
			continue
		}
		color.New(color.FgGreen).Fprintf(stdout, "ok   case %d %s\n", i, c.Doc)
	}

	if 0 < len(fs) {
		return Problems
	}
	return nil
}

func (m *Expecter) Doc() string {
	return "Run a session of input lines and expected output against the flowchart."
}

func (m *Expecter) Flags() *flag.FlagSet {
	fs := flag.NewFlagSet("expect", flag.ContinueOnError)
	fs.StringVar(&m.SessionFilename, "s", "session.yaml", "session filename")
	fs.StringVar(&m.Interpreter, "i", "", "interpreter (overrides the session's)")
	fs.DurationVar(&m.Timeout, "t", time.Minute, "timeout for the whole session")
	fs.BoolVar(&m.Verbose, "v", false, "verbose")
	return fs
}

// RunLister shows the run records that "flowcmd -db" wrote for a
// flowchart.
type RunLister struct {
	DBFilename string
	Clear      bool
	JSON       bool
}

func (m *RunLister) F(f *core.Node, filename string) error {
	ctx := context.Background()

	s, err := bolt.NewStorage(m.DBFilename)
	if err != nil {
		return err
	}
	if err = s.Open(ctx); err != nil {
		return err
	}
	defer s.Close(ctx)

	if m.Clear {
		if err = s.RemFlowchart(ctx, filename); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		return nil
	}

	rs, err := s.GetRuns(ctx, filename)
	if err != nil {
		return err
	}

	if m.JSON {
		if rs == nil {
			rs = []*storage.RunRecord{}
		}
		bs, err := json.MarshalIndent(rs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s\n", bs)
		return nil
	}

	for _, r := range rs {
		fmt.Fprintf(stdout, "%s %s %-8s %6d turns", r.Rid, r.At.Format(time.RFC3339), r.Reason, r.Turns)
		if r.Error != "" {
			fmt.Fprintf(stdout, " error: %s", r.Error)
		}
		fmt.Fprintf(stdout, "\n")
	}
	return nil
}

func (m *RunLister) Doc() string {
	return "List (or clear) the recorded runs of the flowchart."
}

func (m *RunLister) Flags() *flag.FlagSet {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.StringVar(&m.DBFilename, "db", "runs.db", "BoltDB filename")
	fs.BoolVar(&m.Clear, "clear", false, "remove the flowchart's runs")
	fs.BoolVar(&m.JSON, "json", false, "write JSON")
	return fs
}
