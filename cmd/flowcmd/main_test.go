package main

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Comcast/flowcmd/core"
	"github.com/Comcast/flowcmd/sio"
	"github.com/Comcast/flowcmd/storage/bolt"
)

// bufCouplings reads from a string and writes to a buffer.
type bufCouplings struct {
	in      string
	out     bytes.Buffer
	lines   *sio.Lines
	stopped bool
}

func (c *bufCouplings) Start(ctx context.Context) error {
	c.lines = sio.NewLines()
	return nil
}

func (c *bufCouplings) IO(ctx context.Context) (core.LineSource, io.Writer, error) {
	io.WriteString(c.lines, c.in)
	c.lines.End()
	return c.lines, &c.out, nil
}

func (c *bufCouplings) Stop(ctx context.Context) error {
	c.stopped = true
	return nil
}

func testConf() *Conf {
	return &Conf{
		Interpreter: "native",
		Wait:        time.Second,
	}
}

func TestLoadMessages(t *testing.T) {
	dir, err := ioutil.TempDir("", "flowcmd")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	bad := filepath.Join(dir, "bad.xml")
	if err = ioutil.WriteFile(bad, []byte(`<program/>`), 0644); err != nil {
		t.Fatal(err)
	}

	out := &bytes.Buffer{}
	if _, err = load(bad, out); err == nil {
		t.Fatal("no error")
	}
	if out.String() != "Invalid flowchart file" {
		t.Fatalf("%q", out.String())
	}

	out.Reset()
	if _, err = load(filepath.Join(dir, "missing.xml"), out); err == nil {
		t.Fatal("no error")
	}
	if !strings.Contains(out.String(), "missing.xml") || !strings.HasSuffix(out.String(), "\n") {
		t.Fatalf("%q", out.String())
	}

	out.Reset()
	if _, err = load("../../flowcharts/hello.xml", out); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 0 {
		t.Fatalf("%q", out.String())
	}
}

func TestRun(t *testing.T) {
	for _, interpreter := range []string{"native", "ecmascript"} {
		t.Run(interpreter, func(t *testing.T) {
			f, err := core.Load("../../flowcharts/countdown.xml")
			if err != nil {
				t.Fatal(err)
			}
			c := &bufCouplings{
				in: "3\r\nyes\n-1\n",
			}
			conf := testConf()
			conf.Interpreter = interpreter
			r, err := Run(context.Background(), conf, "countdown.xml", f, c)
			if err != nil {
				t.Fatal(err)
			}
			if r.Reason != core.Done {
				t.Fatal(r.Reason)
			}
			want := "Start from? 3\n2\n1\nLiftoff!\nAgain? " +
				"Start from? Nothing to count.\nAgain? "
			if got := c.out.String(); got != want {
				t.Fatalf("got %q", got)
			}
			if !c.stopped {
				t.Fatal("not stopped")
			}
		})
	}
}

func TestRunUnknownInterpreter(t *testing.T) {
	f, err := core.Load("../../flowcharts/hello.xml")
	if err != nil {
		t.Fatal(err)
	}
	conf := testConf()
	conf.Interpreter = "cobol"
	if _, err = Run(context.Background(), conf, "hello.xml", f, &bufCouplings{}); err == nil {
		t.Fatal("no error")
	}
}

func TestRunStateAndDB(t *testing.T) {
	dir, err := ioutil.TempDir("", "flowcmd")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	f, err := core.Load("../../flowcharts/hello.xml")
	if err != nil {
		t.Fatal(err)
	}

	conf := testConf()
	conf.StateOutputFilename = filepath.Join(dir, "state.json")
	conf.DBFilename = filepath.Join(dir, "runs.db")

	for i := 0; i < 2; i++ {
		c := &bufCouplings{in: "Ada\n"}
		if _, err = Run(context.Background(), conf, "hello.xml", f, c); err != nil {
			t.Fatal(err)
		}
		if c.out.String() != "What's your name? Hello, Ada!\n" {
			t.Fatalf("%q", c.out.String())
		}
	}

	js, err := ioutil.ReadFile(conf.StateOutputFilename)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(js), `"Ada"`) {
		t.Fatal(string(js))
	}

	ctx := context.Background()
	s, err := bolt.NewStorage(conf.DBFilename)
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer s.Close(ctx)
	rs, err := s.GetRuns(ctx, "hello.xml")
	if err != nil {
		t.Fatal(err)
	}
	if len(rs) != 2 {
		t.Fatalf("%d runs", len(rs))
	}
	if rs[0].Reason != "Done" || rs[0].Vars["name"].String() != "Ada" {
		t.Fatalf("%#v", rs[0])
	}
}

func TestParseTopic(t *testing.T) {
	for _, tc := range []struct {
		in    string
		topic string
		qos   byte
	}{
		{"flowchart/out", "flowchart/out", 0},
		{"flowchart/out:1", "flowchart/out", 1},
	} {
		topic, qos := parseTopic(tc.in)
		if topic != tc.topic || qos != tc.qos {
			t.Fatalf("%s: %s %d", tc.in, topic, qos)
		}
	}
}

func TestCouplingFlags(t *testing.T) {
	std, _ := NewStdCouplings([]string{"-echo"})
	if !std.EchoInput {
		t.Fatal("no echo")
	}
	ws, _ := NewWebSocketCouplings([]string{"-url", "ws://example.com/x"})
	if ws.URL != "ws://example.com/x" || !ws.Lines {
		t.Fatalf("%#v", ws)
	}
	mq, _ := NewMQTTCouplings([]string{"-t", "a,b", "-out-topic", "c:1"})
	if mq.SubTopics != "a,b" || mq.OutTopic != "c:1" {
		t.Fatalf("%#v", mq)
	}
}

func TestMQTTConf(t *testing.T) {
	mq, _ := NewMQTTCouplings([]string{"-h", "tcp://broker", "-p", "8883"})
	if mq.err != nil {
		t.Fatal(mq.err)
	}
	opts, err := mq.MQTTConf.ClientOptions()
	if err != nil {
		t.Fatal(err)
	}
	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://broker:8883" {
		t.Fatalf("%v", opts.Servers)
	}

	mq, _ = NewMQTTCouplings([]string{"-will-topic", "gone"})
	if mq.err == nil {
		t.Fatal("will topic without payload accepted")
	}
	if err = mq.Start(context.Background()); err != mq.err {
		t.Fatal(err)
	}

	conf := &MQTTConf{CAFilename: "/nonexistent/ca.pem"}
	if _, err = conf.TLSConfig(); err == nil {
		t.Fatal("missing CA file accepted")
	}
}
