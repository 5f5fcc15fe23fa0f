/* Copyright 2019 Comcast Cable Communications Management, LLC
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

// Package main runs a flowchart file.
//
// Input lines come from stdin by default, and output goes to stdout.
// A WebSocket or an MQTT broker can take their place.
//
// Usage:
//
//	flowcmd [flags] filename [coupling flags]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/Comcast/flowcmd/core"
	"github.com/Comcast/flowcmd/interpreters"
	"github.com/Comcast/flowcmd/sio"
	"github.com/Comcast/flowcmd/storage"
	"github.com/Comcast/flowcmd/storage/bolt"
	"github.com/Comcast/flowcmd/util"
)

// Conf gathers what the top-level flags say.
type Conf struct {
	Interpreter         string
	Limit               int
	Verbose             bool
	StateInputFilename  string
	StateOutputFilename string
	DBFilename          string
	Wait                time.Duration
}

func main() {

	var (
		coupling = flag.String("io", "std", `IO protocol: "std", "mq", or "ws"`)
		conf     = &Conf{}
		help     = flag.Bool("h", false, "Get usage")
	)

	flag.StringVar(&conf.Interpreter, "i", "native", `Expression interpreter: "native" or "ecmascript"`)
	flag.IntVar(&conf.Limit, "limit", 0, "Maximum number of turns (0 means no limit)")
	flag.BoolVar(&conf.Verbose, "v", false, "Verbose")
	flag.StringVar(&conf.StateInputFilename, "state-input-filename", "", "Optional name for input JSON variables file")
	flag.StringVar(&conf.StateOutputFilename, "state-output-filename", "", "Optional name for output JSON variables file")
	flag.StringVar(&conf.DBFilename, "db", "", "Optional BoltDB filename for run records")
	flag.DurationVar(&conf.Wait, "wait", time.Second, "Wait this long for couplings to shut down")

	flag.Parse()

	util.SetLogging(conf.Verbose)

	if *help {
		flag.PrintDefaults()

		{
			fmt.Fprintf(os.Stderr, "\n-io std (default):\n\n")
			_, fs := NewStdCouplings(nil)
			fs.PrintDefaults()
		}

		{
			fmt.Fprintf(os.Stderr, "\n-io mq:\n\n")
			_, fs := NewMQTTCouplings(nil)
			fs.PrintDefaults()
		}

		{
			fmt.Fprintf(os.Stderr, "\n-io ws:\n\n")
			_, fs := NewWebSocketCouplings(nil)
			fs.PrintDefaults()
		}

		os.Exit(0)
	}

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stdout, "Usage: flowcmd filename\n")
		os.Exit(1)
	}
	filename, args := args[0], args[1:]

	f, err := load(filename, os.Stdout)
	if err != nil {
		if conf.Verbose {
			log.Printf("load error: %v", err)
		}
		os.Exit(1)
	}

	var cio sio.Couplings
	switch *coupling {
	case "std":
		c, _ := NewStdCouplings(args)
		cio = c
	case "mq", "mqtt":
		c, _ := NewMQTTCouplings(args)
		cio = c
	case "ws":
		c, _ := NewWebSocketCouplings(args)
		cio = c
	default:
		panic(fmt.Errorf("unknown io: '%s'", *coupling))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if _, err := Run(ctx, conf, filename, f, cio); err != nil {
		fmt.Fprintf(os.Stdout, "%s\n", err)
		os.Exit(1)
	}
}

// load reads the flowchart.  Problems are reported to out the way the
// command always has.
func load(filename string, out io.Writer) (*core.Node, error) {
	f, err := core.Load(filename)
	if err == nil {
		return f, nil
	}
	var pe *os.PathError
	if errors.As(err, &pe) {
		fmt.Fprintf(out, "%s\n", err)
	} else {
		fmt.Fprintf(out, "%s", core.ErrNotFlowchart)
	}
	return nil, err
}

// Run executes the flowchart with the given couplings and then takes
// care of the variables file and the run record.
func Run(ctx context.Context, conf *Conf, filename string, f *core.Node, cio sio.Couplings) (*core.Result, error) {
	interpreter, err := core.FindInterpreter(interpreters.Standard(), conf.Interpreter)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, conf.Interpreter)
	}

	store := sio.NewJSONStore()
	store.StateInputFilename = conf.StateInputFilename
	store.StateOutputFilename = conf.StateOutputFilename

	if err := cio.Start(ctx); err != nil {
		return nil, err
	}

	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), conf.Wait)
		defer cancel()
		if err := cio.Stop(sctx); err != nil {
			log.Printf("error from io.Stop: %v", err)
		}
	}()

	in, out, err := cio.IO(ctx)
	if err != nil {
		return nil, err
	}

	m, err := core.NewMachine(f, in, out)
	if err != nil {
		in.Close()
		return nil, err
	}
	m.Interpreter = interpreter
	m.Verbose = conf.Verbose
	if 0 < conf.Limit {
		m.Control = &core.Control{
			Limit: conf.Limit,
		}
	}

	if err := store.Seed(ctx, m.Env); err != nil {
		in.Close()
		return nil, err
	}

	r, runErr := m.Run(ctx)
	if r != nil && r.Reason != core.Done {
		// Done already closed it.
		in.Close()
	}
	if conf.Verbose && r != nil {
		log.Printf("run %s after %d turns: %s", r.Reason, r.Turns, sio.Summary(m.Env.Context, 72))
	}

	store.Update(m.Env)
	if err := store.WriteState(ctx); err != nil {
		log.Printf("error writing state: %v", err)
	}

	if conf.DBFilename != "" {
		if err := record(ctx, conf, filename, m, r, runErr); err != nil {
			log.Printf("error recording run: %v", err)
		}
	}

	return r, runErr
}

func record(ctx context.Context, conf *Conf, filename string, m *core.Machine, r *core.Result, runErr error) error {
	s, err := bolt.NewStorage(conf.DBFilename)
	if err != nil {
		return err
	}
	s.Debug = conf.Verbose
	if err = s.Open(ctx); err != nil {
		return err
	}
	defer s.Close(ctx)

	rid, err := s.NextId(ctx, filename)
	if err != nil {
		return err
	}
	rr := storage.AsRunRecord(rid, filename, m, r, runErr)
	return s.WriteRuns(ctx, filename, []*storage.RunRecord{rr})
}
