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

package sio

import (
	"bufio"
	"context"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/Comcast/flowcmd/core"
	"github.com/Comcast/flowcmd/util"
)

// Stdio is a fairly simple Couplings that uses stdin for input and
// stdout for output.
type Stdio struct {
	// In is coupled to the run's line source.
	In io.Reader

	// Out is the run's output sink.
	Out io.Writer

	// ShellExpand enables input to include inline shell commands
	// delimited by '<<' and '>>'.  Use at your own risk, of
	// course!
	ShellExpand bool

	// EchoInput logs input lines.
	EchoInput bool

	// InputEOF will be closed on EOF from In.
	InputEOF chan bool

	WG sync.WaitGroup

	lines *Lines
}

// NewStdio creates a new Stdio.
//
// In and Out are initialized with os.Stdin and os.Stdout
// respectively.
func NewStdio(shellExpand bool) *Stdio {
	return &Stdio{
		In:          os.Stdin,
		Out:         os.Stdout,
		ShellExpand: shellExpand,
		InputEOF:    make(chan bool),
	}
}

// Start does nothing.
func (s *Stdio) Start(ctx context.Context) error {
	return nil
}

// Stop releases the line source.  A goroutine blocked reading In
// ends at its next read.  Use WG to wait for it.
func (s *Stdio) Stop(ctx context.Context) error {
	if s.lines != nil {
		return s.lines.Close()
	}
	return nil
}

// IO starts copying In to a Lines and returns that Lines with Out.
func (s *Stdio) IO(ctx context.Context) (core.LineSource, io.Writer, error) {
	s.lines = NewLines()

	s.WG.Add(1)
	go func() {
		defer s.WG.Done()
		defer close(s.InputEOF)
		if err := s.pump(ctx); err != nil && err != io.ErrClosedPipe {
			log.Printf("stdin error %s", err)
		}
		s.lines.End()
		util.Logf("stdio input done")
	}()

	return s.lines, s.Out, nil
}

func (s *Stdio) pump(ctx context.Context) error {
	if !s.ShellExpand && !s.EchoInput {
		_, err := io.Copy(s.lines, s.In)
		return err
	}

	// Line at a time so we can look at each line.
	in := bufio.NewReader(s.In)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line, err := in.ReadString('\n')
		if 0 < len(line) {
			if s.EchoInput {
				log.Printf("input %s", strings.TrimRight(line, "\r\n"))
			}
			if s.ShellExpand {
				if line, err = ShellExpand(ctx, line); err != nil {
					return err
				}
			}
			if _, err := s.lines.Write([]byte(line)); err != nil {
				return err
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
