/* Copyright 2018 Comcast Cable Communications Management, LLC
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

// Package testutil has helpers for writing flowcharts and feeding
// them input in tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// JS renders its argument as JSON or as a string indicating an error.
func JS(x interface{}) string {
	bs, err := json.Marshal(&x)
	if err != nil {
		log.Printf("warning: testutil.JS error %s for %#v", err, x)
		return fmt.Sprintf("%#v", x)
	}
	return string(bs)
}

// Dwimjs, when given a string or bytes that parse as JSON, returns
// what was parsed.  When given anything else, just returns what's
// given.
//
// See https://en.wikipedia.org/wiki/DWIM.
func Dwimjs(x interface{}) interface{} {
	switch vv := x.(type) {
	case []byte:
		return Dwimjs(string(vv))
	case string:
		var v interface{}
		if err := json.Unmarshal([]byte(vv), &v); err != nil {
			return x
		}
		return v
	default:
		return x
	}
}

// Flowchart is the XML for a flowchart with the given environment
// and top-level sequence content.
func Flowchart(env, seq string) string {
	return `<flowchart><environment>` + env + `</environment><sequence>` + seq + `</sequence></flowchart>`
}

// Variable declares a variable.  The type can be "".
func Variable(name, typ string) string {
	if typ == "" {
		return `<variable>` + name + `</variable>`
	}
	return `<variable type="` + typ + `">` + name + `</variable>`
}

func Output(value string, endl bool) string {
	return fmt.Sprintf(`<command type="output" endl="%v"><value>%s</value></command>`, endl, value)
}

func Input(prompt, variable string) string {
	return `<command type="input"><prompt>` + prompt + `</prompt><variable>` + variable + `</variable></command>`
}

func Assign(lvalue, rvalue string) string {
	return `<command type="assignment"><lvalue>` + lvalue + `</lvalue><rvalue>` + rvalue + `</rvalue></command>`
}

func Sequence(content string) string {
	return `<sequence>` + content + `</sequence>`
}

// Branch makes a branch.  Give no arms, one, or two.
func Branch(test string, arms ...string) string {
	s := `<branch><test>` + test + `</test>`
	for _, arm := range arms {
		s += Sequence(arm)
	}
	return s + `</branch>`
}

func PreLoop(test, body string) string {
	return `<preloop><test>` + test + `</test>` + Sequence(body) + `</preloop>`
}

func PostLoop(test, body string) string {
	return `<postloop><test>` + test + `</test>` + Sequence(body) + `</postloop>`
}

// Script is a line source that hands out Lines and then "" forever.
//
// Unless Sync is set, each line is delivered from a new goroutine.
type Script struct {
	Lines []string
	Sync  bool

	mu     sync.Mutex
	closed bool
}

func (s *Script) Request(f func(string)) {
	s.mu.Lock()
	line := ""
	if 0 < len(s.Lines) {
		line, s.Lines = s.Lines[0], s.Lines[1:]
	}
	s.mu.Unlock()
	if s.Sync {
		f(line)
		return
	}
	go f(line)
}

func (s *Script) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (s *Script) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
