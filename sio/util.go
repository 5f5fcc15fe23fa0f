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
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Comcast/flowcmd/expr"
)

// ShellError reports a failed <<command>> in an input line.
type ShellError struct {
	Command string
	Err     error
}

func (e *ShellError) Error() string {
	return fmt.Sprintf("shell error %s on %s", e.Err, e.Command)
}

func (e *ShellError) Unwrap() error {
	return e.Err
}

var shell = regexp.MustCompile(`<<(.*?)>>`)

// ShellExpand replaces each '<<command>>' in an input line with what
// the command writes to stdout, minus trailing newlines.  Use at your
// own risk, of course!
func ShellExpand(ctx context.Context, line string) (string, error) {
	var (
		acc  strings.Builder
		last int
	)
	for _, loc := range shell.FindAllStringSubmatchIndex(line, -1) {
		acc.WriteString(line[last:loc[0]])
		sh := line[loc[2]:loc[3]]
		out, err := exec.CommandContext(ctx, "bash", "-c", sh).Output()
		if err != nil {
			return "", &ShellError{Command: sh, Err: err}
		}
		acc.WriteString(strings.TrimRight(string(out), "\r\n"))
		last = loc[1]
	}
	acc.WriteString(line[last:])
	return acc.String(), nil
}

// Summary renders variables as name=value pairs in name order.  Text
// values are quoted.  If max is positive, the result is cut to that
// many bytes.
func Summary(c expr.Context, max int) string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		v := c[name]
		s := v.String()
		if v.Kind == expr.TextKind {
			s = strconv.Quote(s)
		}
		parts[i] = name + "=" + s
	}

	s := strings.Join(parts, " ")
	if 3 < max && max < len(s) {
		s = s[:max-3] + "..."
	}
	return s
}
