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

package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Comcast/flowcmd/core"
	"github.com/Comcast/flowcmd/expr"
)

// FlowchartAnalysis reports what a static look at a flowchart found.
//
// Nothing is executed.  Every expression is parsed, and every element
// is checked for the children its kind requires.
type FlowchartAnalysis struct {
	Errors      []string `json:"errors" yaml:"errors"`
	NodeCount   int      `json:"nodeCount" yaml:"nodeCount"`
	Outputs     int      `json:"outputs" yaml:"outputs"`
	Inputs      int      `json:"inputs" yaml:"inputs"`
	Assignments int      `json:"assignments" yaml:"assignments"`
	Branches    int      `json:"branches" yaml:"branches"`
	Loops       int      `json:"loops" yaml:"loops"`
	Expressions int      `json:"expressions" yaml:"expressions"`

	// Declared variables are the ones in the environment.
	Declared []string `json:"declared" yaml:"declared"`

	// Undeclared variables are read or written but not declared.
	// They're legal, and input into them is stored as text.
	Undeclared []string `json:"undeclared,omitempty" yaml:"undeclared,omitempty"`

	// Unused variables are declared but never mentioned.
	Unused []string `json:"unused,omitempty" yaml:"unused,omitempty"`

	// NeverSet variables are read but never assigned or input.
	NeverSet []string `json:"neverSet,omitempty" yaml:"neverSet,omitempty"`
}

type analyzer struct {
	a        *FlowchartAnalysis
	declared map[string]bool
	read     map[string]bool
	written  map[string]bool
}

// Analyze examines the flowchart.
//
// Problems go in the result's Errors.  The returned error is only for
// a flowchart that can't be examined at all.
func Analyze(f *core.Node) (*FlowchartAnalysis, error) {
	if f == nil || f.Name != core.TagFlowchart {
		return nil, core.ErrNotFlowchart
	}

	z := &analyzer{
		a: &FlowchartAnalysis{
			Errors: make([]string, 0, 8),
		},
		declared: make(map[string]bool),
		read:     make(map[string]bool),
		written:  make(map[string]bool),
	}

	f.Walk(func(n *core.Node) bool {
		if n.IsElement() {
			z.a.NodeCount++
		}
		return true
	})

	if env, err := core.NewEnv(f); err != nil {
		z.errorf("/", err)
	} else {
		for name := range env.Types {
			z.declared[name] = true
		}
	}

	if seq, err := f.FirstChild(core.TagSequence); err != nil {
		z.errorf("/", err)
	} else {
		z.sequence("/"+core.TagSequence, seq)
	}

	a := z.a
	a.Declared = keysToStringSlice(z.declared)
	mentioned := make(map[string]bool, len(z.read)+len(z.written))
	for name := range z.read {
		mentioned[name] = true
	}
	for name := range z.written {
		mentioned[name] = true
	}
	a.Undeclared = keysToStringSlice(diffKeys(mentioned, z.declared))
	a.Unused = keysToStringSlice(diffKeys(z.declared, mentioned))
	a.NeverSet = keysToStringSlice(diffKeys(z.read, z.written))

	return a, nil
}

func (z *analyzer) errorf(at string, err error) {
	z.a.Errors = append(z.a.Errors, at+": "+err.Error())
}

func (z *analyzer) sequence(at string, seq *core.Node) {
	i := 0
	for _, c := range seq.Children {
		if !c.IsElement() {
			continue
		}
		i++
		z.element(fmt.Sprintf("%s/%s[%d]", at, c.Name, i), c)
	}
}

func (z *analyzer) element(at string, n *core.Node) {
	switch n.Name {
	case core.TagCommand:
		z.command(at, n)
	case core.TagBranch:
		z.a.Branches++
		z.expressions(at, n, core.TagTest)
		arms := n.ChildrenNamed(core.TagSequence)
		if len(arms) == 0 {
			z.errorf(at, &core.StructuralError{Parent: n.Name, Tag: core.TagSequence})
		}
		for i, arm := range arms {
			if 1 < i {
				z.errorf(at, fmt.Errorf("ignored sequence %d", i+1))
				continue
			}
			z.sequence(fmt.Sprintf("%s/%s[%d]", at, core.TagSequence, i+1), arm)
		}
	case core.TagPreLoop, core.TagPostLoop:
		z.a.Loops++
		z.expressions(at, n, core.TagTest)
		if body, err := n.FirstChild(core.TagSequence); err != nil {
			z.errorf(at, err)
		} else {
			z.sequence(at+"/"+core.TagSequence, body)
		}
	case core.TagSequence:
		z.sequence(at, n)
	default:
		z.errorf(at, &core.StructuralError{Parent: core.TagSequence, Tag: n.Name, Unexpected: true})
	}
}

func (z *analyzer) command(at string, n *core.Node) {
	switch n.Attr(core.AttrType) {
	case core.CommandOutput:
		z.a.Outputs++
		z.expressions(at, n, core.TagValue)
	case core.CommandInput:
		z.a.Inputs++
		z.expressions(at, n, core.TagPrompt)
		z.name(at, n, core.TagVariable)
	case core.CommandAssignment:
		z.a.Assignments++
		z.name(at, n, core.TagLValue)
		z.expressions(at, n, core.TagRValue)
	default:
		z.errorf(at, fmt.Errorf("unknown command type %q is skipped", n.Attr(core.AttrType)))
	}
}

func (z *analyzer) name(at string, n *core.Node, tag string) {
	name, err := n.ChildText(tag)
	if err != nil {
		z.errorf(at, err)
		return
	}
	if strings.TrimSpace(name) == "" {
		z.errorf(at, fmt.Errorf("empty %s", tag))
		return
	}
	z.written[name] = true
}

func (z *analyzer) expressions(at string, n *core.Node, tag string) {
	src, err := n.ChildText(tag)
	if err != nil {
		z.errorf(at, err)
		return
	}
	xs, err := expr.Parse(src)
	if err != nil {
		z.errorf(at+"/"+tag, err)
		return
	}
	z.a.Expressions += len(xs)
	for _, x := range xs {
		for _, name := range Variables(x) {
			z.read[name] = true
		}
	}
}

// Variables returns the names of the variables the expression reads.
func Variables(x expr.Expression) []string {
	var acc []string
	var walk func(x expr.Expression)
	walk = func(x expr.Expression) {
		switch vv := x.(type) {
		case *expr.Variable:
			acc = append(acc, vv.Name)
		case *expr.UnOp:
			walk(vv.Right)
		case *expr.BinOp:
			walk(vv.Left)
			walk(vv.Right)
		}
	}
	walk(x)
	return acc
}

// keysToStringSlice returns the map's keys sorted.
func keysToStringSlice(m map[string]bool) []string {
	var list []string
	for key := range m {
		list = append(list, key)
	}
	sort.Strings(list)
	return list
}

// diffKeys returns the keys in all that aren't in used.
func diffKeys(all map[string]bool, used map[string]bool) map[string]bool {
	diff := make(map[string]bool)
	for key := range all {
		if _, found := used[key]; !found {
			diff[key] = true
		}
	}
	return diff
}
