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
	"io"
	"strings"

	. "github.com/Comcast/flowcmd/core"
	"github.com/Comcast/flowcmd/util"
)

type MermaidOpts struct {
	// Direction is the Mermaid flowchart direction: TB, LR, etc.
	Direction string `json:"direction,omitempty"`

	// CommandFill is the fill color for command nodes.  Does not
	// apply if CommandClass is set.
	CommandFill string `json:"commandFill,omitempty"`

	// CommandClass will be the CSS class for command nodes.
	CommandClass string `json:"commandClass,omitempty"`

	// ShowPrompts includes input prompts in input command labels.
	ShowPrompts bool `json:"showPrompts,omitempty"`
}

// Mermaid makes a Mermaid (https://mermaidjs.github.io/) input file
// for the given flowchart.
func Mermaid(f *Node, w io.WriteCloser, opts *MermaidOpts) error {

	if opts == nil {
		opts = &MermaidOpts{
			Direction:   "TB",
			CommandFill: "#bcf2db",
			ShowPrompts: true,
		}
	}
	if opts.Direction == "" {
		opts.Direction = "TB"
	}

	m := &mermaider{
		w:    w,
		opts: opts,
	}

	fmt.Fprintf(w, "flowchart %s\n", opts.Direction)
	// "end" is a Mermaid keyword.
	fmt.Fprintf(w, "  begin([\"start\"])\n")
	fmt.Fprintf(w, "  finish([\"end\"])\n")

	g := &walker{
		node: m.node,
		edge: m.edge,
	}
	err := g.flowchart(f, "begin", "finish")
	if err == nil {
		err = m.err
	}

	fmt.Fprintf(w, "\n")
	util.Logf("mermaid gen done (%d nodes)", m.n)

	if err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

type mermaider struct {
	w    io.Writer
	opts *MermaidOpts
	n    int
	err  error
}

func (m *mermaider) edge(e exit, to string) {
	if e.label == "" {
		fmt.Fprintf(m.w, "  %s --> %s\n", e.from, to)
		return
	}
	fmt.Fprintf(m.w, "  %s -- %s --> %s\n", e.from, e.label, to)
}

func (m *mermaider) node(n *Node, shape string) string {
	m.n++
	id := fmt.Sprintf("n%d", m.n)

	switch shape {
	case shapeCommand:
		fmt.Fprintf(m.w, "  %s[\"%s\"]\n", id, mermaidEsc(m.commandLabel(n)))
		if m.opts.CommandClass != "" {
			fmt.Fprintf(m.w, "  class %s %s\n", id, m.opts.CommandClass)
		} else if m.opts.CommandFill != "" {
			fmt.Fprintf(m.w, "  style %s fill:%s\n", id, m.opts.CommandFill)
		}
	case shapeTest:
		src, err := n.ChildText(TagTest)
		if err != nil && m.err == nil {
			m.err = err
		}
		fmt.Fprintf(m.w, "  %s{\"%s\"}\n", id, mermaidEsc(src))
	default:
		fmt.Fprintf(m.w, "  %s{{\"?%s\"}}\n", id, mermaidEsc(n.Name))
	}

	return id
}

func (m *mermaider) commandLabel(n *Node) string {
	child := func(tag string) string {
		c, err := n.FirstChild(tag)
		if err != nil {
			return "?"
		}
		return strings.TrimSpace(c.Text())
	}

	switch n.Attr(AttrType) {
	case CommandOutput:
		s := "output " + child(TagValue)
		if n.Attr(AttrEndl) == "true" {
			s += " ⏎"
		}
		return s
	case CommandInput:
		if m.opts.ShowPrompts {
			return "input " + child(TagVariable) + " ← " + child(TagPrompt)
		}
		return "input " + child(TagVariable)
	case CommandAssignment:
		return child(TagLValue) + " = " + child(TagRValue)
	default:
		return n.Attr(AttrType)
	}
}

// mermaidEsc replaces characters that Mermaid won't take inside a
// quoted label.
func mermaidEsc(s string) string {
	s = strings.Replace(s, `"`, "#quot;", -1)
	s = strings.Replace(s, "\n", " ", -1)
	return s
}
