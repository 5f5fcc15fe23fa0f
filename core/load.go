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
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Comcast/flowcmd/util"

	"github.com/jsccast/yaml"
)

// Load reads a flowchart file.  Files ending in ".yaml" or ".yml" are
// parsed with ParseYAML; everything else is XML.
func Load(filename string) (*Node, error) {
	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	util.Logf("loading flowchart %s (%d bytes)", filename, len(bs))
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return ParseYAML(bs)
	default:
		return ParseXML(bytes.NewReader(bs))
	}
}

// ParseXML reads an XML flowchart document.
//
// Text and comments between elements are kept as children because
// sequences count them.  The root element must be a flowchart.
func ParseXML(r io.Reader) (*Node, error) {
	var (
		dec   = xml.NewDecoder(r)
		stack []*Node
		root  *Node
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		var parent *Node
		if 0 < len(stack) {
			parent = stack[len(stack)-1]
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{
				Type: ElementNode,
				Name: t.Name.Local,
			}
			for _, a := range t.Attr {
				n.Attrs = append(n.Attrs, Attr{Name: a.Name.Local, Value: a.Value})
			}
			if parent == nil {
				if root != nil {
					return nil, errors.New("multiple root elements")
				}
				root = n
			} else {
				parent.Append(n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if parent == nil {
				continue
			}
			// Adjacent character data (say text next to CDATA)
			// is one text node.
			if k := len(parent.Children); 0 < k && parent.Children[k-1].Type == TextNode {
				parent.Children[k-1].Content += string(t)
			} else {
				parent.Append(NewText(string(t)))
			}
		case xml.Comment:
			if parent != nil {
				parent.Append(&Node{Type: CommentNode, Content: string(t)})
			}
		}
	}

	if root == nil || root.Name != TagFlowchart {
		return nil, ErrNotFlowchart
	}
	return root, nil
}

// The YAML dialect is friendlier to write by hand than XML:
//
//	environment:
//	  - {name: n, type: double}
//	sequence:
//	  - input: {prompt: '"n? "', variable: n}
//	  - while:
//	      test: n > 0
//	      do:
//	        - output: {value: n, endl: true}
//	        - assign: {lvalue: n, rvalue: n - 1}
//
// ParseYAML converts it to the same tree that ParseXML builds.

type yamlVariable struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type,omitempty" json:"type,omitempty"`
}

type yamlOutput struct {
	Value string `yaml:"value" json:"value"`
	Endl  bool   `yaml:"endl,omitempty" json:"endl,omitempty"`
}

type yamlInput struct {
	Prompt   string `yaml:"prompt" json:"prompt"`
	Variable string `yaml:"variable" json:"variable"`
}

type yamlAssign struct {
	LValue string `yaml:"lvalue" json:"lvalue"`
	RValue string `yaml:"rvalue" json:"rvalue"`
}

type yamlBranch struct {
	Test string     `yaml:"test" json:"test"`
	Then []yamlStep `yaml:"then" json:"then"`
	Else []yamlStep `yaml:"else,omitempty" json:"else,omitempty"`
}

type yamlLoop struct {
	Test string     `yaml:"test" json:"test"`
	Do   []yamlStep `yaml:"do" json:"do"`
}

type yamlStep struct {
	Output   *yamlOutput `yaml:"output,omitempty" json:"output,omitempty"`
	Input    *yamlInput  `yaml:"input,omitempty" json:"input,omitempty"`
	Assign   *yamlAssign `yaml:"assign,omitempty" json:"assign,omitempty"`
	Branch   *yamlBranch `yaml:"branch,omitempty" json:"branch,omitempty"`
	While    *yamlLoop   `yaml:"while,omitempty" json:"while,omitempty"`
	Repeat   *yamlLoop   `yaml:"repeat,omitempty" json:"repeat,omitempty"`
	Sequence []yamlStep  `yaml:"sequence,omitempty" json:"sequence,omitempty"`
}

type yamlFlowchart struct {
	Doc         string         `yaml:"doc,omitempty" json:"doc,omitempty"`
	Environment []yamlVariable `yaml:"environment" json:"environment"`
	Sequence    []yamlStep     `yaml:"sequence" json:"sequence"`
}

// ParseYAML reads a flowchart written in the YAML dialect.
func ParseYAML(bs []byte) (*Node, error) {
	var f yamlFlowchart
	if err := yaml.Unmarshal(bs, &f); err != nil {
		return nil, err
	}

	root := NewElement(TagFlowchart)
	if f.Doc != "" {
		root.Append(textElement(TagDoc, f.Doc))
	}

	env := NewElement(TagEnvironment)
	for _, v := range f.Environment {
		if v.Name == "" {
			return nil, errors.New("variable without a name")
		}
		env.Append(textElement(TagVariable, v.Name, AttrType, v.Type))
	}
	root.Append(env)

	seq, err := yamlSequence(f.Sequence)
	if err != nil {
		return nil, err
	}
	root.Append(seq)

	return root, nil
}

func textElement(name, text string, attrs ...string) *Node {
	return NewElement(name, attrs...).Append(NewText(text))
}

func yamlSequence(steps []yamlStep) (*Node, error) {
	seq := NewElement(TagSequence)
	for i, s := range steps {
		n, err := s.node()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		seq.Append(n)
	}
	return seq, nil
}

func (s yamlStep) node() (*Node, error) {
	var (
		n     *Node
		count int
	)

	if s.Output != nil {
		count++
		n = NewElement(TagCommand, AttrType, CommandOutput, AttrEndl, strconv.FormatBool(s.Output.Endl)).
			Append(textElement(TagValue, s.Output.Value))
	}
	if s.Input != nil {
		count++
		n = NewElement(TagCommand, AttrType, CommandInput).Append(
			textElement(TagPrompt, s.Input.Prompt),
			textElement(TagVariable, s.Input.Variable))
	}
	if s.Assign != nil {
		count++
		n = NewElement(TagCommand, AttrType, CommandAssignment).Append(
			textElement(TagLValue, s.Assign.LValue),
			textElement(TagRValue, s.Assign.RValue))
	}
	if s.Branch != nil {
		count++
		then, err := yamlSequence(s.Branch.Then)
		if err != nil {
			return nil, err
		}
		n = NewElement(TagBranch).Append(textElement(TagTest, s.Branch.Test), then)
		if s.Branch.Else != nil {
			els, err := yamlSequence(s.Branch.Else)
			if err != nil {
				return nil, err
			}
			n.Append(els)
		}
	}
	for _, loop := range []struct {
		tag string
		l   *yamlLoop
	}{
		{TagPreLoop, s.While},
		{TagPostLoop, s.Repeat},
	} {
		if loop.l == nil {
			continue
		}
		count++
		body, err := yamlSequence(loop.l.Do)
		if err != nil {
			return nil, err
		}
		n = NewElement(loop.tag).Append(textElement(TagTest, loop.l.Test), body)
	}
	if s.Sequence != nil {
		count++
		seq, err := yamlSequence(s.Sequence)
		if err != nil {
			return nil, err
		}
		n = seq
	}

	switch count {
	case 0:
		return nil, errors.New("empty step")
	case 1:
		return n, nil
	default:
		return nil, errors.New("step has more than one kind")
	}
}
