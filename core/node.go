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

// NodeType distinguishes elements from the text and comments between
// them.
type NodeType int

const (
	ElementNode NodeType = iota
	TextNode
	CommentNode
)

// Tags and attributes that the interpreter knows about.
const (
	TagFlowchart   = "flowchart"
	TagEnvironment = "environment"
	TagVariable    = "variable"
	TagSequence    = "sequence"
	TagCommand     = "command"
	TagBranch      = "branch"
	TagPreLoop     = "preloop"
	TagPostLoop    = "postloop"
	TagTest        = "test"
	TagValue       = "value"
	TagPrompt      = "prompt"
	TagLValue      = "lvalue"
	TagRValue      = "rvalue"
	TagDoc         = "doc"

	AttrType = "type"
	AttrEndl = "endl"

	CommandOutput     = "output"
	CommandInput      = "input"
	CommandAssignment = "assignment"
)

// Attr is a named attribute of an element.
type Attr struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Node is a read-only labeled tree node of a flowchart.
//
// Elements have a Name, Attrs, and Children.  Text and comment nodes
// only have Content.
type Node struct {
	Type     NodeType `json:"type"`
	Name     string   `json:"name,omitempty"`
	Attrs    []Attr   `json:"attrs,omitempty"`
	Children []*Node  `json:"children,omitempty"`
	Content  string   `json:"content,omitempty"`
}

// NewElement makes an element with the given attributes given as
// name/value pairs.
func NewElement(name string, attrs ...string) *Node {
	n := &Node{
		Type: ElementNode,
		Name: name,
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attrs = append(n.Attrs, Attr{Name: attrs[i], Value: attrs[i+1]})
	}
	return n
}

// NewText makes a text node.
func NewText(s string) *Node {
	return &Node{
		Type:    TextNode,
		Content: s,
	}
}

// IsElement reports whether the node is an element.
func (n *Node) IsElement() bool {
	return n != nil && n.Type == ElementNode
}

// Append adds children and returns the receiver.
func (n *Node) Append(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Attr returns the value of the named attribute or "".
func (n *Node) Attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}

// FirstChild finds the first child element with the given name.
//
// A missing child is a StructuralError.
func (n *Node) FirstChild(name string) (*Node, error) {
	for _, c := range n.Children {
		if c.IsElement() && c.Name == name {
			return c, nil
		}
	}
	return nil, &StructuralError{
		Parent: n.Name,
		Tag:    name,
	}
}

// ChildrenNamed returns all child elements with the given name in
// document order.
func (n *Node) ChildrenNamed(name string) []*Node {
	var acc []*Node
	for _, c := range n.Children {
		if c.IsElement() && c.Name == name {
			acc = append(acc, c)
		}
	}
	return acc
}

// Text returns the content of the first child if that child is a text
// node.  Otherwise "".
func (n *Node) Text() string {
	if len(n.Children) == 0 {
		return ""
	}
	if c := n.Children[0]; c.Type == TextNode {
		return c.Content
	}
	return ""
}

// ChildText is FirstChild followed by Text.
func (n *Node) ChildText(name string) (string, error) {
	c, err := n.FirstChild(name)
	if err != nil {
		return "", err
	}
	return c.Text(), nil
}

// Walk calls f on n and its descendants depth-first.  Returning false
// from f skips the node's children.
func (n *Node) Walk(f func(*Node) bool) {
	if !f(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(f)
	}
}
