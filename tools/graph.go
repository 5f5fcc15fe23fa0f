package tools

import (
	. "github.com/Comcast/flowcmd/core"
)

// exit is a dangling edge: the id of the node it leaves and the edge's
// label.
type exit struct {
	from  string
	label string
}

// Node shapes handed to a walker's node function.
const (
	shapeCommand = "box"
	shapeTest    = "diamond"
	shapeUnknown = "octagon"
)

// walker lays out a flowchart's control flow as a graph.  Rendering
// is up to node, which draws a node and returns its id, and edge.
type walker struct {
	node func(n *Node, shape string) string
	edge func(e exit, to string)
	err  error
}

// flowchart draws the top-level sequence between the given start and
// end ids.
func (g *walker) flowchart(f *Node, start, end string) error {
	seq, err := f.FirstChild(TagSequence)
	if err != nil {
		return err
	}
	first, exits := g.sequence(seq)
	if first == "" {
		g.edge(exit{from: start}, end)
	} else {
		g.edge(exit{from: start}, first)
		g.edges(exits, end)
	}
	return g.err
}

func (g *walker) edges(es []exit, to string) {
	for _, e := range es {
		g.edge(e, to)
	}
}

// sequence returns the id of the first node of the sequence and the
// sequence's exits.  The id is "" for a sequence without elements.
func (g *walker) sequence(seq *Node) (string, []exit) {
	var (
		first string
		exits []exit
	)
	for _, c := range seq.Children {
		if !c.IsElement() {
			continue
		}
		f, es := g.element(c)
		if f == "" {
			continue
		}
		if first == "" {
			first = f
		} else {
			g.edges(exits, f)
		}
		exits = es
	}
	return first, exits
}

func (g *walker) element(n *Node) (string, []exit) {
	switch n.Name {
	case TagCommand:
		id := g.node(n, shapeCommand)
		return id, []exit{{from: id}}

	case TagSequence:
		return g.sequence(n)

	case TagBranch:
		id := g.node(n, shapeTest)
		var exits []exit
		arms := n.ChildrenNamed(TagSequence)
		for i, label := range []string{"true", "false"} {
			if i < len(arms) {
				if f, es := g.sequence(arms[i]); f != "" {
					g.edge(exit{from: id, label: label}, f)
					exits = append(exits, es...)
					continue
				}
			}
			exits = append(exits, exit{from: id, label: label})
		}
		return id, exits

	case TagPreLoop, TagPostLoop:
		id := g.node(n, shapeTest)
		body, err := n.FirstChild(TagSequence)
		if err != nil {
			g.err = err
			return id, []exit{{from: id}}
		}
		f, es := g.sequence(body)
		if f == "" {
			g.edge(exit{from: id, label: "true"}, id)
			return id, []exit{{from: id, label: "false"}}
		}
		g.edge(exit{from: id, label: "true"}, f)
		g.edges(es, id)
		if n.Name == TagPostLoop {
			// Enter through the body.
			return f, []exit{{from: id, label: "false"}}
		}
		return id, []exit{{from: id, label: "false"}}

	default:
		id := g.node(n, shapeUnknown)
		return id, []exit{{from: id}}
	}
}
