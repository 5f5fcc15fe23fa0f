package tools

// dot -Tpng g.dot > g.png

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	. "github.com/Comcast/flowcmd/core"

	"gopkg.in/yaml.v2"
)

type dotter struct {
	w       io.Writer
	n       int
	current *Node
	err     error
}

// Dot makes a Graphviz dot file for the given flowchart.
//
// Commands are boxes labeled with their fields, tests are diamonds,
// and loops are back edges.  If current isn't nil, that element is
// drawn in red.
func Dot(f *Node, w io.WriteCloser, current *Node) error {
	d := &dotter{
		w:       w,
		current: current,
	}

	fmt.Fprintf(w, "digraph G {\n")
	fmt.Fprintf(w, `  graph [ordering=out,rankdir=TB,nodesep=0.3,ranksep=0.4]
  node [shape="record" style="rounded,filled" fillcolor="#99ddc8"]
  edge [fontsize = "10"]
`)

	fmt.Fprintf(w, "  start [shape=\"oval\", style=\"filled,bold\", fillcolor=\"#52aa5e\", label=\"start\"]\n")
	fmt.Fprintf(w, "  end [shape=\"oval\", style=\"filled,bold\", fillcolor=\"#52aa5e\", label=\"end\"]\n")

	g := &walker{
		node: d.node,
		edge: d.edge,
	}
	err := g.flowchart(f, "start", "end")

	fmt.Fprintf(w, "}\n")
	if err == nil {
		err = d.err
	}
	if err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (d *dotter) id() string {
	d.n++
	return fmt.Sprintf("n%d", d.n)
}

func (d *dotter) edge(e exit, to string) {
	fmt.Fprintf(d.w, "  %s -> %s [ label = <%s> ]\n", e.from, to, e.label)
}

func (d *dotter) node(n *Node, shape string) string {
	var label string
	switch shape {
	case shapeCommand:
		label = d.commandLabel(n)
	case shapeTest:
		label = d.testLabel(n)
	default:
		label = "?" + esc(n.Name)
	}

	id := d.id()
	color, fillcolor := "black", "#99ddc8"
	if n == d.current {
		color, fillcolor = "red", "#f98b8b"
	}
	fmt.Fprintf(d.w, "  %s [shape=\"%s\", color=\"%s\", fillcolor=\"%s\", label=<%s> ]\n",
		id, shape, color, fillcolor, label)
	return id
}

func (d *dotter) testLabel(n *Node) string {
	src, err := n.ChildText(TagTest)
	if err != nil && d.err == nil {
		d.err = err
	}
	return esc(src)
}

// commandLabel renders the command's fields as YAML.
func (d *dotter) commandLabel(n *Node) string {
	fields := yaml.MapSlice{
		{Key: "type", Value: n.Attr(AttrType)},
	}
	if endl := n.Attr(AttrEndl); endl != "" {
		fields = append(fields, yaml.MapItem{Key: AttrEndl, Value: endl == "true"})
	}
	for _, c := range n.Children {
		if c.IsElement() {
			fields = append(fields, yaml.MapItem{Key: c.Name, Value: c.Text()})
		}
	}
	js, err := yaml.Marshal(fields)
	if err != nil {
		js = []byte(err.Error())
	}
	label := strings.TrimRight(string(js), "\n")
	return `<FONT POINT-SIZE="8">` +
		strings.Replace(esc(label)+"\n", "\n", `<BR ALIGN="LEFT"/>`, -1) +
		`</FONT>`
}

func esc(s string) string {
	s = strings.Replace(s, "&", `&amp;`, -1)
	s = strings.Replace(s, "<", `&lt;`, -1)
	s = strings.Replace(s, ">", `&gt;`, -1)
	return s
}

// PNG generates a PNG image based on output from Dot.
//
// This function with write two files: basename.dot and basename.png,
// where the basename is the given string.
func PNG(f *Node, basename string, current *Node) (string, error) {
	dotname := basename + ".dot"
	pngname := basename + ".png"

	dotfile, err := os.Create(dotname)
	if err != nil {
		return pngname, err
	}
	if err := Dot(f, dotfile, current); err != nil {
		return pngname, err
	}
	cmd := "dot -Tpng -Gstart=1 " + dotname + " > " + pngname
	if err := exec.Command("bash", "-c", cmd).Run(); err != nil {
		return pngname, err
	}
	return pngname, nil
}
