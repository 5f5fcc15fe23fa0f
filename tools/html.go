package tools

import (
	"fmt"
	"html"
	"io"
	"path/filepath"

	"github.com/Comcast/flowcmd/core"

	md "github.com/russross/blackfriday/v2"
)

// RenderFlowchartHTML writes the flowchart's doc, rendered from
// Markdown, and its declarations and steps as nested HTML lists.
func RenderFlowchartHTML(f *core.Node, out io.Writer) error {
	p := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	if doc, err := f.ChildText(core.TagDoc); err == nil {
		p(`<div class="flowchartDoc doc">%s</div>`, md.Run([]byte(doc)))
	}

	env, err := f.FirstChild(core.TagEnvironment)
	if err != nil {
		return err
	}
	p(`<div class="environment"><table>`)
	for _, v := range env.ChildrenNamed(core.TagVariable) {
		typ := v.Attr(core.AttrType)
		if typ == "" {
			typ = "text"
		}
		p(`<tr><td><code class="variable">%s</code></td><td class="type">%s</td></tr>`,
			html.EscapeString(v.Text()), html.EscapeString(typ))
	}
	p(`</table></div>`)

	seq, err := f.FirstChild(core.TagSequence)
	if err != nil {
		return err
	}
	p(`<div class="sequence">`)
	err = renderSequence(seq, p)
	p(`</div>`)
	return err
}

func renderSequence(seq *core.Node, p func(string, ...interface{})) error {
	p(`<ol>`)
	for _, c := range seq.Children {
		if !c.IsElement() {
			continue
		}
		if err := renderElement(c, p); err != nil {
			return err
		}
	}
	p(`</ol>`)
	return nil
}

func renderElement(n *core.Node, p func(string, ...interface{})) error {
	code := func(tag string) string {
		s, _ := n.ChildText(tag)
		return `<code>` + html.EscapeString(s) + `</code>`
	}

	switch n.Name {
	case core.TagCommand:
		switch n.Attr(core.AttrType) {
		case core.CommandOutput:
			endl := ""
			if n.Attr(core.AttrEndl) == "true" {
				endl = ` <span class="endl">&#x21b5;</span>`
			}
			p(`<li class="output">output %s%s</li>`, code(core.TagValue), endl)
		case core.CommandInput:
			p(`<li class="input">input %s after prompt %s</li>`, code(core.TagVariable), code(core.TagPrompt))
		case core.CommandAssignment:
			p(`<li class="assignment">%s &larr; %s</li>`, code(core.TagLValue), code(core.TagRValue))
		default:
			p(`<li class="unknown">%s</li>`, html.EscapeString(n.Attr(core.AttrType)))
		}
	case core.TagBranch:
		p(`<li class="branch">if %s`, code(core.TagTest))
		for i, arm := range n.ChildrenNamed(core.TagSequence) {
			if 1 < i {
				break
			}
			if i == 1 {
				p(`else`)
			}
			if err := renderSequence(arm, p); err != nil {
				return err
			}
		}
		p(`</li>`)
	case core.TagPreLoop, core.TagPostLoop:
		body, err := n.FirstChild(core.TagSequence)
		if err != nil {
			return err
		}
		if n.Name == core.TagPreLoop {
			p(`<li class="preloop">while %s`, code(core.TagTest))
			if err = renderSequence(body, p); err != nil {
				return err
			}
		} else {
			p(`<li class="postloop">do`)
			if err = renderSequence(body, p); err != nil {
				return err
			}
			p(`while %s`, code(core.TagTest))
		}
		p(`</li>`)
	case core.TagSequence:
		p(`<li class="sequence">`)
		if err := renderSequence(n, p); err != nil {
			return err
		}
		p(`</li>`)
	default:
		return &core.StructuralError{
			Parent:     core.TagSequence,
			Tag:        n.Name,
			Unexpected: true,
		}
	}
	return nil
}

func RenderFlowchartPage(f *core.Node, name string, out io.Writer, cssFiles []string) error {
	if cssFiles == nil {
		cssFiles = []string{"/static/flowchart-html.css"}
	}

	fmt.Fprintf(out, `<!DOCTYPE html>
<meta charset="utf-8">
<html>
  <head>
  <title>%s</title>
`, html.EscapeString(name))

	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, "  <link href=\"%s\" rel=\"stylesheet\">\n", cssFile)
	}

	fmt.Fprintf(out, `
  </head>
  <body>
    <h1>%s</h1>
`, html.EscapeString(name))

	if err := RenderFlowchartHTML(f, out); err != nil {
		return err
	}

	fmt.Fprintf(out, `
  </body>
</html>
`)

	return nil
}

func ReadAndRenderFlowchartPage(filename string, cssFiles []string, out io.Writer) error {
	f, err := core.Load(filename)
	if err != nil {
		return err
	}
	return RenderFlowchartPage(f, filepath.Base(filename), out, cssFiles)
}
