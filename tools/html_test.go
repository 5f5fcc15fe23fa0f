package tools

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderFlowchartHTML(t *testing.T) {
	for _, filename := range []string{
		"../flowcharts/countdown.xml",
		"../flowcharts/average.yaml",
	} {
		t.Run(filename, func(t *testing.T) {
			out := bytes.NewBuffer(make([]byte, 0, 1024*128))

			if err := ReadAndRenderFlowchartPage(filename, []string{"flowchart.css"}, out); err != nil {
				t.Fatal(err)
			}
			s := out.String()
			if !strings.Contains(s, `<ol>`) {
				t.Fatal(s)
			}
		})
	}
}

func TestRenderFlowchartHTMLDoc(t *testing.T) {
	out := &bytes.Buffer{}
	if err := ReadAndRenderFlowchartPage("../flowcharts/countdown.xml", nil, out); err != nil {
		t.Fatal(err)
	}
	s := out.String()
	if !strings.Contains(s, "<em>no</em>") {
		t.Fatalf("doc not rendered:\n%s", s)
	}
	if !strings.Contains(s, "<code>n &gt; 0</code>") {
		t.Fatalf("test not escaped:\n%s", s)
	}
}
