package core

import (
	"github.com/Comcast/flowcmd/expr"
)

// Declared variable kinds.
const (
	TypeDouble = "double"
	TypeBool   = "bool"
)

// Env is the execution environment for one run: declared variable
// types and the live variable values.
//
// Types is written once when the Env is made.  Context entries are
// created on first assignment or input and are never deleted.
type Env struct {
	Types   map[string]string `json:"types"`
	Context expr.Context      `json:"context"`
}

// NewEnv reads the environment's variable declarations from the
// flowchart.
func NewEnv(flowchart *Node) (*Env, error) {
	environment, err := flowchart.FirstChild(TagEnvironment)
	if err != nil {
		return nil, err
	}
	env := &Env{
		Types:   make(map[string]string),
		Context: make(expr.Context),
	}
	for _, v := range environment.ChildrenNamed(TagVariable) {
		env.Types[v.Text()] = v.Attr(AttrType)
	}
	return env, nil
}

// Coerce converts an input line for the named variable according to
// its declared type.  Doubles are parsed as numbers, bools take the
// truthiness of the raw text, and everything else is kept as text.
func (e *Env) Coerce(name, line string) expr.Value {
	switch e.Types[name] {
	case TypeDouble:
		return expr.Num(expr.ParseNumber(line))
	case TypeBool:
		return expr.Bool(expr.Str(line).Truthy())
	default:
		return expr.Str(line)
	}
}

// Set binds a variable.
func (e *Env) Set(name string, v expr.Value) {
	e.Context[name] = v
}
