package core

import (
	"context"
	"errors"

	"github.com/Comcast/flowcmd/expr"
)

var (
	// InterpreterNotFound occurs when an interpreter is requested
	// by name and the given map of interpreters doesn't have it.
	InterpreterNotFound = errors.New("interpreter not found")

	// DefaultInterpreters is used by FindInterpreter when given a
	// nil map.  Other packages can register here.
	DefaultInterpreters = InterpretersMap{
		"native": Native,
		"":       Native,
	}
)

// Evaluable is one compiled expression.
type Evaluable interface {
	Eval(ctx context.Context, env *Env) (expr.Value, error)
}

// Program is the compiled form of a command's comma-separated
// expression text: one Evaluable per expression.
type Program []Evaluable

// Interpreter compiles the expression text carried by flowchart
// commands.
//
// Compile should return an *expr.SyntaxError for malformed text.
type Interpreter interface {
	Compile(ctx context.Context, src string) (Program, error)
}

// InterpretersMap maps names to Interpreters.
type InterpretersMap map[string]Interpreter

func NewInterpretersMap() InterpretersMap {
	return make(InterpretersMap, 4)
}

// FindInterpreter looks up an Interpreter by name.
func FindInterpreter(is InterpretersMap, name string) (Interpreter, error) {
	if is == nil {
		is = DefaultInterpreters
	}
	i, have := is[name]
	if !have {
		return nil, InterpreterNotFound
	}
	return i, nil
}

// NativeInterpreter is the default Interpreter.  It evaluates
// expressions with package expr.
type NativeInterpreter struct{}

// Native is the shared NativeInterpreter.
var Native = &NativeInterpreter{}

func (i *NativeInterpreter) Compile(ctx context.Context, src string) (Program, error) {
	exprs, err := expr.Parse(src)
	if err != nil {
		return nil, err
	}
	p := make(Program, len(exprs))
	for j, x := range exprs {
		p[j] = &nativeEvaluable{x: x}
	}
	return p, nil
}

type nativeEvaluable struct {
	x expr.Expression
}

func (e *nativeEvaluable) Eval(ctx context.Context, env *Env) (expr.Value, error) {
	return e.x.Eval(env.Context), nil
}
