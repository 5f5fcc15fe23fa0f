/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
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

// Package ecmascript provides an ECMAScript-backed expression
// interpreter.
//
// Flowchart expressions are parsed with package expr as usual and
// then rendered as ECMAScript, which Goja compiles and runs.  The
// results should agree with the native interpreter.  This interpreter
// mostly exists to check that claim.
package ecmascript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/Comcast/flowcmd/core"
	"github.com/Comcast/flowcmd/expr"
	"github.com/Comcast/flowcmd/util"

	"github.com/dop251/goja"
)

var (
	// InterruptedMessage is the string value of Interrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// Interrupted is returned by Eval if the execution is
	// interrupted.
	Interrupted = errors.New(InterruptedMessage)
)

// init adds an Interpreter as one of the DefaultInterpreters
func init() {
	core.DefaultInterpreters["ecmascript"] = NewInterpreter()
}

// Interpreter implements core.Intepreter using Goja, which is a
// Go implementation of ECMAScript 5.1+.
//
// See https://github.com/dop251/goja.
type Interpreter struct {
}

// NewInterpreter makes a new Interpreter.
func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

// Compile parses the source and calls goja.Compile on the rendering
// of each expression.
func (i *Interpreter) Compile(ctx context.Context, src string) (core.Program, error) {
	exprs, err := expr.Parse(src)
	if err != nil {
		return nil, err
	}
	p := make(core.Program, len(exprs))
	for j, x := range exprs {
		code, err := Render(x)
		if err != nil {
			return nil, err
		}
		util.Logf("ecmascript %s => %s", x, code)
		obj, err := goja.Compile("", code, true)
		if err != nil {
			return nil, errors.New(err.Error() + ": " + code)
		}
		p[j] = &Evaluable{
			Source:   x.String(),
			Code:     code,
			compiled: obj,
		}
	}
	return p, nil
}

// Render writes the expression as ECMAScript.
//
// Variables are read from the object "_.ctx".
func Render(x expr.Expression) (string, error) {
	switch vv := x.(type) {
	case *expr.Number:
		switch {
		case math.IsInf(vv.Value, 1):
			return "Infinity", nil
		case math.IsInf(vv.Value, -1):
			return "(-Infinity)", nil
		}
		return strconv.FormatFloat(vv.Value, 'g', -1, 64), nil
	case *expr.Text:
		js, err := json.Marshal(vv.Value)
		if err != nil {
			return "", err
		}
		return string(js), nil
	case *expr.Boolean:
		return strconv.FormatBool(vv.Value), nil
	case *expr.Variable:
		js, err := json.Marshal(vv.Name)
		if err != nil {
			return "", err
		}
		return "_.ctx[" + string(js) + "]", nil
	case *expr.UnOp:
		r, err := Render(vv.Right)
		if err != nil {
			return "", err
		}
		switch vv.Op {
		case expr.OpPlus:
			// Not ECMAScript's unary plus, which converts to a
			// number.
			return "(" + r + ")", nil
		case expr.OpMinus:
			return "(-" + r + ")", nil
		case expr.OpNot:
			return "(!" + r + ")", nil
		case expr.OpFloor:
			return "Math.floor(" + r + ")", nil
		}
		return "", fmt.Errorf("unknown unary operator %q", vv.Op)
	case *expr.BinOp:
		l, err := Render(vv.Left)
		if err != nil {
			return "", err
		}
		r, err := Render(vv.Right)
		if err != nil {
			return "", err
		}
		switch vv.Op {
		case expr.OpIDiv:
			return "Math.floor(" + l + " / " + r + ")", nil
		case expr.OpAnd:
			return "(" + l + " && " + r + ")", nil
		case expr.OpOr:
			return "(" + l + " || " + r + ")", nil
		case expr.OpAdd:
			return "_.add(" + l + ", " + r + ")", nil
		case expr.OpMul, expr.OpDiv, expr.OpMod, expr.OpSub,
			expr.OpLT, expr.OpLE, expr.OpGT, expr.OpGE, expr.OpEQ, expr.OpNE:
			return "(" + l + " " + vv.Op + " " + r + ")", nil
		}
		return "", fmt.Errorf("unknown binary operator %q", vv.Op)
	default:
		return "", fmt.Errorf("can't render %T", x)
	}
}

// Evaluable is one compiled expression.
type Evaluable struct {
	// Source is the expression in the flowchart's syntax.
	Source string

	// Code is the ECMAScript that was compiled.
	Code string

	compiled *goja.Program
}

// addSource is binary '+'.  Booleans joined with text read True and
// False.
const addSource = `(function (l, r) {
  if (typeof l !== "string" && typeof r !== "string") {
    return l + r;
  }
  var text = function (x) {
    if (x === true) { return "True"; }
    if (x === false) { return "False"; }
    return String(x);
  };
  return text(l) + text(r);
})`

var addProgram = goja.MustCompile("add", addSource, true)

// Eval runs the program in a fresh runtime.
//
// The following properties are available from the runtime at _.
//
//	ctx: the current variables.  An unset variable is undefined.
//	add: binary '+'.
func (e *Evaluable) Eval(ctx context.Context, env *core.Env) (expr.Value, error) {
	vars := make(map[string]interface{}, len(env.Context))
	for name, v := range env.Context {
		if !v.IsUndefined() {
			vars[name] = v.Interface()
		}
	}

	o := goja.New()
	add, err := RunProgram(o, addProgram)
	if err != nil {
		return expr.Undef(), err
	}
	o.Set("_", map[string]interface{}{
		"ctx": vars,
		"add": add,
	})

	// We want to make sure that the following goroutine is
	// terminated as soon as possible.
	ictx, cancel := context.WithCancel(ctx)
	go func() {
		<-ictx.Done()
		o.Interrupt(InterruptedMessage)
	}()

	v, err := RunProgram(o, e.compiled)
	cancel()

	if err != nil {
		if _, is := err.(*goja.InterruptedError); is {
			return expr.Undef(), Interrupted
		}
		return expr.Undef(), err
	}

	return Export(v), nil
}

// Export converts a Goja value to an expr.Value.
func Export(v goja.Value) expr.Value {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return expr.Undef()
	}
	switch vv := v.Export().(type) {
	case bool:
		return expr.Bool(vv)
	case string:
		return expr.Str(vv)
	case int64, float64:
		return expr.Num(v.ToFloat())
	default:
		return expr.Str(v.String())
	}
}

func RunProgram(o *goja.Runtime, p *goja.Program) (v goja.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s", r)
		}
	}()
	return o.RunProgram(p)
}
