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

// Package expr provides the small expression language used by
// flowchart commands: values, the syntax tree, its evaluation, and
// the parser.
package expr

import (
	"math"
	"strconv"
)

// Expression can be evaluated against a Context.
type Expression interface {
	Eval(Context) Value

	// String renders the expression with explicit parentheses.
	String() string
}

type Number struct {
	Value float64
}

func (n *Number) Eval(ctx Context) Value {
	return Num(n.Value)
}

func (n *Number) String() string {
	return FormatNumber(n.Value)
}

type Text struct {
	Value string
}

func (s *Text) Eval(ctx Context) Value {
	return Str(s.Value)
}

func (s *Text) String() string {
	return strconv.Quote(s.Value)
}

type Boolean struct {
	Value bool
}

func (b *Boolean) Eval(ctx Context) Value {
	return Bool(b.Value)
}

func (b *Boolean) String() string {
	return Bool(b.Value).String()
}

// Variable is a reference to a name in the Context.  An unknown name
// evaluates to the undefined value; it is not an error.
type Variable struct {
	Name string
}

func (v *Variable) Eval(ctx Context) Value {
	return ctx[v.Name]
}

func (v *Variable) String() string {
	return v.Name
}

// Unary operators.
const (
	OpPlus  = "+"
	OpMinus = "-"
	OpNot   = "NOT"
	OpFloor = "FLOOR"
)

// UnOp is a unary operation.  Right is filled in by the parser.
type UnOp struct {
	Op    string
	Right Expression
}

func (u *UnOp) Eval(ctx Context) Value {
	right := u.Right.Eval(ctx)

	switch u.Op {
	case OpPlus:
		return right
	case OpMinus:
		return Num(-right.Number())
	case OpNot:
		return Bool(!right.Truthy())
	case OpFloor:
		return Num(math.Floor(right.Number()))
	}
	return Undef()
}

func (u *UnOp) String() string {
	if u.Op == OpPlus || u.Op == OpMinus {
		return "(" + u.Op + u.Right.String() + ")"
	}
	return "(" + u.Op + " " + u.Right.String() + ")"
}

// Binary operators.
const (
	OpMul  = "*"
	OpDiv  = "/"
	OpIDiv = "DIV"
	OpMod  = "%"
	OpAdd  = "+"
	OpSub  = "-"
	OpLT   = "<"
	OpLE   = "<="
	OpGT   = ">"
	OpGE   = ">="
	OpEQ   = "=="
	OpNE   = "!="
	OpAnd  = "AND"
	OpOr   = "OR"
)

var precedence = map[string]int{
	OpMul:  9,
	OpDiv:  9,
	OpIDiv: 9,
	OpMod:  9,
	OpAdd:  7,
	OpSub:  7,
	OpLT:   5,
	OpLE:   5,
	OpGT:   5,
	OpGE:   5,
	OpEQ:   3,
	OpNE:   3,
	OpAnd:  2,
	OpOr:   1,
}

// Precedence returns the binding strength of a binary operator.
// Higher binds tighter.  Unknown operators get 0.
func Precedence(op string) int {
	return precedence[op]
}

// BinOp is a binary operation.  Left and Right are filled in by the
// parser.
type BinOp struct {
	Op         string
	Left       Expression
	Right      Expression
	Precedence int
}

// NewBinOp makes a BinOp with no operands.
func NewBinOp(op string) *BinOp {
	return &BinOp{
		Op:         op,
		Precedence: Precedence(op),
	}
}

func (b *BinOp) Eval(ctx Context) Value {
	left := b.Left.Eval(ctx)

	switch b.Op {
	case OpAnd:
		if !left.Truthy() {
			return left
		}
		return b.Right.Eval(ctx)
	case OpOr:
		if left.Truthy() {
			return left
		}
		return b.Right.Eval(ctx)
	}

	right := b.Right.Eval(ctx)

	switch b.Op {
	case OpAdd:
		if left.Kind == TextKind || right.Kind == TextKind {
			return Str(left.String() + right.String())
		}
		return Num(left.Number() + right.Number())
	case OpSub:
		return Num(left.Number() - right.Number())
	case OpMul:
		return Num(left.Number() * right.Number())
	case OpDiv:
		return Num(left.Number() / right.Number())
	case OpIDiv:
		return Num(math.Floor(left.Number() / right.Number()))
	case OpMod:
		return Num(math.Mod(left.Number(), right.Number()))
	case OpEQ:
		return Bool(Equal(left, right))
	case OpNE:
		return Bool(!Equal(left, right))
	case OpLT, OpLE, OpGT, OpGE:
		return Bool(compare(b.Op, left, right))
	}
	return Undef()
}

func (b *BinOp) String() string {
	return "(" + b.Left.String() + " " + b.Op + " " + b.Right.String() + ")"
}

// Equal is loose equality: numbers and text compare numerically when
// mixed, booleans act as 1 or 0, and undefined only equals undefined.
func Equal(x, y Value) bool {
	if x.Kind == y.Kind {
		switch x.Kind {
		case NumberKind:
			return x.Num == y.Num
		case TextKind:
			return x.Str == y.Str
		case BooleanKind:
			return x.Bool == y.Bool
		default:
			return true
		}
	}
	if x.Kind == UndefinedKind || y.Kind == UndefinedKind {
		return false
	}
	if x.Kind == BooleanKind {
		return Equal(Num(x.Number()), y)
	}
	if y.Kind == BooleanKind {
		return Equal(x, Num(y.Number()))
	}
	// Number vs text.
	return x.Number() == y.Number()
}

func compare(op string, x, y Value) bool {
	if x.Kind == TextKind && y.Kind == TextKind {
		switch op {
		case OpLT:
			return x.Str < y.Str
		case OpLE:
			return x.Str <= y.Str
		case OpGT:
			return x.Str > y.Str
		default:
			return x.Str >= y.Str
		}
	}
	a, b := x.Number(), y.Number()
	// Comparisons with NaN are false, which Go already does.
	switch op {
	case OpLT:
		return a < b
	case OpLE:
		return a <= b
	case OpGT:
		return a > b
	default:
		return a >= b
	}
}
