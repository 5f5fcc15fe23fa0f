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

package expr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SyntaxError occurs when expression text can't be parsed.
type SyntaxError struct {
	// Text is the complete source.
	Text string

	// Pos is the byte offset where parsing gave up.
	Pos int

	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d in %q: %s", e.Pos, e.Text, e.Msg)
}

// All patterns are anchored at the cursor.
var (
	wsPattern       = regexp.MustCompile(`^\s+`)
	numberPattern   = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)
	stringPattern   = regexp.MustCompile(`^"((?:[^"\\\n]|\\(?:.|\n))*)"`)
	escapePattern   = regexp.MustCompile(`\\(?:.|\n)`)
	booleanPattern  = regexp.MustCompile(`^(?i:true|false)\b`)
	variablePattern = regexp.MustCompile(`^\w+`)
	unaryPattern    = regexp.MustCompile(`^(?:[+-]|NOT\b|FLOOR\b)`)
	binaryPattern   = regexp.MustCompile(`^(?:[<>!=]=|[+\-*/%<>]|AND\b|OR\b|DIV\b)`)
	openPattern     = regexp.MustCompile(`^\(`)
	closePattern    = regexp.MustCompile(`^\)`)
	commaPattern    = regexp.MustCompile(`^,`)
)

// Parse turns a comma-separated list of expressions into one
// Expression per list element.
//
// Each returned Expression is complete: every operator has its
// operands.
func Parse(text string) ([]Expression, error) {
	p := &parser{
		text:     text,
		lastSkip: -1,
	}

	exprs, err := p.parseSequence()
	if err != nil {
		return nil, err
	}
	if exprs == nil {
		return nil, p.errorf("expected expression")
	}
	p.skipWs()
	if p.pos < len(p.text) {
		return nil, p.errorf("unexpected input")
	}
	return exprs, nil
}

// MustParse is Parse that panics.  For tests and literals.
func MustParse(text string) []Expression {
	exprs, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return exprs
}

type parser struct {
	text string
	pos  int

	// lastSkip is where whitespace was last skipped so that we
	// don't rescan at the same position.
	lastSkip int
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &SyntaxError{
		Text: p.text,
		Pos:  p.pos,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// match tries the pattern at the cursor and advances past the match.
func (p *parser) match(re *regexp.Regexp) []string {
	loc := re.FindStringSubmatchIndex(p.text[p.pos:])
	if loc == nil {
		return nil
	}
	groups := make([]string, len(loc)/2)
	for i := range groups {
		if loc[2*i] >= 0 {
			groups[i] = p.text[p.pos+loc[2*i] : p.pos+loc[2*i+1]]
		}
	}
	p.pos += loc[1]
	return groups
}

func (p *parser) skipWs() {
	if p.lastSkip != p.pos {
		p.match(wsPattern)
		p.lastSkip = p.pos
	}
}

func (p *parser) parseNumber() Expression {
	p.skipWs()
	m := p.match(numberPattern)
	if m == nil {
		return nil
	}
	// The pattern admits only range errors, and then x is ±Inf.
	x, _ := strconv.ParseFloat(m[0], 64)
	return &Number{Value: x}
}

func unescape(s string) string {
	return escapePattern.ReplaceAllStringFunc(s, func(esc string) string {
		switch c := esc[1:]; c {
		case "n":
			return "\n"
		case "t":
			return "\t"
		default:
			return c
		}
	})
}

func (p *parser) parseString() Expression {
	p.skipWs()
	m := p.match(stringPattern)
	if m == nil {
		return nil
	}
	return &Text{Value: unescape(m[1])}
}

func (p *parser) parseBoolean() Expression {
	p.skipWs()
	m := p.match(booleanPattern)
	if m == nil {
		return nil
	}
	return &Boolean{Value: strings.ToLower(m[0]) == "true"}
}

func (p *parser) parseVariable() Expression {
	p.skipWs()
	m := p.match(variablePattern)
	if m == nil {
		return nil
	}
	return &Variable{Name: m[0]}
}

func (p *parser) parseUnary() *UnOp {
	p.skipWs()
	m := p.match(unaryPattern)
	if m == nil {
		return nil
	}
	return &UnOp{Op: m[0]}
}

func (p *parser) parseBinary() *BinOp {
	p.skipWs()
	m := p.match(binaryPattern)
	if m == nil {
		return nil
	}
	return NewBinOp(m[0])
}

func (p *parser) parseNested() (Expression, error) {
	p.skipWs()
	if p.match(openPattern) == nil {
		return nil, nil
	}
	x, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if x == nil {
		return nil, p.errorf("expected expression after opening parenthesis")
	}
	p.skipWs()
	if p.match(closePattern) == nil {
		return nil, p.errorf("expected closing parenthesis after nested expression")
	}
	return x, nil
}

func (p *parser) parsePrimary() (Expression, error) {
	if u := p.parseUnary(); u != nil {
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		if right == nil {
			return nil, p.errorf("expected primary after unary operator")
		}
		u.Right = right
		return u, nil
	}

	at := p.pos
	if p.parseBinary() != nil {
		p.pos = at
		return nil, p.errorf("expected primary; found operator")
	}

	for _, f := range []func() Expression{
		p.parseNumber,
		p.parseString,
		p.parseBoolean,
		p.parseVariable,
	} {
		if x := f(); x != nil {
			return x, nil
		}
	}
	return p.parseNested()
}

// reduce pops the top operator, gives it the two most recent operands,
// and pushes it as an operand.
func reduce(vals []Expression, ops []*BinOp) ([]Expression, []*BinOp) {
	op := ops[len(ops)-1]
	ops = ops[:len(ops)-1]
	op.Right = vals[len(vals)-1]
	op.Left = vals[len(vals)-2]
	vals = vals[:len(vals)-2]
	return append(vals, op), ops
}

// parseExpression does precedence climbing with explicit operand and
// operator stacks.  Equal precedence reduces immediately, which makes
// every binary operator left-associative.
func (p *parser) parseExpression() (Expression, error) {
	primary, err := p.parsePrimary()
	if err != nil || primary == nil {
		return nil, err
	}

	var (
		vals = []Expression{primary}
		ops  []*BinOp
	)

	for op := p.parseBinary(); op != nil; op = p.parseBinary() {
		if primary, err = p.parsePrimary(); err != nil {
			return nil, err
		}
		if primary == nil {
			return nil, p.errorf("expected right-hand operand")
		}
		for 0 < len(ops) && ops[len(ops)-1].Precedence >= op.Precedence {
			vals, ops = reduce(vals, ops)
		}
		ops = append(ops, op)
		vals = append(vals, primary)
	}

	for 0 < len(ops) {
		vals, ops = reduce(vals, ops)
	}

	return vals[0], nil
}

func (p *parser) parseSequence() ([]Expression, error) {
	x, err := p.parseExpression()
	if err != nil || x == nil {
		return nil, err
	}
	acc := []Expression{x}
	for {
		p.skipWs()
		if p.match(commaPattern) == nil {
			return acc, nil
		}
		if x, err = p.parseExpression(); err != nil {
			return nil, err
		}
		if x == nil {
			return nil, p.errorf("expected expression following comma")
		}
		acc = append(acc, x)
	}
}
