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
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Kind says which shape a Value has.
type Kind int

const (
	UndefinedKind Kind = iota // Missing variable or similar.
	NumberKind
	TextKind
	BooleanKind
)

func (k Kind) String() string {
	switch k {
	case NumberKind:
		return "number"
	case TextKind:
		return "text"
	case BooleanKind:
		return "boolean"
	default:
		return "undefined"
	}
}

// Value is a primitive runtime value.
//
// The zero Value is undefined.  Undefined values are what a reference
// to an unknown variable evaluates to, and they flow through
// arithmetic and comparison like any other value.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
	Bool bool
}

// Num makes a number.
func Num(x float64) Value {
	return Value{Kind: NumberKind, Num: x}
}

// Str makes a text value.
func Str(s string) Value {
	return Value{Kind: TextKind, Str: s}
}

// Bool makes a boolean.
func Bool(b bool) Value {
	return Value{Kind: BooleanKind, Bool: b}
}

// Undef returns the undefined value.
func Undef() Value {
	return Value{}
}

// IsUndefined reports whether v is the undefined value.
func (v Value) IsUndefined() bool {
	return v.Kind == UndefinedKind
}

// Truthy follows the usual "empty or zero is false" rule.
func (v Value) Truthy() bool {
	switch v.Kind {
	case NumberKind:
		return v.Num != 0 && !math.IsNaN(v.Num)
	case TextKind:
		return v.Str != ""
	case BooleanKind:
		return v.Bool
	default:
		return false
	}
}

// Number coerces v to a number.  Text that doesn't look like a number
// gives NaN.
func (v Value) Number() float64 {
	switch v.Kind {
	case NumberKind:
		return v.Num
	case TextKind:
		return ParseNumber(v.Str)
	case BooleanKind:
		if v.Bool {
			return 1
		}
		return 0
	default:
		return math.NaN()
	}
}

// String renders v as text.  Booleans are "True" and "False".
func (v Value) String() string {
	switch v.Kind {
	case NumberKind:
		return FormatNumber(v.Num)
	case TextKind:
		return v.Str
	case BooleanKind:
		if v.Bool {
			return "True"
		}
		return "False"
	default:
		return "undefined"
	}
}

var decimal = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// ParseNumber converts text to a number the way a dynamic host
// language would: surrounding whitespace is ignored, empty text is
// zero, and anything unrecognizable is NaN.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return 0
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return math.NaN()
			}
			return float64(n)
		}
	}
	if !decimal.MatchString(s) {
		return math.NaN()
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Out of range: ParseFloat already gave us ±Inf.
		if ne, is := err.(*strconv.NumError); is && ne.Err == strconv.ErrRange {
			return x
		}
		return math.NaN()
	}
	return x
}

// FormatNumber writes x in its shortest round-trip form.  Integers
// have no fractional part and very large or very small magnitudes use
// exponent notation.
func FormatNumber(x float64) string {
	switch {
	case math.IsNaN(x):
		return "NaN"
	case math.IsInf(x, 1):
		return "Infinity"
	case math.IsInf(x, -1):
		return "-Infinity"
	case x == 0:
		return "0"
	}
	abs := math.Abs(x)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(x, 'e', -1, 64)
		// Go pads the exponent to two digits.
		mant, exp, _ := strings.Cut(s, "e")
		sign := exp[0]
		exp = strings.TrimLeft(exp[1:], "0")
		if exp == "" {
			exp = "0"
		}
		return mant + "e" + string(sign) + exp
	}
	return strconv.FormatFloat(x, 'f', -1, 64)
}

// MarshalJSON writes numbers as JSON numbers when JSON can carry them
// and everything else as text.  Undefined is null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case NumberKind:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return json.Marshal(FormatNumber(v.Num))
		}
		return json.Marshal(v.Num)
	case TextKind:
		return json.Marshal(v.Str)
	case BooleanKind:
		return json.Marshal(v.Bool)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON is the inverse of MarshalJSON except that NaN and
// Infinity come back as text.
func (v *Value) UnmarshalJSON(bs []byte) error {
	var x interface{}
	if err := json.Unmarshal(bs, &x); err != nil {
		return err
	}
	*v = FromInterface(x)
	return nil
}

// FromInterface converts a decoded JSON/YAML/ECMAScript scalar into a
// Value.  Anything else becomes its JSON text.
func FromInterface(x interface{}) Value {
	switch vv := x.(type) {
	case nil:
		return Undef()
	case Value:
		return vv
	case float64:
		return Num(vv)
	case float32:
		return Num(float64(vv))
	case int:
		return Num(float64(vv))
	case int64:
		return Num(float64(vv))
	case string:
		return Str(vv)
	case bool:
		return Bool(vv)
	default:
		js, err := json.Marshal(x)
		if err != nil {
			return Undef()
		}
		return Str(string(js))
	}
}

// Interface is the inverse of FromInterface.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case NumberKind:
		return v.Num
	case TextKind:
		return v.Str
	case BooleanKind:
		return v.Bool
	default:
		return nil
	}
}

// Context maps variable names to their current values.
type Context map[string]Value

// Copy makes a shallow copy.
func (c Context) Copy() Context {
	acc := make(Context, len(c))
	for name, v := range c {
		acc[name] = v
	}
	return acc
}
