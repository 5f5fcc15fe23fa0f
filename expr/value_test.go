package expr

import (
	"encoding/json"
	"math"
	"testing"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		x    float64
		want string
	}{
		{3, "3"},
		{-3, "-3"},
		{3.5, "3.5"},
		{0.1 + 0.2, "0.30000000000000004"},
		{1e21, "1e+21"},
		{1.5e-7, "1.5e-7"},
		{0.000001, "0.000001"},
		{123456789012, "123456789012"},
		{math.NaN(), "NaN"},
		{math.Inf(1), "Infinity"},
		{math.Inf(-1), "-Infinity"},
		{math.Copysign(0, -1), "0"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.x); got != tt.want {
			t.Fatalf("%v gave %q, wanted %q", tt.x, got, tt.want)
		}
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		s    string
		want float64
	}{
		{"3.5", 3.5},
		{"  42\t", 42},
		{"", 0},
		{"   ", 0},
		{"-1e3", -1000},
		{".5", 0.5},
		{"5.", 5},
		{"0x1F", 31},
		{"Infinity", math.Inf(1)},
	}
	for _, tt := range tests {
		if got := ParseNumber(tt.s); got != tt.want {
			t.Fatalf("%q gave %v, wanted %v", tt.s, got, tt.want)
		}
	}
	for _, s := range []string{"abc", "3.5x", "inf", "NaN", "1_000", "0xZZ"} {
		if got := ParseNumber(s); !math.IsNaN(got) {
			t.Fatalf("%q gave %v", s, got)
		}
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{Undef(), false},
		{Num(0), false},
		{Num(math.NaN()), false},
		{Num(-1), true},
		{Str(""), false},
		{Str("0"), true},
		{Str("false"), true},
		{Bool(false), false},
		{Bool(true), true},
	}
	for _, tt := range tests {
		if got := tt.v.Truthy(); got != tt.want {
			t.Fatalf("%#v gave %v", tt.v, got)
		}
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		x, y Value
		want bool
	}{
		{Num(1), Num(1), true},
		{Num(math.NaN()), Num(math.NaN()), false},
		{Str("1"), Num(1), true},
		{Num(1), Str(" 1 "), true},
		{Bool(true), Num(1), true},
		{Bool(false), Str(""), true},
		{Bool(true), Str("True"), false},
		{Undef(), Undef(), true},
		{Undef(), Num(0), false},
		{Str("a"), Str("a"), true},
	}
	for _, tt := range tests {
		if got := Equal(tt.x, tt.y); got != tt.want {
			t.Fatalf("%v == %v gave %v", tt.x, tt.y, got)
		}
	}
}

func TestValueJSON(t *testing.T) {
	ctx := Context{
		"n":   Num(3.5),
		"s":   Str("hi"),
		"b":   Bool(true),
		"u":   Undef(),
		"nan": Num(math.NaN()),
	}
	js, err := json.Marshal(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"b":true,"n":3.5,"nan":"NaN","s":"hi","u":null}`
	if string(js) != want {
		t.Fatalf("got %s", js)
	}

	var back Context
	if err = json.Unmarshal(js, &back); err != nil {
		t.Fatal(err)
	}
	if back["n"] != Num(3.5) || back["s"] != Str("hi") || back["b"] != Bool(true) {
		t.Fatalf("got %#v", back)
	}
	if !back["u"].IsUndefined() {
		t.Fatalf("got %#v", back["u"])
	}
}
