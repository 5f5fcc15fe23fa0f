package sio

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/Comcast/flowcmd/core"
	"github.com/Comcast/flowcmd/expr"
)

func TestJSONStoreRoundTrip(t *testing.T) {
	dir, err := ioutil.TempDir("", "jsonstore")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	ctx := context.Background()
	filename := filepath.Join(dir, "state.json")

	out := NewJSONStore()
	out.StateOutputFilename = filename
	out.Update(&core.Env{
		Context: expr.Context{
			"n":  expr.Num(3),
			"s":  expr.Str("chips"),
			"ok": expr.Bool(false),
		},
	})
	if err = out.WriteState(ctx); err != nil {
		t.Fatal(err)
	}

	in := NewJSONStore()
	in.StateInputFilename = filename
	env := &core.Env{Context: make(expr.Context)}
	if err = in.Seed(ctx, env); err != nil {
		t.Fatal(err)
	}
	if v := env.Context["n"]; v.Kind != expr.NumberKind || v.Num != 3 {
		t.Fatalf("n = %#v", v)
	}
	if v := env.Context["s"]; v.String() != "chips" {
		t.Fatalf("s = %#v", v)
	}
	if v := env.Context["ok"]; v.Kind != expr.BooleanKind || v.Bool {
		t.Fatalf("ok = %#v", v)
	}
}

func TestJSONStoreNoInput(t *testing.T) {
	s := NewJSONStore()
	vars, err := s.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(vars) != 0 {
		t.Fatal(vars)
	}
}
