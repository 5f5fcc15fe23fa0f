// Package main is a collection of flowchart utilities.
//
//	flowtool SUBCOMMAND [flags] filename
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/Comcast/flowcmd/core"
)

func main() {
	if len(os.Args) < 2 {
		Usage()
		os.Exit(1)
	}

	mod, have := Mods[os.Args[1]]
	if !have {
		fmt.Fprintf(os.Stderr, "unknown subcommand %q\n\n", os.Args[1])
		Usage()
		os.Exit(1)
	}

	if err := Do(mod, os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// Do parses the subcommand's flags, loads the flowchart, and runs the
// subcommand.
func Do(mod Mod, args []string) error {
	fs := mod.Flags()
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("need exactly one flowchart filename")
	}
	filename := fs.Arg(0)
	f, err := core.Load(filename)
	if err != nil {
		return err
	}
	return mod.F(f, filename)
}

func Usage() {
	fmt.Printf("Usage: flowtool SUBCOMMAND [flags] filename\n\nSubcommands:\n\n")
	names := make([]string, 0, len(Mods))
	for name := range Mods {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		mod := Mods[name]
		mod.Flags().Usage()
		fmt.Println("  " + mod.Doc())
		fmt.Println()
	}
}
