// Package flowcmd runs flowchart programs.
//
// A flowchart is an XML (or YAML) document with variable declarations
// and a sequence of commands, branches, and loops.  Commands read and
// write lines of text and assign variables using a small expression
// language (package 'expr').  The interpreter is in package 'core',
// line input plumbing is in 'sio', and the command-line tools are in
// 'cmd'.
//
// See cmd/flowcmd to run a flowchart and cmd/flowtool to check,
// graph, render, or test one.
package flowcmd
