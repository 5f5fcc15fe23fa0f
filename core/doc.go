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

// Package core provides the core gear for running flowcharts.
//
// A flowchart is a tree of Nodes, usually from Load, ParseXML, or
// ParseYAML.  The root is a flowchart element with an environment,
// which declares variables and their types, and a sequence.  A
// sequence holds commands (output, input, assignment), branches,
// preloops, postloops, and nested sequences.
//
// A Machine executes a flowchart.  Expression text in commands is
// compiled by an Interpreter.  The default, Native, uses package expr,
// and other packages can register alternatives in
// DefaultInterpreters.
//
// Input commands don't block.  They ask the Machine's LineSource for
// a line and hand it a callback.  The Machine keeps its own stack of
// pending work, so running a flowchart doesn't grow the Go stack no
// matter how long a loop runs.
//
// A Machine's Run returns a Result, which says why the run stopped.
// Syntax errors (from the Interpreter) and StructuralErrors (from a
// malformed tree) stop a run immediately.  Output already written
// stays written.
package core
