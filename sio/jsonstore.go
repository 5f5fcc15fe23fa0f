/* Copyright 2019 Comcast Cable Communications Management, LLC
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

package sio

import (
	"context"
	"encoding/json"
	"io/ioutil"

	"github.com/Comcast/flowcmd/core"
	"github.com/Comcast/flowcmd/expr"
)

// JSONStore is a primitive facility to store a run's variables as
// JSON in a file.
//
// Not glamorous or efficient.
type JSONStore struct {
	// StateOutputFilename, if not empty, will be the filename
	// for writing state as JSON.
	StateOutputFilename string

	// StateInputFilename optionally gives a filename that
	// contains variables to return when Read is called.
	StateInputFilename string

	State expr.Context
}

func NewJSONStore() *JSONStore {
	return &JSONStore{
		StateOutputFilename: "state.json",
	}
}

// Read reads s.StateInputFilename, which should contain a JSON object
// of variable values.
func (s *JSONStore) Read(ctx context.Context) (expr.Context, error) {
	if s.StateInputFilename != "" {
		js, err := ioutil.ReadFile(s.StateInputFilename)
		if err != nil {
			return nil, err
		}
		if err = json.Unmarshal(js, &s.State); err != nil {
			return nil, err
		}
		return s.State, nil
	}
	return make(expr.Context), nil
}

// Seed copies what Read returned into the Env's context.
func (s *JSONStore) Seed(ctx context.Context, env *core.Env) error {
	vars, err := s.Read(ctx)
	if err != nil {
		return err
	}
	for name, v := range vars {
		env.Set(name, v)
	}
	return nil
}

// Update remembers the Env's current variables.
func (s *JSONStore) Update(env *core.Env) {
	s.State = env.Context.Copy()
}

// WriteState writes the variables as JSON.
func (s *JSONStore) WriteState(ctx context.Context) error {
	if s.State != nil && s.StateOutputFilename != "" {
		js, err := json.MarshalIndent(&s.State, "", "  ")
		if err != nil {
			return err
		}
		if err = ioutil.WriteFile(s.StateOutputFilename, js, 0644); err != nil {
			return err
		}
	}
	return nil
}
