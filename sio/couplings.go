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
	"io"

	"github.com/Comcast/flowcmd/core"
)

// Couplings provide a flowchart run with its input lines and output
// sink.
//
// For example, an implementation could couple a run to a WebSocket
// (lines in, text out) or to an MQTT broker.
type Couplings interface {
	// Start initializes the Couplings.
	Start(context.Context) error

	// IO returns the line source and the output sink.
	IO(context.Context) (core.LineSource, io.Writer, error)

	// Stop shuts down the Couplings.
	Stop(context.Context) error
}
