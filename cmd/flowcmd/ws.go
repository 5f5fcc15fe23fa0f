/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
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

package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Comcast/flowcmd/core"
	"github.com/Comcast/flowcmd/sio"

	"github.com/gorilla/websocket"
)

// WebSocketCouplings connect to a WebSocket server.  Each message
// from the server is input data, and each output write is a message
// to the server.
type WebSocketCouplings struct {
	URL string

	// Lines makes each incoming message a line even if it doesn't
	// end with a newline.
	Lines bool

	lines *sio.Lines
	conn  *websocket.Conn
	done  chan bool
}

func NewWebSocketCouplings(args []string) (*WebSocketCouplings, *flag.FlagSet) {
	c := &WebSocketCouplings{}
	fs := flag.NewFlagSet("ws", flag.ExitOnError)
	fs.StringVar(&c.URL, "url", "ws://localhost:8080", "Target URL for WebSocket server")
	fs.BoolVar(&c.Lines, "lines", true, "Treat each message as a line")
	if args == nil {
		return nil, fs
	}
	fs.Parse(args)
	return c, fs
}

// Start creates the WebSocket session and starts reading from it.
func (c *WebSocketCouplings) Start(ctx context.Context) error {

	u, err := url.Parse(c.URL)
	if err != nil {
		return err
	}

	c.lines = sio.NewLines()
	c.done = make(chan bool)

	log.Println("wsconnect", u.String())
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	c.conn = conn

	go func() {
		defer close(c.done)
		defer c.lines.End()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			_, bs, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					E(err, "ReadMessage")
				}
				return
			}
			s := string(bs)
			if c.Lines && !strings.HasSuffix(s, "\n") {
				s += "\n"
			}
			if _, err = io.WriteString(c.lines, s); err != nil {
				return
			}
		}
	}()

	return nil
}

// IO returns the Lines that Start feeds and a writer that sends
// messages.
func (c *WebSocketCouplings) IO(ctx context.Context) (core.LineSource, io.Writer, error) {
	return c.lines, &wsWriter{conn: c.conn}, nil
}

// Stop terminates the WebSocket connection.
func (c *WebSocketCouplings) Stop(ctx context.Context) error {
	log.Printf("Disconnecting")
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	deadline := time.Now().Add(time.Second)
	if d, have := ctx.Deadline(); have {
		deadline = d
	}
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		E(err, "WriteControl")
	}
	select {
	case <-c.done:
	case <-ctx.Done():
	}
	c.lines.Close()
	return c.conn.Close()
}

// wsWriter sends each Write as a text message.
type wsWriter struct {
	sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(p []byte) (int, error) {
	w.Lock()
	defer w.Unlock()
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func E(err error, args ...interface{}) error {
	log.Printf("error %s: %v", err, args)
	return err
}
