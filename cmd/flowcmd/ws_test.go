package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Comcast/flowcmd/core"

	"github.com/gorilla/websocket"
)

func TestWebSocketCouplings(t *testing.T) {
	heard := make(chan string, 1)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		defer conn.Close()

		if err = conn.WriteMessage(websocket.TextMessage, []byte("Ada")); err != nil {
			t.Error(err)
			return
		}

		var acc strings.Builder
		for {
			_, bs, err := conn.ReadMessage()
			if err != nil {
				break
			}
			acc.Write(bs)
		}
		heard <- acc.String()
	}))
	defer srv.Close()

	f, err := core.Load("../../flowcharts/hello.xml")
	if err != nil {
		t.Fatal(err)
	}

	c := &WebSocketCouplings{
		URL:   "ws" + strings.TrimPrefix(srv.URL, "http"),
		Lines: true,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r, err := Run(ctx, testConf(), "hello.xml", f, c)
	if err != nil {
		t.Fatal(err)
	}
	if r.Reason != core.Done {
		t.Fatal(r.Reason)
	}

	select {
	case got := <-heard:
		if got != "What's your name? Hello, Ada!\n" {
			t.Fatalf("heard %q", got)
		}
	case <-ctx.Done():
		t.Fatal("heard nothing")
	}
}
