package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"liuproxy_checker/proxypool/model"
)

func TestHub_RowLifecycle(t *testing.T) {
	hub := NewHub()
	a := hub.InsertRow(model.ProxyDescriptor{ID: "a", Host: "1.1.1.1", Port: 80, Kind: model.KindHTTP})
	b := hub.InsertRow(model.ProxyDescriptor{ID: "b", Host: "2.2.2.2", Port: 1080, Kind: model.KindSOCKS5})
	if a == b {
		t.Fatal("Row ids must be unique")
	}

	rows := hub.Rows()
	if len(rows) != 2 || rows[0].ID != a || rows[1].ID != b || rows[0].Status != RowTesting {
		t.Fatalf("Unexpected rows after insert: %+v", rows)
	}

	hub.UpdateRow(b, model.ValidationResult{ProxyID: "b", Connectivity: model.ConnectivityFailure, ErrorMessage: "refused"})
	if got := hub.Rows()[1]; got.Status != RowFailure || got.Result == nil || got.Result.ErrorMessage != "refused" {
		t.Errorf("Update not applied: %+v", got)
	}

	hub.DeleteRow(a)
	rows = hub.Rows()
	if len(rows) != 1 || rows[0].ID != b {
		t.Fatalf("Unexpected rows after delete: %+v", rows)
	}

	// Late results for deleted or unknown rows are dropped.
	hub.UpdateRow(a, model.ValidationResult{Connectivity: model.ConnectivitySuccess})
	hub.UpdateRow("nope", model.ValidationResult{Connectivity: model.ConnectivitySuccess})
	hub.DeleteRow("nope")
	if len(hub.Rows()) != 1 {
		t.Error("Updates for unknown rows must not create rows")
	}
}

func TestHub_RowsReturnsCopy(t *testing.T) {
	hub := NewHub()
	hub.InsertRow(model.ProxyDescriptor{ID: "a", Host: "1.1.1.1", Port: 80, Kind: model.KindHTTP})
	rows := hub.Rows()
	rows[0].Status = "mutated"
	if hub.Rows()[0].Status != RowTesting {
		t.Error("Rows must not expose internal state")
	}
}

func TestHub_BroadcastNeverBlocksWithoutRun(t *testing.T) {
	hub := NewHub()
	// Nobody drains the broadcast channel; inserts beyond its capacity are dropped, not blocked.
	for i := 0; i < cap(hub.broadcast)+10; i++ {
		hub.InsertRow(model.ProxyDescriptor{ID: "x", Host: "h", Port: 1, Kind: model.KindHTTP})
	}
	if len(hub.Rows()) != cap(hub.broadcast)+10 {
		t.Error("Rows must be kept even when broadcasts are dropped")
	}
}

func TestServeWs_AfterHubStopped(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	cancel()
	select {
	case <-hub.done:
	case <-time.After(3 * time.Second):
		t.Fatal("Hub did not stop")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	// The server side must close the connection instead of hanging on registration.
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err = conn.ReadMessage()
	if err == nil {
		t.Fatal("Expected the connection to be closed")
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		t.Fatalf("Connection left open after the hub stopped: %v", err)
	}
}
