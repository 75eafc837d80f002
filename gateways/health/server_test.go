package health

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xilidan/roboscribe/gateways/health/handler"
	"github.com/xilidan/roboscribe/pkg/logger"
)

func TestHome(t *testing.T) {
	srv := httptest.NewServer(New(0, nil, logger.Discard()).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "RoboScribe Bot is running" {
		t.Fatalf("GET / = %d %q", resp.StatusCode, body)
	}
}

func TestHealthReflectsBotState(t *testing.T) {
	var ready atomic.Bool
	srv := httptest.NewServer(New(0, ready.Load, logger.Discard()).Router())
	defer srv.Close()

	check := func(want string) {
		t.Helper()
		resp, err := http.Get(srv.URL + "/health")
		if err != nil {
			t.Fatalf("GET /health: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("Content-Type = %q", ct)
		}
		var got handler.Status
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Status != "healthy" || got.Bot != want {
			t.Fatalf("GET /health = %+v, want bot %q", got, want)
		}
	}

	check("connecting")
	ready.Store(true)
	check("online")
}

func TestUnknownRouteAndMethod(t *testing.T) {
	srv := httptest.NewServer(New(0, nil, logger.Discard()).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET /missing = %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/health", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health = %d", resp.StatusCode)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(0, func() bool { return true }, logger.Discard()).Serve(ctx, ln)
	}()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}
