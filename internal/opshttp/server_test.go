package opshttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/keithlinneman/docsite/internal/health"
	"github.com/keithlinneman/docsite/internal/log"
)

func get(h http.Handler, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewHandler_Probes(t *testing.T) {
	var gate health.ShutdownGate
	h := NewHandler(log.Nop(), Options{
		Health:    health.Fixed(true, ""),
		Readiness: health.All(health.Fixed(true, ""), gate.Probe()),
	})

	if rec := get(h, "/-/healthy", "127.0.0.1:5000"); rec.Code != http.StatusOK || rec.Body.String() != "ok\n" {
		t.Errorf("healthy = %d %q", rec.Code, rec.Body)
	}
	if rec := get(h, "/-/ready", "127.0.0.1:5000"); rec.Code != http.StatusOK || rec.Body.String() != "ready\n" {
		t.Errorf("ready = %d %q", rec.Code, rec.Body)
	}

	gate.Set("draining")
	rec := get(h, "/-/ready", "127.0.0.1:5000")
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "draining") {
		t.Errorf("ready while draining = %d %q", rec.Code, rec.Body)
	}
	if rec := get(h, "/-/healthy", "127.0.0.1:5000"); rec.Code != http.StatusOK {
		t.Errorf("liveness should ignore the gate, got %d", rec.Code)
	}
}

func TestNewHandler_Metrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "docs_page_loads_total 3\n")
	})
	h := NewHandler(log.Nop(), Options{Metrics: metrics})
	if rec := get(h, "/metrics", "10.0.0.7:4000"); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "docs_page_loads_total") {
		t.Errorf("metrics = %d %q", rec.Code, rec.Body)
	}

	h = NewHandler(log.Nop(), Options{})
	if rec := get(h, "/metrics", "10.0.0.7:4000"); rec.Code != http.StatusNotFound {
		t.Errorf("metrics without handler = %d", rec.Code)
	}
}

func TestNewHandler_Pprof(t *testing.T) {
	on := NewHandler(log.Nop(), Options{EnablePprof: true})
	if rec := get(on, "/debug/pprof/", "127.0.0.1:5000"); rec.Code != http.StatusOK {
		t.Errorf("pprof index = %d", rec.Code)
	}
	if rec := get(on, "/debug/pprof/cmdline", "127.0.0.1:5000"); rec.Code != http.StatusOK {
		t.Errorf("pprof cmdline = %d", rec.Code)
	}

	off := NewHandler(log.Nop(), Options{})
	if rec := get(off, "/debug/pprof/", "127.0.0.1:5000"); rec.Code != http.StatusNotFound {
		t.Errorf("pprof disabled = %d", rec.Code)
	}
}

func TestPeerRejection(t *testing.T) {
	tests := []struct {
		remote string
		ok     bool
	}{
		{"127.0.0.1:1", true},
		{"[::1]:1", true},
		{"10.1.2.3:1", true},
		{"172.16.0.9:1", true},
		{"192.168.1.20:1", true},
		{"[fd00::5]:1", true},
		{"169.254.10.1:1", true},
		{"[fe80::1]:1", true},
		{"[::ffff:10.0.0.1]:1", true},
		{"203.0.113.50:1", false},
		{"[2001:db8::1]:1", false},
		{"[::ffff:8.8.8.8]:1", false},
		{"", false},
		{"not-an-addr", false},
		{"example.com:80", false},
	}
	for _, tt := range tests {
		if got := peerRejection(tt.remote) == ""; got != tt.ok {
			t.Errorf("peerRejection(%q) allowed = %v, want %v", tt.remote, got, tt.ok)
		}
	}
}

func TestNewHandler_RejectsPublicPeers(t *testing.T) {
	h := NewHandler(log.Nop(), Options{EnablePprof: true})
	for _, path := range []string{"/-/healthy", "/debug/pprof/", "/metrics"} {
		if rec := get(h, path, "198.51.100.23:443"); rec.Code != http.StatusForbidden {
			t.Errorf("%s from public peer = %d", path, rec.Code)
		}
	}
}

func TestNewHandler_Recover(t *testing.T) {
	panics := 0
	h := NewHandler(log.Nop(), Options{
		UseRecoverMW: true,
		OnPanic:      func() { panics++ },
		Health: health.CheckFunc(func(context.Context) error {
			panic("probe exploded")
		}),
	})
	if rec := get(h, "/-/healthy", "127.0.0.1:5000"); rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
	if panics != 1 {
		t.Errorf("OnPanic calls = %d", panics)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestStart(t *testing.T) {
	port := freePort(t)
	stop, err := Start(context.Background(), log.Nop(), &Options{Port: port})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/-/ready", port))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready = %d", resp.StatusCode)
	}

	if err := stop(context.Background()); err != nil {
		t.Errorf("stop: %v", err)
	}
	if err := stop(context.Background()); err != nil {
		t.Errorf("second stop: %v", err)
	}
	if _, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/-/ready", port)); err == nil {
		t.Error("server still answering after stop")
	}
}

func TestStart_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	_, err = Start(context.Background(), log.Nop(), &Options{Port: ln.Addr().(*net.TCPAddr).Port})
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		t.Fatalf("err = %v, want a listen error", err)
	}
}
