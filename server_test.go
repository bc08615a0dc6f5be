package culturessh

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestNewRequiresAService(t *testing.T) {
	if _, err := New(ServerConfig{}, ServerDeps{}); err == nil {
		t.Fatalf("expected error without services")
	}
}

func TestServerStopBeforeStart(t *testing.T) {
	srv, err := New(ServerConfig{}, ServerDeps{}, WithHTTP())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := srv.Stop(context.Background()); err != nil {
		t.Fatalf("stop before start: %v", err)
	}
	if err := srv.Wait(); err == nil {
		t.Fatalf("expected wait to fail before start")
	}
}

func TestServerStartStop(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv, err := New(ServerConfig{HTTP: HTTPConfig{Addr: ln.Addr().String()}}, ServerDeps{HTTPListener: ln}, WithHTTP())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Fatalf("expected second start to fail")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := srv.Wait(); err != nil {
		t.Fatalf("wait after stop: %v", err)
	}
}
