package socket

import (
	"net"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.NoDelay {
		t.Error("NoDelay should be true by default")
	}
	if !cfg.KeepAlive {
		t.Error("KeepAlive should be true by default")
	}
	if !cfg.DeferAccept {
		t.Error("DeferAccept should be true by default")
	}
}

func TestApplyOnNonTCPConnIsNoop(t *testing.T) {
	c1, c2 := net.Pipe()
	defer c1.Close()
	defer c2.Close()

	if err := Apply(c1, DefaultConfig()); err != nil {
		t.Fatalf("Apply on non-TCP conn should be a no-op, got %v", err)
	}
}

func TestApplyOnRealTCPConn(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	if err := ApplyListener(ln, DefaultConfig()); err != nil {
		t.Fatalf("ApplyListener: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		done <- Apply(conn, DefaultConfig())
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	if err := <-done; err != nil {
		t.Fatalf("Apply on accepted conn: %v", err)
	}
}
