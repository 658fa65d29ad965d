package reactor

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yourusername/webserver/internal/httpstate"
	"github.com/yourusername/webserver/internal/workerpool"
)

type fakeUsers struct{ data map[string]string }

func (f *fakeUsers) Lookup(name string) (string, bool) {
	p, ok := f.data[name]
	return p, ok
}

func (f *fakeUsers) Register(name, password string) (bool, error) {
	if _, ok := f.data[name]; ok {
		return false, nil
	}
	f.data[name] = password
	return true, nil
}

func startTestReactor(t *testing.T, concurrency workerpool.Mode) (*Reactor, string) {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "judge.html"), []byte("<html>ok</html>"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	r := New(Config{
		ListenAddr:  "127.0.0.1:0",
		DocRoot:     root,
		Mode:        httpstate.ModeLevelTriggered,
		Concurrency: concurrency,
		WorkerCount: 2,
		MaxTasks:    64,
		IdleTimeout: time.Minute,
	}, &fakeUsers{data: map[string]string{}}, nil)

	if err := r.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("reactor did not shut down in time")
		}
	})

	return r, r.Addr().String()
}

func sendRequest(t *testing.T, addr, raw string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial %s: %v", addr, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	if _, err := conn.Write([]byte(raw)); err != nil {
		t.Fatalf("write request: %v", err)
	}

	var sb strings.Builder
	r := bufio.NewReader(conn)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return sb.String()
}

func TestReactorServesStaticFileProactor(t *testing.T) {
	_, addr := startTestReactor(t, workerpool.ModeProactor)
	resp := sendRequest(t, addr, "GET / HTTP/1.1\r\nHost: localhost\r\nConnection: close\r\n\r\n")
	if !strings.Contains(resp, "200 OK") {
		t.Fatalf("expected 200 OK, got:\n%s", resp)
	}
	if !strings.Contains(resp, "<html>ok</html>") {
		t.Fatalf("expected fixture body, got:\n%s", resp)
	}
}

func TestReactorServesStaticFileReactorMode(t *testing.T) {
	_, addr := startTestReactor(t, workerpool.ModeReactor)
	resp := sendRequest(t, addr, "GET / HTTP/1.1\r\nHost: localhost\r\nConnection: close\r\n\r\n")
	if !strings.Contains(resp, "200 OK") {
		t.Fatalf("expected 200 OK, got:\n%s", resp)
	}
}

func TestReactorReturnsNotFoundForMissingFile(t *testing.T) {
	_, addr := startTestReactor(t, workerpool.ModeProactor)
	resp := sendRequest(t, addr, "GET /nope.html HTTP/1.1\r\nHost: localhost\r\nConnection: close\r\n\r\n")
	if !strings.Contains(resp, "404") {
		t.Fatalf("expected 404, got:\n%s", resp)
	}
}

func TestReactorKeepAliveServesMultipleRequests(t *testing.T) {
	_, addr := startTestReactor(t, workerpool.ModeProactor)
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	req := "GET / HTTP/1.1\r\nHost: localhost\r\nConnection: keep-alive\r\n\r\n"
	r := bufio.NewReader(conn)

	for i := 0; i < 2; i++ {
		if _, err := conn.Write([]byte(req)); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		status, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read status line %d: %v", i, err)
		}
		if !strings.Contains(status, "200") {
			t.Fatalf("request %d: expected 200, got %q", i, status)
		}
		var contentLen int
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				t.Fatalf("read headers %d: %v", i, err)
			}
			line = strings.TrimRight(line, "\r\n")
			if line == "" {
				break
			}
			fmt.Sscanf(line, "Content-Length: %d", &contentLen)
		}
		body := make([]byte, contentLen)
		if _, err := r.Read(body); err != nil && contentLen > 0 {
			t.Fatalf("read body %d: %v", i, err)
		}
	}
}
