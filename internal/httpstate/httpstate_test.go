package httpstate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeUsers struct {
	data map[string]string
}

func newFakeUsers() *fakeUsers { return &fakeUsers{data: map[string]string{}} }

func (f *fakeUsers) Lookup(name string) (string, bool) {
	p, ok := f.data[name]
	return p, ok
}

func (f *fakeUsers) Register(name, password string) (bool, error) {
	f.data[name] = password
	return true, nil
}

func feed(c *Connection, data string) {
	n := copy(c.ReadBuffer(), data)
	c.CommitRead(n)
}

func TestProcessReadSimpleGet(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	c := NewConnection(3, nil, dir, ModeLevelTriggered)
	feed(c, "GET /index.html HTTP/1.1\r\nHost: example.com\r\n\r\n")

	got := c.ProcessRead(newFakeUsers())
	if got != FileRequest {
		t.Fatalf("ProcessRead = %v, want FileRequest", got)
	}
	if c.host != "example.com" {
		t.Fatalf("host = %q, want example.com", c.host)
	}
}

func TestProcessReadWaitsForMoreData(t *testing.T) {
	c := NewConnection(3, nil, t.TempDir(), ModeLevelTriggered)
	feed(c, "GET /index.html HTTP/1.1\r\nHost: exa")

	got := c.ProcessRead(newFakeUsers())
	if got != NoRequest {
		t.Fatalf("ProcessRead = %v, want NoRequest on partial header", got)
	}
}

func TestProcessReadBadRequestMethod(t *testing.T) {
	c := NewConnection(3, nil, t.TempDir(), ModeLevelTriggered)
	feed(c, "FROB / HTTP/1.1\r\n\r\n")

	if got := c.ProcessRead(newFakeUsers()); got != BadRequest {
		t.Fatalf("ProcessRead = %v, want BadRequest", got)
	}
}

func TestProcessReadMissingFile(t *testing.T) {
	c := NewConnection(3, nil, t.TempDir(), ModeLevelTriggered)
	feed(c, "GET /nope.html HTTP/1.1\r\n\r\n")

	if got := c.ProcessRead(newFakeUsers()); got != NoResource {
		t.Fatalf("ProcessRead = %v, want NoResource", got)
	}
}

func TestRootURLRewritesToJudgePage(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "judge.html"), []byte("judge"), 0o644)
	c := NewConnection(3, nil, dir, ModeLevelTriggered)
	feed(c, "GET / HTTP/1.1\r\n\r\n")

	if got := c.ProcessRead(newFakeUsers()); got != FileRequest {
		t.Fatalf("ProcessRead = %v, want FileRequest", got)
	}
	if c.url != "/judge.html" {
		t.Fatalf("url = %q, want /judge.html", c.url)
	}
}

func TestHTTPPrefixStrippedAtSevenBytes(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.html"), []byte("a"), 0o644)
	c := NewConnection(3, nil, dir, ModeLevelTriggered)
	feed(c, "GET http://example.com/a.html HTTP/1.1\r\n\r\n")

	if got := c.ProcessRead(newFakeUsers()); got != FileRequest {
		t.Fatalf("ProcessRead = %v, want FileRequest", got)
	}
	if c.url != "/a.html" {
		t.Fatalf("url = %q, want /a.html", c.url)
	}
}

func TestRegisterThenLoginCGIFlow(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "log.html"), []byte("log"), 0o644)
	os.WriteFile(filepath.Join(dir, "welcome.html"), []byte("welcome"), 0o644)
	users := newFakeUsers()

	body := "user=alice&password=secret"
	c := NewConnection(3, nil, dir, ModeLevelTriggered)
	req := "POST /3 HTTP/1.1\r\nContent-Length: " + itoa(len(body)) + "\r\n\r\n" + body
	feed(c, req)

	if got := c.ProcessRead(users); got != FileRequest {
		t.Fatalf("register ProcessRead = %v, want FileRequest", got)
	}
	if c.realFile != filepath.Join(dir, "log.html") {
		t.Fatalf("realFile = %q, want log.html after fresh registration", c.realFile)
	}

	c.Reset()
	feed(c, "POST /2 HTTP/1.1\r\nContent-Length: "+itoa(len(body))+"\r\n\r\n"+body)
	if got := c.ProcessRead(users); got != FileRequest {
		t.Fatalf("login ProcessRead = %v, want FileRequest", got)
	}
	if c.realFile != filepath.Join(dir, "welcome.html") {
		t.Fatalf("realFile = %q, want welcome.html after correct login", c.realFile)
	}
}

func TestProcessWriteBuildsFileResponse(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.html"), []byte("hello file"), 0o644)
	c := NewConnection(3, nil, dir, ModeLevelTriggered)
	feed(c, "GET /a.html HTTP/1.1\r\n\r\n")

	outcome := c.ProcessRead(newFakeUsers())
	if outcome != FileRequest {
		t.Fatalf("ProcessRead = %v, want FileRequest", outcome)
	}
	if !c.ProcessWrite(outcome) {
		t.Fatalf("ProcessWrite returned false")
	}
	iov := c.WriteVec()
	if len(iov) != 2 {
		t.Fatalf("expected 2 iovecs (header + mapped file), got %d", len(iov))
	}
	if !strings.Contains(string(iov[0]), "200 OK") {
		t.Fatalf("header iovec missing status line: %q", iov[0])
	}
	if string(iov[1]) != "hello file" {
		t.Fatalf("file iovec = %q, want file contents", iov[1])
	}
}

func TestAdvanceDrainsHeaderThenFile(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.html"), []byte("XY"), 0o644)
	c := NewConnection(3, nil, dir, ModeLevelTriggered)
	feed(c, "GET /a.html HTTP/1.1\r\n\r\n")
	outcome := c.ProcessRead(newFakeUsers())
	c.ProcessWrite(outcome)

	headerLen := len(c.WriteVec()[0])
	if res := c.Advance(headerLen); res != WriteWouldBlock {
		t.Fatalf("Advance(header) = %v, want WriteWouldBlock (file bytes remain)", res)
	}
	if res := c.Advance(2); res != WriteDone {
		t.Fatalf("Advance(file) = %v, want WriteDone", res)
	}
}

func TestForbiddenOnUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "secret.html")
	os.WriteFile(p, []byte("shh"), 0o600)
	c := NewConnection(3, nil, dir, ModeLevelTriggered)
	feed(c, "GET /secret.html HTTP/1.1\r\n\r\n")

	if got := c.ProcessRead(newFakeUsers()); got != Forbidden {
		t.Fatalf("ProcessRead = %v, want Forbidden for world-unreadable file", got)
	}
}

func TestProcessReadRejectsOversizedContentLength(t *testing.T) {
	c := NewConnection(3, nil, t.TempDir(), ModeLevelTriggered)
	feed(c, "POST /3 HTTP/1.1\r\nContent-Length: "+itoa(MaxBody+1)+"\r\n\r\n")

	if got := c.ProcessRead(newFakeUsers()); got != BadRequest {
		t.Fatalf("ProcessRead = %v, want BadRequest for Content-Length over MaxBody", got)
	}
}

func TestProcessReadAcceptsContentLengthAtMax(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.html"), []byte("a"), 0o644)
	body := strings.Repeat("a", MaxBody)
	c := NewConnection(3, nil, dir, ModeLevelTriggered)
	feed(c, "GET /a.html HTTP/1.1\r\nContent-Length: "+itoa(MaxBody)+"\r\n\r\n"+body)

	if got := c.ProcessRead(newFakeUsers()); got != FileRequest {
		t.Fatalf("ProcessRead = %v, want FileRequest for Content-Length == MaxBody", got)
	}
}

func TestProcessReadRejectsRequestLineThatNeverTerminates(t *testing.T) {
	c := NewConnection(3, nil, t.TempDir(), ModeLevelTriggered)
	// Fill the entire read buffer with a request line that never gets a
	// terminating CRLF: ReadFull should force BadRequest rather than
	// leaving the connection to idle forever.
	feed(c, "GET /"+strings.Repeat("a", ReadBufSize))

	if got := c.ProcessRead(newFakeUsers()); got != BadRequest {
		t.Fatalf("ProcessRead = %v, want BadRequest once the read buffer fills with no CRLF", got)
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := ""
	for n > 0 {
		digits = string(rune('0'+n%10)) + digits
		n /= 10
	}
	return digits
}
