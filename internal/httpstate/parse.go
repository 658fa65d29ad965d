package httpstate

import "strings"

// parseLine scans readBuf[checkedIdx:readIdx] for one CRLF-terminated
// line, exactly as http_conn::parse_line: a '\n' found at the scan
// position completes the line only if the byte before it is '\r' (a
// CRLF split across two reads); a bare LF, or a CR followed by anything
// but LF, is LineBad. It returns LineOpen when the buffer ends mid-line
// so the caller waits for more bytes.
func (c *Connection) parseLine() LineStatus {
	for ; c.checkedIdx < c.readIdx; c.checkedIdx++ {
		b := c.readBuf[c.checkedIdx]
		switch b {
		case '\r':
			if c.checkedIdx+1 == c.readIdx {
				return LineOpen
			}
			if c.readBuf[c.checkedIdx+1] == '\n' {
				c.readBuf[c.checkedIdx] = 0
				c.readBuf[c.checkedIdx+1] = 0
				c.checkedIdx += 2
				return LineOK
			}
			return LineBad
		case '\n':
			if c.checkedIdx > 0 && c.readBuf[c.checkedIdx-1] == '\r' {
				c.readBuf[c.checkedIdx-1] = 0
				c.readBuf[c.checkedIdx] = 0
				c.checkedIdx++
				return LineOK
			}
			return LineBad
		}
	}
	return LineOpen
}

// currentLine returns the NUL-terminated line parseLine just produced,
// i.e. readBuf[startLine:checkedIdx) up to its first NUL.
func (c *Connection) currentLine() string {
	raw := c.readBuf[c.startLine:c.checkedIdx]
	if i := indexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	c.startLine = c.checkedIdx
	return string(raw)
}

func indexByte(b []byte, v byte) int {
	for i, x := range b {
		if x == v {
			return i
		}
	}
	return -1
}

// ProcessRead drives the main state machine across as many complete
// lines as the read buffer currently holds, mirroring process_read's
// while loop. When the buffer holds no further complete line (or not
// yet the whole body) it returns NoRequest so the caller knows to wait
// for more bytes; the original's switch had a default case that fell out of the
// function without a return (a real bug, flagged in the accompanying
// design notes) — here every path returns a terminal Outcome.
func (c *Connection) ProcessRead(users UserStore) Outcome {
	for {
		// The body is framed by Content-Length, not by line breaks, so
		// it never goes through the line sub-state machine below — the
		// original ran it through parse_line anyway, which only
		// happened to work because its sample POST bodies ended in a
		// CRLF; that coincidence isn't reproduced here.
		if c.mainState == StateBody {
			if ret := c.parseBody(); ret == GetRequest {
				return c.doRequest(users)
			}
			return NoRequest
		}

		switch c.parseLine() {
		case LineBad:
			return BadRequest
		case LineOpen:
			// No complete line yet. If the buffer has no room left for
			// more bytes, this line can never complete (ReadFull mirrors
			// the point at which the original's read() refuses to recv
			// further) — spec treats any buffer overflow as malformed
			// rather than grown, so a request line or header block that
			// never terminates within ReadBufSize is rejected here
			// instead of idling until the connection's idle timer
			// eventually reaps it.
			if c.ReadFull() {
				return BadRequest
			}
			return NoRequest
		}
		line := c.currentLine()

		switch c.mainState {
		case StateRequestLine:
			if ret := c.parseRequestLine(line); ret == BadRequest {
				return BadRequest
			}
		case StateHeader:
			ret := c.parseHeaderLine(line)
			if ret == BadRequest {
				return BadRequest
			}
			if ret == GetRequest {
				return c.doRequest(users)
			}
		default:
			return InternalError
		}
	}
}

// parseRequestLine parses "METHOD URL HTTP/1.1", matching
// parse_request_line's normalization: the Host-prefixed "http://" form
// is stripped at its correct 7-byte length (the original's accompanying
// "https" branch checked an impossible 8-byte "http:s//" typo and so
// never fired; that dead branch is simply not reproduced here), and a
// bare "/" is rewritten to the judge page.
func (c *Connection) parseRequestLine(line string) Outcome {
	sp := strings.IndexAny(line, " \t")
	if sp < 0 {
		return BadRequest
	}
	method := line[:sp]
	rest := strings.TrimLeft(line[sp+1:], " \t")

	switch {
	case strings.EqualFold(method, "GET"):
		c.method = MethodGet
	case strings.EqualFold(method, "POST"):
		c.method = MethodPost
		c.isCGI = true
	default:
		return BadRequest
	}

	sp2 := strings.IndexAny(rest, " \t")
	if sp2 < 0 {
		return BadRequest
	}
	url := rest[:sp2]
	version := strings.TrimLeft(rest[sp2+1:], " \t")
	if !strings.EqualFold(version, "HTTP/1.1") {
		return BadRequest
	}
	c.version = version

	if len(url) >= 7 && strings.EqualFold(url[:7], "http://") {
		url = url[7:]
		if i := strings.IndexByte(url, '/'); i >= 0 {
			url = url[i:]
		} else {
			url = ""
		}
	}
	if url == "" || url[0] != '/' {
		return BadRequest
	}
	if url == "/" {
		url = "/judge.html"
	}
	c.url = url

	c.mainState = StateHeader
	return NoRequest
}

// parseHeaderLine consumes one header field, or the blank line ending
// the header block. Host is matched at its true 5-byte prefix (the
// original compared against a 15-byte constant that could never match
// "Host:", silently discarding every Host header — not reproduced
// here). Unrecognized headers are ignored rather than merely logged;
// the original only logged them. Content-Length is bounded to MaxBody;
// a larger declared length is rejected outright rather than accepted
// and left to wait for bytes that can never arrive in the buffer.
func (c *Connection) parseHeaderLine(line string) Outcome {
	if line == "" {
		if c.contentLen != 0 {
			c.mainState = StateBody
			return NoRequest
		}
		return GetRequest
	}
	switch {
	case len(line) >= 11 && strings.EqualFold(line[:11], "Connection:"):
		v := strings.TrimLeft(line[11:], " \t")
		c.Linger = strings.EqualFold(v, "keep-alive")
	case len(line) >= 5 && strings.EqualFold(line[:5], "Host:"):
		c.host = strings.TrimLeft(line[5:], " \t")
	case len(line) >= 15 && strings.EqualFold(line[:15], "Content-Length:"):
		v := strings.TrimSpace(line[15:])
		n := 0
		for _, d := range v {
			if d < '0' || d > '9' {
				n = 0
				break
			}
			n = n*10 + int(d-'0')
			if n > MaxBody {
				return BadRequest
			}
		}
		c.contentLen = n
	}
	return NoRequest
}

// parseBody waits for contentLen bytes to have arrived since the body
// started, then captures them as the request body (used by the login
// and register CGI codes).
func (c *Connection) parseBody() Outcome {
	if c.readIdx >= c.contentLen+c.startLine {
		c.body = string(c.readBuf[c.startLine : c.startLine+c.contentLen])
		return GetRequest
	}
	return NoRequest
}
