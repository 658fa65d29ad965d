package httpstate

import (
	"fmt"
)

// Canned response bodies, preserved verbatim from the original's
// error_*_form string literals.
const (
	bodyBadRequest    = "Your request has bad syntax or is inherently impossible to staisfy.\n"
	bodyForbidden     = "You do not have permission to get file form this server.\n"
	bodyNotFound      = "The requested file was not found on this server.\n"
	bodyInternalError = "There was an unusual problem serving the request file.\n"
	bodyEmptyOK       = "<html><body></body></html>"
)

// appendResponse writes format into the write buffer, the Go rendering
// of add_response's vsnprintf-into-fixed-buffer idiom. It reports
// false if the buffer doesn't have room, same as the original.
func (c *Connection) appendResponse(format string, args ...any) bool {
	s := fmt.Sprintf(format, args...)
	if c.writeIdx+len(s) >= len(c.writeBuf)-1 {
		return false
	}
	copy(c.writeBuf[c.writeIdx:], s)
	c.writeIdx += len(s)
	return true
}

func (c *Connection) addStatusLine(status int, title string) bool {
	return c.appendResponse("HTTP/1.1 %d %s\r\n", status, title)
}

func (c *Connection) addHeaders(contentLen int) bool {
	return c.appendResponse("Content-Length: %d\r\n", contentLen) &&
		c.appendResponse("Connection: %s\r\n", c.lingerToken()) &&
		c.appendResponse("\r\n")
}

func (c *Connection) lingerToken() string {
	if c.Linger {
		return "Keep-alive"
	}
	return "close"
}

// ProcessWrite composes the response for outcome into the write buffer
// and iovec list, mirroring process_write's switch. A false return
// means the response didn't fit and the connection should close.
func (c *Connection) ProcessWrite(outcome Outcome) bool {
	switch outcome {
	case InternalError:
		if !(c.addStatusLine(500, "Internal Error") && c.addHeaders(len(bodyInternalError)) && c.appendResponse("%s", bodyInternalError)) {
			return false
		}
	case BadRequest:
		if !(c.addStatusLine(400, "Bad Request") && c.addHeaders(len(bodyBadRequest)) && c.appendResponse("%s", bodyBadRequest)) {
			return false
		}
	case NoResource:
		if !(c.addStatusLine(404, "Not Found") && c.addHeaders(len(bodyNotFound)) && c.appendResponse("%s", bodyNotFound)) {
			return false
		}
	case Forbidden:
		if !(c.addStatusLine(403, "Forbidden") && c.addHeaders(len(bodyForbidden)) && c.appendResponse("%s", bodyForbidden)) {
			return false
		}
	case FileRequest:
		if !c.addStatusLine(200, "OK") {
			return false
		}
		if c.fileSize != 0 {
			if !c.addHeaders(int(c.fileSize)) {
				return false
			}
			c.respIov = [][]byte{
				append([]byte(nil), c.writeBuf[:c.writeIdx]...),
				c.fileData,
			}
			c.bytesToSend = c.writeIdx + int(c.fileSize)
			return true
		}
		if !(c.addHeaders(len(bodyEmptyOK)) && c.appendResponse("%s", bodyEmptyOK)) {
			return false
		}
	default:
		return false
	}

	c.respIov = [][]byte{append([]byte(nil), c.writeBuf[:c.writeIdx]...)}
	c.bytesToSend = c.writeIdx
	return true
}

// WriteResult tells the caller what to do with the socket next.
type WriteResult int

const (
	// WriteDone means the full response was sent; the connection is
	// ready for another request (or should close, per Linger).
	WriteDone WriteResult = iota
	// WriteWouldBlock means the kernel send buffer is full; the caller
	// should wait for the next writable-readiness notification.
	WriteWouldBlock
	// WriteFailed means the connection is broken and should be torn
	// down.
	WriteFailed
)

// WriteVec exposes the current iovec to write — callers drive the
// syscall (writev) themselves and report progress via Advance, keeping
// this package free of direct socket/unix dependencies beyond mmap.
func (c *Connection) WriteVec() [][]byte {
	return c.respIov
}

// Advance records that n bytes were successfully written, trimming the
// iovec list the way write()'s bytes_have_send bookkeeping does: the
// first iovec (the header buffer) is drained before the second (the
// mapped file) is touched.
func (c *Connection) Advance(n int) WriteResult {
	c.bytesSent += n
	c.bytesToSend -= n
	remaining := n
	for remaining > 0 && len(c.respIov) > 0 {
		head := c.respIov[0]
		if remaining < len(head) {
			c.respIov[0] = head[remaining:]
			remaining = 0
			break
		}
		remaining -= len(head)
		c.respIov = c.respIov[1:]
	}
	if c.bytesToSend <= 0 {
		c.unmapFile()
		return WriteDone
	}
	return WriteWouldBlock
}
