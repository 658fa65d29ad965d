package httpstate

import (
	"os"
	"path"
	"strings"
)

// UserStore is the login/registration surface request fulfillment
// calls into for CGI codes 2 and 3. Implementations own their own
// synchronization; internal/userstore provides the production one.
type UserStore interface {
	Lookup(username string) (password string, ok bool)
	Register(username, password string) (ok bool, err error)
}

// Canned static pages selected by the single-character routing code,
// the first character of the URL's last path segment, matching
// do_requset's page-jump
// branches. Codes 2 ("login") and 3 ("register") are handled specially
// below since they consult UserStore instead of naming a fixed page.
var cgiPage = map[byte]string{
	'0': "/registor.html",
	'1': "/log.html",
	'5': "/picture.html",
	'6': "/video.html",
	'7': "/fans.html",
	'8': "/judge.html",
}

// doRequest resolves the parsed request to a file under DocRoot,
// running the login/register CGI codes against users first when the
// URL's last path segment calls for it.
func (c *Connection) doRequest(users UserStore) Outcome {
	target := c.url

	code := byte(0)
	if i := strings.LastIndexByte(c.url, '/'); i >= 0 && i+1 < len(c.url) {
		code = c.url[i+1]
	}

	if c.isCGI && (code == '2' || code == '3') {
		name, password, ok := parseCredentials(c.body)
		if !ok {
			return BadRequest
		}
		switch code {
		case '3':
			if _, existing := users.Lookup(name); existing {
				target = "/registerError.html"
			} else {
				if _, err := users.Register(name, password); err != nil {
					return InternalError
				}
				target = "/log.html"
			}
		case '2':
			if pass, found := users.Lookup(name); found && pass == password {
				target = "/welcome.html"
			} else {
				target = "/logError.html"
			}
		}
	} else if page, ok := cgiPage[code]; ok {
		target = page
	}

	return c.serveFile(target)
}

// parseCredentials extracts "user=NAME&password=PASSWORD" from a POST
// body, the Go rendering of do_requset's hand-rolled '&'-delimited
// scan. Unlike the original, which walked raw byte offsets assuming a
// fixed "user=" prefix length, this parses generically and reports
// failure instead of reading past the end of a malformed body.
func parseCredentials(body string) (name, password string, ok bool) {
	const prefix = "user="
	if !strings.HasPrefix(body, prefix) {
		return "", "", false
	}
	rest := body[len(prefix):]
	amp := strings.IndexByte(rest, '&')
	if amp < 0 {
		return "", "", false
	}
	name = rest[:amp]
	tail := rest[amp+1:]
	if i := strings.IndexByte(tail, '='); i >= 0 {
		tail = tail[i+1:]
	}
	password = tail
	if name == "" {
		return "", "", false
	}
	return name, password, true
}

// serveFile stats and, if eligible, mmaps target under DocRoot,
// mirroring do_requset's stat/S_IROTH/S_ISDIR checks.
func (c *Connection) serveFile(target string) Outcome {
	clean := path.Clean("/" + target)
	c.realFile = path.Join(c.DocRoot, clean)

	info, err := os.Stat(c.realFile)
	if err != nil {
		return NoResource
	}
	if info.IsDir() {
		return BadRequest
	}
	if info.Mode().Perm()&0o004 == 0 {
		return Forbidden
	}

	data, err := mapFile(c.realFile, info.Size())
	if err != nil {
		return NoResource
	}
	c.fileData = data
	c.fileSize = info.Size()
	return FileRequest
}
