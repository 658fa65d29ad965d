// Package socket applies connection-level tuning (TCP_NODELAY,
// keepalive) before a connection's fd is handed to the reactor, plus
// the listener-side options (TCP_DEFER_ACCEPT, TCP_FASTOPEN) that must
// be set before listen() takes effect. SO_REUSEADDR is not set here.
// Platform-specific options live in
// tuning_linux.go/tuning_darwin.go/tuning_other.go.
package socket

import (
	"net"
	"syscall"
)

// Config controls which socket options get applied. Zero values mean
// "leave the system default in place".
type Config struct {
	// NoDelay disables Nagle's algorithm, the same reasoning that led
	// the original to set SO_REUSEADDR for fast local iteration.
	NoDelay bool
	// KeepAlive enables TCP keepalive probing for long-lived
	// connections sitting idle between requests.
	KeepAlive bool
	// DeferAccept avoids waking the reactor until the client has data
	// ready, when the platform supports it.
	DeferAccept bool
	// FastOpen enables TCP Fast Open on the listening socket.
	FastOpen bool
}

// DefaultConfig mirrors the handful of options the original always
// applied, plus the extras this module adds.
func DefaultConfig() *Config {
	return &Config{
		NoDelay:     true,
		KeepAlive:   true,
		DeferAccept: true,
		FastOpen:    true,
	}
}

// Apply tunes an accepted connection. Only *net.TCPConn is tunable;
// other net.Conn implementations are left untouched.
func Apply(conn net.Conn, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		return err
	}

	var lastErr error
	err = rawConn.Control(func(fd uintptr) {
		if cfg.NoDelay {
			if err := syscall.SetsockoptInt(int(fd), syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1); err != nil {
				lastErr = err
				return
			}
		}
		if cfg.KeepAlive {
			_ = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_KEEPALIVE, 1)
		}
		applyPlatformOptions(int(fd), cfg)
	})
	if err != nil {
		return err
	}
	return lastErr
}

// ApplyListener sets options that must be in place before Listen/Accept
// start, such as TCP_DEFER_ACCEPT and TCP_FASTOPEN.
func ApplyListener(listener net.Listener, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	tcpListener, ok := listener.(*net.TCPListener)
	if !ok {
		return nil
	}
	file, err := tcpListener.File()
	if err != nil {
		return err
	}
	defer file.Close()
	return applyListenerOptions(int(file.Fd()), cfg)
}
