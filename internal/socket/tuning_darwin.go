//go:build darwin

package socket

import "syscall"

const (
	tcpFastOpen  = 0x105
	soNoSigPipe  = 0x1022
)

func applyPlatformOptions(fd int, cfg *Config) {
	_ = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, soNoSigPipe, 1)
}

func applyListenerOptions(fd int, cfg *Config) error {
	if cfg.FastOpen {
		return syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, tcpFastOpen, 256)
	}
	return nil
}
