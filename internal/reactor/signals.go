package reactor

import (
	"os"
	"syscall"
)

// The self-pipe carries exactly two kinds of wakeup: a shutdown request
// (from a real SIGINT/SIGTERM) and a timer tick (written directly by the
// ticker goroutine in reactor.go, bypassing signal.Notify entirely since
// nothing needs to send Go itself a real SIGALRM).
const (
	sigByteShutdown byte = 'S'
	sigByteTick     byte = 'T'
)

// signalByte maps an incoming OS signal to the byte relay() writes into
// the self-pipe. Every signal this process asks to be notified of is
// currently a shutdown request.
func signalByte(sig os.Signal) byte {
	switch sig {
	case syscall.SIGINT, syscall.SIGTERM:
		return sigByteShutdown
	default:
		return sigByteShutdown
	}
}
