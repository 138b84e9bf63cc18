package sock

import (
	"errors"
	"net"
	"os"
	"syscall"
)

var ErrBadKind = errors.New("Error Unsupported Socket Kind")
var ErrNotConnected = errors.New("Error Socket Not Connected")
var ErrNotListening = errors.New("Error Socket Not Listening")
var ErrTimeout = errors.New("Error Read Deadline Expired")
var ErrSocket = errors.New("Error Terminal Socket Failure")

// IsNoData reports whether err is the non-blocking "nothing pending"
// condition (the deadline-based analogue of EAGAIN).
func IsNoData(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// IsPipe reports whether err indicates the remote end closed the
// connection under a send, which triggers peer eviction.
func IsPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, net.ErrClosed)
}

// IsTerminal reports whether err is a socket failure that will not recover
// on retry (peer closed, reset, bad descriptor).
func IsTerminal(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ENOTCONN) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.EBADF) ||
		errors.Is(err, syscall.EINVAL) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, net.ErrClosed)
}
