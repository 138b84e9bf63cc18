//go:build linux || darwin

package mcast

import (
	"syscall"
)

// soReusePort is the linux SO_REUSEPORT value on the common architectures;
// package syscall does not export the constant for linux.
const soReusePort = 0xf

func setReusePort(fd int) error {
	return syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, soReusePort, 1)
}
