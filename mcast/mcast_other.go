//go:build !linux && !darwin

package mcast

// SO_REUSEPORT is not defined on this platform; SO_REUSEADDR alone applies.
func setReusePort(fd int) error {
	return nil
}
