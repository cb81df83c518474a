//go:build !linux

package source

import (
	"runtime"
	"time"
)

// OpenSocketCAN is only supported on Linux.
func OpenSocketCAN(iface string, _ time.Duration) (Source, error) {
	return nil, unavailable("raw CAN sockets are not supported on %s (interface %s)", runtime.GOOS, iface)
}
