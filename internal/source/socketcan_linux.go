//go:build linux

package source

import (
	"log"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/farouk15160/canread/internal/canframe"
)

// socketCAN reads raw struct can_frame buffers from a CAN_RAW socket.
type socketCAN struct {
	iface string

	mu     sync.Mutex
	fd     int
	closed bool
}

// OpenSocketCAN opens a raw CAN socket bound to iface (e.g. "can0").
// A non-zero timeout sets SO_RCVTIMEO; an expired receive is reported as
// ErrReceive.
func OpenSocketCAN(iface string, timeout time.Duration) (Source, error) {
	netIf, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, unavailable("interface %s: %v", iface, err)
	}

	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, unavailable("socket for %s: %v", iface, err)
	}

	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: netIf.Index}); err != nil {
		unix.Close(fd)
		return nil, unavailable("bind %s: %v", iface, err)
	}

	if timeout > 0 {
		tv := unix.NsecToTimeval(timeout.Nanoseconds())
		if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
			unix.Close(fd)
			return nil, unavailable("set receive timeout on %s: %v", iface, err)
		}
	}

	log.Printf("Source: Bound raw CAN socket to %s (index %d).", iface, netIf.Index)
	return &socketCAN{iface: iface, fd: fd}, nil
}

// Receive reads one frame. Whatever the socket returns is handed back
// unchanged, a short read is left for the decoder to reject.
func (s *socketCAN) Receive() ([]byte, error) {
	s.mu.Lock()
	fd, closed := s.fd, s.closed
	s.mu.Unlock()
	if closed {
		return nil, unavailable("socket on %s is closed", s.iface)
	}

	buf := make([]byte, canframe.Size)
	n, err := unix.Read(fd, buf)
	if err != nil {
		switch err {
		case unix.EBADF, unix.ENODEV, unix.ENXIO, unix.ENETDOWN:
			return nil, unavailable("read %s: %v", s.iface, err)
		default:
			return nil, receiveFailed("read %s: %v", s.iface, err)
		}
	}
	if n < 0 {
		n = 0
	}
	return buf[:n], nil
}

func (s *socketCAN) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	log.Printf("Source: Closing raw CAN socket on %s.", s.iface)
	return unix.Close(s.fd)
}
