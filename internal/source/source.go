// Package source provides the frame sources the poller reads raw CAN
// frames from.
package source

import (
	"time"

	"github.com/pkg/errors"

	"github.com/farouk15160/canread/internal/config"
)

var (
	// ErrSourceUnavailable means the interface is not bound, went away or the
	// source was closed. It is fatal to the poller.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrReceive is a transient failure of a single receive.
	ErrReceive = errors.New("receive error")
)

// Source yields one raw frame per call. Receive blocks for as long as the
// implementation decides to; the caller imposes no deadline.
type Source interface {
	Receive() ([]byte, error)
	Close() error
}

// Open creates the source selected by cfg.Mode for the given interface.
func Open(iface string, cfg config.Source) (Source, error) {
	switch cfg.Mode {
	case config.ModeRaw, "":
		return OpenSocketCAN(iface, time.Duration(cfg.ReceiveTimeoutMs)*time.Millisecond)
	case config.ModeBus:
		return OpenBus(iface)
	case config.ModeCandump:
		return OpenCandump(cfg.CandumpFile, cfg.Loop)
	default:
		return nil, errors.Wrapf(ErrSourceUnavailable, "unknown source mode %q", cfg.Mode)
	}
}

func unavailable(format string, args ...interface{}) error {
	return errors.Wrapf(ErrSourceUnavailable, format, args...)
}

func receiveFailed(format string, args ...interface{}) error {
	return errors.Wrapf(ErrReceive, format, args...)
}
