package source

import (
	"log"
	"sync"

	"github.com/brutella/can"

	"github.com/farouk15160/canread/internal/canframe"
)

// busSource adapts a brutella/can Bus. The bus publishes every frame it
// reads; only the most recent one is kept for the next Receive.
type busSource struct {
	name string
	bus  *can.Bus

	latest chan can.Frame
	done   chan struct{}
	err    error // set before done is closed

	closeOnce sync.Once
}

// OpenBus connects a brutella/can Bus to the named interface and starts
// publishing its frames in the background.
func OpenBus(iface string) (Source, error) {
	bus, err := can.NewBusForInterfaceWithName(iface)
	if err != nil {
		return nil, unavailable("activate CAN bus %s: %v", iface, err)
	}
	return newBusSource(iface, bus), nil
}

func newBusSource(name string, bus *can.Bus) *busSource {
	s := &busSource{
		name:   name,
		bus:    bus,
		latest: make(chan can.Frame, 1),
		done:   make(chan struct{}),
	}
	bus.SubscribeFunc(s.handleFrame)

	go func() {
		log.Printf("Source: Connecting and publishing on CAN bus %s...", name)
		// blocks until the bus disconnects or fails
		s.err = bus.ConnectAndPublish()
		log.Printf("Source: CAN bus %s stopped: %v", name, s.err)
		close(s.done)
	}()
	return s
}

// handleFrame replaces any frame nobody has picked up yet.
func (s *busSource) handleFrame(frm can.Frame) {
	select {
	case s.latest <- frm:
		return
	default:
	}
	select {
	case <-s.latest:
	default:
	}
	select {
	case s.latest <- frm:
	default:
	}
}

// Receive waits for the next frame published by the bus and repacks it
// into the raw frame layout canframe.Decode reads.
func (s *busSource) Receive() ([]byte, error) {
	select {
	case frm := <-s.latest:
		return canframe.Encode(canframe.Frame{ID: frm.ID, Data: frm.Data}), nil
	case <-s.done:
		return nil, unavailable("CAN bus %s disconnected: %v", s.name, s.err)
	}
}

func (s *busSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		log.Printf("Source: Disconnecting CAN bus %s.", s.name)
		err = s.bus.Disconnect()
	})
	return err
}
