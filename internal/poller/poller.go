// Package poller drives the read loop: on every tick it pulls one frame
// from the source, renders it and hands the text to the sink.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/farouk15160/canread/internal/canframe"
	"github.com/farouk15160/canread/internal/sink"
	"github.com/farouk15160/canread/internal/source"
)

// DefaultPeriod is used when Options.Period is not positive.
const DefaultPeriod = 100 * time.Millisecond

// ErrStopped is returned by Run and Tick once the poller has stopped.
var ErrStopped = errors.New("poller: stopped")

// State of the poller.
type State int32

const (
	Idle State = iota
	Waiting
	Polling
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Waiting:
		return "waiting"
	case Polling:
		return "polling"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Options tune a Poller.
type Options struct {
	Period time.Duration
	Debug  bool
}

// Stats is a snapshot of the poller counters.
type Stats struct {
	State      string `json:"state"`
	Ticks      uint64 `json:"ticks"`
	Emitted    uint64 `json:"emitted"`
	Skipped    uint64 `json:"skipped"`
	SinkErrors uint64 `json:"sink_errors"`
	LastFrame  string `json:"last_frame,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

// Poller owns its source from construction until it stops.
type Poller struct {
	src    source.Source
	snk    sink.Sink
	period time.Duration
	debug  bool

	tickMu    sync.Mutex // one tick at a time
	state     atomic.Int32
	started   atomic.Bool
	closeOnce sync.Once

	ticks, emitted, skipped, sinkErrors atomic.Uint64

	lastMu    sync.Mutex
	lastFrame string
	lastError string
}

// New creates an idle poller. The poller takes ownership of src and closes
// it when it stops.
func New(src source.Source, snk sink.Sink, opts Options) *Poller {
	if opts.Period <= 0 {
		opts.Period = DefaultPeriod
	}
	p := &Poller{src: src, snk: snk, period: opts.Period, debug: opts.Debug}
	p.state.Store(int32(Idle))
	return p
}

// State returns the current state.
func (p *Poller) State() State {
	return State(p.state.Load())
}

// Period returns the tick period.
func (p *Poller) Period() time.Duration {
	return p.period
}

// Stats returns a snapshot of the counters.
func (p *Poller) Stats() Stats {
	p.lastMu.Lock()
	defer p.lastMu.Unlock()
	return Stats{
		State:      p.State().String(),
		Ticks:      p.ticks.Load(),
		Emitted:    p.emitted.Load(),
		Skipped:    p.skipped.Load(),
		SinkErrors: p.sinkErrors.Load(),
		LastFrame:  p.lastFrame,
		LastError:  p.lastError,
	}
}

// Run ticks every period until ctx is done, Stop is called or the source
// becomes unavailable. Cancellation and Stop return nil, the fatal path
// returns an error wrapping source.ErrSourceUnavailable. The source is closed before Run
// returns. Run can be called once.
func (p *Poller) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) || p.State() == Stopped {
		return ErrStopped
	}
	defer p.Stop()

	ticker := time.NewTicker(p.period)
	defer ticker.Stop()
	p.state.Store(int32(Waiting))
	log.Printf("Poller: Started, polling every %v.", p.period)

	for {
		select {
		case <-ctx.Done():
			log.Println("Poller: Stop signal received. Exiting.")
			return nil
		case <-ticker.C:
			// a pending shutdown wins over a pending tick
			if ctx.Err() != nil {
				log.Println("Poller: Stop signal received. Exiting.")
				return nil
			}
			if err := p.Tick(); err != nil {
				if errors.Is(err, ErrStopped) {
					log.Println("Poller: Stopped. Exiting.")
					return nil
				}
				log.Printf("Poller: Fatal error, no further polls: %v", err)
				return err
			}
		}
	}
}

// Tick performs one receive, decode and emit. Transient failures are
// logged and skip the tick; only a fatal source error is returned, after
// which the poller is stopped.
func (p *Poller) Tick() error {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	if p.State() == Stopped {
		return ErrStopped
	}
	p.state.Store(int32(Polling))
	p.ticks.Add(1)

	raw, err := p.src.Receive()
	if err != nil {
		if errors.Is(err, source.ErrSourceUnavailable) {
			p.setLastError(err)
			p.stopLocked()
			return fmt.Errorf("poller: %w", err)
		}
		p.skip(err)
		return nil
	}

	f, err := canframe.Decode(raw)
	if err != nil {
		p.skip(err)
		return nil
	}
	text := canframe.Render(f)

	if p.debug {
		log.Printf("Poller: Received frame %s", text)
	}
	if err := p.snk.Emit(text); err != nil {
		p.sinkErrors.Add(1)
		log.Printf("Poller: Error handing frame %s to sink: %v", text, err)
	}
	p.emitted.Add(1)

	p.lastMu.Lock()
	p.lastFrame = text
	p.lastMu.Unlock()

	p.state.Store(int32(Waiting))
	return nil
}

// skip records a tick that produced no emission.
func (p *Poller) skip(err error) {
	p.skipped.Add(1)
	p.setLastError(err)
	log.Printf("Poller: Skipping tick: %v", err)
	p.state.Store(int32(Waiting))
}

func (p *Poller) setLastError(err error) {
	p.lastMu.Lock()
	p.lastError = err.Error()
	p.lastMu.Unlock()
}

// Stop moves the poller to Stopped and releases the source, waiting for
// an in-flight tick first. A running poller is normally stopped by
// cancelling the context given to Run.
func (p *Poller) Stop() {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()
	p.stopLocked()
}

func (p *Poller) stopLocked() {
	p.state.Store(int32(Stopped))
	p.closeOnce.Do(func() {
		if err := p.src.Close(); err != nil {
			log.Printf("Poller: Error closing source: %v", err)
		}
		log.Println("Poller: Stopped, source released.")
	})
}
