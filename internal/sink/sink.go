// Package sink delivers rendered frames to their consumers.
package sink

import (
	"errors"
	"log"
)

// Sink accepts one rendered frame. Delivery is fire-and-forget: an error
// reports a failed hand-off, it is never retried.
type Sink interface {
	Emit(text string) error
}

// Func adapts an ordinary function to a Sink.
type Func func(text string) error

func (f Func) Emit(text string) error { return f(text) }

// Multi hands every emission to all of its sinks.
type Multi []Sink

func (m Multi) Emit(text string) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes emissions to a standard logger.
type Log struct {
	Logger *log.Logger // nil uses the standard logger
}

func (l Log) Emit(text string) error {
	if l.Logger == nil {
		log.Printf("Frame: %s", text)
		return nil
	}
	l.Logger.Printf("Frame: %s", text)
	return nil
}
