package sink

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Record is one captured emission.
type Record struct {
	Seq      uint64 `cbor:"1,keyasint"`
	UnixNano int64  `cbor:"2,keyasint"`
	Text     string `cbor:"3,keyasint"`
}

// Capture appends every emission as a CBOR record to a writer.
type Capture struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	enc    *cbor.Encoder
	seq    uint64
	now    func() time.Time
}

// NewCapture writes records to w.
func NewCapture(w io.Writer) *Capture {
	c := &Capture{w: w, enc: cbor.NewEncoder(w), now: time.Now}
	if closer, ok := w.(io.Closer); ok {
		c.closer = closer
	}
	return c
}

// OpenCapture appends records to the file at path, creating it if needed.
func OpenCapture(path string) (*Capture, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open capture file '%s': %w", path, err)
	}
	return NewCapture(f), nil
}

func (c *Capture) Emit(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	rec := Record{Seq: c.seq, UnixNano: c.now().UnixNano(), Text: text}
	if err := c.enc.Encode(rec); err != nil {
		return fmt.Errorf("capture record %d: %w", rec.Seq, err)
	}
	return nil
}

func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closer == nil {
		return nil
	}
	err := c.closer.Close()
	c.closer = nil
	return err
}

// ReadCapture decodes every record in r.
func ReadCapture(r io.Reader) ([]Record, error) {
	dec := cbor.NewDecoder(r)
	var records []Record
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("decode capture record %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
}
