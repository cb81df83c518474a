package source

import (
	"bufio"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/farouk15160/canread/internal/canframe"
)

// candumpSource replays a candump log, one line per Receive.
type candumpSource struct {
	path string
	loop bool

	mu      sync.Mutex
	file    *os.File
	scanner *bufio.Scanner
	read    int // frames read since the last rewind
	closed  bool
}

// OpenCandump opens a candump log for replay. With loop set the file is
// rewound at EOF, otherwise EOF makes the source unavailable.
func OpenCandump(path string, loop bool) (Source, error) {
	if path == "" {
		return nil, unavailable("no candump file configured")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, unavailable("open candump file: %v", err)
	}
	log.Printf("Source: Replaying candump file %s (loop: %t).", path, loop)
	return &candumpSource{
		path:    path,
		loop:    loop,
		file:    f,
		scanner: bufio.NewScanner(f),
	}, nil
}

func (s *candumpSource) Receive() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, unavailable("candump file %s is closed", s.path)
	}

	for {
		for s.scanner.Scan() {
			line := strings.TrimSpace(s.scanner.Text())
			if line == "" {
				continue
			}
			s.read++
			f, err := canframe.Parse(line)
			if err != nil {
				return nil, receiveFailed("%s: %v", s.path, err)
			}
			return canframe.Encode(f), nil
		}
		// a scanner stops for good after its first error, so the replay
		// cannot make progress any more
		if err := s.scanner.Err(); err != nil {
			return nil, unavailable("read %s: %v", s.path, err)
		}

		if !s.loop {
			return nil, unavailable("end of candump file %s", s.path)
		}
		if s.read == 0 {
			return nil, unavailable("candump file %s holds no frames", s.path)
		}
		if _, err := s.file.Seek(0, io.SeekStart); err != nil {
			return nil, unavailable("rewind %s: %v", s.path, err)
		}
		s.scanner = bufio.NewScanner(s.file)
		s.read = 0
	}
}

func (s *candumpSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}
