// Package stdio implements the local-stream transport: newline-delimited
// JSON frames, one envelope per line, over a single long-lived pipe. Logs
// must never touch the output side of the pipe.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// maxFrameSize caps one line of input; anything larger is treated as
// framing corruption.
const maxFrameSize = 10 * 1024 * 1024

type Transport struct {
	scanner *bufio.Scanner

	mu  sync.Mutex
	enc *json.Encoder

	closeOnce sync.Once
	closers   []io.Closer
}

// New frames the given reader/writer pair. Close closes whichever of the two
// supports it.
func New(r io.Reader, w io.Writer) *Transport {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)

	t := &Transport{
		scanner: scanner,
		enc:     json.NewEncoder(w),
	}
	if c, ok := r.(io.Closer); ok {
		t.closers = append(t.closers, c)
	}
	if c, ok := w.(io.Closer); ok {
		t.closers = append(t.closers, c)
	}
	return t
}

// Stdio frames the process's stdin/stdout.
func Stdio() *Transport {
	return New(os.Stdin, os.Stdout)
}

// Receive returns the next non-empty line. io.EOF means the peer closed the
// pipe; any other error means the framing is corrupted (e.g. an oversized
// frame) and the session must end.
func (t *Transport) Receive(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !t.scanner.Scan() {
			if err := t.scanner.Err(); err != nil {
				return nil, fmt.Errorf("stdio framing: %w", err)
			}
			return nil, io.EOF
		}
		line := t.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		// The scanner reuses its buffer across Scan calls.
		frame := make([]byte, len(line))
		copy(frame, line)
		return frame, nil
	}
}

// Send writes one envelope as a single line. The mutex serializes writers:
// concurrently completing requests interleave whole frames, never bytes.
func (t *Transport) Send(msg any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enc.Encode(msg)
}

func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		for _, c := range t.closers {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}
