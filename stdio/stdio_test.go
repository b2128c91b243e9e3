package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/esmcp/codec"
)

func TestReceiveFramesLines(t *testing.T) {
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n\n" + `{"jsonrpc":"2.0","id":2,"method":"ping"}` + "\n")
	tr := New(in, &bytes.Buffer{})

	frame, err := tr.Receive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Contains(frame, []byte(`"id":1`)) {
		t.Errorf("unexpected first frame: %s", frame)
	}

	// The empty line between frames is skipped.
	frame, err = tr.Receive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Contains(frame, []byte(`"id":2`)) {
		t.Errorf("unexpected second frame: %s", frame)
	}

	if _, err := tr.Receive(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestReceiveCopiesScannerBuffer(t *testing.T) {
	in := strings.NewReader(`{"jsonrpc":"2.0","id":"a","method":"ping"}` + "\n" + `{"jsonrpc":"2.0","id":"bbbbbbbbbbbbbbbbbbbb","method":"ping"}` + "\n")
	tr := New(in, &bytes.Buffer{})

	first, err := tr.Receive(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := string(first)

	if _, err := tr.Receive(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(first) != want {
		t.Error("first frame mutated by the next Receive")
	}
}

func TestOversizedFrameIsFramingCorruption(t *testing.T) {
	huge := strings.Repeat("x", maxFrameSize+1)
	tr := New(strings.NewReader(huge), &bytes.Buffer{})

	_, err := tr.Receive(context.Background())
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("expected a framing error, got %v", err)
	}
}

func TestSendWritesOneFramePerLine(t *testing.T) {
	var out bytes.Buffer
	tr := New(strings.NewReader(""), &out)

	if err := tr.Send(codec.NewResponse(1, map[string]any{"ok": true})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tr.Send(codec.NewResponse(2, map[string]any{"ok": true})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), out.String())
	}
	for _, line := range lines {
		var resp codec.JSONRPCResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Errorf("line is not one valid envelope: %v", err)
		}
	}
}

// Concurrent senders must interleave whole frames, never bytes.
func TestSendConcurrentFramesStayIntact(t *testing.T) {
	const n = 50

	var out bytes.Buffer
	tr := New(strings.NewReader(""), &out)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := tr.Send(codec.NewResponse(i, map[string]any{"payload": strings.Repeat("p", 256)})); err != nil {
				t.Errorf("send %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	scanner := bufio.NewScanner(&out)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)
	count := 0
	for scanner.Scan() {
		var resp codec.JSONRPCResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("corrupted frame %d: %v", count, err)
		}
		count++
	}
	if count != n {
		t.Errorf("expected %d frames, got %d", n, count)
	}
}

func TestReceiveHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := New(strings.NewReader(fmt.Sprintf("%s\n", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)), &bytes.Buffer{})
	if _, err := tr.Receive(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
