package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/felixgeelhaar/openrpc-go/transport"
)

// ErrTransportClosed is returned by Send after Close.
var ErrTransportClosed = errors.New("client: transport closed")

// NotificationHandler receives server-initiated notifications.
type NotificationHandler func(method string, params json.RawMessage)

// StdioTransport exchanges newline delimited payloads with a peer, usually
// a subprocess. Exchanges are serialized: the server answers lines in order.
type StdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr io.ReadCloser

	onNotify NotificationHandler

	sendMu  sync.Mutex
	replies chan []byte
	readErr error
	done    chan struct{}

	closeOnce sync.Once
	closing   chan struct{}
}

// StdioTransportOption configures a StdioTransport.
type StdioTransportOption func(*StdioTransport)

// WithNotificationHandler sets the callback for notifications pushed by
// the server between replies.
func WithNotificationHandler(fn NotificationHandler) StdioTransportOption {
	return func(t *StdioTransport) {
		t.onNotify = fn
	}
}

// NewStdioTransport spawns command and talks to it over its stdin/stdout.
func NewStdioTransport(command string, args []string, opts ...StdioTransportOption) (*StdioTransport, error) {
	cmd := exec.Command(command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}

	t := newStdioTransport(stdout, stdin, opts)
	t.cmd = cmd
	t.stderr = stderr
	return t, nil
}

// NewStdioConn talks to a peer over an existing reader and writer pair.
func NewStdioConn(r io.Reader, w io.WriteCloser, opts ...StdioTransportOption) *StdioTransport {
	return newStdioTransport(r, w, opts)
}

func newStdioTransport(r io.Reader, w io.WriteCloser, opts []StdioTransportOption) *StdioTransport {
	t := &StdioTransport{
		stdin:   w,
		replies: make(chan []byte, 1),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	go t.readLoop(r)
	return t
}

// Send writes payload as one line and, when wait is set, returns the next
// reply line.
func (t *StdioTransport) Send(ctx context.Context, payload []byte, wait bool) ([]byte, error) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	select {
	case <-t.closing:
		return nil, ErrTransportClosed
	default:
	}

	// Drop a reply left behind by an abandoned exchange.
	select {
	case <-t.replies:
	default:
	}

	line := append(bytes.Clone(bytes.TrimSpace(payload)), '\n')
	if _, err := t.stdin.Write(line); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	if !wait {
		return nil, nil
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case reply := <-t.replies:
		return reply, nil
	case <-t.closing:
		return nil, ErrTransportClosed
	case <-t.done:
		if t.readErr != nil {
			return nil, t.readErr
		}
		return nil, io.ErrUnexpectedEOF
	}
}

// Close closes stdin and, for a spawned process, waits for it to exit.
func (t *StdioTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closing)
		_ = t.stdin.Close()

		if t.cmd == nil {
			return
		}
		if t.cmd.Process != nil {
			_ = t.cmd.Process.Kill()
		}
		<-t.done
		err = t.cmd.Wait()
	})
	return err
}

// Stderr returns the stderr reader for a spawned process, or nil.
func (t *StdioTransport) Stderr() io.Reader {
	return t.stderr
}

func (t *StdioTransport) readLoop(r io.Reader) {
	defer close(t.done)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), transport.DefaultMaxMessageSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if method, params, ok := notification(line); ok {
			if t.onNotify != nil {
				t.onNotify(method, params)
			}
			continue
		}
		select {
		case t.replies <- bytes.Clone(line):
		case <-t.closing:
			return
		}
	}
	t.readErr = scanner.Err()
}

// notification reports whether line is a single server notification.
func notification(line []byte) (string, json.RawMessage, bool) {
	if line[0] != '{' {
		return "", nil, false
	}
	var msg struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(line, &msg); err != nil {
		return "", nil, false
	}
	if msg.Method == "" || msg.ID != nil {
		return "", nil, false
	}
	return msg.Method, msg.Params, true
}
