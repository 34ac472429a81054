package transport

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"sync"
)

// DefaultMaxMessageSize bounds a single line read by the stdio transport.
const DefaultMaxMessageSize = 4 * 1024 * 1024

// Stdio serves newline delimited JSON-RPC payloads over stdin/stdout.
type Stdio struct {
	in      io.Reader
	out     io.Writer
	maxSize int

	mu sync.Mutex
}

// StdioOption configures a Stdio transport.
type StdioOption func(*Stdio)

// WithStdin sets a custom stdin reader.
func WithStdin(r io.Reader) StdioOption {
	return func(s *Stdio) {
		s.in = r
	}
}

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) StdioOption {
	return func(s *Stdio) {
		s.out = w
	}
}

// WithMaxMessageSize sets the longest line accepted.
func WithMaxMessageSize(n int) StdioOption {
	return func(s *Stdio) {
		s.maxSize = n
	}
}

// NewStdio creates a new stdio transport.
func NewStdio(opts ...StdioOption) *Stdio {
	s := &Stdio{
		in:      os.Stdin,
		out:     os.Stdout,
		maxSize: DefaultMaxMessageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addr returns the transport address.
func (s *Stdio) Addr() string {
	return "stdio"
}

// Serve reads one payload per line until EOF or ctx is canceled. Blank
// lines are ignored.
func (s *Stdio) Serve(ctx context.Context, handler Handler) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), s.maxSize)

	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		for scanner.Scan() {
			line := bytes.Clone(scanner.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			scanErr <- err
		}
	}()

	ctx = ContextWithNotificationSender(ctx, s)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErr:
			return err
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			if out := handler.HandleMessage(ctx, line); out != nil {
				if err := s.writeLine(out); err != nil {
					return err
				}
			}
		}
	}
}

// SendNotification writes a notification line to stdout.
func (s *Stdio) SendNotification(method string, params any) error {
	data, err := encodeNotification(method, params)
	if err != nil {
		return err
	}
	return s.writeLine(data)
}

func (s *Stdio) writeLine(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.out.Write(data); err != nil {
		return err
	}
	_, err := s.out.Write([]byte("\n"))
	return err
}
