package testutil

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/felixgeelhaar/openrpc-go/protocol"
	"github.com/felixgeelhaar/openrpc-go/transport"
)

// Exchange is one payload and the reply it produced. Reply is empty when
// nothing was written back.
type Exchange struct {
	Payload string
	Reply   string
}

// Recorder is a transport.Handler that records every exchange with next.
type Recorder struct {
	next transport.Handler

	mu  sync.Mutex
	log []Exchange
}

// NewRecorder wraps next.
func NewRecorder(next transport.Handler) *Recorder {
	return &Recorder{next: next}
}

// HandleMessage implements transport.Handler.
func (r *Recorder) HandleMessage(ctx context.Context, msg []byte) []byte {
	out := r.next.HandleMessage(ctx, msg)
	r.mu.Lock()
	r.log = append(r.log, Exchange{Payload: string(msg), Reply: string(out)})
	r.mu.Unlock()
	return out
}

// Exchanges returns a copy of the recording.
func (r *Recorder) Exchanges() []Exchange {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Exchange(nil), r.log...)
}

// Payloads returns the recorded inbound payloads.
func (r *Recorder) Payloads() []string {
	var out []string
	for _, e := range r.Exchanges() {
		out = append(out, e.Payload)
	}
	return out
}

// Replies returns the recorded replies.
func (r *Recorder) Replies() []string {
	var out []string
	for _, e := range r.Exchanges() {
		out = append(out, e.Reply)
	}
	return out
}

// Reset clears the recording.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.log = nil
	r.mu.Unlock()
}

// MockStdio scripts a stdio session: queue input lines, serve them with a
// stdio transport, then read back the output lines.
type MockStdio struct {
	mu     sync.Mutex
	in     bytes.Buffer
	out    bytes.Buffer
	nextID int64
	reader *bufio.Reader
}

// NewMockStdio creates an empty session.
func NewMockStdio() *MockStdio {
	return &MockStdio{}
}

// Input is the reader to use as stdin.
func (m *MockStdio) Input() io.Reader { return &m.in }

// Output is the writer to use as stdout.
func (m *MockStdio) Output() io.Writer { return &m.out }

// WriteLine queues a raw payload.
func (m *MockStdio) WriteLine(payload string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.in.WriteString(payload + "\n")
}

// SendRequest queues a request with the next id, starting at 1.
func (m *MockStdio) SendRequest(method string, params any) error {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.mu.Unlock()

	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return err
	}
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	m.WriteLine(string(data))
	return nil
}

// ReadLine returns the next output line without its newline, or io.EOF.
func (m *MockStdio) ReadLine() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reader == nil {
		m.reader = bufio.NewReader(&m.out)
	}
	line, err := m.reader.ReadBytes('\n')
	if len(line) == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}
	return bytes.TrimSuffix(line, []byte("\n")), nil
}

// ReadResponse decodes the next output line as a single response.
func (m *MockStdio) ReadResponse() (protocol.Response, error) {
	line, err := m.ReadLine()
	if err != nil {
		return nil, err
	}
	return protocol.DecodeResponse(line)
}
