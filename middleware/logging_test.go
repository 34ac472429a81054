package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/felixgeelhaar/openrpc-go/protocol"
)

type logEntry struct {
	level  string
	msg    string
	fields []Field
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) log(level, msg string, fields []Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level, msg, fields})
}

func (l *recordingLogger) Info(msg string, fields ...Field)  { l.log("info", msg, fields) }
func (l *recordingLogger) Error(msg string, fields ...Field) { l.log("error", msg, fields) }
func (l *recordingLogger) Debug(msg string, fields ...Field) { l.log("debug", msg, fields) }
func (l *recordingLogger) Warn(msg string, fields ...Field)  { l.log("warn", msg, fields) }

func (e logEntry) field(key string) (any, bool) {
	for _, f := range e.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

func TestLogging(t *testing.T) {
	t.Run("logs successful call", func(t *testing.T) {
		logger := &recordingLogger{}
		handler := Logging(logger)(okHandler)

		if _, err := handler(context.Background(), testRequest("add")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(logger.entries) != 1 {
			t.Fatalf("entries = %d, want 1", len(logger.entries))
		}
		e := logger.entries[0]
		if e.level != "info" || e.msg != "call completed" {
			t.Errorf("entry = %+v", e)
		}
		if v, _ := e.field("method"); v != "add" {
			t.Errorf("method field = %v", v)
		}
		if v, _ := e.field("id"); v != "1" {
			t.Errorf("id field = %v", v)
		}
	})

	t.Run("logs protocol error code", func(t *testing.T) {
		logger := &recordingLogger{}
		handler := Logging(logger)(func(ctx context.Context, req *protocol.Request) (protocol.Response, error) {
			return nil, protocol.NewMethodNotFound(req.Method)
		})

		_, _ = handler(context.Background(), testRequest("nope"))
		e := logger.entries[0]
		if e.level != "error" {
			t.Errorf("level = %q, want error", e.level)
		}
		if v, _ := e.field("code"); v != protocol.CodeMethodNotFound {
			t.Errorf("code field = %v", v)
		}
	})

	t.Run("logs plain errors", func(t *testing.T) {
		logger := &recordingLogger{}
		handler := Logging(logger)(func(ctx context.Context, req *protocol.Request) (protocol.Response, error) {
			return nil, errors.New("boom")
		})

		_, _ = handler(context.Background(), &protocol.Request{Method: "note"})
		e := logger.entries[0]
		if v, _ := e.field("error"); v != "boom" {
			t.Errorf("error field = %v", v)
		}
		if v, _ := e.field("notification"); v != true {
			t.Errorf("notification field = %v", v)
		}
	})
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(zerolog.New(&buf))

	logger.Warn("rate limit exceeded", F("method", "add"), F("count", 3), F("ok", false))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %q", buf.String())
	}
	if entry["level"] != "warn" || entry["message"] != "rate limit exceeded" {
		t.Errorf("entry = %v", entry)
	}
	if entry["method"] != "add" || entry["count"] != float64(3) || entry["ok"] != false {
		t.Errorf("fields = %v", entry)
	}

	t.Run("respects level", func(t *testing.T) {
		buf.Reset()
		logger := NewZerologLogger(zerolog.New(&buf).Level(zerolog.InfoLevel))
		logger.Debug("hidden")
		if strings.TrimSpace(buf.String()) != "" {
			t.Errorf("debug entry written at info level: %q", buf.String())
		}
	})
}
