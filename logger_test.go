package tangguh

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func newBufferedLogger() (*SimpleLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return &SimpleLogger{logger: log.New(&buf, "", 0)}, &buf
}

func TestSimpleLoggerLevels(t *testing.T) {
	l, buf := newBufferedLogger()

	l.Debug("debug msg")
	l.Info("info msg")
	l.Warn("warn msg")
	l.Error("error msg")

	out := buf.String()
	for _, want := range []string{"DEBUG debug msg", "INFO info msg", "WARN warn msg", "ERROR error msg"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSimpleLoggerKeyValues(t *testing.T) {
	l, buf := newBufferedLogger()

	l.Info("request", "method", "GET", "status", 200)

	if got := buf.String(); !strings.Contains(got, "method=GET") || !strings.Contains(got, "status=200") {
		t.Errorf("key=value pairs missing: %s", got)
	}
}

func TestSimpleLoggerOddKeyValues(t *testing.T) {
	l, buf := newBufferedLogger()

	l.Info("request", "method", "GET", "dangling")

	if got := buf.String(); !strings.Contains(got, "dangling") {
		t.Errorf("dangling value should still print: %s", got)
	}
}

func TestDefaultDebugConfig(t *testing.T) {
	cfg := DefaultDebugConfig()

	if cfg.Enabled {
		t.Error("debug logging should be off by default")
	}
	if !cfg.LogRequests || !cfg.LogCache || !cfg.LogRetries || !cfg.LogRefresh || !cfg.LogRateLimit {
		t.Error("all stages should log once enabled")
	}
	if cfg.RequestIDGen == nil {
		t.Fatal("request ID generator must be set")
	}
	if a, b := cfg.RequestIDGen(), cfg.RequestIDGen(); a == "" || a == b {
		t.Errorf("request IDs should be unique and non-empty: %q, %q", a, b)
	}
}
