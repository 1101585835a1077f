package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestStdLogger(t *testing.T) {
	t.Run("TextFormat", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.Info("hello %s", "world")

		output := buf.String()
		if !strings.HasPrefix(output, "[SIMPLEJORM] ") || !strings.Contains(output, "INFO: hello world") {
			t.Errorf("Unexpected text output: %s", output)
		}
	})

	t.Run("JSONFormat", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetFormat(LogFormatJSON)
		l.WithFields(map[string]any{"query_id": "abc"}).Warn("slow")

		var data map[string]any
		if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
			t.Fatalf("Failed to unmarshal JSON output: %v", err)
		}
		if data["level"] != "WARN" || data["msg"] != "slow" || data["query_id"] != "abc" {
			t.Errorf("Unexpected JSON output: %v", data)
		}
	})

	t.Run("SQLJSON", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetFormat(LogFormatJSON)
		l.SQL("SELECT * FROM `users` WHERE (`id` = ?)", 10*time.Millisecond, 5)

		var data map[string]any
		if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
			t.Fatalf("Failed to unmarshal JSON output: %v", err)
		}
		if data["level"] != "SQL" || data["sql"] != "SELECT * FROM `users` WHERE (`id` = ?)" || data["duration"] != "10ms" {
			t.Errorf("Unexpected SQL JSON output: %v", data)
		}
		if data["duration_ms"] != 10.0 || len(data["args"].([]any)) != 1 {
			t.Errorf("Unexpected SQL JSON fields: %v", data)
		}
		if _, ok := data["msg"]; ok {
			t.Errorf("SQL JSON line carries a msg: %v", data)
		}
	})

	t.Run("TextFieldsSorted", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.WithFields(map[string]any{"query_id": "q-1", "entity": "users"}).SQL("SELECT 1", time.Millisecond)

		line := strings.TrimSpace(buf.String())
		if !strings.Contains(line, " SQL: ") || !strings.HasSuffix(line, " entity=users query_id=q-1") {
			t.Errorf("Unexpected SQL text output: %q", line)
		}
	})

	t.Run("Level", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		l.SetLevel(LogLevelError)
		l.Info("dropped")
		l.Warn("dropped")
		l.SQL("SELECT 1", time.Millisecond)
		if buf.Len() != 0 {
			t.Errorf("Expected no output below error level, got %q", buf.String())
		}
		l.Error("kept")
		if !strings.Contains(buf.String(), "kept") {
			t.Errorf("Expected error line, got %q", buf.String())
		}
	})

	t.Run("WithFieldsDoesNotLeak", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewStdLogger()
		l.SetOutput(buf)
		_ = l.WithFields(map[string]any{"k": "v"})
		l.Info("plain")
		if strings.Contains(buf.String(), "k=v") {
			t.Errorf("Parent logger picked up child fields: %q", buf.String())
		}
	})
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"silent": LogLevelSilent,
		"ERROR":  LogLevelError,
		"warn":   LogLevelWarn,
		"":       LogLevelInfo,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("Expected error for unknown level")
	}
	if f, err := ParseFormat("JSON"); err != nil || f != LogFormatJSON {
		t.Errorf("ParseFormat(JSON) = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("Expected error for unknown format")
	}
}
