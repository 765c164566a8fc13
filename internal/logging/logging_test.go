package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

// captureLogOutput captures log output by temporarily pointing the global
// logger at a buffer.
func captureLogOutput(f func()) string {
	var buf bytes.Buffer
	oldLogger := defaultLogger
	defaultLogger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f()
	defaultLogger = oldLogger
	return buf.String()
}

// captureWithInit captures output of a logger built by InitLogger, which
// exercises its handler options.
func captureWithInit(level Level, format Format, f func()) string {
	var buf bytes.Buffer
	oldOutput := output
	SetOutput(&buf)
	InitLogger(level, format)
	f()
	SetOutput(oldOutput)
	InitLogger(LevelInfo, FormatText)
	return buf.String()
}

func decode(t *testing.T, line string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &m); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, line)
	}
	return m
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if f, err := ParseFormat("Text"); err != nil || f != FormatText {
		t.Errorf("ParseFormat(Text) = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestInitLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     Level
		wantDebug bool
		wantWarn  bool
	}{
		{"debug", LevelDebug, true, true},
		{"info", LevelInfo, false, true},
		{"error", LevelError, false, false},
		{"invalid falls back to info", Level(999), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := captureWithInit(tt.level, FormatJSON, func() {
				Debug("debug message")
				Warn("warn message")
			})
			if got := strings.Contains(out, "debug message"); got != tt.wantDebug {
				t.Errorf("debug logged = %v; want %v", got, tt.wantDebug)
			}
			if got := strings.Contains(out, "warn message"); got != tt.wantWarn {
				t.Errorf("warn logged = %v; want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestInitLoggerFormats(t *testing.T) {
	out := captureWithInit(LevelInfo, FormatJSON, func() { Info("hello", "k", "v") })
	m := decode(t, out)
	if m["msg"] != "hello" || m["k"] != "v" {
		t.Errorf("record = %v", m)
	}
	if ts, _ := m["time"].(string); !strings.Contains(ts, "T") || strings.Count(ts, ".") != 0 {
		t.Errorf("time not RFC3339 seconds: %q", ts)
	}

	out = captureWithInit(LevelInfo, FormatText, func() { Info("hello", "k", "v") })
	if !strings.Contains(out, "msg=hello") || !strings.Contains(out, "k=v") {
		t.Errorf("text output = %q", out)
	}
}

func TestSessionID(t *testing.T) {
	ctx := WithSessionID(context.Background(), "s-1")
	if got := GetSessionID(ctx); got != "s-1" {
		t.Errorf("GetSessionID = %q", got)
	}
	if got := GetSessionID(context.Background()); got != "" {
		t.Errorf("empty context = %q", got)
	}
	wrong := context.WithValue(context.Background(), SessionIDKey, 42)
	if got := GetSessionID(wrong); got != "" {
		t.Errorf("wrong type = %q", got)
	}
}

func TestContextLoggingFunctions(t *testing.T) {
	ctx := WithSessionID(context.Background(), "test-session")
	for name, fn := range map[string]func(){
		"DebugContext": func() { DebugContext(ctx, "m") },
		"InfoContext":  func() { InfoContext(ctx, "m") },
		"WarnContext":  func() { WarnContext(ctx, "m") },
		"ErrorContext": func() { ErrorContext(ctx, "m") },
	} {
		t.Run(name, func(t *testing.T) {
			out := captureLogOutput(fn)
			if !strings.Contains(out, `"session_id":"test-session"`) {
				t.Errorf("output missing session id: %s", out)
			}
		})
	}
}

func TestPlainLoggingFunctions(t *testing.T) {
	for name, fn := range map[string]func(){
		"Debug": func() { Debug("m", "key", "value") },
		"Info":  func() { Info("m", "key", "value") },
		"Warn":  func() { Warn("m", "key", "value") },
		"Error": func() { Error("m", "key", "value") },
	} {
		t.Run(name, func(t *testing.T) {
			if out := captureLogOutput(fn); !strings.Contains(out, `"key":"value"`) {
				t.Errorf("output = %s", out)
			}
		})
	}
}

func TestInsertion(t *testing.T) {
	ctx := WithSessionID(context.Background(), "s")
	m := decode(t, captureLogOutput(func() {
		Insertion(ctx, "medieval", "msItem", "abc", true, "sequence", 3)
	}))
	if m["msg"] != "component_inserted" || m["kind"] != "msItem" || m["target"] != "abc" || m["child"] != true {
		t.Errorf("record = %v", m)
	}
	if m["sequence"] != float64(3) || m["session_id"] != "s" {
		t.Errorf("extra args = %v", m)
	}
}

func TestInsertionError(t *testing.T) {
	m := decode(t, captureLogOutput(func() {
		InsertionError(context.Background(), "medieval", "bogus", errors.New("no rule"))
	}))
	if m["level"] != "WARN" || m["msg"] != "insertion_rejected" || m["error"] != "no rule" {
		t.Errorf("record = %v", m)
	}
}

func TestStoreEvent(t *testing.T) {
	m := decode(t, captureLogOutput(func() {
		StoreEvent(context.Background(), "put", "HSK-12", 4, "bytes", 120)
	}))
	if m["event"] != "put" || m["id"] != "HSK-12" || m["revision"] != float64(4) || m["bytes"] != float64(120) {
		t.Errorf("record = %v", m)
	}
}

func TestCatalogLoaded(t *testing.T) {
	m := decode(t, captureLogOutput(func() { CatalogLoaded([]string{"medieval"}) }))
	if m["msg"] != "catalog_loaded" || m["count"] != float64(1) {
		t.Errorf("record = %v", m)
	}
}
