package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	if got := ParseLevel("debug"); got != DebugLevel {
		t.Errorf("got %s", got)
	}
	if got := ParseLevel("verbose"); got != InfoLevel {
		t.Errorf("unknown level = %s, want info", got)
	}
	if got := ParseLevel(""); got != InfoLevel {
		t.Errorf("empty level = %s, want info", got)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Format: JSONFormat, Level: WarnLevel, Output: &buf})

	l.Debug("debug msg", nil)
	l.Info("info msg", nil)
	l.Warn("warn msg", nil)
	l.Error("error msg", nil)

	out := buf.String()
	if strings.Contains(out, "debug msg") || strings.Contains(out, "info msg") {
		t.Errorf("low-severity messages leaked:\n%s", out)
	}
	if !strings.Contains(out, "warn msg") || !strings.Contains(out, "error msg") {
		t.Errorf("high-severity messages missing:\n%s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Format: JSONFormat, Level: InfoLevel, Output: &buf})

	l.Info("plan drafted", map[string]interface{}{"plan": "p-1", "operations": 3})

	var e struct {
		Timestamp string                 `json:"timestamp"`
		Level     string                 `json:"level"`
		Message   string                 `json:"message"`
		Fields    map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal(buf.Bytes(), &e); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if e.Level != "info" || e.Message != "plan drafted" {
		t.Errorf("entry = %+v", e)
	}
	if e.Fields["plan"] != "p-1" {
		t.Errorf("fields = %v", e.Fields)
	}
	if e.Timestamp == "" {
		t.Error("timestamp missing")
	}
}

func TestHumanFormatSortsFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Format: HumanFormat, Level: InfoLevel, Output: &buf})

	l.Info("scan loaded", map[string]interface{}{"zebra": 1, "alpha": 2, "mid": 3})

	out := buf.String()
	if !strings.Contains(out, "[info] scan loaded |") {
		t.Errorf("output = %q", out)
	}
	alpha := strings.Index(out, "alpha=")
	mid := strings.Index(out, "mid=")
	zebra := strings.Index(out, "zebra=")
	if alpha < 0 || mid < 0 || zebra < 0 || !(alpha < mid && mid < zebra) {
		t.Errorf("fields not in sorted order: %q", out)
	}
}

func TestSilentDropsEverything(t *testing.T) {
	// Must not panic and must not write to stderr below error level.
	l := Silent()
	l.Debug("d", nil)
	l.Info("i", map[string]interface{}{"k": "v"})
	l.Warn("w", nil)
	l.Error("e", nil)
}
