package logger

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"
)

func newPlainLogger(level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(&buf, level)
	l.SetColorMode(false)
	l.SetShowTime(false)
	return l, &buf
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, buf := newPlainLogger(LevelInfo)

	l.Debug("hidden %d", 1)
	l.Info("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Debug should be filtered at info level: %s", out)
	}
	if !strings.Contains(out, "[INFO] shown 2") {
		t.Errorf("Expected info line, got: %s", out)
	}
}

func TestLogger_ToolResultTruncation(t *testing.T) {
	l, buf := newPlainLogger(LevelTool)

	l.ToolResult("weatherInfo", true, "line1\nline2\nline3\nline4", 15*time.Millisecond)

	out := buf.String()
	if !strings.Contains(out, "Tool Result: weatherInfo [✅ Success]") {
		t.Errorf("Expected result header, got: %s", out)
	}
	if strings.Contains(out, "line3") {
		t.Errorf("Expected output truncated to two lines, got: %s", out)
	}
}

func TestLogger_ToolCallPrettyPrintsLongJSON(t *testing.T) {
	l, buf := newPlainLogger(LevelTool)

	long := `{"location":"San Francisco, California, United States of America","unit":"celsius"}`
	l.ToolCall("weatherInfo", long)

	if !strings.Contains(buf.String(), "\n  \"location\"") {
		t.Errorf("Expected pretty-printed JSON, got: %s", buf.String())
	}
}

func TestLogger_ConcurrentWrites(t *testing.T) {
	l, buf := newPlainLogger(LevelInfo)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			l.Info("message %d", n)
		}(i)
	}
	wg.Wait()

	if got := strings.Count(buf.String(), "[INFO]"); got != 20 {
		t.Errorf("Expected 20 lines, got %d", got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"DEBUG":   LevelDebug,
		"tool":    LevelTool,
		"answer":  LevelAnswer,
		"error":   LevelError,
		"unknown": LevelInfo,
	}
	for name, want := range cases {
		if got := ParseLevel(name); got != want {
			t.Errorf("ParseLevel(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error("nothing to see")
	l.ConversationEnd(time.Second, 1, 3)
}
