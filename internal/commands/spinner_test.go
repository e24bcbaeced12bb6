package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestSpinner_StopWithSuccess(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(&buf, "Working").start()
	time.Sleep(200 * time.Millisecond)
	s.stopWithSuccess("Done")

	out := buf.String()
	if !strings.Contains(out, "Working") {
		t.Errorf("animation frames missing message: %q", out)
	}
	if !strings.HasSuffix(out, "✓ Done\n") {
		t.Errorf("output should end with the success line, got %q", out)
	}
	if !strings.Contains(out, "\033[?25h") {
		t.Error("cursor should be shown again")
	}
}

func TestSpinner_StopTwice(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinner(&buf, "Working").start()

	s.stopWithError()
	s.stopWithError()

	if strings.Contains(buf.String(), "✓") {
		t.Error("stopWithError should not print a success line")
	}
}
