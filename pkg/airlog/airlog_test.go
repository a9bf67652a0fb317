package airlog

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewTagsComponentAndRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "connection", "warn")

	log.Info().Msg("should be suppressed")
	if buf.Len() != 0 {
		t.Fatalf("info event was not suppressed at warn level: %q", buf.String())
	}

	log.Warn().Msg("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Fatalf("warn event missing from output: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "connection") {
		t.Fatalf("component tag missing from output: %q", buf.String())
	}
}

func TestNewFallsBackToInfoOnBadLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "session", "not-a-level")

	log.Info().Msg("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("info event missing at fallback info level: %q", buf.String())
	}
}
