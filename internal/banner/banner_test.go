package banner

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintAlignsLabels(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf, "voicebridge", []ConfigLine{
		{"Listen", "0.0.0.0:8080"},
		{"Speech model", "gpt-4o-realtime-preview"},
	})

	out := buf.String()
	if !strings.Contains(out, "  Listen       : 0.0.0.0:8080\n") {
		t.Errorf("Listen line not aligned:\n%s", out)
	}
	if !strings.Contains(out, "  Speech model : gpt-4o-realtime-preview\n") {
		t.Errorf("model line missing:\n%s", out)
	}
	if !strings.Contains(out, "Ready.") {
		t.Error("missing Ready.")
	}
}

func TestMask(t *testing.T) {
	if got := Mask("sk-abcdef1234"); got != "********1234" {
		t.Errorf("Mask() = %q", got)
	}
	if got := Mask("abc"); got != "***" {
		t.Errorf("Mask() = %q", got)
	}
}
