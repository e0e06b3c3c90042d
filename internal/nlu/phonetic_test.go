package nlu_test

import (
	"testing"

	"github.com/voxtask/voxtask/internal/nlu"
)

func TestTitleMatcher_PhoneticMatch(t *testing.T) {
	t.Parallel()
	m := nlu.NewTitleMatcher()
	titles := []string{"Buy groceries", "Review proposal", "Quarterly report"}

	tests := []struct {
		name   string
		spoken string
		want   string
	}{
		{"transcription mangling", "by grocerys", "Buy groceries"},
		{"typo-ish", "reviw proposal", "Review proposal"},
		{"exact", "quarterly report", "Quarterly report"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, conf, matched := m.Match(tt.spoken, titles)
			if !matched {
				t.Fatalf("Match(%q) did not match, want %q", tt.spoken, tt.want)
			}
			if got != tt.want {
				t.Errorf("Match(%q) = %q, want %q", tt.spoken, got, tt.want)
			}
			if conf <= 0 {
				t.Errorf("confidence = %v, want > 0", conf)
			}
		})
	}
}

func TestTitleMatcher_NoMatchPassesThrough(t *testing.T) {
	t.Parallel()
	m := nlu.NewTitleMatcher()

	got, conf, matched := m.Match("water the plants", []string{"Quarterly report"})
	if matched {
		t.Fatalf("unexpected match: %q", got)
	}
	if got != "water the plants" || conf != 0 {
		t.Errorf("Match = (%q, %v), want input unchanged with zero confidence", got, conf)
	}
}

func TestTitleMatcher_EmptyInputs(t *testing.T) {
	t.Parallel()
	m := nlu.NewTitleMatcher()

	if _, _, matched := m.Match("", []string{"x"}); matched {
		t.Error("empty spoken input must not match")
	}
	if _, _, matched := m.Match("task", nil); matched {
		t.Error("empty title list must not match")
	}
}
