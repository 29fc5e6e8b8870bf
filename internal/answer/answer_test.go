package answer_test

import (
	"testing"

	"github.com/kalima-ai/kalima/internal/answer"
)

func yesNo() map[string]string {
	return map[string]string{
		"yes":  "confirm",
		"yeah": "confirm",
		"no":   "deny",
		"نعم":  "confirm",
		"لا":   "deny",
	}
}

func TestMatchExact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		in            string
		wantCanonical string
		wantConf      float64
	}{
		{"exact yes", "yes", "confirm", 1.0},
		{"exact with punctuation", "Yes!", "confirm", 1.0},
		{"arabic yes", "نعم", "confirm", 1.0},
		{"exact no", "no", "deny", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := answer.Match(tt.in, yesNo())
			if m.Canonical != tt.wantCanonical {
				t.Fatalf("Match(%q) canonical = %q, want %q", tt.in, m.Canonical, tt.wantCanonical)
			}
			if m.Confidence != tt.wantConf {
				t.Errorf("Match(%q) confidence = %v, want %v", tt.in, m.Confidence, tt.wantConf)
			}
		})
	}
}

func TestMatchSubstringBonus(t *testing.T) {
	t.Parallel()

	// "yes please do" contains "yes": overlap 1/3 plus the bonus.
	m := answer.Match("yes please do", yesNo())
	if m.Canonical != "confirm" {
		t.Fatalf("canonical = %q, want confirm", m.Canonical)
	}
	want := 1.0/3.0 + 0.2
	if diff := m.Confidence - want; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("confidence = %v, want %v", m.Confidence, want)
	}
}

func TestMatchNoHit(t *testing.T) {
	t.Parallel()

	tests := []string{"", "purple elephant", "   "}
	for _, in := range tests {
		m := answer.Match(in, yesNo())
		if m.Matched != "" || m.Confidence != 0 {
			t.Errorf("Match(%q) = %+v, want empty result", in, m)
		}
	}
}

func TestMatchList(t *testing.T) {
	t.Parallel()

	m := answer.MatchList("yes", []string{"yes", "sure", "ok"})
	if m.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", m.Confidence)
	}
	if m.Canonical != "yes" {
		t.Errorf("canonical = %q, want yes", m.Canonical)
	}
}

func TestMatchEmptyExpectedSet(t *testing.T) {
	t.Parallel()

	if m := answer.Match("yes", nil); m.Matched != "" {
		t.Errorf("Match with nil expected = %+v, want empty", m)
	}
}

func TestMatchDeterministic(t *testing.T) {
	t.Parallel()

	expected := map[string]string{"alpha": "a", "alphas": "b"}
	first := answer.Match("alpha", expected)
	for i := 0; i < 20; i++ {
		if got := answer.Match("alpha", expected); got != first {
			t.Fatalf("Match unstable: %+v vs %+v", got, first)
		}
	}
	if first.Canonical != "a" {
		t.Errorf("canonical = %q, want the exact candidate to win", first.Canonical)
	}
}
