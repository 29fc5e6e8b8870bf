package tone_test

import (
	"testing"

	"github.com/kalima-ai/kalima/internal/tone"
	"github.com/kalima-ai/kalima/pkg/types"
)

func TestAnalyze(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		in          string
		wantValence types.Valence
		wantScore   int
	}{
		{"positive", "this is great, excellent work", types.ValencePositive, 2},
		{"negative", "terrible, there is a problem and an error", types.ValenceNegative, -3},
		{"mixed cancels", "great but terrible", types.ValenceNeutral, 0},
		{"neutral", "begin analysis", types.ValenceNeutral, 0},
		{"arabic negative", "هذا خطأ", types.ValenceNegative, -1},
		{"empty", "", types.ValenceNeutral, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tone.Analyze(tt.in)
			if got.Valence != tt.wantValence || got.Score != tt.wantScore {
				t.Errorf("Analyze(%q) = {%s %d}, want {%s %d}",
					tt.in, got.Valence, got.Score, tt.wantValence, tt.wantScore)
			}
		})
	}
}

func TestAnalyzeComparative(t *testing.T) {
	t.Parallel()

	got := tone.Analyze("great stuff")
	if got.Comparative != 0.5 {
		t.Errorf("Comparative = %v, want 0.5", got.Comparative)
	}
}

func TestSelectPrecedence(t *testing.T) {
	t.Parallel()

	negative := types.Sentiment{Valence: types.ValenceNegative, Score: -1}

	s := tone.NewSelector()
	if got := s.Select("START_ANALYSIS", types.Sentiment{Valence: types.ValenceNeutral}); got != tone.ToneDefault {
		t.Errorf("default tone = %q, want %q", got, tone.ToneDefault)
	}
	if got := s.Select("START_ANALYSIS", negative); got != tone.ToneCalmSupportive {
		t.Errorf("negative sentiment tone = %q, want %q", got, tone.ToneCalmSupportive)
	}
	if got := s.Select("READ_RISK_SUMMARY", negative); got != tone.ToneRiskAlert {
		t.Errorf("risk intent tone = %q, want %q (risk outranks sentiment)", got, tone.ToneRiskAlert)
	}

	if err := s.SetOverride(tone.ToneCalmSupportive); err != nil {
		t.Fatalf("SetOverride() error = %v", err)
	}
	if got := s.Select("READ_RISK_SUMMARY", negative); got != tone.ToneCalmSupportive {
		t.Errorf("override tone = %q, want %q (override outranks everything)", got, tone.ToneCalmSupportive)
	}

	if err := s.SetOverride(""); err != nil {
		t.Fatalf("clearing override error = %v", err)
	}
	if got := s.Select("START_ANALYSIS", negative); got != tone.ToneCalmSupportive {
		t.Errorf("tone after clearing override = %q", got)
	}
}

func TestSetOverrideRejectsUnknownTone(t *testing.T) {
	t.Parallel()

	s := tone.NewSelector()
	if err := s.SetOverride("sarcastic"); err == nil {
		t.Error("SetOverride(sarcastic) succeeded, want error")
	}
}
