package engine_test

import (
	"context"
	"strings"
	"testing"

	"github.com/kalima-ai/kalima/internal/dialog"
	"github.com/kalima-ai/kalima/internal/dictionary"
	"github.com/kalima-ai/kalima/internal/engine"
	"github.com/kalima-ai/kalima/internal/gate"
	"github.com/kalima-ai/kalima/pkg/types"
)

const enginePack = `
version: test
language: en
synonyms:
  begin analysis: [start the analysis]
intents:
  START_ANALYSIS:
    phrases: [begin analysis, start analysis]
    keywords: [begin, start, analysis]
  READ_REPORT:
    phrases: [read report, read the report]
    keywords: [read, report]
  NEXT_SECTION:
    phrases: [next section]
    keywords: [next, section]
  STOP:
    phrases: [stop, cancel, that is enough]
    keywords: [stop, cancel]
fillers: [please, could, you]
contextual_answers:
  yes_no:
    confirm: ["yes", "yeah"]
    deny: ["no"]
examples: [begin analysis, read report, executive summary]
`

const engineArPack = `
version: test
language: ar
synonyms:
  اقرئي التقرير: [اقري التقرير]
intents:
  START_ANALYSIS:
    phrases: [ابدئي التحليل]
    keywords: [التحليل]
  READ_REPORT:
    phrases: [اقرئي التقرير]
    keywords: [التقرير]
fillers: [من, فضلك]
arabic_lexicon: [tamam, aywa]
examples: [ابدئي التحليل, اقرئي التقرير]
`

func newEngine(t *testing.T) *engine.Engine {
	t.Helper()

	var defs []*dictionary.Definition
	for _, src := range []string{enginePack, engineArPack} {
		def, err := dictionary.LoadFromReader(strings.NewReader(src))
		if err != nil {
			t.Fatalf("LoadFromReader() error = %v", err)
		}
		defs = append(defs, def)
	}

	eng, err := engine.NewFromDefinitions(dialog.NewMemStore(), defs)
	if err != nil {
		t.Fatalf("NewFromDefinitions() error = %v", err)
	}
	return eng
}

func TestProcessExecutesHighConfidence(t *testing.T) {
	t.Parallel()

	eng := newEngine(t)
	ctx := context.Background()

	res, err := eng.Process(ctx, "s1", "begin analysis")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Decision.Action != types.ActionExecute {
		t.Fatalf("action = %s, want execute", res.Decision.Action)
	}
	if res.Match.Intent != "START_ANALYSIS" {
		t.Errorf("intent = %s, want START_ANALYSIS", res.Match.Intent)
	}
	if res.Session.Topic != dialog.TopicAnalysis {
		t.Errorf("topic = %q, want %q", res.Session.Topic, dialog.TopicAnalysis)
	}
	if res.Session.State != types.StateProcessing {
		t.Errorf("state = %q, want processing", res.Session.State)
	}
}

func TestProcessArabic(t *testing.T) {
	t.Parallel()

	eng := newEngine(t)
	ctx := context.Background()

	res, err := eng.Process(ctx, "s1", "ابدئي التحليل")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Match.Intent != "START_ANALYSIS" || res.Match.Confidence < 0.75 {
		t.Fatalf("match = %+v, want START_ANALYSIS with confidence >= 0.75", res.Match)
	}
	if res.Session.Language != types.LangArabic {
		t.Errorf("session language = %q, want ar", res.Session.Language)
	}

	// A short English-alphabet follow-up keeps the Arabic session language.
	res, err = eng.Process(ctx, "s1", "ok")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Session.Language != types.LangArabic {
		t.Errorf("language after short input = %q, want ar (sticky)", res.Session.Language)
	}
}

func TestProcessFallbackUnknown(t *testing.T) {
	t.Parallel()

	eng := newEngine(t)
	ctx := context.Background()

	res, err := eng.Process(ctx, "s1", "quantum zebra flamingo")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Decision.Action != types.ActionFallback {
		t.Fatalf("action = %s, want fallback", res.Decision.Action)
	}
	if res.Match.Intent != types.IntentUnknown {
		t.Errorf("intent = %s, want UNKNOWN", res.Match.Intent)
	}
	if len(res.Decision.Examples) == 0 || len(res.Decision.Examples) > 3 {
		t.Errorf("examples = %v, want 1..3", res.Decision.Examples)
	}
	if res.Session.Topic != "" {
		t.Errorf("fallback changed topic to %q", res.Session.Topic)
	}
}

func TestStopOverridesEverything(t *testing.T) {
	t.Parallel()

	eng := newEngine(t)
	ctx := context.Background()

	if _, err := eng.Process(ctx, "s1", "read report"); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	res, err := eng.Process(ctx, "s1", "stop please")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Match.Intent != "STOP" {
		t.Fatalf("intent = %s, want STOP", res.Match.Intent)
	}
	if res.Session.State != types.StateIdle || res.Session.Topic != "" {
		t.Errorf("session after stop = %+v, want idle with no topic", res.Session)
	}

	// Stopping ends the topic but keeps the interaction trail.
	stats, err := eng.SessionStats(ctx, "s1")
	if err != nil {
		t.Fatalf("SessionStats() error = %v", err)
	}
	if stats.Turns != 2 {
		t.Errorf("turns after stop = %d, want 2 (history preserved)", stats.Turns)
	}
	if stats.IntentCounts["READ_REPORT"] != 1 || stats.IntentCounts["STOP"] != 1 {
		t.Errorf("intent counts after stop = %v", stats.IntentCounts)
	}
}

// newClarifyEngine raises the execute floor above the exact-phrase score so
// a containment hit ("analysis" inside "begin analysis") reliably lands in
// the clarify band.
func newClarifyEngine(t *testing.T) *engine.Engine {
	t.Helper()

	var defs []*dictionary.Definition
	for _, src := range []string{enginePack, engineArPack} {
		def, err := dictionary.LoadFromReader(strings.NewReader(src))
		if err != nil {
			t.Fatalf("LoadFromReader() error = %v", err)
		}
		defs = append(defs, def)
	}

	eng, err := engine.NewFromDefinitions(dialog.NewMemStore(), defs,
		engine.WithThresholds(gate.Thresholds{Execute: 0.96, Clarify: 0.4}))
	if err != nil {
		t.Fatalf("NewFromDefinitions() error = %v", err)
	}
	return eng
}

func TestClarificationFlow(t *testing.T) {
	t.Parallel()

	eng := newClarifyEngine(t)
	ctx := context.Background()

	res, err := eng.Process(ctx, "s1", "analysis")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Decision.Action != types.ActionClarify {
		t.Fatalf("action = %s, want clarify", res.Decision.Action)
	}
	if res.Decision.Message == "" {
		t.Error("clarify decision has no question")
	}
	if res.Session.State != types.StateAwaitingClarification {
		t.Fatalf("state = %q, want awaiting_clarification", res.Session.State)
	}

	// Confirming executes the stashed candidate.
	res, err = eng.Process(ctx, "s1", "yes")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Decision.Action != types.ActionExecute {
		t.Fatalf("action after yes = %s, want execute", res.Decision.Action)
	}
	if res.Match.Intent != "START_ANALYSIS" {
		t.Errorf("confirmed intent = %s, want START_ANALYSIS", res.Match.Intent)
	}
	if res.Match.Source != types.SourceClarification {
		t.Errorf("source = %s, want %s (answer path, not a cascade stage)", res.Match.Source, types.SourceClarification)
	}
}

func TestClarificationDenied(t *testing.T) {
	t.Parallel()

	eng := newClarifyEngine(t)
	ctx := context.Background()

	res, err := eng.Process(ctx, "s1", "analysis")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Decision.Action != types.ActionClarify {
		t.Fatalf("action = %s, want clarify", res.Decision.Action)
	}

	res, err = eng.Process(ctx, "s1", "no")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Decision.Action != types.ActionFallback {
		t.Fatalf("action after no = %s, want fallback", res.Decision.Action)
	}
	if res.Session.State != types.StateIdle {
		t.Errorf("state after denial = %q, want idle", res.Session.State)
	}
}

func TestCompleteAction(t *testing.T) {
	t.Parallel()

	eng := newEngine(t)
	ctx := context.Background()

	if _, err := eng.Process(ctx, "s1", "begin analysis"); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	summary, err := eng.CompleteAction(ctx, "s1")
	if err != nil {
		t.Fatalf("CompleteAction() error = %v", err)
	}
	if summary.State != types.StateAwaitingFollowUp {
		t.Errorf("state = %q, want awaiting_follow_up", summary.State)
	}
}

func TestSessionStats(t *testing.T) {
	t.Parallel()

	eng := newEngine(t)
	ctx := context.Background()

	for _, u := range []string{"begin analysis", "read report", "next section"} {
		if _, err := eng.Process(ctx, "s1", u); err != nil {
			t.Fatalf("Process(%q) error = %v", u, err)
		}
	}

	stats, err := eng.SessionStats(ctx, "s1")
	if err != nil {
		t.Fatalf("SessionStats() error = %v", err)
	}
	if stats.Turns != 3 {
		t.Errorf("turns = %d, want 3", stats.Turns)
	}
	if stats.IntentCounts["READ_REPORT"] != 1 {
		t.Errorf("intent counts = %v", stats.IntentCounts)
	}
	if stats.AverageConfidence <= 0 {
		t.Errorf("average confidence = %v, want > 0", stats.AverageConfidence)
	}
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	eng := newEngine(t)
	ctx := context.Background()

	if _, err := eng.Process(ctx, "s1", "begin analysis"); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if _, err := eng.Session(ctx, "s1"); err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if err := eng.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if _, err := eng.Session(ctx, "s1"); err == nil {
		t.Error("Session() after delete succeeded, want error")
	}

	if _, err := eng.Process(ctx, "", "begin analysis"); err != engine.ErrEmptySessionID {
		t.Errorf("Process with empty id error = %v, want ErrEmptySessionID", err)
	}
}

func TestToneOverride(t *testing.T) {
	t.Parallel()

	eng := newEngine(t)
	ctx := context.Background()

	if err := eng.SetTone("calm_supportive"); err != nil {
		t.Fatalf("SetTone() error = %v", err)
	}
	res, err := eng.Process(ctx, "s1", "begin analysis")
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if res.Tone != "calm_supportive" {
		t.Errorf("tone = %q, want calm_supportive", res.Tone)
	}
	if err := eng.SetTone("bogus"); err == nil {
		t.Error("SetTone(bogus) succeeded, want error")
	}
}

func TestDictionaryViews(t *testing.T) {
	t.Parallel()

	eng := newEngine(t)

	stats := eng.DictionaryStats()
	if stats.Intents == 0 || stats.Phrases == 0 {
		t.Errorf("DictionaryStats() = %+v, want populated", stats)
	}
	if answers := eng.ContextualAnswers("yes_no"); answers["yes"] != "confirm" {
		t.Errorf("ContextualAnswers(yes_no) = %v", answers)
	}
	if ctxs := eng.AnswerContexts(); len(ctxs) != 1 || ctxs[0] != "yes_no" {
		t.Errorf("AnswerContexts() = %v", ctxs)
	}
	if err := eng.Ready(); err != nil {
		t.Errorf("Ready() error = %v", err)
	}
}
