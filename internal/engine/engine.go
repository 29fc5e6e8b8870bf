// Package engine orchestrates one utterance through the full pipeline:
// language detection, the resolver cascade, the confidence gate, dialog
// state transitions, and tone selection.
//
// The dictionary index is held behind an atomic pointer. Reloads build a
// complete new index off to the side and swap it in one step, so requests
// always see either the old pack or the new one, never a mix.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kalima-ai/kalima/internal/answer"
	"github.com/kalima-ai/kalima/internal/dialog"
	"github.com/kalima-ai/kalima/internal/dictionary"
	"github.com/kalima-ai/kalima/internal/gate"
	"github.com/kalima-ai/kalima/internal/lang"
	"github.com/kalima-ai/kalima/internal/observe"
	"github.com/kalima-ai/kalima/internal/resolve"
	"github.com/kalima-ai/kalima/internal/tone"
	"github.com/kalima-ai/kalima/pkg/types"
)

// ErrEmptySessionID is returned when an operation is missing its session ID.
var ErrEmptySessionID = errors.New("engine: session id must not be empty")

// answerAcceptMin is the minimum expected-answer score to consume an
// utterance as a clarification reply instead of re-running the cascade.
const answerAcceptMin = 0.5

// snapshot bundles everything derived from one pack load, swapped as a unit.
type snapshot struct {
	idx      *dictionary.Index
	detector *lang.Detector
}

// Result is the full outcome of processing one utterance.
type Result struct {
	SessionID string               `json:"session_id"`
	Match     types.Match          `json:"match"`
	Decision  types.Decision       `json:"decision"`
	Sentiment types.Sentiment      `json:"sentiment"`
	Tone      string               `json:"tone"`
	Session   types.SessionSummary `json:"session"`
}

// SessionStats summarises a session's bounded history.
type SessionStats struct {
	SessionID         string            `json:"session_id"`
	Turns             int               `json:"turns"`
	IntentCounts      map[string]int    `json:"intent_counts"`
	AverageConfidence float64           `json:"average_confidence"`
	Language          types.Language    `json:"language"`
	Topic             string            `json:"topic,omitempty"`
	State             types.DialogState `json:"state"`
}

// Engine is safe for concurrent use.
type Engine struct {
	snap     atomic.Pointer[snapshot]
	resolver *resolve.Resolver
	gate     *gate.Gate
	store    dialog.Store
	tones    *tone.Selector
	metrics  *observe.Metrics
	logger   *slog.Logger
	packDir  string
	now      func() time.Time
}

// Option configures an [Engine].
type Option func(*Engine)

// WithLogger sets the engine logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the instrument set. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithWeights overrides the cascade weights.
func WithWeights(w resolve.Weights) Option {
	return func(e *Engine) { e.resolver = resolve.New(w) }
}

// WithThresholds overrides the confidence gate cut points.
func WithThresholds(t gate.Thresholds) Option {
	return func(e *Engine) { e.gate = gate.New(t) }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New loads the pack directory and builds a ready engine.
func New(packDir string, store dialog.Store, opts ...Option) (*Engine, error) {
	e := &Engine{
		resolver: resolve.New(resolve.DefaultWeights()),
		gate:     gate.New(gate.DefaultThresholds()),
		store:    store,
		tones:    tone.NewSelector(),
		packDir:  packDir,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}

	if err := e.ReloadDictionaries(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

// NewFromDefinitions builds an engine over in-memory pack definitions,
// bypassing the filesystem. Used by tests and embedders.
func NewFromDefinitions(store dialog.Store, defs []*dictionary.Definition, opts ...Option) (*Engine, error) {
	e := &Engine{
		resolver: resolve.New(resolve.DefaultWeights()),
		gate:     gate.New(gate.DefaultThresholds()),
		store:    store,
		tones:    tone.NewSelector(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}

	idx, err := dictionary.NewIndex(defs...)
	if err != nil {
		return nil, fmt.Errorf("engine: build index: %w", err)
	}
	e.install(idx)
	return e, nil
}

func (e *Engine) install(idx *dictionary.Index) {
	e.snap.Store(&snapshot{
		idx:      idx,
		detector: lang.NewDetector(idx.ArabicLexicon()),
	})
}

// ReloadDictionaries rebuilds the index from the pack directory and swaps it
// in atomically. On any error the previous index keeps serving.
func (e *Engine) ReloadDictionaries(ctx context.Context) error {
	outcome := "success"
	defer func() {
		e.metrics.DictionaryReloads.Add(ctx, 1,
			metric.WithAttributes(attribute.String("outcome", outcome)))
	}()

	defs, err := dictionary.LoadDir(e.packDir)
	if err != nil {
		outcome = "failure"
		return fmt.Errorf("engine: reload dictionaries: %w", err)
	}
	idx, err := dictionary.NewIndex(defs...)
	if err != nil {
		outcome = "failure"
		return fmt.Errorf("engine: reload dictionaries: %w", err)
	}

	e.install(idx)
	stats := idx.Stats()
	e.logger.Info("dictionary index installed",
		"intents", stats.Intents,
		"phrases", stats.Phrases,
		"synonyms", stats.Synonyms,
		"languages", stats.Languages)
	return nil
}

// Process runs one utterance through the pipeline and returns the full
// outcome. The session's read-modify-write cycle is serialized by the store.
func (e *Engine) Process(ctx context.Context, sessionID, utterance string) (Result, error) {
	if sessionID == "" {
		return Result{}, ErrEmptySessionID
	}
	snap := e.snap.Load()
	start := e.now()

	var res Result
	err := e.store.Update(ctx, sessionID, func(s *dialog.Session) error {
		now := e.now()
		language := snap.detector.DetectSticky(utterance, s.Language)
		s.Language = language

		in := resolve.BuildInput(utterance, snap.idx.Fillers(), language)
		match, decision := e.classify(snap, s, in, now)

		sentiment := tone.Analyze(utterance)
		res = Result{
			SessionID: sessionID,
			Match:     match,
			Decision:  decision,
			Sentiment: sentiment,
			Tone:      e.tones.Select(match.Intent, sentiment),
			Session:   s.Summary(),
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	e.record(ctx, res, e.now().Sub(start))
	return res, nil
}

// classify applies the stop short-circuit, the clarification answer path,
// and the gated cascade, mutating s accordingly.
func (e *Engine) classify(snap *snapshot, s *dialog.Session, in resolve.Input, now time.Time) (types.Match, types.Decision) {
	// STOP and CANCEL work from any state, before anything else runs.
	if m, ok := snap.idx.DetectIntent(in.Stripped); ok && m.Confidence >= 1.0 && dialog.IsStop(m.Intent) {
		m.Source = types.SourceDictionaryFirst
		dialog.ApplyIntent(s, m.Intent, in.Raw, m.Confidence, now)
		return m, types.Decision{Action: types.ActionExecute, Intent: m.Intent, Confidence: m.Confidence}
	}

	// While awaiting clarification, try to consume the utterance as an
	// answer to the pending question.
	if s.State == types.StateAwaitingClarification && s.AnswerContext != "" {
		if expected := snap.idx.Answers(s.AnswerContext); expected != nil {
			if am := answer.Match(in.Raw, expected); am.Confidence >= answerAcceptMin {
				return e.resolveClarification(s, in, am, now)
			}
		}
		// Not an answer; fall through and treat it as a fresh command.
	}

	match := e.resolver.Resolve(snap.idx, in)
	decision := e.gate.Decide(match, in.Language, snap.idx)

	switch decision.Action {
	case types.ActionExecute:
		dialog.ApplyIntent(s, match.Intent, in.Raw, match.Confidence, now)
	case types.ActionClarify:
		dialog.BeginClarification(s, match.Intent, decision.Message, now)
	default:
		// Fallback leaves the topic alone but still leaves a trail.
		s.LastActivity = now
		s.RecordTurn(types.Turn{
			Intent:     types.IntentUnknown,
			Utterance:  in.Raw,
			Confidence: match.Confidence,
			Timestamp:  now,
		})
	}
	return match, decision
}

// resolveClarification applies a confirmed or denied "did you mean" answer.
func (e *Engine) resolveClarification(s *dialog.Session, in resolve.Input, am types.AnswerMatch, now time.Time) (types.Match, types.Decision) {
	pending := s.PendingIntent
	match := types.Match{
		Intent:     pending,
		Confidence: am.Confidence,
		Matched:    am.Matched,
		Source:     types.SourceClarification,
	}

	if am.Canonical == "confirm" && pending != "" {
		dialog.ApplyIntent(s, pending, in.Raw, am.Confidence, now)
		return match, types.Decision{Action: types.ActionExecute, Intent: pending, Confidence: am.Confidence}
	}

	// Denied: drop the candidate and go back to listening.
	s.PendingIntent = ""
	s.ClarifyQuestion = ""
	s.AnswerContext = ""
	s.State = types.StateIdle
	s.LastActivity = now
	match.Intent = types.IntentUnknown
	return match, types.Decision{
		Action:     types.ActionFallback,
		Intent:     types.IntentUnknown,
		Confidence: am.Confidence,
		Message:    abortMessage(in.Language),
	}
}

func abortMessage(language types.Language) string {
	if language == types.LangArabic {
		return "حسناً، تم الإلغاء."
	}
	return "Okay, cancelled."
}

func (e *Engine) record(ctx context.Context, res Result, took time.Duration) {
	e.metrics.StageHits.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", string(res.Match.Source))))
	e.metrics.GateDecisions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("action", string(res.Decision.Action))))
	e.metrics.ResolveDuration.Record(ctx, took.Seconds(),
		metric.WithAttributes(attribute.String("action", string(res.Decision.Action))))

	if n, err := e.store.Count(ctx); err == nil {
		e.metrics.ActiveSessions.Record(ctx, int64(n))
	}

	e.logger.Debug("utterance processed",
		"session", res.SessionID,
		"intent", res.Match.Intent,
		"confidence", res.Match.Confidence,
		"source", res.Match.Source,
		"action", res.Decision.Action,
		"tone", res.Tone,
		"took", took)
}

// CompleteAction marks the session's in-flight intent as finished.
func (e *Engine) CompleteAction(ctx context.Context, sessionID string) (types.SessionSummary, error) {
	if sessionID == "" {
		return types.SessionSummary{}, ErrEmptySessionID
	}
	var summary types.SessionSummary
	err := e.store.Update(ctx, sessionID, func(s *dialog.Session) error {
		dialog.CompleteAction(s, e.now())
		summary = s.Summary()
		return nil
	})
	return summary, err
}

// Session returns the session's summary view.
func (e *Engine) Session(ctx context.Context, sessionID string) (types.SessionSummary, error) {
	if sessionID == "" {
		return types.SessionSummary{}, ErrEmptySessionID
	}
	s, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return types.SessionSummary{}, err
	}
	return s.Summary(), nil
}

// DeleteSession removes the session.
func (e *Engine) DeleteSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	return e.store.Delete(ctx, sessionID)
}

// SessionStats summarises the session's retained history.
func (e *Engine) SessionStats(ctx context.Context, sessionID string) (SessionStats, error) {
	if sessionID == "" {
		return SessionStats{}, ErrEmptySessionID
	}
	s, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return SessionStats{}, err
	}

	stats := SessionStats{
		SessionID:    s.ID,
		Turns:        len(s.History),
		IntentCounts: make(map[string]int, len(s.History)),
		Language:     s.Language,
		Topic:        s.Topic,
		State:        s.State,
	}
	var total float64
	for _, turn := range s.History {
		stats.IntentCounts[turn.Intent]++
		total += turn.Confidence
	}
	if stats.Turns > 0 {
		stats.AverageConfidence = total / float64(stats.Turns)
	}
	return stats, nil
}

// DictionaryStats returns the active index's build-time snapshot.
func (e *Engine) DictionaryStats() dictionary.Stats {
	return e.snap.Load().idx.Stats()
}

// ContextualAnswers returns the expected answers for an answer context.
func (e *Engine) ContextualAnswers(context string) map[string]string {
	return e.snap.Load().idx.Answers(context)
}

// AnswerContexts lists the known answer contexts.
func (e *Engine) AnswerContexts() []string {
	return e.snap.Load().idx.AnswerContexts()
}

// SetTone pins or clears ("" clears) the response tone override.
func (e *Engine) SetTone(toneName string) error {
	return e.tones.SetOverride(toneName)
}

// ToneOverride returns the pinned tone, or "".
func (e *Engine) ToneOverride() string {
	return e.tones.Override()
}

// Ready reports whether the engine has a usable index installed.
func (e *Engine) Ready() error {
	if e.snap.Load() == nil {
		return errors.New("engine: no dictionary index installed")
	}
	return nil
}
