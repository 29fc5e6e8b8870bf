package dialog_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kalima-ai/kalima/internal/dialog"
	"github.com/kalima-ai/kalima/pkg/types"
)

func TestApplyIntentTopicRules(t *testing.T) {
	t.Parallel()

	now := time.Now()

	tests := []struct {
		name         string
		intent       string
		wantTopic    string
		wantState    types.DialogState
		wantExpected []string
	}{
		{
			"start analysis opens analysis topic",
			dialog.IntentStartAnalysis,
			dialog.TopicAnalysis,
			types.StateProcessing,
			[]string{dialog.IntentReadReport, dialog.IntentStop, dialog.IntentClarify},
		},
		{
			"continue analysis keeps analysis topic",
			dialog.IntentContinueAnalysis,
			dialog.TopicAnalysis,
			types.StateProcessing,
			[]string{dialog.IntentReadReport, dialog.IntentStop, dialog.IntentClarify},
		},
		{
			"read report opens report topic",
			dialog.IntentReadReport,
			dialog.TopicReportReading,
			types.StateProcessing,
			[]string{dialog.IntentNextSection, dialog.IntentPreviousSection, dialog.IntentStop},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := dialog.NewSession("s1", now)
			dialog.ApplyIntent(s, tt.intent, "utterance", 0.9, now)

			if s.Topic != tt.wantTopic {
				t.Errorf("topic = %q, want %q", s.Topic, tt.wantTopic)
			}
			if s.State != tt.wantState {
				t.Errorf("state = %q, want %q", s.State, tt.wantState)
			}
			if fmt.Sprint(s.Expected) != fmt.Sprint(tt.wantExpected) {
				t.Errorf("expected = %v, want %v", s.Expected, tt.wantExpected)
			}
			if s.LastIntent != tt.intent {
				t.Errorf("last intent = %q, want %q", s.LastIntent, tt.intent)
			}
		})
	}
}

func TestStopClearsTopicKeepsHistory(t *testing.T) {
	t.Parallel()

	now := time.Now()
	for _, intent := range []string{dialog.IntentStop, dialog.IntentCancel} {
		s := dialog.NewSession("s1", now)
		dialog.ApplyIntent(s, dialog.IntentReadReport, "read report", 0.9, now)
		dialog.ApplyIntent(s, dialog.IntentNextSection, "next section", 0.9, now)
		dialog.ApplyIntent(s, intent, "stop", 0.9, now)

		if s.State != types.StateIdle {
			t.Errorf("%s: state = %q, want idle", intent, s.State)
		}
		if s.Topic != "" {
			t.Errorf("%s: topic = %q, want empty", intent, s.Topic)
		}
		if len(s.Expected) != 0 {
			t.Errorf("%s: expected = %v, want empty", intent, s.Expected)
		}
		if s.LastIntent != intent {
			t.Errorf("last intent = %q, want %q", s.LastIntent, intent)
		}

		// The interaction trail survives a stop: all three turns remain and
		// the section pointer is untouched. Only TTL expiry wipes history.
		if len(s.History) != 3 {
			t.Fatalf("%s: history length = %d, want 3", intent, len(s.History))
		}
		if s.History[0].Intent != dialog.IntentReadReport || s.History[2].Intent != intent {
			t.Errorf("%s: history intents = [%s %s %s], want read/next/%s",
				intent, s.History[0].Intent, s.History[1].Intent, s.History[2].Intent, intent)
		}
		if s.Pointer != 1 {
			t.Errorf("%s: pointer = %d, want 1 (preserved)", intent, s.Pointer)
		}
	}
}

func TestSectionPointer(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := dialog.NewSession("s1", now)

	dialog.ApplyIntent(s, dialog.IntentReadReport, "read report", 0.9, now)
	if s.Pointer != 0 {
		t.Fatalf("pointer after read = %d, want 0", s.Pointer)
	}
	dialog.ApplyIntent(s, dialog.IntentNextSection, "next", 0.9, now)
	dialog.ApplyIntent(s, dialog.IntentNextSection, "next", 0.9, now)
	if s.Pointer != 2 {
		t.Fatalf("pointer after two next = %d, want 2", s.Pointer)
	}
	dialog.ApplyIntent(s, dialog.IntentPreviousSection, "previous", 0.9, now)
	if s.Pointer != 1 {
		t.Fatalf("pointer after previous = %d, want 1", s.Pointer)
	}
	// Never below zero.
	dialog.ApplyIntent(s, dialog.IntentPreviousSection, "previous", 0.9, now)
	dialog.ApplyIntent(s, dialog.IntentPreviousSection, "previous", 0.9, now)
	if s.Pointer != 0 {
		t.Fatalf("pointer floor = %d, want 0", s.Pointer)
	}
}

func TestHistoryCap(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := dialog.NewSession("s1", now)
	for i := 0; i < 9; i++ {
		dialog.ApplyIntent(s, dialog.IntentNextSection, fmt.Sprintf("turn %d", i), 0.9, now)
	}
	if len(s.History) != dialog.HistoryCap {
		t.Fatalf("history length = %d, want %d", len(s.History), dialog.HistoryCap)
	}
	if s.History[0].Utterance != "turn 4" {
		t.Errorf("oldest retained turn = %q, want %q (oldest evicted first)", s.History[0].Utterance, "turn 4")
	}
	if s.History[len(s.History)-1].Utterance != "turn 8" {
		t.Errorf("newest turn = %q, want %q", s.History[len(s.History)-1].Utterance, "turn 8")
	}
}

func TestCompleteAction(t *testing.T) {
	t.Parallel()

	now := time.Now()
	s := dialog.NewSession("s1", now)

	dialog.ApplyIntent(s, dialog.IntentStartAnalysis, "begin analysis", 0.9, now)
	dialog.CompleteAction(s, now)
	if s.State != types.StateAwaitingFollowUp {
		t.Errorf("state = %q, want awaiting_follow_up", s.State)
	}

	// Completing when not processing is a no-op.
	dialog.CompleteAction(s, now)
	if s.State != types.StateAwaitingFollowUp {
		t.Errorf("second complete changed state to %q", s.State)
	}
}

func TestMemStoreExpiry(t *testing.T) {
	t.Parallel()

	clock := time.Now()
	store := dialog.NewMemStore(dialog.WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	err := store.Update(ctx, "s1", func(s *dialog.Session) error {
		dialog.ApplyIntent(s, dialog.IntentStartAnalysis, "begin analysis", 0.9, clock)
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	// Just inside the TTL the state survives.
	clock = clock.Add(dialog.TTL - time.Minute)
	s, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if s.Topic != dialog.TopicAnalysis {
		t.Fatalf("topic before expiry = %q, want %q", s.Topic, dialog.TopicAnalysis)
	}

	// Past the TTL the session resets but keeps its identity.
	clock = clock.Add(2 * time.Minute)
	s, err = store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get() after expiry error = %v", err)
	}
	if s.ID != "s1" {
		t.Errorf("ID = %q, want s1", s.ID)
	}
	if s.Topic != "" || s.State != types.StateIdle || len(s.History) != 0 {
		t.Errorf("expired session not reset: topic=%q state=%q history=%d", s.Topic, s.State, len(s.History))
	}
}

func TestMemStoreUpdateRollsBackOnError(t *testing.T) {
	t.Parallel()

	store := dialog.NewMemStore()
	ctx := context.Background()

	_ = store.Update(ctx, "s1", func(s *dialog.Session) error {
		s.Topic = "PARTIAL"
		return fmt.Errorf("boom")
	})

	s, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if s.Topic == "PARTIAL" {
		t.Error("failed update leaked a partial mutation")
	}
}

func TestMemStoreConcurrentUpdates(t *testing.T) {
	t.Parallel()

	store := dialog.NewMemStore()
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Update(ctx, "shared", func(s *dialog.Session) error {
				s.Pointer++
				return nil
			})
		}()
	}
	wg.Wait()

	s, err := store.Get(ctx, "shared")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if s.Pointer != workers {
		t.Errorf("pointer = %d, want %d (updates must serialize per session)", s.Pointer, workers)
	}
}

func TestMemStoreDeleteAndCount(t *testing.T) {
	t.Parallel()

	store := dialog.NewMemStore()
	ctx := context.Background()

	_ = store.Update(ctx, "a", func(*dialog.Session) error { return nil })
	_ = store.Update(ctx, "b", func(*dialog.Session) error { return nil })

	if n, _ := store.Count(ctx); n != 2 {
		t.Fatalf("Count() = %d, want 2", n)
	}
	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "a"); err != dialog.ErrSessionNotFound {
		t.Errorf("Get(deleted) error = %v, want ErrSessionNotFound", err)
	}
	// Deleting an unknown ID is fine.
	if err := store.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
}
