package deck

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestSequencer() *Sequencer {
	return NewSequencer(SequencerConfig{
		BeatInterval:    time.Millisecond,
		ShuffleDuration: 5 * time.Millisecond,
	})
}

func awaitSequence(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
		t.Fatalf("animation sequence did not complete")
		return nil
	}
}

func TestDealSettlesInReady(t *testing.T) {
	sequencer := newTestSequencer()
	done, err := sequencer.Deal(context.Background())
	if err != nil {
		t.Fatalf("unexpected deal error: %v", err)
	}
	if phase := sequencer.Phase(); phase != PhaseDealing {
		t.Fatalf("expected dealing while in flight, got %q", phase)
	}
	if err := awaitSequence(t, done); err != nil {
		t.Fatalf("unexpected sequence error: %v", err)
	}
	if phase := sequencer.Phase(); phase != PhaseReady {
		t.Fatalf("expected ready after deal, got %q", phase)
	}
}

func TestShuffleTicksMonotonicSeed(t *testing.T) {
	sequencer := newTestSequencer()
	before := sequencer.ShuffleSeed()
	done, err := sequencer.Shuffle(context.Background())
	if err != nil {
		t.Fatalf("unexpected shuffle error: %v", err)
	}
	if err := awaitSequence(t, done); err != nil {
		t.Fatalf("unexpected sequence error: %v", err)
	}
	if after := sequencer.ShuffleSeed(); after <= before {
		t.Fatalf("expected seed to advance, before=%d after=%d", before, after)
	}
	if phase := sequencer.Phase(); phase != PhaseReady {
		t.Fatalf("expected ready after shuffle, got %q", phase)
	}
}

func TestOverlappingSequenceRejected(t *testing.T) {
	sequencer := NewSequencer(SequencerConfig{
		BeatInterval:    10 * time.Millisecond,
		ShuffleDuration: 200 * time.Millisecond,
	})
	done, err := sequencer.Shuffle(context.Background())
	if err != nil {
		t.Fatalf("unexpected shuffle error: %v", err)
	}
	if _, err := sequencer.Deal(context.Background()); !errors.Is(err, ErrSequenceInFlight) {
		t.Fatalf("expected ErrSequenceInFlight, got %v", err)
	}
	if err := awaitSequence(t, done); err != nil {
		t.Fatalf("unexpected sequence error: %v", err)
	}
}

func TestRevealWinnerCommitsWinner(t *testing.T) {
	sequencer := newTestSequencer()
	done, err := sequencer.RevealWinner(context.Background(), "card-7")
	if err != nil {
		t.Fatalf("unexpected reveal error: %v", err)
	}
	if phase := sequencer.Phase(); phase != PhaseRevealingWinner {
		t.Fatalf("expected revealingWinner while in flight, got %q", phase)
	}
	if err := awaitSequence(t, done); err != nil {
		t.Fatalf("unexpected sequence error: %v", err)
	}
	if winner := sequencer.WinnerID(); winner != "card-7" {
		t.Fatalf("expected committed winner card-7, got %q", winner)
	}
	if phase := sequencer.Phase(); phase != PhaseReady {
		t.Fatalf("expected ready after reveal, got %q", phase)
	}
}

func TestResetCancelsInFlightSequence(t *testing.T) {
	sequencer := NewSequencer(SequencerConfig{
		BeatInterval:    10 * time.Millisecond,
		ShuffleDuration: time.Second,
	})
	done, err := sequencer.Shuffle(context.Background())
	if err != nil {
		t.Fatalf("unexpected shuffle error: %v", err)
	}
	sequencer.Reset()
	if err := awaitSequence(t, done); !errors.Is(err, ErrSequenceCancelled) {
		t.Fatalf("expected ErrSequenceCancelled, got %v", err)
	}
	if phase := sequencer.Phase(); phase != PhaseIdle {
		t.Fatalf("expected idle after reset, got %q", phase)
	}
	// A new sequence is accepted after the reset.
	done, err = sequencer.Deal(context.Background())
	if err != nil {
		t.Fatalf("expected deal to start after reset, got %v", err)
	}
	if err := awaitSequence(t, done); err != nil {
		t.Fatalf("unexpected sequence error after reset: %v", err)
	}
}

func TestContextCancellationStopsBeats(t *testing.T) {
	sequencer := NewSequencer(SequencerConfig{
		BeatInterval:    10 * time.Millisecond,
		ShuffleDuration: time.Second,
	})
	ctx, cancel := context.WithCancel(context.Background())
	done, err := sequencer.Shuffle(ctx)
	if err != nil {
		t.Fatalf("unexpected shuffle error: %v", err)
	}
	cancel()
	if err := awaitSequence(t, done); !errors.Is(err, ErrSequenceCancelled) {
		t.Fatalf("expected ErrSequenceCancelled on teardown, got %v", err)
	}
	if phase := sequencer.Phase(); phase != PhaseIdle {
		t.Fatalf("expected idle after teardown, got %q", phase)
	}
}
