package deck

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Phase enumerates the client-side animation states of the deck. They are
// independent of the server session phase and are never persisted.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseDealing         Phase = "dealing"
	PhaseShuffling       Phase = "shuffling"
	PhaseReady           Phase = "ready"
	PhaseRevealingWinner Phase = "revealingWinner"
)

const (
	defaultBeatInterval    = 120 * time.Millisecond
	defaultShuffleDuration = 900 * time.Millisecond
)

var (
	// ErrSequenceInFlight rejects a new animation sequence while one is running.
	ErrSequenceInFlight = errors.New("deck: animation sequence already in flight")
	// ErrSequenceCancelled reports a sequence interrupted by reset or teardown.
	ErrSequenceCancelled = errors.New("deck: animation sequence cancelled")

	sequencerNoOpLogger = zap.NewNop()
)

// SequencerConfig tunes the animation beat timing.
type SequencerConfig struct {
	BeatInterval    time.Duration
	ShuffleDuration time.Duration
	Logger          *zap.Logger
}

// Sequencer drives the deck animation phases. At most one sequence runs at a
// time; each sequence is a goroutine whose beats are cancellable timed waits,
// and callers await completion through the channel returned by the entry
// points.
type Sequencer struct {
	mu              sync.Mutex
	phase           Phase
	shuffleSeed     int64
	winnerID        string
	running         bool
	cancel          chan struct{}
	beatInterval    time.Duration
	shuffleDuration time.Duration
	logger          *zap.Logger
}

// NewSequencer constructs an idle Sequencer with sane beat defaults.
func NewSequencer(cfg SequencerConfig) *Sequencer {
	beat := cfg.BeatInterval
	if beat <= 0 {
		beat = defaultBeatInterval
	}
	duration := cfg.ShuffleDuration
	if duration <= 0 {
		duration = defaultShuffleDuration
	}
	logger := cfg.Logger
	if logger == nil {
		logger = sequencerNoOpLogger
	}
	return &Sequencer{
		phase:           PhaseIdle,
		beatInterval:    beat,
		shuffleDuration: duration,
		logger:          logger,
	}
}

// Phase returns the current animation phase.
func (s *Sequencer) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// ShuffleSeed returns the monotonically increasing wobble seed. It carries no
// business data.
func (s *Sequencer) ShuffleSeed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shuffleSeed
}

// WinnerID returns the committed winner of the last reveal sequence.
func (s *Sequencer) WinnerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.winnerID
}

// Deal plays the dealing sequence from idle and settles in ready.
func (s *Sequencer) Deal(ctx context.Context) (<-chan error, error) {
	return s.start(ctx, PhaseDealing, "")
}

// Shuffle plays the wobble sequence from ready and returns to ready.
func (s *Sequencer) Shuffle(ctx context.Context) (<-chan error, error) {
	return s.start(ctx, PhaseShuffling, "")
}

// RevealWinner plays a shuffle-style beat sequence, commits the winner id,
// and returns to ready.
func (s *Sequencer) RevealWinner(ctx context.Context, winnerID string) (<-chan error, error) {
	return s.start(ctx, PhaseRevealingWinner, winnerID)
}

// Reset cancels any in-flight sequence and returns the deck to idle. Used
// when the round or session changes underneath the animation.
func (s *Sequencer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		close(s.cancel)
		s.cancel = nil
	}
	s.running = false
	s.phase = PhaseIdle
	s.winnerID = ""
}

func (s *Sequencer) start(ctx context.Context, target Phase, winnerID string) (<-chan error, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrSequenceInFlight
	}
	s.running = true
	s.phase = target
	cancel := make(chan struct{})
	s.cancel = cancel
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.run(ctx, cancel, target, winnerID)
	}()
	return done, nil
}

func (s *Sequencer) run(ctx context.Context, cancel chan struct{}, target Phase, winnerID string) error {
	beats := int(s.shuffleDuration / s.beatInterval)
	if beats < 1 {
		beats = 1
	}

	for beat := 0; beat < beats; beat++ {
		if err := s.wait(ctx, cancel); err != nil {
			s.finish(cancel, PhaseIdle, "")
			return err
		}
		s.tick()
	}

	switch target {
	case PhaseRevealingWinner:
		s.finish(cancel, PhaseReady, winnerID)
	default:
		s.finish(cancel, PhaseReady, "")
	}
	s.logger.Debug("animation sequence complete", zap.String("sequence", string(target)))
	return nil
}

func (s *Sequencer) wait(ctx context.Context, cancel chan struct{}) error {
	timer := time.NewTimer(s.beatInterval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-cancel:
		return ErrSequenceCancelled
	case <-ctx.Done():
		return ErrSequenceCancelled
	}
}

func (s *Sequencer) tick() {
	s.mu.Lock()
	s.shuffleSeed++
	s.mu.Unlock()
}

func (s *Sequencer) finish(cancel chan struct{}, phase Phase, winnerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A Reset may have replaced the cancel channel; only the owning sequence
	// is allowed to settle the phase.
	if s.cancel != cancel {
		return
	}
	s.cancel = nil
	s.running = false
	s.phase = phase
	if winnerID != "" {
		s.winnerID = winnerID
	}
}
