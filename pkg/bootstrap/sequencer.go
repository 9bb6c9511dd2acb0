// Package bootstrap runs the one-time construction of an editing surface and
// shares its result with every caller that needs the live surface.
package bootstrap

import (
	"context"
	"fmt"
	"sync"

	"github.com/grovetools/editsync/errors"
	"github.com/grovetools/editsync/logging"
	"github.com/grovetools/editsync/pkg/surface"
	"github.com/sirupsen/logrus"
)

// State is the lifecycle position of a Sequencer. It only moves forward.
type State int

const (
	Uninitialized State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText lets State appear by name in JSON status payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the names written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{Uninitialized, Loading, Ready, Failed} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown bootstrap state %q", text)
}

// BuildFunc constructs the surface. It runs once, on its own goroutine.
type BuildFunc func(ctx context.Context) (*surface.Handle, error)

// Continuation observes the settled bootstrap result.
type Continuation func(handle *surface.Handle, err error)

// Sequencer is a single-use state machine around a BuildFunc. A session owns
// exactly one Sequencer; a new session needs a new one.
type Sequencer struct {
	mu       sync.Mutex
	state    State
	builds   int
	handle   *surface.Handle
	err      error
	done     chan struct{}
	pending  []Continuation
	draining bool
	logger   *logrus.Entry
}

// New creates a Sequencer in the Uninitialized state.
func New(logger *logrus.Entry) *Sequencer {
	if logger == nil {
		logger = logging.NewLogger("bootstrap")
	}
	return &Sequencer{
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Start moves to Loading and runs build in the background. Cancelling ctx
// after Start returns does not stop the build. Only the first call starts a
// build; later calls return ALREADY_INITIALIZED.
func (s *Sequencer) Start(ctx context.Context, build BuildFunc) error {
	if build == nil {
		return errors.New(errors.ErrCodeInvalidInput, "bootstrap build function is required")
	}

	s.mu.Lock()
	if s.state != Uninitialized {
		state := s.state
		s.mu.Unlock()
		return errors.AlreadyInitialized().WithDetail("state", state.String())
	}
	s.state = Loading
	s.builds++
	s.mu.Unlock()

	s.logger.Debug("Starting editor bootstrap")
	go s.run(context.WithoutCancel(ctx), build)
	return nil
}

func (s *Sequencer) run(ctx context.Context, build BuildFunc) {
	var (
		handle *surface.Handle
		err    error
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = errors.BootstrapFailed("construction", fmt.Errorf("panic: %v", r))
			}
		}()
		handle, err = build(ctx)
	}()

	if err == nil && handle == nil {
		err = errors.BootstrapFailed("construction", fmt.Errorf("build returned no surface"))
	}
	if err != nil && !errors.Is(err, errors.ErrCodeBootstrapFailed) {
		err = errors.BootstrapFailed("construction", err)
	}

	s.settle(handle, err)
}

func (s *Sequencer) settle(handle *surface.Handle, err error) {
	s.mu.Lock()
	if err != nil {
		s.state = Failed
		s.err = err
	} else {
		s.state = Ready
		s.handle = handle
	}
	close(s.done)
	s.mu.Unlock()

	if err != nil {
		s.logger.WithError(err).Error("Editor bootstrap failed")
	} else {
		s.logger.WithField("runtime", handle.Runtime.Name).Info("Editor surface ready")
	}

	s.drain()
}

// Then attaches a continuation. Continuations run exactly once, in the order
// they were attached, after the bootstrap settles. A continuation attached
// after settlement runs before Then returns unless another goroutine is
// already draining.
func (s *Sequencer) Then(fn Continuation) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	s.pending = append(s.pending, fn)
	settled := s.state == Ready || s.state == Failed
	s.mu.Unlock()

	if settled {
		s.drain()
	}
}

func (s *Sequencer) drain() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true

	for len(s.pending) > 0 {
		fn := s.pending[0]
		s.pending[0] = nil
		s.pending = s.pending[1:]
		handle, err := s.handle, s.err
		s.mu.Unlock()

		s.invoke(fn, handle, err)

		s.mu.Lock()
	}

	s.draining = false
	s.mu.Unlock()
}

func (s *Sequencer) invoke(fn Continuation, handle *surface.Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("Bootstrap continuation panicked")
		}
	}()
	fn(handle, err)
}

// Wait blocks until the bootstrap settles or ctx is done. Every caller
// receives the same handle pointer. Waiting before Start blocks until a
// build is started and settles.
func (s *Sequencer) Wait(ctx context.Context) (*surface.Handle, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle, s.err
}

// Handle returns the surface without blocking when the bootstrap is Ready.
func (s *Sequencer) Handle() (*surface.Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle, s.state == Ready
}

// Done is closed once the bootstrap settles.
func (s *Sequencer) Done() <-chan struct{} {
	return s.done
}

// State returns the current lifecycle state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Builds returns how many builds were started (0 or 1).
func (s *Sequencer) Builds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builds
}

// Err returns the bootstrap failure, if any.
func (s *Sequencer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
