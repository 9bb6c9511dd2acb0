package gate

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/grovetools/editsync/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRejectOverlappingRun(t *testing.T) {
	g := New(PolicyReject)
	entered := make(chan struct{})
	finish := make(chan struct{})
	done := make(chan error)

	go func() {
		done <- g.Run(context.Background(), func(ctx context.Context) error {
			close(entered)
			<-finish
			return nil
		})
	}()
	<-entered
	assert.True(t, g.Busy())

	secondRan := false
	err := g.Run(context.Background(), func(ctx context.Context) error {
		secondRan = true
		return nil
	})
	assert.True(t, errors.Is(err, errors.ErrCodeConcurrentApply))
	assert.False(t, secondRan)

	close(finish)
	require.NoError(t, <-done)
	assert.False(t, g.Busy())
}

func TestReleaseOnFailure(t *testing.T) {
	g := New(PolicyReject)
	cause := stderrors.New("surface rejected batch")

	err := g.Run(context.Background(), func(ctx context.Context) error {
		return cause
	})
	assert.Same(t, cause, err)
	assert.False(t, g.Busy())

	ran := false
	require.NoError(t, g.Run(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}

func TestReleaseOnPanic(t *testing.T) {
	g := New(PolicyReject)

	assert.Panics(t, func() {
		_ = g.Run(context.Background(), func(ctx context.Context) error {
			panic("boom")
		})
	})
	assert.False(t, g.Busy())
}

func TestReleaseIsIdempotent(t *testing.T) {
	g := New(PolicyReject)

	release, err := g.Acquire(context.Background())
	require.NoError(t, err)
	release()
	release()

	second, err := g.Acquire(context.Background())
	require.NoError(t, err)
	// A stale release from the first holder must not open the gate.
	release()
	assert.True(t, g.Busy())
	second()
}

func TestQueuePolicyWaits(t *testing.T) {
	g := New(PolicyQueue)

	release, err := g.Acquire(context.Background())
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		r, err := g.Acquire(context.Background())
		if err == nil {
			close(acquired)
			r()
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire must wait for release")
	case <-time.After(30 * time.Millisecond):
	}

	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never proceeded")
	}
}

func TestQueuePolicyHonorsContext(t *testing.T) {
	g := New(PolicyQueue)
	release, err := g.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = g.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, PolicyQueue, ParsePolicy("queue"))
	assert.Equal(t, PolicyReject, ParsePolicy("reject"))
	assert.Equal(t, PolicyReject, ParsePolicy(""))
	assert.Equal(t, "queue", PolicyQueue.String())
}
