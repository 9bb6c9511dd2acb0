package callbacks

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/grovetools/editsync/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallFiresOnce(t *testing.T) {
	r := New()
	var calls int
	var got error = errors.New(errors.ErrCodeInternal, "sentinel")

	require.NoError(t, r.RegisterID("req-1", func(err error) {
		calls++
		got = err
	}))

	assert.True(t, r.Call("req-1"))
	assert.False(t, r.Call("req-1"))
	assert.False(t, r.CallError("req-1", "disk full"))

	assert.Equal(t, 1, calls)
	assert.NoError(t, got)
	assert.Zero(t, r.Pending())
}

func TestCallErrorOnUnknownIDIsNoop(t *testing.T) {
	r := New()
	assert.NotPanics(t, func() {
		assert.False(t, r.CallError("req-1", "disk full"))
	})
}

func TestCallErrorMessages(t *testing.T) {
	r := New()
	var got []string
	record := func(err error) { got = append(got, err.Error()) }

	require.NoError(t, r.RegisterID("a", record))
	require.NoError(t, r.RegisterID("b", record))

	assert.True(t, r.CallError("a", "disk full"))
	assert.True(t, r.CallError("b", ""))
	assert.Equal(t, []string{"disk full", errors.DefaultCallbackErrorMessage}, got)
}

func TestRegisterGeneratesUUIDs(t *testing.T) {
	r := New()
	a := r.Register(func(error) {})
	b := r.Register(func(error) {})

	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
	assert.Equal(t, 2, r.Pending())

	ids := r.IDs()
	assert.Len(t, ids, 2)
	assert.ElementsMatch(t, []string{a, b}, ids)
}

func TestRegisterIDValidation(t *testing.T) {
	r := New()
	assert.True(t, errors.Is(r.RegisterID("", nil), errors.ErrCodeInvalidInput))

	require.NoError(t, r.RegisterID("dup", nil))
	assert.True(t, errors.Is(r.RegisterID("dup", nil), errors.ErrCodeCallbackExists))

	// A nil handler still consumes the id.
	assert.True(t, r.Call("dup"))
	assert.False(t, r.Call("dup"))
}

func TestForget(t *testing.T) {
	r := New()
	fired := false
	id := r.Register(func(error) { fired = true })

	assert.True(t, r.Forget(id))
	assert.False(t, r.Forget(id))
	assert.False(t, r.Call(id))
	assert.False(t, fired)
}

func TestConcurrentCallsFireOnce(t *testing.T) {
	r := New()
	var fired atomic.Int32
	id := r.Register(func(error) { fired.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				r.Call(id)
			} else {
				r.CallError(id, "")
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), fired.Load())
}

func TestHandlerMayReenterRegistry(t *testing.T) {
	r := New()
	var next string
	first := r.Register(func(error) {
		next = r.Register(func(error) {})
	})

	assert.True(t, r.Call(first))
	assert.Equal(t, []string{next}, r.IDs())
}
