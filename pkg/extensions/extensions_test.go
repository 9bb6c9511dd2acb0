package extensions

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/grovetools/editsync/errors"
	"github.com/grovetools/editsync/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	values map[string]string
	writes int
	err    error
}

func newMapStore() *mapStore {
	return &mapStore{values: make(map[string]string)}
}

func (s *mapStore) GetString(key string) (string, bool, error) {
	if s.err != nil {
		return "", false, s.err
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *mapStore) SetString(key, value string) error {
	s.writes++
	s.values[key] = value
	return nil
}

type recordingController struct {
	calls []string
}

func (c *recordingController) EnableExtension(ctx context.Context, id string) error {
	c.calls = append(c.calls, "enable:"+id)
	return nil
}

func (c *recordingController) DisableExtension(ctx context.Context, id string) error {
	c.calls = append(c.calls, "disable:"+id)
	return nil
}

func TestLookup(t *testing.T) {
	id, err := Lookup("vscodevim.vim")
	require.NoError(t, err)
	assert.Equal(t, Vim, id)

	_, err = Lookup("other.ext")
	assert.True(t, errors.Is(err, errors.ErrCodeUnknownExtension))
	se, ok := errors.As(err)
	require.True(t, ok)
	assert.NotContains(t, se.Details, "suggestion")
	assert.Equal(t, []ID{Vim}, All())

	_, err = Lookup("vscodevim.vin")
	se, ok = errors.As(err)
	require.True(t, ok)
	assert.Equal(t, "vscodevim.vim", se.Details["suggestion"])
}

func TestDisableWritesDefaultRecord(t *testing.T) {
	store := newMapStore()
	toggle := NewToggle(store, testutil.QuietLogger())
	ctrl := &recordingController{}

	require.NoError(t, toggle.Apply(context.Background(), ctrl, Vim, false))

	assert.JSONEq(t, `[{"id":"vscodevim.vim"}]`, store.values[DisabledKey])
	assert.Equal(t, []string{"disable:vscodevim.vim"}, ctrl.calls)

	disabled, err := toggle.IsDisabled(Vim)
	require.NoError(t, err)
	assert.True(t, disabled)
}

func TestDisableDoesNotClobberExistingRecord(t *testing.T) {
	store := newMapStore()
	store.values[DisabledKey] = `[{"id":"other.ext"}]`
	toggle := NewToggle(store, testutil.QuietLogger())
	ctrl := &recordingController{}

	require.NoError(t, toggle.Apply(context.Background(), ctrl, Vim, false))

	assert.Equal(t, `[{"id":"other.ext"}]`, store.values[DisabledKey])
	assert.Zero(t, store.writes)
	assert.Equal(t, []string{"disable:vscodevim.vim"}, ctrl.calls)
}

func TestPrepareDisableIsIdempotent(t *testing.T) {
	store := newMapStore()
	toggle := NewToggle(store, testutil.QuietLogger())

	wrote, err := toggle.PrepareDisable(Vim)
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = toggle.PrepareDisable(Vim)
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Equal(t, 1, store.writes)
}

func TestUnparseableRecordCountsAsConfigured(t *testing.T) {
	store := newMapStore()
	store.values[DisabledKey] = `not json`
	toggle := NewToggle(store, testutil.QuietLogger())

	configured, records, err := toggle.Status()
	require.NoError(t, err)
	assert.True(t, configured)
	assert.Empty(t, records)

	wrote, err := toggle.PrepareDisable(Vim)
	require.NoError(t, err)
	assert.False(t, wrote)
	assert.Equal(t, `not json`, store.values[DisabledKey])
}

func TestEnableLeavesRecord(t *testing.T) {
	store := newMapStore()
	toggle := NewToggle(store, testutil.QuietLogger())
	ctrl := &recordingController{}

	require.NoError(t, toggle.Apply(context.Background(), ctrl, Vim, true))
	assert.Equal(t, []string{"enable:vscodevim.vim"}, ctrl.calls)
	assert.Zero(t, store.writes)
}

func TestStoreErrorsAreWrapped(t *testing.T) {
	store := newMapStore()
	store.err = stderrors.New("disk unavailable")
	toggle := NewToggle(store, testutil.QuietLogger())
	ctrl := &recordingController{}

	err := toggle.Apply(context.Background(), ctrl, Vim, false)
	assert.True(t, errors.Is(err, errors.ErrCodeExtensionStore))
	assert.Empty(t, ctrl.calls)
}
