package memory

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/grovetools/editsync/pkg/models"
	"github.com/grovetools/editsync/pkg/ot"
	"github.com/grovetools/editsync/pkg/surface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticDocs map[string]*models.Module

func (d staticDocs) Module(path string) (*models.Module, bool) {
	m, ok := d[path]
	return m, ok
}

func (d staticDocs) Paths() []string {
	return models.ModulePaths(d)
}

type eventLog struct {
	changes []surface.CodeChange
	saves   []surface.SaveRequest
	done    []func(error)
}

func (l *eventLog) OnCodeChange(c surface.CodeChange) { l.changes = append(l.changes, c) }
func (l *eventLog) OnSelectionChange(surface.SelectionChange) {}
func (l *eventLog) OnSaveRequest(r surface.SaveRequest, done func(error)) {
	l.saves = append(l.saves, r)
	l.done = append(l.done, done)
}

func build(t *testing.T, s *Surface, docs staticDocs) {
	t.Helper()
	h, err := s.Factory()(context.Background(), surface.BuildConfig{Width: 80, Height: 24, Documents: docs})
	require.NoError(t, err)
	assert.Equal(t, RuntimeName, h.Runtime.Name)
	assert.True(t, h.Runtime.Has("operations"))
}

func TestApplyReadsFromDocuments(t *testing.T) {
	s := New(Hooks{})
	build(t, s, staticDocs{"/a.js": {Path: "/a.js", Code: "abc"}})
	events := &eventLog{}
	s.SetListener(events)

	require.NoError(t, s.ApplyOperations(context.Background(), models.OperationBatch{
		"/a.js": {ot.Retain(3), ot.Insert("d")},
	}))
	assert.Equal(t, "abcd", s.Text("/a.js"))
	assert.Equal(t, []string{"/a.js"}, s.Paths())
	require.Len(t, events.changes, 1)
	assert.Equal(t, "abcd", events.changes[0].Code)
}

func TestPartialFailureKeepsEarlierPaths(t *testing.T) {
	cause := stderrors.New("runtime rejected /b.js")
	s := New(Hooks{BeforeApply: func(ctx context.Context, path string) error {
		if path == "/b.js" {
			return cause
		}
		return nil
	}})
	build(t, s, staticDocs{})

	err := s.ApplyOperations(context.Background(), models.OperationBatch{
		"/a.js": {ot.Insert("a")},
		"/b.js": {ot.Insert("b")},
	})
	assert.Same(t, cause, err)
	assert.Equal(t, "a", s.Text("/a.js"))
	assert.Equal(t, "", s.Text("/b.js"))
}

func TestOverlaysAreReplaced(t *testing.T) {
	s := New(Hooks{})
	build(t, s, staticDocs{})
	m := &models.Module{Path: "/a.js"}

	require.NoError(t, s.ChangeModule(m, models.Overlays{Errors: []models.ModuleError{{}}}))
	assert.Len(t, s.Overlays("/a.js").Errors, 1)

	require.NoError(t, s.ChangeModule(m, models.Overlays{}))
	assert.True(t, s.Overlays("/a.js").Empty())
	assert.Equal(t, "/a.js", s.Active())
}

func TestSaveWaitsForAnswer(t *testing.T) {
	s := New(Hooks{})
	build(t, s, staticDocs{"/a.js": {Path: "/a.js", Code: "x"}})
	events := &eventLog{}
	s.SetListener(events)

	result := s.Save("/a.js")
	require.Len(t, events.saves, 1)
	assert.Equal(t, surface.SaveRequest{Path: "/a.js", Code: "x"}, events.saves[0])
	assert.Len(t, result, 0)

	events.done[0](nil)
	events.done[0](stderrors.New("ignored second answer"))
	assert.NoError(t, <-result)
}

func TestReadOnlyBlocksUserEdits(t *testing.T) {
	s := New(Hooks{})
	build(t, s, staticDocs{})
	require.NoError(t, s.SetReadOnly(true))

	assert.Error(t, s.Edit("/a.js", ot.Operation{ot.Insert("x")}))
	// Remote operations still apply.
	require.NoError(t, s.ApplyOperations(context.Background(), models.OperationBatch{"/a.js": {ot.Insert("x")}}))
	assert.Equal(t, "x", s.Text("/a.js"))
}

func TestClosedSurfaceFails(t *testing.T) {
	s := New(Hooks{})
	build(t, s, staticDocs{})
	require.NoError(t, s.Close())

	assert.Error(t, s.Layout(1, 1))
	assert.True(t, s.Closed())
}
