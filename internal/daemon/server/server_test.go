package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/editsync/errors"
	"github.com/grovetools/editsync/pkg/editorsync"
	"github.com/grovetools/editsync/pkg/models"
	"github.com/grovetools/editsync/pkg/surface/memory"
	"github.com/grovetools/editsync/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modules(paths ...string) func() map[string]*models.Module {
	m := make(map[string]*models.Module, len(paths))
	for _, p := range paths {
		m[p] = &models.Module{ID: p, Path: p, Code: "abc"}
	}
	return func() map[string]*models.Module { return m }
}

// setup serves a ready session backed by the in-memory surface.
func setup(t *testing.T, opts editorsync.Options) (*httptest.Server, *editorsync.Session, *memory.Surface) {
	t.Helper()
	surf := memory.New(memory.Hooks{})
	sess := editorsync.New(editorsync.Config{}, surf.Factory(), editorsync.WithLogger(testutil.QuietLogger()))
	t.Cleanup(func() { _ = sess.Unmount() })

	if opts.ModulesByPath == nil {
		opts.ModulesByPath = modules("/a.js")
	}
	require.NoError(t, sess.Initialize(context.Background(), opts))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, sess.Wait(ctx))

	srv := New(testutil.QuietLogger())
	srv.SetSession(sess)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, sess, surf
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) errors.SessionError {
	t.Helper()
	var e errors.SessionError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	return e
}

func TestHealthAndInfo(t *testing.T) {
	srv := New(testutil.QuietLogger())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/info")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	srv.SetInfo(&Info{PID: 42, Root: "/work", Runtime: "memory"})
	resp, err = http.Get(ts.URL + "/api/info")
	require.NoError(t, err)
	defer resp.Body.Close()
	var info Info
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, 42, info.PID)
	assert.Equal(t, "/work", info.Root)
}

func TestRoutesWithoutSession(t *testing.T) {
	ts := httptest.NewServer(New(testutil.QuietLogger()).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStateAndModules(t *testing.T) {
	ts, _, _ := setup(t, editorsync.Options{ModulesByPath: modules("/b.js", "/a.js")})

	resp, err := http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	var status editorsync.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, memory.RuntimeName, status.Runtime)
	assert.Equal(t, 2, status.Modules)

	resp2, err := http.Get(ts.URL + "/api/modules")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var body struct {
		Paths []string `json:"paths"`
	}
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&body))
	assert.Equal(t, []string{"/a.js", "/b.js"}, body.Paths)
}

func TestApplyOperations(t *testing.T) {
	ts, _, surf := setup(t, editorsync.Options{})

	resp := post(t, ts.URL+"/api/operations", `{"/a.js":[3,"d"]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "abcd", surf.Text("/a.js"))

	resp = post(t, ts.URL+"/api/operations", `{"a.js":["x"]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, errors.ErrCodeInvalidOperation, decodeError(t, resp).Code)

	resp = post(t, ts.URL+"/api/operations", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, errors.ErrCodeInvalidInput, decodeError(t, resp).Code)
}

func TestRunCommand(t *testing.T) {
	ts, _, surf := setup(t, editorsync.Options{})

	resp := post(t, ts.URL+"/api/commands", `{"command":"set number"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"set number"}, surf.Commands())

	resp = post(t, ts.URL+"/api/commands", `{"command":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVimExtension(t *testing.T) {
	ts, _, surf := setup(t, editorsync.Options{})

	resp := post(t, ts.URL+"/api/extensions/vim", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts.URL+"/api/extensions/vim", `{"enabled":true}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Eventually(t, func() bool {
		enabled, _ := surf.ExtensionEnabled("vim")
		return enabled
	}, time.Second, 5*time.Millisecond)
}

func TestCallbacks(t *testing.T) {
	saves := make(chan editorsync.SaveRequest, 1)
	ts, _, surf := setup(t, editorsync.Options{
		OnSave: func(req editorsync.SaveRequest) { saves <- req },
	})

	done := surf.Save("/a.js")
	req := <-saves

	resp, err := http.Get(ts.URL + "/api/callbacks")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body struct {
		IDs []string `json:"ids"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{req.ID}, body.IDs)

	resp = post(t, ts.URL+"/api/callbacks/"+req.ID+"/reject", `{"message":"disk full"}`)
	var fired struct {
		Fired bool `json:"fired"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fired))
	assert.True(t, fired.Fired)

	err = <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	resp = post(t, ts.URL+"/api/callbacks/"+req.ID+"/resolve", ``)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fired))
	assert.False(t, fired.Fired)
}

func TestStreamSendsInitialPaths(t *testing.T) {
	ts, _, _ := setup(t, editorsync.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	var update StreamUpdate
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &update))
			break
		}
	}
	assert.Equal(t, "initial", update.UpdateType)
	assert.Equal(t, []string{"/a.js"}, update.Paths)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code errors.ErrorCode
		want int
	}{
		{errors.ErrCodeConcurrentApply, http.StatusConflict},
		{errors.ErrCodeMailboxFull, http.StatusConflict},
		{errors.ErrCodeInvalidOperation, http.StatusBadRequest},
		{errors.ErrCodeInvalidInput, http.StatusBadRequest},
		{errors.ErrCodeUnknownExtension, http.StatusNotFound},
		{errors.ErrCodeNotInitialized, http.StatusServiceUnavailable},
		{errors.ErrCodeSessionDisposed, http.StatusServiceUnavailable},
		{errors.ErrCodeSurfaceFailed, http.StatusBadGateway},
		{errors.ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.code))
		})
	}
}
