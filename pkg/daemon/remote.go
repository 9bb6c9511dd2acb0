package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/grovetools/editsync/errors"
	"github.com/grovetools/editsync/pkg/editorsync"
	"github.com/grovetools/editsync/pkg/models"
)

// RemoteClient implements Client by calling the daemon's HTTP API over a Unix socket.
type RemoteClient struct {
	httpClient *http.Client
	socketPath string
	baseURL    string
}

// NewRemoteClient creates a new RemoteClient connected to the daemon socket.
func NewRemoteClient(socketPath string) (*RemoteClient, error) {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
		DisableKeepAlives: false,
		MaxIdleConns:      10,
		IdleConnTimeout:   90 * time.Second,
	}

	return &RemoteClient{
		httpClient: &http.Client{Transport: transport, Timeout: 30 * time.Second},
		socketPath: socketPath,
		baseURL:    baseURL,
	}, nil
}

// newHTTPClient points a client at an ordinary HTTP endpoint. Tests use it
// with httptest servers.
func newHTTPClient(base string, hc *http.Client) *RemoteClient {
	return &RemoteClient{httpClient: hc, baseURL: strings.TrimSuffix(base, "/")}
}

// baseURL is the dummy host used for Unix socket HTTP requests.
// The actual connection goes through the Unix socket, not this URL.
const baseURL = "http://unix"

// do sends a JSON request and decodes a JSON response into out. Error
// responses carrying a SessionError body are returned as that error.
func (c *RemoteClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.DaemonUnavailable(c.socketPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		var sessionErr errors.SessionError
		if json.Unmarshal(data, &sessionErr) == nil && sessionErr.Code != "" {
			return &sessionErr
		}
		return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// State returns the session status.
func (c *RemoteClient) State(ctx context.Context) (*editorsync.Status, error) {
	var status editorsync.Status
	if err := c.do(ctx, http.MethodGet, "/api/state", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Modules returns the module paths known to the session.
func (c *RemoteClient) Modules(ctx context.Context) ([]string, error) {
	var resp struct {
		Paths []string `json:"paths"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/modules", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Paths, nil
}

// Callbacks returns the pending callback ids.
func (c *RemoteClient) Callbacks(ctx context.Context) ([]string, error) {
	var resp struct {
		IDs []string `json:"ids"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/callbacks", nil, &resp); err != nil {
		return nil, err
	}
	return resp.IDs, nil
}

func (c *RemoteClient) ResolveCallback(ctx context.Context, id string) (bool, error) {
	var resp struct {
		Fired bool `json:"fired"`
	}
	err := c.do(ctx, http.MethodPost, "/api/callbacks/"+url.PathEscape(id)+"/resolve", nil, &resp)
	return resp.Fired, err
}

func (c *RemoteClient) RejectCallback(ctx context.Context, id, message string) (bool, error) {
	var resp struct {
		Fired bool `json:"fired"`
	}
	body := map[string]string{"message": message}
	err := c.do(ctx, http.MethodPost, "/api/callbacks/"+url.PathEscape(id)+"/reject", body, &resp)
	return resp.Fired, err
}

func (c *RemoteClient) ApplyOperations(ctx context.Context, batch models.OperationBatch) error {
	return c.do(ctx, http.MethodPost, "/api/operations", batch, nil)
}

func (c *RemoteClient) RunCommand(ctx context.Context, command string) error {
	return c.do(ctx, http.MethodPost, "/api/commands", map[string]string{"command": command}, nil)
}

func (c *RemoteClient) SetVimExtensionEnabled(ctx context.Context, enabled bool) error {
	return c.do(ctx, http.MethodPost, "/api/extensions/vim", map[string]bool{"enabled": enabled}, nil)
}

// IsRunning returns true if the daemon is available and responding.
func (c *RemoteClient) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// StreamModules subscribes to module updates via Server-Sent Events (SSE).
func (c *RemoteClient) StreamModules(ctx context.Context) (<-chan ModuleUpdate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}

	// Streaming needs a client without a timeout.
	streamClient := &http.Client{Transport: c.httpClient.Transport}

	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, errors.DaemonUnavailable(c.socketPath, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	ch := make(chan ModuleUpdate, 10)

	go func() {
		defer resp.Body.Close()
		defer close(ch)

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, ":") || line == "" {
				continue
			}
			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			var update ModuleUpdate
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &update); err != nil {
				continue
			}
			select {
			case ch <- update:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// Close cleans up any resources used by the client.
func (c *RemoteClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Ensure RemoteClient implements Client interface.
var _ Client = (*RemoteClient)(nil)
