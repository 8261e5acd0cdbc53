/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package world

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/substrate-run/substrate/internal/trace"
)

// Dialer opens the byte-stream connection to a world agent; the macOS
// backend dials a local TCP port standing in for the VM's vsock
// listener, the Windows backend dials a named pipe. remoteBackend is
// agnostic to which.
type Dialer func(ctx context.Context) (net.Conn, error)

// agentBaseURL is a fixed placeholder host: the Dialer ignores the
// network address entirely and always connects to the same agent, so
// the URL only needs to be well-formed, not resolvable.
const agentBaseURL = "http://world-agent"

// remoteBackend implements Backend by speaking plain HTTP (session
// lifecycle, non-PTY exec, fs diff, policy updates) plus a WebSocket
// upgrade for PTY streaming to a world agent process running inside a
// Linux VM (macOS) or WSL distro (Windows). This is SPEC_FULL §11's
// HTTP/WebSocket replacement for the teacher's gRPC chat transport.
type remoteBackend struct {
	name   Name
	opts   Options
	client *http.Client
	dial   Dialer
}

func newRemoteBackend(name Name, dial Dialer, opts Options) *remoteBackend {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dial(ctx)
		},
	}
	return &remoteBackend{
		name:   name,
		opts:   opts,
		client: &http.Client{Transport: transport, Timeout: 60 * time.Second},
		dial:   dial,
	}
}

func (b *remoteBackend) doJSON(ctx context.Context, method, path string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("world: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, agentBaseURL+path, body)
	if err != nil {
		return fmt.Errorf("world: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("world: agent request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("world: agent returned %d for %s %s: %s", resp.StatusCode, method, path, string(data))
	}
	if respBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("world: decode response from %s %s: %w", method, path, err)
	}
	return nil
}

func (b *remoteBackend) EnsureSession(ctx context.Context, spec Spec) (*Handle, error) {
	var handle Handle
	if err := b.doJSON(ctx, http.MethodPost, "/sessions", spec, &handle); err != nil {
		return nil, err
	}
	if b.opts.Metrics != nil {
		b.opts.Metrics.SessionsTotal.WithLabelValues(string(b.name), "ok").Inc()
	}
	return &handle, nil
}

func (b *remoteBackend) Exec(ctx context.Context, handle *Handle, req ExecRequest) (*ExecResult, error) {
	if req.Pty {
		return nil, fmt.Errorf("world: Exec does not support pty requests; use ExecPTY")
	}
	start := time.Now()
	var result ExecResult
	path := fmt.Sprintf("/sessions/%s/exec", handle.ID)
	if err := b.doJSON(ctx, http.MethodPost, path, req, &result); err != nil {
		return nil, err
	}
	if b.opts.Metrics != nil {
		exitClass := "ok"
		if result.Exit != 0 {
			exitClass = "nonzero"
		}
		b.opts.Metrics.ExecTotal.WithLabelValues(string(b.name), exitClass).Inc()
		b.opts.Metrics.ExecDuration.WithLabelValues(string(b.name)).Observe(time.Since(start).Seconds())
	}
	return &result, nil
}

// ExecPTY executes req (which must have Pty set) over a WebSocket
// byte-stream, copying stdin to the agent and the agent's combined
// output to stdout until the agent signals completion. It returns the
// exit code the agent reports in its final control frame.
func (b *remoteBackend) ExecPTY(ctx context.Context, handle *Handle, req ExecRequest, stdin io.Reader, stdout io.Writer) (int, error) {
	conn, err := b.dial(ctx)
	if err != nil {
		return 0, fmt.Errorf("world: dial agent for pty: %w", err)
	}

	wsURL := fmt.Sprintf("ws://world-agent/sessions/%s/pty", handle.ID)
	c, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient: &http.Client{Transport: &http.Transport{
			DialContext: func(context.Context, string, string) (net.Conn, error) { return conn, nil },
		}},
	})
	if err != nil {
		return 0, fmt.Errorf("world: websocket dial: %w", err)
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	initFrame, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("world: marshal pty init frame: %w", err)
	}
	if err := c.Write(ctx, websocket.MessageText, initFrame); err != nil {
		return 0, fmt.Errorf("world: write pty init frame: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 32*1024)
		for {
			n, err := stdin.Read(buf)
			if n > 0 {
				if werr := c.Write(ctx, websocket.MessageBinary, buf[:n]); werr != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			<-done
			return 0, fmt.Errorf("world: pty stream closed: %w", err)
		}
		if msgType == websocket.MessageBinary {
			_, _ = stdout.Write(data)
			continue
		}
		// A text frame is the agent's final control message: a small
		// JSON object reporting the exit code.
		var ctrl struct {
			Exit int `json:"exit"`
		}
		if err := json.Unmarshal(data, &ctrl); err != nil {
			return 0, fmt.Errorf("world: decode pty control frame: %w", err)
		}
		return ctrl.Exit, nil
	}
}

func (b *remoteBackend) FsDiff(ctx context.Context, handle *Handle, spanID string) (*trace.FsDiff, error) {
	var diff trace.FsDiff
	path := fmt.Sprintf("/sessions/%s/fsdiff?span_id=%s", handle.ID, spanID)
	if err := b.doJSON(ctx, http.MethodGet, path, nil, &diff); err != nil {
		return nil, err
	}
	return &diff, nil
}

func (b *remoteBackend) ApplyPolicy(ctx context.Context, handle *Handle, spec Spec) error {
	path := fmt.Sprintf("/sessions/%s/policy", handle.ID)
	return b.doJSON(ctx, http.MethodPost, path, spec, nil)
}

func (b *remoteBackend) Close(ctx context.Context, handle *Handle) error {
	path := fmt.Sprintf("/sessions/%s", handle.ID)
	err := b.doJSON(ctx, http.MethodDelete, path, nil, nil)
	if b.opts.Metrics != nil {
		b.opts.Metrics.SessionsActive.Dec()
	}
	return err
}
