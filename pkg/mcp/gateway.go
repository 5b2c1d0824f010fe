// Package mcp is a stdio JSON-RPC client for the tour tool backend. One
// long-lived child process carries all calls; a mutex serializes traffic over
// the pipe so concurrent handlers never interleave frames.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/vrtravels/tour-concierge/agent/contract"
)

const protocolVersion = "2024-11-05"

type Config struct {
	Command string        `envconfig:"COMMAND" split_words:"true" required:"true"`
	Args    []string      `envconfig:"ARGS" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	Method  string          `json:"method,omitempty"`
}

// Gateway owns the backend channel and the cached tool list. Connect is a
// startup-time dependency: a failure there is fatal and not retried.
type Gateway struct {
	cfg Config

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	frames chan []byte

	nextID int64
	tools  []string

	serial serializer
}

// serializer is a one-slot channel used as a mutex that also honors context
// cancellation while waiting.
type serializer chan struct{}

func (s serializer) acquire(ctx context.Context) error {
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s serializer) release() { <-s }

var _ contractx.ToolGateway = (*Gateway)(nil)

func NewGateway(cfg Config) (*Gateway, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("%w: mcp command is required", contractx.ErrValidation)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Gateway{
		cfg:    cfg,
		serial: make(serializer, 1),
	}, nil
}

// Connect spawns the backend process, runs the initialize handshake, and
// caches the advertised tool names.
func (g *Gateway) Connect(ctx context.Context) error {
	cmd := exec.Command(strings.TrimSpace(g.cfg.Command), g.cfg.Args...)
	cmd.Env = os.Environ()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("open stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start tool backend: %w", err)
	}
	go drainStderr(stderr)

	g.cmd = cmd
	g.stdin = stdin
	g.frames = make(chan []byte, 8)
	go readLoop(bufio.NewReader(stdout), g.frames)

	if _, err := g.call(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"clientInfo": map[string]any{
			"name":    "tour-client",
			"version": "1.0.0",
		},
		"capabilities": map[string]any{},
	}); err != nil {
		g.kill()
		return fmt.Errorf("initialize handshake: %w", err)
	}
	if err := g.notify("notifications/initialized"); err != nil {
		g.kill()
		return fmt.Errorf("initialized notification: %w", err)
	}

	raw, err := g.call(ctx, "tools/list", map[string]any{})
	if err != nil {
		g.kill()
		return fmt.Errorf("list tools: %w", err)
	}
	var listed struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(raw, &listed); err != nil {
		g.kill()
		return fmt.Errorf("decode tools list: %w", err)
	}
	g.tools = g.tools[:0]
	for _, t := range listed.Tools {
		if name := strings.TrimSpace(t.Name); name != "" {
			g.tools = append(g.tools, name)
		}
	}

	log.Info().Strs("tools", g.tools).Msg("connected to tool backend")
	return nil
}

// Tools returns the tool names cached at connect time.
func (g *Gateway) Tools() []string {
	out := make([]string, len(g.tools))
	copy(out, g.tools)
	return out
}

// Invoke forwards one tools/call and returns the structured result unchanged.
func (g *Gateway) Invoke(ctx context.Context, name string, args map[string]any) (contractx.ToolResult, error) {
	if g.stdin == nil {
		return contractx.ToolResult{}, contractx.ErrNotConnected
	}
	if args == nil {
		args = map[string]any{}
	}

	raw, err := g.call(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return contractx.ToolResult{}, fmt.Errorf("%w: %s: %v", contractx.ErrToolInvoke, name, err)
	}

	var result contractx.ToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return contractx.ToolResult{}, fmt.Errorf("%w: %s: decode result: %v", contractx.ErrToolInvoke, name, err)
	}
	return result, nil
}

// ExtractText concatenates the text-kind blocks of a result, newline-joined
// and trimmed, defaulting to a "no results" sentinel.
func ExtractText(result contractx.ToolResult) string {
	return result.Text()
}

// Close shuts the backend down best-effort. Errors are logged, never
// propagated: this runs during teardown.
func (g *Gateway) Close() {
	if g.stdin == nil {
		return
	}
	if err := g.stdin.Close(); err != nil {
		log.Warn().Err(err).Msg("closing tool backend stdin")
	}
	if g.cmd != nil && g.cmd.Process != nil {
		done := make(chan error, 1)
		go func() { done <- g.cmd.Wait() }()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			_ = g.cmd.Process.Kill()
			<-done
		}
	}
	g.stdin = nil
	g.cmd = nil
	log.Info().Msg("tool backend connection closed")
}

func (g *Gateway) kill() {
	if g.cmd != nil && g.cmd.Process != nil {
		_ = g.cmd.Process.Kill()
		_ = g.cmd.Wait()
	}
	g.stdin = nil
	g.cmd = nil
}

// call sends one request and blocks until the matching response arrives,
// skipping server-initiated notifications interleaved on the pipe.
func (g *Gateway) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if err := g.serial.acquire(ctx); err != nil {
		return nil, err
	}
	defer g.serial.release()

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	g.nextID++
	id := g.nextID
	if err := writeFrame(g.stdin, rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}); err != nil {
		return nil, err
	}

	for {
		frame, err := g.nextFrame(callCtx)
		if err != nil {
			return nil, err
		}
		var resp rpcResponse
		if err := json.Unmarshal(frame, &resp); err != nil {
			continue
		}
		if resp.Method != "" && len(resp.ID) == 0 {
			continue // notification
		}
		if !idMatches(resp.ID, id) {
			continue
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("rpc error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	}
}

func (g *Gateway) notify(method string) error {
	return writeFrame(g.stdin, rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  map[string]any{},
	})
}

// Frames are newline-delimited JSON, one message per line.
func writeFrame(w io.Writer, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	_, err = w.Write(raw)
	return err
}

func (g *Gateway) nextFrame(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame, ok := <-g.frames:
		if !ok {
			return nil, io.EOF
		}
		return frame, nil
	}
}

// readLoop is the single reader of the backend's stdout. It closes the frame
// channel when the pipe ends, which surfaces as io.EOF to in-flight calls.
func readLoop(r *bufio.Reader, frames chan<- []byte) {
	defer close(frames)
	for {
		line, err := r.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			frames <- trimmed
		}
		if err != nil {
			return
		}
	}
}

func idMatches(raw json.RawMessage, want int64) bool {
	if len(raw) == 0 {
		return false
	}
	var got int64
	if err := json.Unmarshal(raw, &got); err != nil {
		return false
	}
	return got == want
}

func drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		log.Debug().Str("stream", "backend-stderr").Msg(scanner.Text())
	}
}
