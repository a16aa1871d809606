package toolclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"docchat/internal/domain"
)

// ResultKind tags the shape of a raw remote reply before normalization.
type ResultKind int

const (
	KindContent  ResultKind = iota // tool call content items
	KindMessages                   // prompt-style message list
	KindResource                   // resource read contents
	KindRaw                        // anything else, stringified
)

// ResourceContent is one item of a resource read result.
type ResourceContent struct {
	URI      string
	MIMEType string
	Text     string
	Blob     []byte
}

// RawResult is the tagged variant of a remote reply. It is produced by the
// client and consumed immediately by the invocation adapter.
type RawResult struct {
	Kind     ResultKind
	Texts    []string          // content or message texts, in order
	Contents []ResourceContent // resource reads only
	Raw      string            // fallback stringification
	IsError  bool              // remote-side tool error flag
}

// Config controls session establishment and per-call deadlines.
type Config struct {
	ConnectTimeout time.Duration
	CallTimeout    time.Duration
}

// Client owns the single persistent session to the tool-execution server.
// All network I/O happens on one background goroutine; synchronous callers
// hand a request over a channel and block on the reply with a deadline, so
// in-flight calls are single-flight by construction.
type Client struct {
	cfg      Config
	log      *zap.Logger
	mcp      *client.Client
	requests chan request
}

type callKind int

const (
	callTool callKind = iota
	callResource
	callPrompt
)

type request struct {
	kind       callKind
	name       string
	args       map[string]any
	promptArgs map[string]string
	reply      chan outcome
}

type outcome struct {
	raw RawResult
	err error
}

// New creates an unconnected client. Connect must be called before use.
func New(cfg Config, log *zap.Logger) *Client {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = 120 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{cfg: cfg, log: log, requests: make(chan request)}
}

// Connect establishes the streaming session and starts the background
// worker. It completes or fails within the configured connect timeout;
// a failure leaves the client unconnected but usable for error reporting.
func (c *Client) Connect(serverURL string) error {
	mc, err := client.NewSSEMCPClient(serverURL)
	if err != nil {
		return fmt.Errorf("create sse client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
	defer cancel()
	if err := mc.Start(ctx); err != nil {
		return fmt.Errorf("start sse session: %w", err)
	}
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "docchat", Version: "1.0.0"}
	if _, err := mc.Initialize(ctx, initReq); err != nil {
		_ = mc.Close()
		return fmt.Errorf("initialize session: %w", err)
	}
	c.mcp = mc
	go c.run()
	c.log.Info("tool session established", zap.String("url", serverURL))
	return nil
}

// Connected reports whether a session is established.
func (c *Client) Connected() bool { return c.mcp != nil }

// Close shuts down the session and the background worker.
func (c *Client) Close() error {
	if c.mcp == nil {
		return nil
	}
	close(c.requests)
	err := c.mcp.Close()
	c.mcp = nil
	return err
}

// Invoke submits a tool invocation and blocks until a result or error is
// available, bounded by the per-call timeout.
func (c *Client) Invoke(name string, params map[string]any) (RawResult, error) {
	return c.submit(request{kind: callTool, name: name, args: params})
}

// ReadResource reads a resource by URI on the existing session.
func (c *Client) ReadResource(uri string) (RawResult, error) {
	return c.submit(request{kind: callResource, name: uri})
}

// GetPrompt renders a prompt template by name on the existing session.
func (c *Client) GetPrompt(name string, params map[string]string) (RawResult, error) {
	return c.submit(request{kind: callPrompt, name: name, promptArgs: params})
}

func (c *Client) submit(req request) (RawResult, error) {
	if c.mcp == nil {
		return RawResult{}, domain.ErrNotConnected
	}
	req.reply = make(chan outcome, 1)
	deadline := time.NewTimer(c.cfg.CallTimeout)
	defer deadline.Stop()
	select {
	case c.requests <- req:
	case <-deadline.C:
		return RawResult{}, domain.ErrCallTimeout
	}
	select {
	case out := <-req.reply:
		return out.raw, out.err
	case <-deadline.C:
		c.log.Warn("tool call deadline expired", zap.String("name", req.name))
		return RawResult{}, domain.ErrCallTimeout
	}
}

// run is the only goroutine that performs network I/O against the server.
func (c *Client) run() {
	for req := range c.requests {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CallTimeout)
		var out outcome
		switch req.kind {
		case callTool:
			out = c.doCallTool(ctx, req)
		case callResource:
			out = c.doReadResource(ctx, req)
		case callPrompt:
			out = c.doGetPrompt(ctx, req)
		}
		cancel()
		req.reply <- out
	}
}

func (c *Client) doCallTool(ctx context.Context, req request) outcome {
	call := mcp.CallToolRequest{}
	call.Params.Name = req.name
	call.Params.Arguments = req.args
	res, err := c.mcp.CallTool(ctx, call)
	if err != nil {
		return outcome{err: fmt.Errorf("call tool %s: %w", req.name, err)}
	}
	raw := RawResult{Kind: KindContent, IsError: res.IsError}
	for _, item := range res.Content {
		if tc, ok := item.(mcp.TextContent); ok {
			raw.Texts = append(raw.Texts, tc.Text)
		}
	}
	if len(raw.Texts) == 0 {
		raw.Kind = KindRaw
		raw.Raw = fmt.Sprintf("%v", res.Content)
	}
	return outcome{raw: raw}
}

func (c *Client) doReadResource(ctx context.Context, req request) outcome {
	read := mcp.ReadResourceRequest{}
	read.Params.URI = req.name
	res, err := c.mcp.ReadResource(ctx, read)
	if err != nil {
		return outcome{err: fmt.Errorf("read resource %s: %w", req.name, err)}
	}
	raw := RawResult{Kind: KindResource}
	for _, item := range res.Contents {
		switch rc := item.(type) {
		case mcp.TextResourceContents:
			raw.Contents = append(raw.Contents, ResourceContent{URI: rc.URI, MIMEType: rc.MIMEType, Text: rc.Text})
		case mcp.BlobResourceContents:
			blob, decErr := base64.StdEncoding.DecodeString(rc.Blob)
			if decErr != nil {
				c.log.Warn("undecodable resource blob", zap.String("uri", rc.URI), zap.Error(decErr))
				continue
			}
			raw.Contents = append(raw.Contents, ResourceContent{URI: rc.URI, MIMEType: rc.MIMEType, Blob: blob})
		}
	}
	if len(raw.Contents) == 0 {
		raw.Kind = KindRaw
		raw.Raw = fmt.Sprintf("%v", res.Contents)
	}
	return outcome{raw: raw}
}

func (c *Client) doGetPrompt(ctx context.Context, req request) outcome {
	get := mcp.GetPromptRequest{}
	get.Params.Name = req.name
	get.Params.Arguments = req.promptArgs
	res, err := c.mcp.GetPrompt(ctx, get)
	if err != nil {
		return outcome{err: fmt.Errorf("get prompt %s: %w", req.name, err)}
	}
	raw := RawResult{Kind: KindMessages}
	for _, msg := range res.Messages {
		if tc, ok := msg.Content.(mcp.TextContent); ok {
			raw.Texts = append(raw.Texts, tc.Text)
		} else {
			raw.Texts = append(raw.Texts, fmt.Sprintf("%v", msg.Content))
		}
	}
	if len(raw.Texts) == 0 {
		raw.Kind = KindRaw
		raw.Raw = fmt.Sprintf("%v", res.Messages)
	}
	return outcome{raw: raw}
}
