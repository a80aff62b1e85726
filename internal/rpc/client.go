// Package rpc implements a JSON-RPC 2.0 client over a pair of byte streams,
// one request or response per line.
//
// Any number of calls may be outstanding. Responses are matched to calls by
// id only, so the peer may answer in any order. Every call settles exactly
// once: with its result, with the peer's error, with a timeout, or with the
// error the client was closed with.
package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	rberrors "revbridge.dev/revbridge/internal/errors"
	"revbridge.dev/revbridge/internal/events"
)

// DefaultCallTimeout is generous because backend operations such as
// searches or PDF retrieval can run for minutes.
const DefaultCallTimeout = 5 * time.Minute

// Client correlates outbound requests with inbound responses.
type Client struct {
	w       io.Writer
	writeMu sync.Mutex

	mu       sync.Mutex
	nextID   uint64
	pending  map[uint64]*pendingCall
	closed   bool
	closeErr error

	timeout     time.Duration
	diagnostics events.Bus[error]
}

type pendingCall struct {
	method string
	ch     chan outcome
	timer  *time.Timer
}

type outcome struct {
	result json.RawMessage
	err    error
}

// Option configures a Client.
type Option func(*Client)

// WithDefaultTimeout sets the timeout applied to calls that do not set their own.
// A non-positive value disables the default deadline.
func WithDefaultTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// CallOption configures a single call.
type CallOption func(*callConfig)

type callConfig struct {
	timeout time.Duration
}

// WithTimeout overrides the client's default timeout for one call.
// A non-positive value means the call waits until it is answered, cancelled or the client closes.
func WithTimeout(d time.Duration) CallOption {
	return func(cfg *callConfig) {
		cfg.timeout = d
	}
}

// NewClient creates a Client that writes requests to w. Responses must be
// fed to it with Serve.
func NewClient(w io.Writer, opts ...Option) *Client {
	c := &Client{
		w:       w,
		pending: make(map[uint64]*pendingCall),
		timeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnDiagnostic subscribes to non-fatal protocol problems: malformed lines and
// error responses that carry no id.
func (c *Client) OnDiagnostic(fn func(error)) (unsubscribe func()) {
	return c.diagnostics.Subscribe(fn)
}

// Call sends method with params and waits for its settlement.
func (c *Client) Call(ctx context.Context, method string, params any, opts ...CallOption) (json.RawMessage, error) {
	cfg := callConfig{timeout: c.timeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	c.mu.Lock()
	if c.closed {
		err := c.closeErr
		c.mu.Unlock()
		return nil, err
	}
	c.nextID++
	id := c.nextID
	pc := &pendingCall{method: method, ch: make(chan outcome, 1)}
	c.pending[id] = pc
	if cfg.timeout > 0 {
		timeout := cfg.timeout
		pc.timer = time.AfterFunc(timeout, func() {
			c.settle(id, outcome{err: &rberrors.CallTimeoutError{Method: method, Timeout: timeout}})
		})
	}
	c.mu.Unlock()

	if err := c.write(Request{Method: method, Params: params, ID: id}); err != nil {
		c.settle(id, outcome{err: err})
	}

	select {
	case out := <-pc.ch:
		return out.result, out.err
	case <-ctx.Done():
		c.settle(id, outcome{err: ctx.Err()})
		out := <-pc.ch
		return out.result, out.err
	}
}

// CallInto is Call followed by decoding the result into out.
func (c *Client) CallInto(ctx context.Context, method string, params, out any, opts ...CallOption) error {
	result, err := c.Call(ctx, method, params, opts...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

func (c *Client) write(req Request) error {
	line, err := EncodeRequest(req)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.w.Write(line); err != nil {
		return fmt.Errorf("write %s request: %w", req.Method, err)
	}
	return nil
}

// settle removes id from the pending table and delivers out to its caller.
// It reports false when the id was unknown or already settled.
func (c *Client) settle(id uint64, out outcome) bool {
	pc := c.take(id)
	if pc == nil {
		return false
	}
	pc.ch <- out
	return true
}

func (c *Client) take(id uint64) *pendingCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	pc, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	if pc.timer != nil {
		pc.timer.Stop()
	}
	return pc
}

// Serve reads newline-delimited responses from r until EOF or a read error.
// It returns nil on EOF. Serve does not close the client.
func (c *Client) Serve(r io.Reader) error {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := br.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			c.HandleLine(line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// HandleLine processes one inbound line. Malformed lines and responses for
// unknown ids never affect pending calls.
func (c *Client) HandleLine(line []byte) {
	line = bytes.TrimSpace(line)
	resp, err := DecodeResponse(line)
	if err != nil {
		c.diagnostics.Publish(&rberrors.ProtocolDecodeError{Line: string(line), Err: err})
		return
	}
	if !resp.HasID {
		c.diagnostics.Publish(&rberrors.RemoteError{
			Method:  "(unattributed)",
			Code:    resp.Error.Code,
			Message: resp.Error.Message,
			Data:    resp.Error.DataString(),
		})
		return
	}

	pc := c.take(resp.ID)
	if pc == nil {
		return
	}
	if resp.Error != nil {
		pc.ch <- outcome{err: &rberrors.RemoteError{
			Method:  pc.method,
			Code:    resp.Error.Code,
			Message: resp.Error.Message,
			Data:    resp.Error.DataString(),
		}}
		return
	}
	result := resp.Result
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	pc.ch <- outcome{result: result}
}

// Close rejects every pending call with err (ErrStopped when nil) and makes
// later calls fail immediately with the same error. Closing twice is a no-op.
func (c *Client) Close(err error) {
	if err == nil {
		err = rberrors.ErrStopped
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.closeErr = err
	pending := c.pending
	c.pending = make(map[uint64]*pendingCall)
	c.mu.Unlock()

	for _, pc := range pending {
		if pc.timer != nil {
			pc.timer.Stop()
		}
		pc.ch <- outcome{err: err}
	}
}

// Stats is a point-in-time view of the client.
type Stats struct {
	Pending int
	LastID  uint64
	Closed  bool
}

// Stats returns the current pending count and the last id handed out.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Pending: len(c.pending), LastID: c.nextID, Closed: c.closed}
}
