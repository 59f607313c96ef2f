package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrClosed reports that the transport went away while calls were pending or
// before a call could be issued.
var ErrClosed = errors.New("bridge: channel closed")

// RemoteError is a failure reported by the background context for one call.
type RemoteError struct {
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Method, e.Message)
}

type callResult struct {
	result msgpack.RawMessage
	err    error
}

// Channel is the foreground end of the request/response bridge. It assigns
// correlation ids, tracks outstanding calls and resolves each exactly once
// when its reply arrives, in any order.
type Channel struct {
	w    io.Writer
	wmu  sync.Mutex
	logf func(string, ...any)

	mu       sync.Mutex
	nextID   uint64
	pending  map[uint64]pendingCall
	closed   bool
	closeErr error
}

// pendingCall tracks one outstanding request until its reply is delivered.
type pendingCall struct {
	method string
	done   chan callResult
}

// ChannelOptions configures optional channel behavior.
type ChannelOptions struct {
	// Logf receives protocol anomalies (unmatched replies, stray requests).
	// Defaults to stderr.
	Logf func(string, ...any)
}

// Dial wraps a byte stream to the background context and waits for its
// one-time readiness frame. The returned channel is immediately usable;
// callers never see a pre-ready channel.
func Dial(ctx context.Context, rw io.ReadWriter, opts ChannelOptions) (*Channel, error) {
	logf := opts.Logf
	if logf == nil {
		logf = func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, "bridge: "+format+"\n", args...)
		}
	}
	ch := &Channel{
		w:       rw,
		logf:    logf,
		nextID:  readySentinel,
		pending: make(map[uint64]pendingCall),
	}
	in := bufio.NewReader(rw)

	ready := make(chan error, 1)
	go func() {
		var f frame
		if err := readFrame(in, &f); err != nil {
			ready <- err
			return
		}
		if f.ID != readySentinel || f.isRequest() {
			ready <- fmt.Errorf("bridge: unexpected frame before readiness (id=%d method=%q)", f.ID, f.Method)
			return
		}
		ready <- nil
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-ready:
		if err != nil {
			return nil, err
		}
	}

	go ch.readLoop(in)
	return ch, nil
}

// Call issues method with args and blocks until its reply is delivered, the
// context is canceled, or the transport closes. Arguments must be
// msgpack-serializable. Concurrent calls may be outstanding simultaneously.
func (c *Channel) Call(ctx context.Context, method string, args ...any) (msgpack.RawMessage, error) {
	encoded := make([]msgpack.RawMessage, len(args))
	for i, arg := range args {
		raw, err := msgpack.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("bridge: encode %s arg %d: %w", method, i, err)
		}
		encoded[i] = raw
	}

	c.mu.Lock()
	if c.closed {
		err := c.closeErr
		c.mu.Unlock()
		return nil, err
	}
	c.nextID++
	id := c.nextID
	done := make(chan callResult, 1)
	c.pending[id] = pendingCall{method: method, done: done}
	c.mu.Unlock()

	if err := c.write(&frame{ID: id, Method: method, Args: encoded}); err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case <-ctx.Done():
		// Abandon the wait; a late reply for this id is dropped by the
		// read loop because the entry is gone.
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	case res := <-done:
		return res.result, res.err
	}
}

// Outstanding reports the number of calls still awaiting a reply.
func (c *Channel) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Channel) write(f *frame) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return writeFrame(c.w, f)
}

func (c *Channel) readLoop(in *bufio.Reader) {
	for {
		var f frame
		if err := readFrame(in, &f); err != nil {
			c.fail(err)
			return
		}
		if f.isRequest() {
			c.logf("dropping unexpected request frame %q (id=%d)", f.Method, f.ID)
			continue
		}
		c.deliver(&f)
	}
}

func (c *Channel) deliver(f *frame) {
	c.mu.Lock()
	call, ok := c.pending[f.ID]
	if ok {
		delete(c.pending, f.ID)
	}
	c.mu.Unlock()
	if !ok {
		c.logf("dropping reply for unknown call id=%d", f.ID)
		return
	}
	res := callResult{result: f.Result}
	if f.Err != "" {
		res = callResult{err: &RemoteError{Method: call.method, Message: f.Err}}
	}
	// Buffered: delivery never blocks even if the caller already gave up.
	call.done <- res
}

// fail resolves every pending call with a closure error so no caller stays
// suspended on a dead transport.
func (c *Channel) fail(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if errors.Is(cause, io.EOF) {
		c.closeErr = ErrClosed
	} else {
		c.closeErr = fmt.Errorf("%w: %v", ErrClosed, cause)
	}
	pending := c.pending
	c.pending = make(map[uint64]pendingCall)
	err := c.closeErr
	c.mu.Unlock()
	for _, call := range pending {
		call.done <- callResult{err: err}
	}
}
