package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Handler executes one named operation for the background context. The
// returned value is msgpack-encoded into the reply; a returned error travels
// back as the call's failure.
type Handler func(ctx context.Context, method string, args []msgpack.RawMessage) (any, error)

// Serve runs the background end of the bridge: it announces readiness, then
// decodes request frames and replies to each exactly once. Requests are
// handled concurrently, so replies may go out in any order relative to
// arrival. Serve returns when the transport closes or ctx is canceled.
func Serve(ctx context.Context, rw io.ReadWriter, handler Handler) error {
	var wmu sync.Mutex
	reply := func(f *frame) error {
		wmu.Lock()
		defer wmu.Unlock()
		return writeFrame(rw, f)
	}

	if err := reply(&frame{ID: readySentinel}); err != nil {
		return err
	}

	in := bufio.NewReader(rw)
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var f frame
		if err := readFrame(in, &f); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if !f.isRequest() {
			continue
		}
		req := f
		wg.Add(1)
		go func() {
			defer wg.Done()
			out := frame{ID: req.ID}
			result, err := handler(ctx, req.Method, req.Args)
			if err != nil {
				out.Err = err.Error()
			} else if result != nil {
				raw, merr := msgpack.Marshal(result)
				if merr != nil {
					out.Err = fmt.Sprintf("encode %s result: %v", req.Method, merr)
				} else {
					out.Result = raw
				}
			}
			// A failed write means the foreground is gone; nothing to do.
			_ = reply(&out)
		}()
	}
}
