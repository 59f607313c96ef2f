// Package engine hosts the analysis backend in its isolated execution
// context. The backend is reached only through the bridge; nothing here
// shares memory with the foreground beyond the byte stream between them.
package engine

import (
	"context"
	"io"
	"net"

	"github.com/dzyphr/solana-playground/internal/bridge"
	"github.com/dzyphr/solana-playground/internal/session"
)

// Serve runs backend behind the bridge on rw until the transport closes.
func Serve(ctx context.Context, rw io.ReadWriter, backend session.Backend) error {
	return bridge.Serve(ctx, rw, session.NewHandler(backend))
}

// Start launches backend on its own goroutine behind an in-process pipe and
// returns a session proxy once the engine has signaled readiness. Closing
// the returned closer tears the engine down.
func Start(ctx context.Context, backend session.Backend) (*session.Session, io.Closer, error) {
	near, far := net.Pipe()
	go func() {
		defer far.Close()
		_ = Serve(ctx, far, backend)
	}()
	ch, err := bridge.Dial(ctx, near, bridge.ChannelOptions{})
	if err != nil {
		near.Close()
		return nil, nil, err
	}
	return session.New(ch), near, nil
}
