package bridge

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"
)

// readySentinel is the reserved correlation id the background context sends
// once to signal that the channel is usable. Regular call ids start above it.
const readySentinel uint64 = 0

// maxFrameSize bounds a single frame payload (local crates can be large, but
// nothing legitimate approaches this).
const maxFrameSize = 64 << 20

// frame is the wire unit in both directions. A request carries Method and
// Args; a reply carries Result or Err. The readiness frame carries only the
// sentinel id.
type frame struct {
	ID     uint64
	Method string
	Args   []msgpack.RawMessage
	Result msgpack.RawMessage
	Err    string
}

func (f *frame) isRequest() bool {
	return f.Method != ""
}

func writeFrame(w io.Writer, f *frame) error {
	payload, err := msgpack.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	size, err := safecast.Conv[uint32](len(payload))
	if err != nil {
		return fmt.Errorf("frame too large: %d bytes", len(payload))
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], size)
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

func readFrame(r *bufio.Reader, f *frame) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > maxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return err
	}
	*f = frame{}
	if err := msgpack.Unmarshal(payload, f); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	return nil
}
