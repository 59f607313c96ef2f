package bridge

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestFrameFramingBackToBack(t *testing.T) {
	var buf bytes.Buffer
	args, err := msgpack.Marshal("hello")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	first := frame{ID: 1, Method: "one", Args: []msgpack.RawMessage{args}}
	second := frame{ID: 2, Method: "two"}
	if err := writeFrame(&buf, &first); err != nil {
		t.Fatalf("write first: %v", err)
	}
	if err := writeFrame(&buf, &second); err != nil {
		t.Fatalf("write second: %v", err)
	}

	in := bufio.NewReader(&buf)
	var got frame
	if err := readFrame(in, &got); err != nil {
		t.Fatalf("read first: %v", err)
	}
	if got.ID != 1 || got.Method != "one" || len(got.Args) != 1 {
		t.Fatalf("first frame mismatch: %+v", got)
	}
	var arg string
	if err := msgpack.Unmarshal(got.Args[0], &arg); err != nil || arg != "hello" {
		t.Fatalf("arg round trip: %q err %v", arg, err)
	}
	if err := readFrame(in, &got); err != nil {
		t.Fatalf("read second: %v", err)
	}
	if got.ID != 2 || got.Method != "two" || len(got.Args) != 0 {
		t.Fatalf("second frame mismatch: %+v", got)
	}
}

func TestFrameLargePayload(t *testing.T) {
	var buf bytes.Buffer
	raw, err := msgpack.Marshal(strings.Repeat("x", 1<<20))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := frame{ID: 7, Method: "big", Args: []msgpack.RawMessage{raw}}
	if err := writeFrame(&buf, &want); err != nil {
		t.Fatalf("write: %v", err)
	}
	var got frame
	if err := readFrame(bufio.NewReader(&buf), &got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.ID != 7 || len(got.Args[0]) != len(raw) {
		t.Fatalf("payload mismatch: id=%d len=%d", got.ID, len(got.Args[0]))
	}
}

func TestFrameOversizeRejected(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})
	var got frame
	if err := readFrame(bufio.NewReader(&buf), &got); err == nil {
		t.Fatal("expected oversize frame to be rejected")
	}
}
