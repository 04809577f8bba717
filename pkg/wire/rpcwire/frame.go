// Package rpcwire implements a standalone length-prefixed JSON framing: a
// self-describing 4-byte big-endian length prefix followed by a
// JSON-encoded body. The gRPC server in pkg/rpc does not use it; gRPC
// frames its own messages. It is kept structurally and textually separate from
// pkg/wire's BeeMsg codec; the two protocols share no framing code, since a
// BeeMsg peer and an RPC client have nothing in common beyond both talking
// to this process.
package rpcwire

import (
	"encoding/binary"
	"encoding/json"
	"io"

	"github.com/beegfs/mgmtd/pkg/mgmterr"
)

// MaxFrameSize bounds a single frame's declared length.
const MaxFrameSize = 32 << 20 // 32 MiB

// WriteFrame writes v as one length-prefixed JSON frame to w.
func WriteFrame(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return mgmterr.Wrap(mgmterr.KindWireMalformed, "marshal rpc frame", err)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// ReadFrame reads one length-prefixed JSON frame from r into v.
func ReadFrame(r io.Reader, v any) error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return mgmterr.Wrap(mgmterr.KindWireMalformed, "read rpc frame length", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return mgmterr.New(mgmterr.KindWireMalformed, "rpc frame length out of bounds")
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return mgmterr.Wrap(mgmterr.KindWireMalformed, "read rpc frame body", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return mgmterr.Wrap(mgmterr.KindWireMalformed, "unmarshal rpc frame", err)
	}
	return nil
}
