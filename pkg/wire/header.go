// Package wire implements the BeeMsg binary framing used by meta, storage,
// and client daemons to talk to the management service: a fixed header
// followed by a type-specific payload, all little-endian, with an optional
// shared-secret auth hash. It is deliberately self-contained: nothing here
// depends on pkg/store or pkg/topology, so it can be fuzzed and round-trip
// tested in isolation.
package wire

import (
	"encoding/binary"
	"io"

	"github.com/beegfs/mgmtd/pkg/mgmterr"
)

// HeaderSize is the fixed on-wire size of a BeeMsg header in bytes:
// 8 (length) + 8 (feature flags) + 2 (message type) + 6 (reserved) + 8 (auth hash).
const HeaderSize = 32

// MaxMessageSize bounds a single frame to guard against a malformed or
// hostile length field forcing an unbounded allocation.
const MaxMessageSize = 16 << 20 // 16 MiB

// MsgType identifies the payload layout that follows a header.
type MsgType uint16

const (
	MsgHeartbeat             MsgType = 1
	MsgRegisterNode          MsgType = 2
	MsgRegisterNodeResp      MsgType = 3
	MsgRegisterTarget        MsgType = 4
	MsgRegisterTargetResp    MsgType = 5
	MsgGetNodes              MsgType = 6
	MsgGetNodesResp          MsgType = 7
	MsgGetTargetMappings     MsgType = 8
	MsgGetTargetMappingsResp MsgType = 9
	MsgGetStoragePools       MsgType = 10
	MsgGetStoragePoolsResp   MsgType = 11
	MsgGetMirrorBuddyGroups  MsgType = 12
	MsgGetMirrorBuddyGroupsResp MsgType = 13
	MsgSetCapacityPool       MsgType = 14
	MsgSetTargetConsistency  MsgType = 15
	MsgGetQuotaInfo          MsgType = 16
	MsgGetQuotaInfoResp      MsgType = 17
	MsgSetExceededQuota      MsgType = 18
	MsgRemoveNode            MsgType = 19
	MsgAck                   MsgType = 20
	MsgReportTargetCapacity  MsgType = 21
)

// Feature flags, a bitset carried in every header. None are required by
// this service today; the field exists so new optional behaviors (e.g. a
// future compression mode) can be negotiated without a framing change.
const (
	FeatureNone uint64 = 0
)

// Header is the fixed prefix of every BeeMsg frame.
type Header struct {
	Length   uint64 // total frame length, header included
	Features uint64
	Type     MsgType
	AuthHash uint64 // 0 when auth is disabled
}

// Encode writes the header in its fixed 32-byte wire layout.
func (h Header) Encode(w io.Writer) error {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], h.Length)
	binary.LittleEndian.PutUint64(buf[8:16], h.Features)
	binary.LittleEndian.PutUint16(buf[16:18], uint16(h.Type))
	// buf[18:24] reserved, left zero
	binary.LittleEndian.PutUint64(buf[24:32], h.AuthHash)
	_, err := w.Write(buf[:])
	return err
}

// DecodeHeader reads and validates a fixed 32-byte header.
func DecodeHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, mgmterr.Wrap(mgmterr.KindWireMalformed, "read header", err)
	}
	h := Header{
		Length:   binary.LittleEndian.Uint64(buf[0:8]),
		Features: binary.LittleEndian.Uint64(buf[8:16]),
		Type:     MsgType(binary.LittleEndian.Uint16(buf[16:18])),
		AuthHash: binary.LittleEndian.Uint64(buf[24:32]),
	}
	if h.Length < HeaderSize || h.Length > MaxMessageSize {
		return Header{}, mgmterr.New(mgmterr.KindWireMalformed, "header length out of bounds")
	}
	return h, nil
}
