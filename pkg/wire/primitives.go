package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"

	"github.com/beegfs/mgmtd/pkg/mgmterr"
	"github.com/beegfs/mgmtd/pkg/types"
)

// MaxStringLen bounds a single length-prefixed string to guard against a
// corrupt or hostile length field driving an oversized allocation.
const MaxStringLen = 64 << 10 // 64 KiB

func putUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func putUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func putInt64(buf *bytes.Buffer, v int64) { putUint64(buf, uint64(v)) }

func putBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

// putString writes a 32-bit length prefix followed by the raw bytes. s must
// not contain a NUL byte.
func putString(buf *bytes.Buffer, s string) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	buf.Write(lenBuf[:])
	buf.WriteString(s)
}

func readUint16(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, mgmterr.Wrap(mgmterr.KindWireMalformed, "read uint16", err)
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, mgmterr.Wrap(mgmterr.KindWireMalformed, "read uint64", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readInt64(r io.Reader) (int64, error) {
	v, err := readUint64(r)
	return int64(v), err
}

func readBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, mgmterr.Wrap(mgmterr.KindWireMalformed, "read bool", err)
	}
	return b[0] != 0, nil
}

func readString(r io.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", mgmterr.Wrap(mgmterr.KindWireMalformed, "read string length", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxStringLen {
		return "", mgmterr.New(mgmterr.KindWireMalformed, "string length out of bounds")
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return "", mgmterr.Wrap(mgmterr.KindWireMalformed, "read string body", err)
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return "", mgmterr.New(mgmterr.KindWireMalformed, "string contains NUL byte")
	}
	return string(data), nil
}

// nicNameWidth is the fixed, NUL-padded width of an interface name field
// inside an encoded NIC entry.
const nicNameWidth = 16

// putNICList writes a count-prefixed sequence of NIC entries, each laid out
// as: 1-byte type, 16-byte IPv6 (v4-mapped) address, 2-byte port (always 0
// on the wire; kept for layout symmetry with upstream BeeMsg), 16-byte
// NUL-padded name.
func putNICList(buf *bytes.Buffer, nics []types.NIC) error {
	putUint16(buf, uint16(len(nics)))
	for _, n := range nics {
		buf.WriteByte(byte(n.Type))
		ip := net.ParseIP(n.Address)
		if ip == nil {
			return mgmterr.New(mgmterr.KindWireMalformed, "invalid NIC address: "+n.Address)
		}
		buf.Write(ip.To16())
		putUint16(buf, 0) // port, unused at this layer
		if len(n.Name) > nicNameWidth {
			return mgmterr.New(mgmterr.KindWireMalformed, "NIC name exceeds fixed width: "+n.Name)
		}
		var name [nicNameWidth]byte
		copy(name[:], n.Name)
		buf.Write(name[:])
	}
	return nil
}

func readNICList(r io.Reader) ([]types.NIC, error) {
	count, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	var nics []types.NIC
	for i := uint16(0); i < count; i++ {
		var typeByte [1]byte
		if _, err := io.ReadFull(r, typeByte[:]); err != nil {
			return nil, mgmterr.Wrap(mgmterr.KindWireMalformed, "read NIC type", err)
		}
		nicType := types.NICType(typeByte[0])
		if nicType != types.NICEthernet && nicType != types.NICRDMA {
			return nil, mgmterr.New(mgmterr.KindWireMalformed, "unknown NIC type")
		}
		var addr [16]byte
		if _, err := io.ReadFull(r, addr[:]); err != nil {
			return nil, mgmterr.Wrap(mgmterr.KindWireMalformed, "read NIC address", err)
		}
		if _, err := readUint16(r); err != nil { // port, discarded
			return nil, err
		}
		var name [nicNameWidth]byte
		if _, err := io.ReadFull(r, name[:]); err != nil {
			return nil, mgmterr.Wrap(mgmterr.KindWireMalformed, "read NIC name", err)
		}
		nics = append(nics, types.NIC{
			Type:    nicType,
			Address: net.IP(addr[:]).String(),
			Name:    string(bytes.TrimRight(name[:], "\x00")),
		})
	}
	return nics, nil
}
