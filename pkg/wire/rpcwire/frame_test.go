package rpcwire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beegfs/mgmtd/pkg/mgmterr"
)

type samplePayload struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestWriteReadFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := samplePayload{Name: "target1", Value: 42}
	require.NoError(t, WriteFrame(&buf, in))

	var out samplePayload
	require.NoError(t, ReadFrame(&buf, &out))
	assert.Equal(t, in, out)
}

func TestReadFrame_RejectsOversizeLength(t *testing.T) {
	var buf bytes.Buffer
	var lenBuf [4]byte
	lenBuf[0] = 0xFF
	lenBuf[1] = 0xFF
	lenBuf[2] = 0xFF
	lenBuf[3] = 0xFF
	buf.Write(lenBuf[:])

	var out samplePayload
	err := ReadFrame(&buf, &out)
	require.Error(t, err)
	assert.True(t, mgmterr.Is(err, mgmterr.KindWireMalformed))
}

func TestReadFrame_RejectsTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 10})
	buf.WriteString("short")

	var out samplePayload
	err := ReadFrame(&buf, &out)
	require.Error(t, err)
	assert.True(t, mgmterr.Is(err, mgmterr.KindWireMalformed))
}
