package wire

import (
	"crypto/sha256"
	"encoding/binary"
)

// AuthHash derives the 64-bit shared-secret hash carried in every header
// when authentication is enabled: the first 8 bytes of the SHA-256 digest
// of the connect-auth-file contents, read as a little-endian uint64. Any
// node presenting the same file produces the same hash, so the check is a
// constant-time-independent equality rather than a full signature scheme;
// that matches the legacy protocol's own "shared secret, not a keypair"
// trust model and keeps this wire-compatible with the field it replaces.
func AuthHash(secret []byte) uint64 {
	sum := sha256.Sum256(secret)
	return binary.LittleEndian.Uint64(sum[:8])
}
