package wire

import (
	"encoding/binary"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

const (
	compactSeed       uint64 = 37
	compactMultiplier uint64 = 54059
	compactMixer      int64  = 76963
	compactModulus    uint64 = 86969
)

// IDFunc computes message identity from its content and send time.
// Both peers must use the same function, otherwise read receipts can't be matched.
type IDFunc func(content string, sentAt Timestamp) MessageID

// CompactID is the default identity scheme. It maps messages into 86969 buckets, so collisions are possible.
func CompactID(content string, sentAt Timestamp) MessageID {
	h := compactSeed
	mix := func(b byte) {
		// Bytes are mixed in as signed values.
		h = (h * compactMultiplier) ^ uint64(int64(int8(b))*compactMixer)
	}
	for i := range len(content) {
		mix(content[i])
	}
	for _, b := range strconv.AppendUint(nil, uint64(sentAt), 10) {
		mix(b)
	}
	return MessageID(h % compactModulus)
}

// WideID uses the full 64-bit space. It is not compatible with CompactID.
func WideID(content string, sentAt Timestamp) MessageID {
	sum := blake2b.Sum256(strconv.AppendUint([]byte(content), uint64(sentAt), 10))
	return MessageID(binary.LittleEndian.Uint64(sum[:]))
}
