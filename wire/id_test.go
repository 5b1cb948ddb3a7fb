package wire_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/parley/wire"
)

func TestCompactIDKnownValues(t *testing.T) {
	requireT := require.New(t)

	requireT.Equal(wire.MessageID(6984), wire.CompactID("hi", 1700000000))
	requireT.Equal(wire.MessageID(84451), wire.CompactID("hello", 0))
	requireT.Equal(wire.MessageID(24498), wire.CompactID("", 0))
	requireT.Equal(wire.MessageID(79677), wire.CompactID("héllo", 1700000000))
}

func TestCompactIDIsDeterministic(t *testing.T) {
	requireT := require.New(t)

	for _, content := range []string{"", "a", "hi", "longer message with spaces", "ąę"} {
		for _, sentAt := range []wire.Timestamp{0, 1, 1700000000, 1<<64 - 1} {
			id := wire.CompactID(content, sentAt)
			requireT.Equal(id, wire.CompactID(content, sentAt))
			requireT.Less(uint64(id), uint64(86969))
		}
	}
}

func TestWideID(t *testing.T) {
	requireT := require.New(t)

	requireT.Equal(wire.MessageID(3284096546662332236), wire.WideID("hi", 1700000000))
	requireT.Equal(wire.WideID("hi", 1700000000), wire.WideID("hi", 1700000000))
	requireT.NotEqual(wire.WideID("hi", 1700000000), wire.WideID("hi", 1700000001))
}
