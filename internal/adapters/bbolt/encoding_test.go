package bbolt

import (
	"testing"

	"github.com/corey/autolink/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntries_Roundtrip(t *testing.T) {
	entries := makeTestSnapshot().Entries
	data, err := encodeEntries(entries)
	require.NoError(t, err)

	got, err := decodeEntries(data)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestEntries_PreservesOrder(t *testing.T) {
	entries := []ports.LinkEntry{{Term: "b"}, {Term: "a"}, {Term: "c"}}
	data, err := encodeEntries(entries)
	require.NoError(t, err)
	got, err := decodeEntries(data)
	require.NoError(t, err)
	assert.Equal(t, "b", got[0].Term)
	assert.Equal(t, "c", got[2].Term)
}

func TestEntries_Corrupt(t *testing.T) {
	data, err := encodeEntries(makeTestSnapshot().Entries)
	require.NoError(t, err)

	_, err = decodeEntries(data[:2])
	assert.Error(t, err)
	_, err = decodeEntries(data[:len(data)-3])
	assert.Error(t, err)
	_, err = decodeEntries(append(data, 0x01))
	assert.Error(t, err)
	_, err = decodeEntries([]byte{0xff, 0xff, 0xff, 0xff})
	assert.Error(t, err)
}

func TestEntries_FieldTooLong(t *testing.T) {
	long := make([]byte, 70000)
	_, err := encodeEntries([]ports.LinkEntry{{Term: string(long)}})
	assert.Error(t, err)
}
