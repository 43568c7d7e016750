// Binary encoding for persisted term indexes.
//
// The entry list is written as compact length-prefixed records instead of
// JSON. Cached documents are small and use gob.
//
// Entry list format (little-endian):
//
//	entryCount: uint32
//	per entry:
//	  termLen:   uint16, term:   [termLen]byte
//	  targetLen: uint16, target: [targetLen]byte
//	  sourceLen: uint16, source: [sourceLen]byte
package bbolt

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"github.com/corey/autolink/internal/ports"
)

// encodeEntries encodes an entry list to compact binary format. Order is
// preserved; it is the match priority. A single buffer is pre-allocated to
// avoid repeated growth.
func encodeEntries(entries []ports.LinkEntry) ([]byte, error) {
	totalSize := 4
	for _, e := range entries {
		totalSize += 6 + len(e.Term) + len(e.Target) + len(e.SourceID)
	}

	buf := make([]byte, totalSize)
	binary.LittleEndian.PutUint32(buf, uint32(len(entries)))
	offset := 4

	for _, e := range entries {
		for _, field := range [3]string{e.Term, e.Target, e.SourceID} {
			if len(field) > 65535 {
				return nil, fmt.Errorf("entry field too long: %d bytes", len(field))
			}
			binary.LittleEndian.PutUint16(buf[offset:], uint16(len(field)))
			offset += 2
			copy(buf[offset:], field)
			offset += len(field)
		}
	}

	return buf, nil
}

// decodeEntries decodes a binary entry list. Every read is bounds-checked to
// avoid panics on corrupt data.
func decodeEntries(data []byte) ([]ports.LinkEntry, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("entry list too short: %d bytes", len(data))
	}

	count := binary.LittleEndian.Uint32(data)
	offset := 4

	// Every entry needs at least 6 bytes of length headers.
	if uint64(count)*6 > uint64(len(data)-offset) {
		return nil, fmt.Errorf("entry count %d exceeds data size %d", count, len(data))
	}

	entries := make([]ports.LinkEntry, count)
	for i := range entries {
		var fields [3]string
		for f := range fields {
			if offset+2 > len(data) {
				return nil, fmt.Errorf("truncated at entry %d field %d length (offset %d)", i, f, offset)
			}
			n := int(binary.LittleEndian.Uint16(data[offset:]))
			offset += 2
			if offset+n > len(data) {
				return nil, fmt.Errorf("truncated at entry %d field %d (offset %d, need %d)", i, f, offset, n)
			}
			fields[f] = string(data[offset : offset+n])
			offset += n
		}
		entries[i] = ports.LinkEntry{Term: fields[0], Target: fields[1], SourceID: fields[2]}
	}

	if offset != len(data) {
		return nil, fmt.Errorf("trailing bytes after %d entries: %d", count, len(data)-offset)
	}
	return entries, nil
}

// encodeGob encodes a value using gob. Used for index metadata and cached
// documents.
func encodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeGob decodes gob-encoded data into target. Target must be a pointer.
func decodeGob(data []byte, target interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(target)
}
