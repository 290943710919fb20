// Package mmapfile implements the columnar, memory-mapped bar/tick/book
// file format of §3/§4.8/§6: a 256-byte fixed header, column-major data,
// and a trailing per-date index enabling O(log N) seek to a date.
package mmapfile

import (
	"bytes"
	"encoding/binary"

	"github.com/regimeflow/regimeflow/internal/regimeerr"
)

const (
	headerSize = 256
	version1   = uint32(1)

	magicBars  = "RGMFLOW1"
	magicTicks = "RGMTICK1"
	magicBooks = "RGMBOOK1"

	// BookLevelCount is the fixed depth serialized per side in a book file.
	BookLevelCount = 10

	// Per-record byte widths of the column-major data region, used to
	// validate record_count against data_offset/index_offset before any
	// column is sliced out of the mapped file.
	barRecordWidth  = 8 + 8*4 + 8                        // ts + OHLC + volume
	tickRecordWidth = 8 + 8 + 8 + 4                      // ts + price + quantity + flags
	bookLevelWidth  = 8 + 8 + 8                           // price + qty + num_orders
	bookRecordWidth = 8 + 2*BookLevelCount*bookLevelWidth // ts + two sides
)

// header is the on-disk layout, little-endian, packed to exactly
// headerSize bytes: magic(8) version(4) flags(4) symbol(32) kindParam0(4)
// kindParam1(8) start_ts(8) end_ts(8) record_count(8) data_offset(8)
// index_offset(8) checksum(32) reserved(124).
type header struct {
	Magic       [8]byte
	Version     uint32
	Flags       uint32
	Symbol      [32]byte
	KindParam0  uint32 // bar_type for bars; level_count for books; unused for ticks
	KindParam1  uint64 // bar_size_ms for bars; unused otherwise
	StartTS     int64
	EndTS       int64
	RecordCount uint64
	DataOffset  uint64
	IndexOffset uint64
	Checksum    [32]byte
	_           [124]byte
}

func (h *header) marshal() []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, h)
	out := buf.Bytes()
	if len(out) != headerSize {
		panic("mmapfile: header size drifted from 256 bytes")
	}
	return out
}

func unmarshalHeader(b []byte) (header, error) {
	var h header
	if len(b) < headerSize {
		return h, regimeerr.New(regimeerr.ParseError, "file too small for header")
	}
	r := bytes.NewReader(b[:headerSize])
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return h, regimeerr.Wrap(regimeerr.ParseError, "failed to decode header", err)
	}
	return h, nil
}

func symbolBytes(name string) [32]byte {
	var out [32]byte
	copy(out[:], name)
	return out
}

func symbolString(b [32]byte) string {
	i := bytes.IndexByte(b[:], 0)
	if i < 0 {
		i = len(b)
	}
	return string(b[:i])
}

// dateIndexEntry is one {yyyymmdd, row_index} pair, one per distinct date,
// storing the first row index of that date (not a byte offset).
type dateIndexEntry struct {
	Date     int64
	RowIndex uint64
}

const dateIndexEntrySize = 16
