package mmapfile

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"os"
	"sort"

	"github.com/regimeflow/regimeflow/internal/regimeerr"
	"golang.org/x/sys/unix"
)

// TimeRange selects a slice of rows by timestamp. The special case (0, 0)
// means the full range.
type TimeRange struct {
	Start int64
	End   int64
}

// File is a read-only memory-mapped view of one bar/tick/book file.
// Concurrent readers of the same file are safe; File is not safe to use
// concurrently with a writer of the same path.
type File struct {
	data   []byte
	header header
	path   string
}

// recordWidth returns the fixed per-record byte width for a file kind, used
// to validate that record_count matches the declared data region size
// before any column is sliced out of it.
func recordWidth(magic string) (uint64, bool) {
	switch magic {
	case magicBars:
		return barRecordWidth, true
	case magicTicks:
		return tickRecordWidth, true
	case magicBooks:
		return bookRecordWidth, true
	default:
		return 0, false
	}
}

// checkedMulUint64 multiplies a and b, reporting overflow instead of
// silently wrapping, since a (record_count) is an untrusted field read
// straight off disk.
func checkedMulUint64(a, b uint64) (product uint64, overflow bool) {
	if a == 0 || b == 0 {
		return 0, false
	}
	p := a * b
	if p/a != b {
		return 0, true
	}
	return p, false
}

// openAndValidate mmaps path, verifies magic and version, and bounds-checks
// data_offset/index_offset before returning. Any mismatch fails
// construction, as required for fatal-class errors in the error model.
func openAndValidate(path string, wantMagic string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, regimeerr.Wrap(regimeerr.IoError, "failed to open mmap file", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, regimeerr.Wrap(regimeerr.IoError, "failed to stat mmap file", err)
	}
	size := st.Size()
	if size < headerSize {
		return nil, regimeerr.New(regimeerr.ParseError, "file smaller than header")
	}

	mapped, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, regimeerr.Wrap(regimeerr.IoError, "mmap failed", err)
	}

	h, err := unmarshalHeader(mapped)
	if err != nil {
		_ = unix.Munmap(mapped)
		return nil, err
	}
	if string(h.Magic[:]) != wantMagic {
		_ = unix.Munmap(mapped)
		return nil, regimeerr.New(regimeerr.ParseError, "magic mismatch")
	}
	if h.Version != version1 {
		_ = unix.Munmap(mapped)
		return nil, regimeerr.New(regimeerr.ParseError, "unsupported version")
	}
	if h.DataOffset < headerSize || h.DataOffset >= uint64(size) {
		_ = unix.Munmap(mapped)
		return nil, regimeerr.New(regimeerr.ParseError, "data_offset out of bounds")
	}
	if h.IndexOffset < h.DataOffset || h.IndexOffset > uint64(size) {
		_ = unix.Munmap(mapped)
		return nil, regimeerr.New(regimeerr.ParseError, "index_offset out of bounds")
	}
	if width, ok := recordWidth(wantMagic); ok {
		span := h.IndexOffset - h.DataOffset
		expected, overflow := checkedMulUint64(h.RecordCount, width)
		if overflow || expected != span {
			_ = unix.Munmap(mapped)
			return nil, regimeerr.New(regimeerr.ParseError, "record_count does not match data region size")
		}
	}

	sum := sha256.Sum256(mapped[h.DataOffset:h.IndexOffset])
	if sum != h.Checksum {
		_ = unix.Munmap(mapped)
		return nil, regimeerr.New(regimeerr.ParseError, "checksum mismatch")
	}

	return &File{data: mapped, header: h, path: path}, nil
}

// Close unmaps the file. A second call is a no-op and returns nil.
func (f *File) Close() error {
	if f.data == nil {
		return nil
	}
	err := unix.Munmap(f.data)
	f.data = nil
	return err
}

// Symbol returns the symbol this file was written for.
func (f *File) Symbol() string { return symbolString(f.header.Symbol) }

// RecordCount returns the number of rows.
func (f *File) RecordCount() int { return int(f.header.RecordCount) }

// StartTS and EndTS return the timestamp range covered by the file.
func (f *File) StartTS() int64 { return f.header.StartTS }
func (f *File) EndTS() int64   { return f.header.EndTS }

func (f *File) dataColumns() []byte {
	return f.data[f.header.DataOffset:f.header.IndexOffset]
}

func (f *File) indexEntries() []dateIndexEntry {
	raw := f.data[f.header.IndexOffset:]
	n := len(raw) / dateIndexEntrySize
	out := make([]dateIndexEntry, n)
	for i := 0; i < n; i++ {
		r := bytes.NewReader(raw[i*dateIndexEntrySize : (i+1)*dateIndexEntrySize])
		_ = binary.Read(r, binary.LittleEndian, &out[i].Date)
		_ = binary.Read(r, binary.LittleEndian, &out[i].RowIndex)
	}
	return out
}

// PreloadIndex performs a read-only walk over the index pages to fault
// them into the process's working set ahead of FindRange calls.
func (f *File) PreloadIndex() {
	var acc byte
	raw := f.data[f.header.IndexOffset:]
	for i := 0; i < len(raw); i += 4096 {
		acc += raw[i]
	}
	_ = acc
}

// FindRange returns the [start, end) row indices covering the given time
// range via binary search on the timestamps column. (0, 0) returns the
// full range.
func (f *File) FindRange(tr TimeRange, timestampAt func(i int) int64) (int, int) {
	n := f.RecordCount()
	if tr.Start == 0 && tr.End == 0 {
		return 0, n
	}
	lo := sort.Search(n, func(i int) bool { return timestampAt(i) >= tr.Start })
	hi := sort.Search(n, func(i int) bool { return timestampAt(i) > tr.End })
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// RowForDate returns the first row index on or after the given yyyymmdd
// date, using the trailing date index, or RecordCount() if the date is
// past the end of the file.
func (f *File) RowForDate(yyyymmdd int64) int {
	entries := f.indexEntries()
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Date >= yyyymmdd })
	if i == len(entries) {
		return f.RecordCount()
	}
	return int(entries[i].RowIndex)
}
