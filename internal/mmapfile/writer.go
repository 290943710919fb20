package mmapfile

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"os"
	"sort"

	"github.com/regimeflow/regimeflow/internal/clock"
	"github.com/regimeflow/regimeflow/internal/data"
	"github.com/regimeflow/regimeflow/internal/regimeerr"
)

func dateKeyFromMicros(micros int64) int64 {
	return clock.Timestamp(micros).DateKey()
}

// WriteBars validates and serializes bars for symbol into path, sorted by
// timestamp. BarType and BarSizeMs are stored verbatim in the header for
// the reader to interpret; they carry no validation meaning here.
func WriteBars(path, symbol string, barType uint32, barSizeMs uint64, bars []data.Bar) error {
	sorted := append([]data.Bar(nil), bars...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	if err := validateBars(sorted); err != nil {
		return err
	}

	n := len(sorted)
	cols := new(bytes.Buffer)
	writeInts := func(get func(data.Bar) int64) {
		for _, b := range sorted {
			_ = binary.Write(cols, binary.LittleEndian, get(b))
		}
	}
	writeFloats := func(get func(data.Bar) float64) {
		for _, b := range sorted {
			_ = binary.Write(cols, binary.LittleEndian, get(b))
		}
	}
	writeUints := func(get func(data.Bar) uint64) {
		for _, b := range sorted {
			_ = binary.Write(cols, binary.LittleEndian, get(b))
		}
	}

	writeInts(func(b data.Bar) int64 { return int64(b.Timestamp) })
	writeFloats(func(b data.Bar) float64 { return b.Open })
	writeFloats(func(b data.Bar) float64 { return b.High })
	writeFloats(func(b data.Bar) float64 { return b.Low })
	writeFloats(func(b data.Bar) float64 { return b.Close })
	writeUints(func(b data.Bar) uint64 { return b.Volume })

	dates := buildDateIndex(func(i int) int64 { return int64(sorted[i].Timestamp) }, n)

	var startTS, endTS int64
	if n > 0 {
		startTS = int64(sorted[0].Timestamp)
		endTS = int64(sorted[n-1].Timestamp)
	}

	return writeFile(path, magicBars, symbol, uint32(barType), barSizeMs, startTS, endTS, uint64(n), cols.Bytes(), dates)
}

func validateBars(bars []data.Bar) error {
	var prev int64
	for i, b := range bars {
		if err := b.Validate(); err != nil {
			return err
		}
		ts := int64(b.Timestamp)
		if ts <= 0 {
			return regimeerr.New(regimeerr.InvalidArgument, "bar timestamp must be positive")
		}
		if i > 0 && ts < prev {
			return regimeerr.New(regimeerr.InvalidArgument, "bar timestamps must be non-decreasing")
		}
		prev = ts
	}
	return nil
}

// WriteTicks validates and serializes ticks for symbol into path.
func WriteTicks(path, symbol string, ticks []data.Tick) error {
	sorted := append([]data.Tick(nil), ticks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	var prev int64
	for i, tk := range sorted {
		if err := tk.Validate(); err != nil {
			return err
		}
		ts := int64(tk.Timestamp)
		if ts <= 0 {
			return regimeerr.New(regimeerr.InvalidArgument, "tick timestamp must be positive")
		}
		if i > 0 && ts < prev {
			return regimeerr.New(regimeerr.InvalidArgument, "tick timestamps must be non-decreasing")
		}
		prev = ts
	}

	n := len(sorted)
	cols := new(bytes.Buffer)
	for _, tk := range sorted {
		_ = binary.Write(cols, binary.LittleEndian, int64(tk.Timestamp))
	}
	for _, tk := range sorted {
		_ = binary.Write(cols, binary.LittleEndian, tk.Price)
	}
	for _, tk := range sorted {
		_ = binary.Write(cols, binary.LittleEndian, tk.Quantity)
	}
	for _, tk := range sorted {
		_ = binary.Write(cols, binary.LittleEndian, uint32(tk.Flags))
	}

	dates := buildDateIndex(func(i int) int64 { return int64(sorted[i].Timestamp) }, n)

	var startTS, endTS int64
	if n > 0 {
		startTS = int64(sorted[0].Timestamp)
		endTS = int64(sorted[n-1].Timestamp)
	}

	return writeFile(path, magicTicks, symbol, 0, 0, startTS, endTS, uint64(n), cols.Bytes(), dates)
}

// WriteBooks validates and serializes order book snapshots for symbol into
// path. Column order per §6: timestamps, then 10x(bid price, bid qty, bid
// num_orders), then 10x(ask price, ask qty, ask num_orders).
func WriteBooks(path, symbol string, books []data.OrderBook) error {
	sorted := append([]data.OrderBook(nil), books...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	var prev int64
	for i, bk := range sorted {
		ts := int64(bk.Timestamp)
		if ts <= 0 {
			return regimeerr.New(regimeerr.InvalidArgument, "book timestamp must be positive")
		}
		if i > 0 && ts < prev {
			return regimeerr.New(regimeerr.InvalidArgument, "book timestamps must be non-decreasing")
		}
		prev = ts
	}

	n := len(sorted)
	cols := new(bytes.Buffer)
	for _, bk := range sorted {
		_ = binary.Write(cols, binary.LittleEndian, int64(bk.Timestamp))
	}
	writeSide := func(pick func(data.OrderBook) [BookLevelCount]data.BookLevel) {
		for lvl := 0; lvl < BookLevelCount; lvl++ {
			for _, bk := range sorted {
				_ = binary.Write(cols, binary.LittleEndian, pick(bk)[lvl].Price)
			}
			for _, bk := range sorted {
				_ = binary.Write(cols, binary.LittleEndian, pick(bk)[lvl].Quantity)
			}
			for _, bk := range sorted {
				_ = binary.Write(cols, binary.LittleEndian, pick(bk)[lvl].NumOrders)
			}
		}
	}
	writeSide(func(b data.OrderBook) [BookLevelCount]data.BookLevel { return b.Bids })
	writeSide(func(b data.OrderBook) [BookLevelCount]data.BookLevel { return b.Asks })

	dates := buildDateIndex(func(i int) int64 { return int64(sorted[i].Timestamp) }, n)

	var startTS, endTS int64
	if n > 0 {
		startTS = int64(sorted[0].Timestamp)
		endTS = int64(sorted[n-1].Timestamp)
	}

	return writeFile(path, magicBooks, symbol, BookLevelCount, 0, startTS, endTS, uint64(n), cols.Bytes(), dates)
}

// buildDateIndex returns one {date, row_index} entry per distinct date, at
// the first row of that date, using clock.Timestamp's DateKey encoding.
func buildDateIndex(tsAt func(i int) int64, n int) []dateIndexEntry {
	var out []dateIndexEntry
	var lastDate int64 = -1
	for i := 0; i < n; i++ {
		d := dateKeyFromMicros(tsAt(i))
		if d != lastDate {
			out = append(out, dateIndexEntry{Date: d, RowIndex: uint64(i)})
			lastDate = d
		}
	}
	return out
}

func writeFile(path, magic, symbol string, kindParam0 uint32, kindParam1 uint64, startTS, endTS int64, recordCount uint64, dataCols []byte, dates []dateIndexEntry) error {
	h := header{
		Magic:       [8]byte{},
		Version:     version1,
		Symbol:      symbolBytes(symbol),
		KindParam0:  kindParam0,
		KindParam1:  kindParam1,
		StartTS:     startTS,
		EndTS:       endTS,
		RecordCount: recordCount,
		DataOffset:  headerSize,
	}
	copy(h.Magic[:], magic)
	h.IndexOffset = headerSize + uint64(len(dataCols))

	sum := sha256.Sum256(dataCols)
	h.Checksum = sum

	idx := new(bytes.Buffer)
	for _, e := range dates {
		_ = binary.Write(idx, binary.LittleEndian, e.Date)
		_ = binary.Write(idx, binary.LittleEndian, e.RowIndex)
	}

	f, err := os.Create(path)
	if err != nil {
		return regimeerr.Wrap(regimeerr.IoError, "failed to create mmap file", err)
	}
	defer f.Close()

	if _, err := f.Write(h.marshal()); err != nil {
		return regimeerr.Wrap(regimeerr.IoError, "failed to write header", err)
	}
	if _, err := f.Write(dataCols); err != nil {
		return regimeerr.Wrap(regimeerr.IoError, "failed to write data columns", err)
	}
	if _, err := f.Write(idx.Bytes()); err != nil {
		return regimeerr.Wrap(regimeerr.IoError, "failed to write date index", err)
	}
	return nil
}
