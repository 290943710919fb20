package mmapfile

import (
	"unsafe"

	"github.com/regimeflow/regimeflow/internal/regimeerr"
)

// BarFile is a read-only mapped bar file.
type BarFile struct {
	*File
	timestamps []int64
	opens      []float64
	highs      []float64
	lows       []float64
	closes     []float64
	volumes    []uint64
}

// OpenBars opens and validates a bar file for reading.
func OpenBars(path string) (*BarFile, error) {
	f, err := openAndValidate(path, magicBars)
	if err != nil {
		return nil, err
	}
	n := f.RecordCount()
	cols := f.dataColumns()
	off := 0

	ts := castInt64(cols, &off, n)
	opens := castFloat64(cols, &off, n)
	highs := castFloat64(cols, &off, n)
	lows := castFloat64(cols, &off, n)
	closes := castFloat64(cols, &off, n)
	volumes := castUint64(cols, &off, n)

	return &BarFile{File: f, timestamps: ts, opens: opens, highs: highs, lows: lows, closes: closes, volumes: volumes}, nil
}

// BarType returns the bar-type enum stored in the header.
func (b *BarFile) BarType() uint32 { return b.header.KindParam0 }

// BarSizeMs returns the fixed bar size in milliseconds (0 for non-time bars).
func (b *BarFile) BarSizeMs() uint64 { return b.header.KindParam1 }

// Timestamps returns the full timestamps column as a zero-copy span.
func (b *BarFile) Timestamps() []int64 { return b.timestamps }

// BarView is a lightweight index+base accessor over a BarFile.
type BarView struct{ f *BarFile }

// Bars returns a BarView over f.
func (b *BarFile) Bars() BarView { return BarView{f: b} }

// At returns row i, bounds-checked.
func (v BarView) At(i int) (Bar, error) {
	if i < 0 || i >= v.f.RecordCount() {
		return Bar{}, regimeerr.New(regimeerr.OutOfRange, "bar index out of range")
	}
	return v.unchecked(i), nil
}

// Index returns row i without bounds checking, mirroring operator[].
func (v BarView) Index(i int) Bar { return v.unchecked(i) }

func (v BarView) unchecked(i int) Bar {
	return Bar{
		Timestamp: v.f.timestamps[i],
		Open:      v.f.opens[i],
		High:      v.f.highs[i],
		Low:       v.f.lows[i],
		Close:     v.f.closes[i],
		Volume:    v.f.volumes[i],
	}
}

// Bar is the reader-side value returned by BarView.
type Bar struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    uint64
}

func castInt64(b []byte, off *int, n int) []int64 {
	if n == 0 {
		return nil
	}
	size := n * 8
	region := b[*off : *off+size]
	*off += size
	return unsafe.Slice((*int64)(unsafe.Pointer(&region[0])), n)
}

func castUint64(b []byte, off *int, n int) []uint64 {
	if n == 0 {
		return nil
	}
	size := n * 8
	region := b[*off : *off+size]
	*off += size
	return unsafe.Slice((*uint64)(unsafe.Pointer(&region[0])), n)
}

func castFloat64(b []byte, off *int, n int) []float64 {
	if n == 0 {
		return nil
	}
	size := n * 8
	region := b[*off : *off+size]
	*off += size
	return unsafe.Slice((*float64)(unsafe.Pointer(&region[0])), n)
}

func castUint32(b []byte, off *int, n int) []uint32 {
	if n == 0 {
		return nil
	}
	size := n * 4
	region := b[*off : *off+size]
	*off += size
	return unsafe.Slice((*uint32)(unsafe.Pointer(&region[0])), n)
}
