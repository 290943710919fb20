package mmapfile

import "github.com/regimeflow/regimeflow/internal/regimeerr"

// TickFile is a read-only mapped tick file.
type TickFile struct {
	*File
	timestamps []int64
	prices     []float64
	quantities []float64
	flags      []uint32
}

// OpenTicks opens and validates a tick file for reading.
func OpenTicks(path string) (*TickFile, error) {
	f, err := openAndValidate(path, magicTicks)
	if err != nil {
		return nil, err
	}
	n := f.RecordCount()
	cols := f.dataColumns()
	off := 0

	ts := castInt64(cols, &off, n)
	prices := castFloat64(cols, &off, n)
	qtys := castFloat64(cols, &off, n)
	flags := castUint32(cols, &off, n)

	return &TickFile{File: f, timestamps: ts, prices: prices, quantities: qtys, flags: flags}, nil
}

func (t *TickFile) Timestamps() []int64 { return t.timestamps }

// Tick is the reader-side value returned by TickView.
type Tick struct {
	Timestamp int64
	Price     float64
	Quantity  float64
	Flags     uint32
}

// TickView is a lightweight index+base accessor over a TickFile.
type TickView struct{ f *TickFile }

func (t *TickFile) Ticks() TickView { return TickView{f: t} }

func (v TickView) At(i int) (Tick, error) {
	if i < 0 || i >= v.f.RecordCount() {
		return Tick{}, regimeerr.New(regimeerr.OutOfRange, "tick index out of range")
	}
	return v.unchecked(i), nil
}

func (v TickView) Index(i int) Tick { return v.unchecked(i) }

func (v TickView) unchecked(i int) Tick {
	return Tick{
		Timestamp: v.f.timestamps[i],
		Price:     v.f.prices[i],
		Quantity:  v.f.quantities[i],
		Flags:     v.f.flags[i],
	}
}
