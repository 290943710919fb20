package mmapfile

import "github.com/regimeflow/regimeflow/internal/regimeerr"

// sideColumns holds the 10x(price, qty, num_orders) columns of one book
// side, each record_count elements long.
type sideColumns struct {
	prices    [BookLevelCount][]float64
	qtys      [BookLevelCount][]float64
	numOrders [BookLevelCount][]int64
}

func readSide(cols []byte, off *int, n int) sideColumns {
	var s sideColumns
	for lvl := 0; lvl < BookLevelCount; lvl++ {
		s.prices[lvl] = castFloat64(cols, off, n)
		s.qtys[lvl] = castFloat64(cols, off, n)
		s.numOrders[lvl] = castInt64(cols, off, n)
	}
	return s
}

// BookFile is a read-only mapped order-book file.
type BookFile struct {
	*File
	timestamps []int64
	bids       sideColumns
	asks       sideColumns
}

// OpenBooks opens and validates a book file for reading.
func OpenBooks(path string) (*BookFile, error) {
	f, err := openAndValidate(path, magicBooks)
	if err != nil {
		return nil, err
	}
	n := f.RecordCount()
	cols := f.dataColumns()
	off := 0

	ts := castInt64(cols, &off, n)
	bids := readSide(cols, &off, n)
	asks := readSide(cols, &off, n)

	return &BookFile{File: f, timestamps: ts, bids: bids, asks: asks}, nil
}

func (b *BookFile) Timestamps() []int64 { return b.timestamps }

// BookLevel is one price level of a reader-side book row.
type BookLevel struct {
	Price     float64
	Quantity  float64
	NumOrders int64
}

// Book is the reader-side value returned by BookView.
type Book struct {
	Timestamp int64
	Bids      [BookLevelCount]BookLevel
	Asks      [BookLevelCount]BookLevel
}

// BookView is a lightweight index+base accessor over a BookFile.
type BookView struct{ f *BookFile }

func (b *BookFile) Books() BookView { return BookView{f: b} }

func (v BookView) At(i int) (Book, error) {
	if i < 0 || i >= v.f.RecordCount() {
		return Book{}, regimeerr.New(regimeerr.OutOfRange, "book index out of range")
	}
	return v.unchecked(i), nil
}

func (v BookView) Index(i int) Book { return v.unchecked(i) }

func (v BookView) unchecked(i int) Book {
	var out Book
	out.Timestamp = v.f.timestamps[i]
	for lvl := 0; lvl < BookLevelCount; lvl++ {
		out.Bids[lvl] = BookLevel{
			Price:     v.f.bids.prices[lvl][i],
			Quantity:  v.f.bids.qtys[lvl][i],
			NumOrders: v.f.bids.numOrders[lvl][i],
		}
		out.Asks[lvl] = BookLevel{
			Price:     v.f.asks.prices[lvl][i],
			Quantity:  v.f.asks.qtys[lvl][i],
			NumOrders: v.f.asks.numOrders[lvl][i],
		}
	}
	return out
}
