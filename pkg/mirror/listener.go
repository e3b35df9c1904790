package mirror

// Listener receives change notifications for the display layer. All calls
// happen on the owning goroutine, from inside Drain or Start.
//
// Row ranges are inclusive. An address handed out before RowsRemoved or
// RowsInserted for its parent at or before its row must be re-resolved;
// addresses outside the reported range stay valid.
type Listener interface {
	RowsInserted(parent Address, first, last int)
	RowsAboutToBeRemoved(parent Address, first, last int)
	RowsRemoved(parent Address, first, last int)
	DataChanged(addr Address, columns []int)
	LayoutAboutToChange()
	LayoutChanged()
}

// NopListener implements Listener with no-ops, for embedding.
type NopListener struct{}

func (NopListener) RowsInserted(Address, int, int)         {}
func (NopListener) RowsAboutToBeRemoved(Address, int, int) {}
func (NopListener) RowsRemoved(Address, int, int)          {}
func (NopListener) DataChanged(Address, []int)             {}
func (NopListener) LayoutAboutToChange()                   {}
func (NopListener) LayoutChanged()                         {}

type listeners []Listener

func (ls listeners) rowsInserted(p Address, first, last int) {
	for _, l := range ls {
		l.RowsInserted(p, first, last)
	}
}

func (ls listeners) rowsAboutToBeRemoved(p Address, first, last int) {
	for _, l := range ls {
		l.RowsAboutToBeRemoved(p, first, last)
	}
}

func (ls listeners) rowsRemoved(p Address, first, last int) {
	for _, l := range ls {
		l.RowsRemoved(p, first, last)
	}
}

func (ls listeners) dataChanged(a Address, cols []int) {
	for _, l := range ls {
		l.DataChanged(a, cols)
	}
}

func (ls listeners) layoutAboutToChange() {
	for _, l := range ls {
		l.LayoutAboutToChange()
	}
}

func (ls listeners) layoutChanged() {
	for _, l := range ls {
		l.LayoutChanged()
	}
}
