package diskimage

import "bytes"

// maxReadCount is the saturation ceiling for a single datas entry's read
// count (UINT32_MAX in the original controller-facing design).
const maxReadCount = ^uint32(0)

// Reading is one distinct byte string seen for a sector, along with how
// many times the acquisition process has observed it.
type Reading struct {
	Data  []byte
	Count uint32
}

// Datas is the ordered multi-read evidence table for a sector: a mapping
// from a full-sector byte string to a positive read count, indexed by
// insertion order. Go's builtin map has no stable iteration order, and the
// flattener must be able to point at "the second distinct reading" when
// asking an operator to disambiguate a bad sector, so order is preserved
// explicitly rather than reconstructed at serialization time.
type Datas struct {
	entries []Reading
}

// Len returns the number of distinct readings recorded.
func (d *Datas) Len() int {
	return len(d.entries)
}

// At returns the reading at position i, in insertion order.
func (d *Datas) At(i int) Reading {
	return d.entries[i]
}

// All returns the readings in insertion order. The returned slice aliases
// internal storage and must not be mutated by the caller.
func (d *Datas) All() []Reading {
	return d.entries
}

func (d *Datas) indexOf(data []byte) int {
	for i, e := range d.entries {
		if bytes.Equal(e.Data, data) {
			return i
		}
	}
	return -1
}

// Add records a read of data, occurring count times. If an identical byte
// string is already present its count is incremented (saturating at
// maxReadCount); otherwise a new entry is appended, preserving the order
// in which distinct readings were first observed.
func (d *Datas) Add(data []byte, count uint32) {
	if i := d.indexOf(data); i >= 0 {
		sum := uint64(d.entries[i].Count) + uint64(count)
		if sum > uint64(maxReadCount) {
			sum = uint64(maxReadCount)
		}
		d.entries[i].Count = uint32(sum)
		return
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	d.entries = append(d.entries, Reading{Data: cp, Count: count})
}

// Replace discards all prior readings and records a single dominant one,
// used when a subsequent read of a previously-bad sector comes back clean:
// the new good reading is kept alone, with a saturated count, and the
// retry evidence that preceded it is dropped.
func (d *Datas) Replace(data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	d.entries = []Reading{{Data: cp, Count: maxReadCount}}
}

// Clear removes all readings, returning the sector to the empty state.
func (d *Datas) Clear() {
	d.entries = nil
}

// HighestCountIndex returns the index of the reading with the greatest
// count, breaking ties toward the earliest-inserted entry. It is the
// flattener's default choice when a sector has more than one reading.
func (d *Datas) HighestCountIndex() int {
	best := 0
	for i := 1; i < len(d.entries); i++ {
		if d.entries[i].Count > d.entries[best].Count {
			best = i
		}
	}
	return best
}
