package diskimage

import "fmt"

// MaxSectors is the hard bound on sectors per track imposed by the IMD
// container's single-byte sector count and by PC floppy controllers, which
// never address more than this many sectors in one revolution.
const MaxSectors = 256

// TrackStatus records how much is known about a track's layout.
type TrackStatus int

const (
	// TrackUnknown means no probing has happened yet.
	TrackUnknown TrackStatus = iota
	// TrackGuessed means the layout was inherited from a neighbouring
	// track without direct evidence, pending confirmation by a read.
	TrackGuessed
	// TrackProbed means the layout was determined by direct READ-ID
	// evidence (or restored from an existing image).
	TrackProbed
)

func (s TrackStatus) String() string {
	switch s {
	case TrackUnknown:
		return "unknown"
	case TrackGuessed:
		return "guessed"
	case TrackProbed:
		return "probed"
	default:
		return "invalid"
	}
}

// Track is one physical ring of magnetic medium at a given cylinder and
// head. Sectors is indexed by physical position: the order sector IDs
// appear as the medium spins past the head, which is not necessarily
// sorted by logical sector number.
type Track struct {
	Status         TrackStatus
	DataMode       DataMode
	PhysCyl        int
	PhysHead       int
	NumSectors     int
	SectorSizeCode byte
	Sectors        [MaxSectors]Sector
}

// SectorSize returns the byte size of every sector on this track.
func (t *Track) SectorSize() int {
	return SectorSize(t.SectorSizeCode)
}

// Live returns the slice of sectors actually in use, Sectors[:NumSectors].
func (t *Track) Live() []Sector {
	return t.Sectors[:t.NumSectors]
}

// LiveMut returns a mutable view of the sectors in use.
func (t *Track) LiveMut() []Sector {
	return t.Sectors[:t.NumSectors]
}

// IndexOfLogSector returns the physical slot holding the given logical
// sector number, or -1 if not present.
func (t *Track) IndexOfLogSector(logSector byte) int {
	for i := 0; i < t.NumSectors; i++ {
		if t.Sectors[i].LogSector == logSector {
			return i
		}
	}
	return -1
}

// AllGood reports whether the track has at least one live sector and every
// live sector read successfully.
func (t *Track) AllGood() bool {
	for i := 0; i < t.NumSectors; i++ {
		if t.Sectors[i].Status != SectorGood {
			return false
		}
	}
	return t.NumSectors > 0
}

// Validate checks the track invariant: sector count within bounds and, on a
// probed track, every live sector internally consistent. The size code is
// stored once per track, so its sectors share it by construction.
func (t *Track) Validate() error {
	if t.NumSectors > MaxSectors {
		return fmt.Errorf("track %d/%d: num_sectors %d exceeds max %d", t.PhysCyl, t.PhysHead, t.NumSectors, MaxSectors)
	}
	if t.Status == TrackProbed {
		for i := 0; i < t.NumSectors; i++ {
			if err := t.Sectors[i].Validate(); err != nil {
				return fmt.Errorf("track %d/%d sector %d: %w", t.PhysCyl, t.PhysHead, i, err)
			}
		}
	}
	return nil
}

// CopyLayoutFrom duplicates src's data mode, sector count and size code into
// t, rewriting each sector's logical cylinder by cylDelta while keeping the
// logical head and sector number unchanged. Used by the acquisition driver
// to seed a guessed track from its already-probed neighbour (§4.5).
func (t *Track) CopyLayoutFrom(src *Track, cylDelta int) {
	t.DataMode = src.DataMode
	t.NumSectors = src.NumSectors
	t.SectorSizeCode = src.SectorSizeCode
	for i := 0; i < src.NumSectors; i++ {
		s := src.Sectors[i]
		t.Sectors[i] = Sector{
			LogCyl:    byte(int(s.LogCyl) + cylDelta),
			LogHead:   s.LogHead,
			LogSector: s.LogSector,
		}
	}
	t.Status = TrackGuessed
}
