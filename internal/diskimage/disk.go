package diskimage

import "fmt"

// MaxCyls and MaxHeads are the hard bounds the IMD container and PC
// controller semantics impose on disk geometry: a single byte addresses
// cylinders, and the controller ever drives one or two heads.
const (
	MaxCyls  = 256
	MaxHeads = 2
)

// Disk is the full in-memory capture of one physical floppy: a comment
// carried through from the IMD container, detected geometry, and the
// per-cylinder, per-head track table. A disk exclusively owns its tracks,
// a track exclusively owns its sectors, a sector exclusively owns its
// readings: there is no sharing across the hierarchy.
type Disk struct {
	Comment      []byte
	NumPhysCyls  int
	NumPhysHeads int
	Tracks       [MaxCyls][MaxHeads]Track
}

// NewDisk returns an empty disk with every track addressed but unprobed.
func NewDisk() *Disk {
	d := &Disk{}
	for c := 0; c < MaxCyls; c++ {
		for h := 0; h < MaxHeads; h++ {
			d.Tracks[c][h] = Track{PhysCyl: c, PhysHead: h}
		}
	}
	return d
}

// Track returns a pointer to the track at the given physical position.
func (d *Disk) Track(cyl, head int) *Track {
	return &d.Tracks[cyl][head]
}

// Validate checks the disk invariant: every track's stored physical
// position matches its index, plus every live track's own invariants.
func (d *Disk) Validate() error {
	if d.NumPhysCyls > MaxCyls {
		return fmt.Errorf("disk: num_phys_cyls %d exceeds max %d", d.NumPhysCyls, MaxCyls)
	}
	if d.NumPhysHeads > MaxHeads {
		return fmt.Errorf("disk: num_phys_heads %d exceeds max %d", d.NumPhysHeads, MaxHeads)
	}
	for c := 0; c < MaxCyls; c++ {
		for h := 0; h < MaxHeads; h++ {
			t := &d.Tracks[c][h]
			if t.PhysCyl != c || t.PhysHead != h {
				return fmt.Errorf("disk: track[%d][%d] carries phys_cyl=%d phys_head=%d", c, h, t.PhysCyl, t.PhysHead)
			}
			if err := t.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Summary counts tracks and sectors by status, for verbose reporting.
type Summary struct {
	TracksProbed, TracksGuessed, TracksUnknown int
	SectorsGood, SectorsBad, SectorsMissing    int
}

// Summarize walks the first NumPhysCyls cylinders and NumPhysHeads heads and
// tallies track and sector status.
func (d *Disk) Summarize() Summary {
	var s Summary
	for c := 0; c < d.NumPhysCyls; c++ {
		for h := 0; h < d.NumPhysHeads; h++ {
			t := &d.Tracks[c][h]
			switch t.Status {
			case TrackProbed:
				s.TracksProbed++
			case TrackGuessed:
				s.TracksGuessed++
			default:
				s.TracksUnknown++
			}
			for i := 0; i < t.NumSectors; i++ {
				switch t.Sectors[i].Status {
				case SectorGood:
					s.SectorsGood++
				case SectorBad:
					s.SectorsBad++
				default:
					s.SectorsMissing++
				}
			}
		}
	}
	return s
}

// String renders a one-line human summary, in the style of the status
// reports the teacher's adapters print for connected hardware.
func (s Summary) String() string {
	return fmt.Sprintf("tracks: %d probed, %d guessed, %d unknown; sectors: %d good, %d bad, %d missing",
		s.TracksProbed, s.TracksGuessed, s.TracksUnknown, s.SectorsGood, s.SectorsBad, s.SectorsMissing)
}
