// Package fake implements fdc.Controller entirely in memory, for testing
// the prober, reader and acquisition driver without real hardware. It
// plays the role the teacher's in-process adapters would play in a unit
// test, had the teacher isolated FloppyAdapter behind fakes of its own.
package fake

import (
	"fmt"

	"github.com/sergev/imdisk/internal/diskimage"
	"github.com/sergev/imdisk/internal/fdc"
)

// SectorScript describes one physical sector slot on a scripted track: the
// logical address it reports and the sequence of outcomes ReadID/Read
// produce, consumed one at a time and then held at the last entry.
type SectorScript struct {
	LogCyl, LogHead, LogSector byte
	SizeCode                   byte
	// Reads is the queue of canned read outcomes for this slot. Each call
	// to Read for this logical sector consumes the next entry (or repeats
	// the last one once the queue is exhausted).
	Reads []ReadOutcome
}

// ReadOutcome is one canned result for a single-sector or whole-track read.
type ReadOutcome struct {
	Data    []byte
	CRCBad  bool
	Deleted bool
}

// TrackScript is the scripted layout and read behaviour for one physical
// track, in physical (rotational) order.
type TrackScript struct {
	Mode         diskimage.DataMode
	IDSequence   []SectorScript // as returned by repeated ReadID calls, wraps around
	FailReadID   bool           // if true, ReadID always reports "no ID"
	WholeTrackOK bool           // if true, a contiguous whole-track Read succeeds
}

// Controller is a scripted fdc.Controller keyed by (cyl, head).
type Controller struct {
	Tracks          map[[2]int]*TrackScript
	idCallIndex     map[[2]int]int
	readCallIndex   map[[3]int]int // cyl, head, physical slot
	RecalibrateErr  error
	RecalibrateCalls int
}

// New returns an empty scripted controller.
func New() *Controller {
	return &Controller{
		Tracks:        map[[2]int]*TrackScript{},
		idCallIndex:   map[[2]int]int{},
		readCallIndex: map[[3]int]int{},
	}
}

// Script registers the layout for physical track (cyl, head).
func (c *Controller) Script(cyl, head int, t *TrackScript) {
	c.Tracks[[2]int{cyl, head}] = t
}

func (c *Controller) Recalibrate() error {
	c.RecalibrateCalls++
	return c.RecalibrateErr
}

func (c *Controller) ReadID(physCyl, physHead int, mode diskimage.DataMode) (fdc.IDResult, bool, error) {
	key := [2]int{physCyl, physHead}
	t, ok := c.Tracks[key]
	if !ok || t.FailReadID || t.Mode.ImdMode != mode.ImdMode || len(t.IDSequence) == 0 {
		return fdc.IDResult{ST0: 1 << fdc.ST0InterruptCodeShift}, false, nil
	}
	idx := c.idCallIndex[key]
	sec := t.IDSequence[idx%len(t.IDSequence)]
	c.idCallIndex[key] = idx + 1
	return fdc.IDResult{
		LogCyl:    sec.LogCyl,
		LogHead:   sec.LogHead,
		LogSector: sec.LogSector,
		SizeCode:  sec.SizeCode,
	}, true, nil
}

func (c *Controller) Read(physCyl, physHead int, mode diskimage.DataMode, logCyl, logHead, firstLogSector byte, sizeCode byte, buf []byte) (fdc.ReadResult, error) {
	key := [2]int{physCyl, physHead}
	t, ok := c.Tracks[key]
	if !ok {
		return fdc.ReadResult{}, fmt.Errorf("fake: no script for track %d/%d", physCyl, physHead)
	}

	sectorSize := diskimage.SectorSize(sizeCode)
	count := len(buf) / sectorSize

	if count > 1 {
		if !t.WholeTrackOK {
			return fdc.ReadResult{OK: false, ST1: fdc.ST1CRCError, ST2: fdc.ST2CRCError}, nil
		}
		for i := 0; i < count; i++ {
			slot := c.findSlot(t, firstLogSector+byte(i))
			if slot < 0 {
				return fdc.ReadResult{}, fmt.Errorf("fake: whole-track read missed logical sector %d", firstLogSector+byte(i))
			}
			outcome := c.nextOutcome(physCyl, physHead, slot, t)
			copy(buf[i*sectorSize:(i+1)*sectorSize], outcome.Data)
		}
		return fdc.ReadResult{OK: true}, nil
	}

	slot := c.findSlot(t, firstLogSector)
	if slot < 0 {
		return fdc.ReadResult{}, fmt.Errorf("fake: no such logical sector %d", firstLogSector)
	}
	outcome := c.nextOutcome(physCyl, physHead, slot, t)
	if outcome.CRCBad {
		return fdc.ReadResult{OK: false, ST1: fdc.ST1CRCError, ST2: fdc.ST2CRCError}, nil
	}
	copy(buf, outcome.Data)
	res := fdc.ReadResult{OK: true}
	if outcome.Deleted {
		res.ST2 = fdc.ST2DeletedAddressMark
	}
	return res, nil
}

func (c *Controller) findSlot(t *TrackScript, logSector byte) int {
	for i, s := range t.IDSequence {
		if s.LogSector == logSector {
			return i
		}
	}
	return -1
}

func (c *Controller) nextOutcome(cyl, head, slot int, t *TrackScript) ReadOutcome {
	key := [3]int{cyl, head, slot}
	idx := c.readCallIndex[key]
	reads := t.IDSequence[slot].Reads
	if len(reads) == 0 {
		return ReadOutcome{Data: make([]byte, diskimage.SectorSize(t.IDSequence[slot].SizeCode))}
	}
	if idx < len(reads)-1 {
		c.readCallIndex[key] = idx + 1
	}
	if idx >= len(reads) {
		idx = len(reads) - 1
	}
	return reads[idx]
}
