// Package prober determines a track's physical layout (§4.2) and a disk's
// overall geometry (§4.4) from READ-ID evidence alone — the only
// synchronization signal the controller exposes below the sector level.
package prober

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/sergev/imdisk/internal/diskimage"
	"github.com/sergev/imdisk/internal/fdc"
)

// maxIDsCollected bounds the READ-ID loop in step 3: beyond this many IDs
// without completing a full revolution, the track is declared unprobeable.
const maxIDsCollected = 100

// minSeenCount is how many times every logical sector must have been
// observed before a revolution is considered captured.
const minSeenCount = 3

// seenID is one READ-ID reply collected during step 3, in the physical
// order it arrived.
type seenID struct {
	logCyl, logHead, logSector byte
	sizeCode                   byte
}

// ProbeTrack determines data mode, sector size and the physical sector-ID
// sequence for track (physCyl, physHead), per §4.2. The caller must have
// already arranged for t.PhysCyl/t.PhysHead to be set and t.Status to be
// TrackUnknown.
func ProbeTrack(c fdc.Controller, t *diskimage.Track) error {
	// Step 1: force a failed READ-ID before the first real attempt. The
	// controller waits for up to two index holes on failure, so whatever
	// succeeds right after this is the only way to land close to the
	// index hole; any implementation that skips this step gets sector
	// orderings rotated away from true index position on some disks.
	if len(diskimage.DataModes) > 1 {
		_, _, _ = c.ReadID(t.PhysCyl, t.PhysHead, diskimage.DataModes[1])
	} else {
		_, _, _ = c.ReadID(t.PhysCyl, t.PhysHead, diskimage.DataModes[0])
	}

	// Step 2: mode discovery. The READ-ID that succeeds here is the first
	// one after the index hole, so it also opens the collected sequence.
	mode, first, ok, err := discoverMode(c, t.PhysCyl, t.PhysHead)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("track %d/%d: no data mode produced a sector ID", t.PhysCyl, t.PhysHead)
	}

	// Step 3+4: collect IDs until every logical sector has been seen at
	// least minSeenCount times, enforcing a consistent sector size.
	ids, err := collectIDs(c, t.PhysCyl, t.PhysHead, mode, first)
	if err != nil {
		return err
	}

	// Step 5+6: extract one revolution and trim to it.
	length, err := extractCycle(ids)
	if err != nil {
		return errors.Wrapf(err, "track %d/%d", t.PhysCyl, t.PhysHead)
	}

	t.DataMode = mode
	t.SectorSizeCode = ids[0].sizeCode
	t.NumSectors = length
	for i := 0; i < length; i++ {
		t.Sectors[i] = diskimage.Sector{
			LogCyl:    ids[i].logCyl,
			LogHead:   ids[i].logHead,
			LogSector: ids[i].logSector,
		}
	}
	t.Status = diskimage.TrackProbed
	return nil
}

// discoverMode tries every DataMode in probe order and returns the first
// one that yields a successful READ-ID, together with that reply.
func discoverMode(c fdc.Controller, physCyl, physHead int) (diskimage.DataMode, fdc.IDResult, bool, error) {
	for _, mode := range diskimage.DataModes {
		res, ok, err := c.ReadID(physCyl, physHead, mode)
		if err != nil {
			return diskimage.DataMode{}, fdc.IDResult{}, false, err
		}
		if ok && res.Successful() {
			return mode, res, true, nil
		}
	}
	return diskimage.DataMode{}, fdc.IDResult{}, false, nil
}

// collectIDs starts from first, the reply that identified the mode, and
// issues further READ-IDs in a loop, appending each reply in physical
// order and tracking how many times each logical sector number has been
// seen, stopping once every observed sector has been seen minSeenCount
// times. It is fatal for two IDs to disagree on sector size, and for the
// loop to exceed maxIDsCollected without converging.
func collectIDs(c fdc.Controller, physCyl, physHead int, mode diskimage.DataMode, first fdc.IDResult) ([]seenID, error) {
	ids := []seenID{{logCyl: first.LogCyl, logHead: first.LogHead, logSector: first.LogSector, sizeCode: first.SizeCode}}
	seenCount := map[byte]int{first.LogSector: 1}
	sizeCode := first.SizeCode
	haveSize := true

	for len(ids) < maxIDsCollected {
		res, ok, err := c.ReadID(physCyl, physHead, mode)
		if err != nil {
			return nil, err
		}
		if !ok || !res.Successful() {
			continue
		}
		if haveSize && res.SizeCode != sizeCode {
			return nil, fmt.Errorf("track %d/%d: inconsistent sector size, had %d now %d", physCyl, physHead, sizeCode, res.SizeCode)
		}
		sizeCode = res.SizeCode
		haveSize = true

		ids = append(ids, seenID{logCyl: res.LogCyl, logHead: res.LogHead, logSector: res.LogSector, sizeCode: res.SizeCode})
		seenCount[res.LogSector]++

		if allSeenEnough(seenCount, minSeenCount) {
			return ids, nil
		}
	}
	return nil, fmt.Errorf("track %d/%d: failed to capture a full revolution within %d IDs", physCyl, physHead, maxIDsCollected)
}

func allSeenEnough(counts map[byte]int, min int) bool {
	if len(counts) == 0 {
		return false
	}
	for _, n := range counts {
		if n < min {
			return false
		}
	}
	return true
}

// sameAddress reports whether two IDs share the same logical address.
func sameAddress(a, b seenID) bool {
	return a.logCyl == b.logCyl && a.logHead == b.logHead && a.logSector == b.logSector
}

// extractCycle finds the smallest end_pos >= 1 such that ids[end_pos]
// repeats ids[0], verifies the remaining suffix is a consistent repetition
// of the same cycle, and returns that length.
func extractCycle(ids []seenID) (int, error) {
	if len(ids) == 0 {
		return 0, fmt.Errorf("no sector IDs collected")
	}

	endPos := -1
	for i := 1; i < len(ids); i++ {
		if sameAddress(ids[i], ids[0]) {
			endPos = i
			break
		}
	}
	if endPos < 0 {
		return 0, fmt.Errorf("sector %d never repeated within %d collected IDs", ids[0].logSector, len(ids))
	}

	for i := endPos; i < len(ids); i++ {
		if !sameAddress(ids[i], ids[i%endPos]) {
			return 0, fmt.Errorf("inconsistent repetition at position %d: got sector %d, expected %d", i, ids[i].logSector, ids[i%endPos].logSector)
		}
	}
	return endPos, nil
}
