// Package reader implements the per-track read strategy (§4.3): a
// whole-track fast path with per-sector fallback, classifying each outcome
// and folding repeated bad reads into multi-read evidence.
package reader

import (
	"github.com/sergev/imdisk/internal/diskimage"
	"github.com/sergev/imdisk/internal/fdc"
)

// contiguousRange reports whether the track's logical sector numbers form
// an unbroken run, and if so returns the lowest one.
func contiguousRange(t *diskimage.Track) (lowest byte, ok bool) {
	if t.NumSectors == 0 {
		return 0, false
	}
	seen := make(map[byte]bool, t.NumSectors)
	min, max := t.Sectors[0].LogSector, t.Sectors[0].LogSector
	for i := 0; i < t.NumSectors; i++ {
		ls := t.Sectors[i].LogSector
		seen[ls] = true
		if ls < min {
			min = ls
		}
		if ls > max {
			max = ls
		}
	}
	if int(max)-int(min)+1 != t.NumSectors {
		return 0, false
	}
	for v := min; ; v++ {
		if !seen[v] {
			return 0, false
		}
		if v == max {
			break
		}
	}
	return min, true
}

// ReadTrack attempts to fill in every sector of t that is not already
// good, per §4.3. isRetry disables the whole-track fast path (only
// attempted on the first pass over a track). It returns true iff every
// live sector ended up SectorGood.
func ReadTrack(c fdc.Controller, t *diskimage.Track, isRetry bool) (bool, error) {
	if isRetry && t.AllGood() {
		return true, nil
	}

	if !isRetry {
		if lowest, ok := contiguousRange(t); ok {
			if done, err := tryWholeTrack(c, t, lowest); err != nil {
				return false, err
			} else if done {
				return t.AllGood(), nil
			}
		}
	}

	allOK := true
	for i := 0; i < t.NumSectors; i++ {
		s := &t.Sectors[i]
		if s.Status == diskimage.SectorGood {
			continue
		}
		if err := readOneSector(c, t, s); err != nil {
			return false, err
		}
		if s.Status != diskimage.SectorGood {
			allOK = false
		}
	}
	return allOK, nil
}

// tryWholeTrack issues one READ spanning every sector starting at the
// lowest logical number. On success every sector is marked good with a
// single reading of count 1; on failure it reports no success and leaves the
// per-sector fallback to run.
func tryWholeTrack(c fdc.Controller, t *diskimage.Track, lowest byte) (bool, error) {
	sectorSize := t.SectorSize()
	buf := make([]byte, sectorSize*t.NumSectors)

	logCyl, logHead := t.Sectors[0].LogCyl, t.Sectors[0].LogHead
	res, err := c.Read(t.PhysCyl, t.PhysHead, t.DataMode, logCyl, logHead, lowest, t.SectorSizeCode, buf)
	if err != nil {
		return false, err
	}
	if !res.OK {
		return false, nil
	}

	for i := 0; i < t.NumSectors; i++ {
		s := &t.Sectors[i]
		offset := int(s.LogSector-lowest) * sectorSize
		s.Status = diskimage.SectorGood
		s.Deleted = false
		s.Datas.Clear()
		s.Datas.Add(buf[offset:offset+sectorSize], 1)
	}
	return true, nil
}

// readOneSector issues a single-sector READ and classifies the outcome.
func readOneSector(c fdc.Controller, t *diskimage.Track, s *diskimage.Sector) error {
	sectorSize := t.SectorSize()
	buf := make([]byte, sectorSize)

	res, err := c.Read(t.PhysCyl, t.PhysHead, t.DataMode, s.LogCyl, s.LogHead, s.LogSector, t.SectorSizeCode, buf)
	if err != nil {
		return err
	}

	switch {
	case res.OK:
		hadPriorData := s.Datas.Len() > 0
		s.Status = diskimage.SectorGood
		s.Deleted = res.Deleted()
		if hadPriorData {
			s.Datas.Replace(buf)
		} else {
			s.Datas.Clear()
			s.Datas.Add(buf, 1)
		}
	case res.CRCBad():
		s.Status = diskimage.SectorBad
		s.Datas.Add(buf, 1)
	default:
		// Any other failure: discard the data, leave status as it was.
	}
	return nil
}
