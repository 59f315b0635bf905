// Package flatten reduces the multi-dimensional (cylinder, head, sector)
// disk model to a linear byte stream (§4.7), resolving ambiguous
// multi-read sectors and filling absent sectors with dummy data.
package flatten

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/noxer/bytewriter"

	"github.com/sergev/imdisk/internal/diskimage"
)

// Prompter resolves which of a bad sector's several readings to emit. It
// is the abstraction over the operator-facing diagnostic-stream prompt
// described in §4.7 step 2; a CLI implementation reads a line from stdin,
// tests supply a canned choice.
type Prompter interface {
	// Choose is asked for sector addr, which has numChoices distinct
	// readings; defaultIdx is the index with the highest read count. It
	// returns the chosen index.
	Choose(addr SectorAddr, numChoices int, defaultIdx int) (int, error)
}

// DefaultPrompter always selects defaultIdx without prompting, matching
// the documented default-on-empty-input behaviour.
type DefaultPrompter struct{}

func (DefaultPrompter) Choose(_ SectorAddr, _ int, defaultIdx int) (int, error) {
	return defaultIdx, nil
}

// SectorAddr identifies one output slot: physical cylinder, physical head,
// and the logical sector number recorded on the medium.
type SectorAddr struct {
	Cyl, Head, Sector int
}

func (a SectorAddr) String() string {
	return fmt.Sprintf("%d/%d/%d", a.Cyl, a.Head, a.Sector)
}

// Options configures one flatten run (§4.7).
type Options struct {
	InCyls, InHeads, InSectors Range

	// OutCyls/OutHeads/OutSectors override auto-detection when non-nil.
	OutCyls, OutHeads, OutSectors *Range

	// Permissive allows more than one sector to land on the same output
	// slot; the first one encountered, in disk iteration order, wins and
	// later ones are dropped with a warning instead of aborting.
	Permissive bool

	Prompt Prompter
}

// Result is the flattened output plus any non-fatal observations.
type Result struct {
	Data     []byte
	Warnings *multierror.Error
}

// Flatten implements §4.7 end to end.
func Flatten(disk *diskimage.Disk, opts Options) (*Result, error) {
	if opts.Prompt == nil {
		opts.Prompt = DefaultPrompter{}
	}

	slots := map[SectorAddr][]byte{}
	var autoCyl, autoHead, autoSec autoRange
	var warnings *multierror.Error
	sizeCode := -1
	haveSize := false

	for cyl := 0; cyl < disk.NumPhysCyls; cyl++ {
		if !opts.InCyls.Contains(cyl) {
			continue
		}
		for head := 0; head < disk.NumPhysHeads; head++ {
			if !opts.InHeads.Contains(head) {
				continue
			}
			t := disk.Track(cyl, head)
			for i := 0; i < t.NumSectors; i++ {
				s := &t.Sectors[i]
				if !opts.InSectors.Contains(int(s.LogSector)) {
					continue
				}

				addr := SectorAddr{Cyl: cyl, Head: head, Sector: int(s.LogSector)}
				autoCyl.observe(addr.Cyl)
				autoHead.observe(addr.Head)
				autoSec.observe(addr.Sector)

				if s.Status == diskimage.SectorMissing {
					continue
				}

				if _, exists := slots[addr]; exists {
					if !opts.Permissive {
						return nil, fmt.Errorf("two sectors found for %s", addr)
					}
					warnings = multierror.Append(warnings, fmt.Errorf("duplicate sector at %s discarded (permissive mode)", addr))
					continue
				}

				chosen, err := chooseReading(s, addr, opts.Prompt)
				if err != nil {
					return nil, err
				}
				slots[addr] = chosen

				if !haveSize {
					sizeCode = int(t.SectorSizeCode)
					haveSize = true
				} else if int(t.SectorSizeCode) != sizeCode {
					warnings = multierror.Append(warnings, fmt.Errorf("sector %s has size code %d, expected %d", addr, t.SectorSizeCode, sizeCode))
				}
			}
		}
	}

	outCyls := resolveRange(opts.OutCyls, autoCyl)
	outHeads := resolveRange(opts.OutHeads, autoHead)
	outSectors := resolveRange(opts.OutSectors, autoSec)

	if !haveSize {
		sizeCode = 2 // 512 bytes: the common case, used when nothing was read.
	}
	dummySize := diskimage.SectorSize(byte(sizeCode))
	dummy := make([]byte, dummySize)
	for i := range dummy {
		dummy[i] = 0xFF
	}

	cyls := rangeValues(outCyls, 0, diskimage.MaxCyls-1)
	heads := rangeValues(outHeads, 0, diskimage.MaxHeads-1)
	sectors := rangeValues(outSectors, 0, diskimage.MaxSectors-1)

	// Sized from the actual payload of each selected slot rather than a
	// single dummySize: a disk with sectors of differing size codes (§4.7,
	// warned above) would otherwise make bw.Write run off a buffer sized
	// for only the first size code seen.
	total := 0
	for _, c := range cyls {
		for _, h := range heads {
			for _, sec := range sectors {
				addr := SectorAddr{Cyl: c, Head: h, Sector: sec}
				if payload, ok := slots[addr]; ok {
					total += len(payload)
				} else {
					total += dummySize
				}
			}
		}
	}

	out := make([]byte, total)
	bw := bytewriter.New(out)

	for _, c := range cyls {
		for _, h := range heads {
			for _, sec := range sectors {
				addr := SectorAddr{Cyl: c, Head: h, Sector: sec}
				payload, ok := slots[addr]
				if !ok {
					payload = dummy
				}
				if _, err := bw.Write(payload); err != nil {
					return nil, fmt.Errorf("assembling output at %s: %w", addr, err)
				}
			}
		}
	}

	return &Result{Data: out, Warnings: warnings}, nil
}

func chooseReading(s *diskimage.Sector, addr SectorAddr, prompt Prompter) ([]byte, error) {
	if s.Datas.Len() == 1 {
		return s.Datas.At(0).Data, nil
	}
	defaultIdx := s.Datas.HighestCountIndex()
	idx, err := prompt.Choose(addr, s.Datas.Len(), defaultIdx)
	if err != nil {
		return nil, fmt.Errorf("resolving ambiguous sector %s: %w", addr, err)
	}
	if idx < 0 || idx >= s.Datas.Len() {
		return nil, fmt.Errorf("resolving ambiguous sector %s: index %d out of range", addr, idx)
	}
	return s.Datas.At(idx).Data, nil
}

func resolveRange(override *Range, auto autoRange) Range {
	if override != nil {
		return *override
	}
	return auto.toRange()
}

func rangeValues(r Range, lo, hi int) []int {
	first, last := lo, hi
	if !r.unbounded {
		first, last = r.first, r.last
	}
	if first < lo {
		first = lo
	}
	if last > hi {
		last = hi
	}
	var vals []int
	for v := first; v <= last; v++ {
		vals = append(vals, v)
	}
	return vals
}
