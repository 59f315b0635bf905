// Package acquire orchestrates the full disk-capture sequence (§4.5):
// geometry detection, per-track probing and reading with retry, and
// incremental IMD output so a run can be resumed after an abort.
package acquire

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/sergev/imdisk/internal/config"
	"github.com/sergev/imdisk/internal/diskimage"
	"github.com/sergev/imdisk/internal/fdc"
	"github.com/sergev/imdisk/internal/imdformat"
	"github.com/sergev/imdisk/internal/prober"
	"github.com/sergev/imdisk/internal/reader"
)

// Config is the explicit configuration record passed into the driver. The
// teacher binds drive number and image path at package scope; this package
// accepts them as values instead, so a process can run more than one
// acquisition without hidden shared state.
type Config struct {
	Drive         int
	ForcedCyls    int // 0 means "use the default guess"
	AlwaysProbe   bool
	MaxTries      int
	Resume        bool
	IgnoreSector  int // -1 means "don't discard any sector"
	ProgramBanner string
	ExtraComment  []byte
	Defaults      *config.Defaults // nil falls back to a plain 80-cylinder guess
}

// DefaultMaxTries matches the teacher's CLI default retry count.
const DefaultMaxTries = 10

// Logger receives informational and recoverable-error messages during
// acquisition (§7). The CLI wires this to os.Stderr.
type Logger interface {
	Printf(format string, args ...any)
}

// Run performs a full acquisition against controller c, writing an IMD
// stream to w, optionally resuming from an existing disk model loaded by
// the caller. now is the timestamp to stamp into a fresh comment; it is
// not used when resuming.
func Run(c fdc.Controller, w io.Writer, cfg Config, existing *diskimage.Disk, now time.Time, log Logger) (*diskimage.Disk, error) {
	if cfg.Resume && existing == nil {
		return nil, errors.New("resume requested but no existing image was loaded")
	}

	writer, err := imdformat.NewWriter(w)
	if err != nil {
		return nil, errors.Wrap(err, "opening IMD output stream")
	}

	if err := c.Recalibrate(); err != nil {
		return nil, errors.Wrap(err, "recalibrate")
	}
	// A second recalibrate covers disks that were stepped beyond cylinder
	// 80 by a previous run and left the head assembly past track 0.
	if err := c.Recalibrate(); err != nil {
		return nil, errors.Wrap(err, "recalibrate (second pass)")
	}

	var disk *diskimage.Disk
	if cfg.Resume {
		disk = existing
	} else {
		disk = diskimage.NewDisk()
		disk.Comment = buildComment(cfg.ProgramBanner, now, cfg.ExtraComment)
	}

	if err := writer.WriteComment(disk.Comment); err != nil {
		return nil, errors.Wrap(err, "writing IMD comment")
	}

	cylScale := 1
	if !cfg.Resume {
		geom, err := prober.ProbeGeometry(c)
		if err != nil {
			return nil, errors.Wrap(err, "geometry detection")
		}
		disk.NumPhysHeads = geom.NumPhysHeads
		cylScale = geom.CylScale
		if geom.Warning != "" && log != nil {
			log.Printf("warning: %s", geom.Warning)
		}
	}

	numCyls := cfg.ForcedCyls
	if numCyls == 0 {
		guess := 80
		if cfg.Defaults != nil {
			guess = cfg.Defaults.HighestCapacity().Cyls
		}
		numCyls = guess / cylScale
	}
	disk.NumPhysCyls = numCyls

	for cyl := 0; cyl < numCyls*cylScale; cyl += cylScale {
		for head := 0; head < disk.NumPhysHeads; head++ {
			t := disk.Track(cyl, head)

			if !cfg.AlwaysProbe && !cfg.Resume && cyl > 0 {
				prevCyl := cyl - cylScale
				prev := disk.Track(prevCyl, head)
				if prev.Status != diskimage.TrackUnknown {
					t.CopyLayoutFrom(prev, t.PhysCyl-prev.PhysCyl)
				}
			}

			if err := acquireTrack(c, t, cfg, log); err != nil {
				return nil, errors.Wrapf(err, "track %d/%d", cyl, head)
			}

			if cfg.IgnoreSector >= 0 {
				discardSector(t, byte(cfg.IgnoreSector))
			}

			if err := writer.WriteTrack(t); err != nil {
				return nil, errors.Wrapf(err, "writing track %d/%d", cyl, head)
			}
			if err := writer.Flush(); err != nil {
				return nil, errors.Wrap(err, "flushing IMD stream")
			}
		}
	}

	return disk, nil
}

// acquireTrack runs probing (if needed) and reading for one track, with up
// to cfg.MaxTries attempts. A guessed track whose read fails is reset to
// unknown and reprobed, per §4.5.
func acquireTrack(c fdc.Controller, t *diskimage.Track, cfg Config, log Logger) error {
	maxTries := cfg.MaxTries
	if maxTries <= 0 {
		maxTries = DefaultMaxTries
	}

	for attempt := 0; attempt < maxTries; attempt++ {
		if t.Status == diskimage.TrackUnknown {
			if err := prober.ProbeTrack(c, t); err != nil {
				if log != nil {
					log.Printf("probe failed for track %d/%d (attempt %d/%d): %v", t.PhysCyl, t.PhysHead, attempt+1, maxTries, err)
				}
				continue
			}
		}

		wasGuessed := t.Status == diskimage.TrackGuessed
		allOK, err := reader.ReadTrack(c, t, attempt > 0)
		if err != nil {
			return err
		}
		if allOK {
			return nil
		}
		if wasGuessed {
			// The guess didn't hold up; force a reprobe next time round.
			*t = diskimage.Track{PhysCyl: t.PhysCyl, PhysHead: t.PhysHead}
		}
		if log != nil {
			log.Printf("track %d/%d: incomplete read on attempt %d/%d", t.PhysCyl, t.PhysHead, attempt+1, maxTries)
		}
	}
	return nil
}

// discardSector removes any sector whose logical ID matches ignoreID,
// resetting it to Missing so it will not be written to the image.
func discardSector(t *diskimage.Track, ignoreID byte) {
	for i := 0; i < t.NumSectors; i++ {
		if t.Sectors[i].LogSector == ignoreID {
			t.Sectors[i].Status = diskimage.SectorMissing
			t.Sectors[i].Deleted = false
			t.Sectors[i].Datas.Clear()
		}
	}
}

func buildComment(banner string, now time.Time, extra []byte) []byte {
	comment := fmt.Sprintf("%s: %s\r\n", banner, now.Format("02/01/2006 15:04:05"))
	return append([]byte(comment), extra...)
}
