package prober

import (
	"fmt"

	"github.com/sergev/imdisk/internal/diskimage"
	"github.com/sergev/imdisk/internal/fdc"
)

// geometryProbeCyl is the cylinder probed to infer disk geometry: cylinder
// 0 may be unformatted on boot-track disks, so cylinder >= 1 is required to
// reliably detect doublestepping.
const geometryProbeCyl = 2

// Geometry is the outcome of probing cylinder geometryProbeCyl on both
// heads, per the table in §4.4.
type Geometry struct {
	NumPhysHeads int
	// CylScale is 1 normally, 2 when a 40-track disk is being read in an
	// 80-track drive that must doublestep (logical cylinder = physical
	// cylinder / 2).
	CylScale int
	// SplitSides is true when both heads report log_head == 0, meaning
	// the disk uses "separate sides" numbering rather than head-in-address.
	SplitSides bool
	// Warning holds a non-fatal geometry oddity, if any: side 0 reports a
	// logical cylinder that is neither the physical one nor a doublestep
	// or 80-in-40 match.
	Warning string
}

// ProbeGeometry probes both heads of cylinder geometryProbeCyl and infers
// sidedness and doublestepping, per the table in §4.4.
func ProbeGeometry(c fdc.Controller) (Geometry, error) {
	var side0, side1 diskimage.Track
	side0.PhysCyl, side0.PhysHead = geometryProbeCyl, 0
	side1.PhysCyl, side1.PhysHead = geometryProbeCyl, 1

	err0 := ProbeTrack(c, &side0)
	err1 := ProbeTrack(c, &side1)

	side0Ok := err0 == nil
	side1Ok := err1 == nil

	if !side0Ok && !side1Ok {
		return Geometry{}, fmt.Errorf("cylinder %d unreadable on either side", geometryProbeCyl)
	}

	g := Geometry{NumPhysHeads: 2, CylScale: 1}

	if side0Ok && !side1Ok {
		g.NumPhysHeads = 1
	} else if side0Ok && side1Ok {
		if side0.Sectors[0].LogHead == 0 && side1.Sectors[0].LogHead == 0 {
			g.SplitSides = true
		}
	}

	if side0Ok {
		logCyl := int(side0.Sectors[0].LogCyl)
		switch {
		case logCyl*2 == geometryProbeCyl:
			g.CylScale = 2
		case logCyl == geometryProbeCyl*2:
			return Geometry{}, fmt.Errorf("80-track disk in 40-track drive: logical cylinder %d at physical cylinder %d", logCyl, geometryProbeCyl)
		case logCyl != geometryProbeCyl:
			g.Warning = fmt.Sprintf("cylinder %d reports logical cylinder %d", geometryProbeCyl, logCyl)
		}
	}

	return g, nil
}
