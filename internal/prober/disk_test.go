package prober

import (
	"testing"

	"github.com/sergev/imdisk/internal/diskimage"
	"github.com/sergev/imdisk/internal/fdc/fake"
)

func scriptCylinder(c *fake.Controller, cyl, head int, logCyl byte) {
	mode := diskimage.DataModes[0]
	c.Script(cyl, head, &fake.TrackScript{
		Mode: mode,
		IDSequence: []fake.SectorScript{
			{LogCyl: logCyl, LogHead: byte(head), LogSector: 1, SizeCode: 2},
			{LogCyl: logCyl, LogHead: byte(head), LogSector: 2, SizeCode: 2},
		},
	})
}

func TestProbeGeometryDoubleSidedNormal(t *testing.T) {
	c := fake.New()
	scriptCylinder(c, geometryProbeCyl, 0, geometryProbeCyl)
	scriptCylinder(c, geometryProbeCyl, 1, geometryProbeCyl)

	g, err := ProbeGeometry(c)
	if err != nil {
		t.Fatalf("ProbeGeometry() error: %v", err)
	}
	if g.NumPhysHeads != 2 {
		t.Errorf("NumPhysHeads = %d, want 2", g.NumPhysHeads)
	}
	if g.CylScale != 1 {
		t.Errorf("CylScale = %d, want 1", g.CylScale)
	}
	if g.SplitSides {
		t.Error("SplitSides = true, want false when head 1 reports log_head=1")
	}
}

func TestProbeGeometrySingleSided(t *testing.T) {
	c := fake.New()
	scriptCylinder(c, geometryProbeCyl, 0, geometryProbeCyl)
	c.Script(geometryProbeCyl, 1, &fake.TrackScript{FailReadID: true})

	g, err := ProbeGeometry(c)
	if err != nil {
		t.Fatalf("ProbeGeometry() error: %v", err)
	}
	if g.NumPhysHeads != 1 {
		t.Errorf("NumPhysHeads = %d, want 1", g.NumPhysHeads)
	}
}

func TestProbeGeometryDetectsDoublestep(t *testing.T) {
	c := fake.New()
	scriptCylinder(c, geometryProbeCyl, 0, geometryProbeCyl/2)
	c.Script(geometryProbeCyl, 1, &fake.TrackScript{FailReadID: true})

	g, err := ProbeGeometry(c)
	if err != nil {
		t.Fatalf("ProbeGeometry() error: %v", err)
	}
	if g.CylScale != 2 {
		t.Errorf("CylScale = %d, want 2 for a doublestepped drive", g.CylScale)
	}
}

func TestProbeGeometryRejects80TrackIn40TrackDrive(t *testing.T) {
	c := fake.New()
	scriptCylinder(c, geometryProbeCyl, 0, geometryProbeCyl*2)
	c.Script(geometryProbeCyl, 1, &fake.TrackScript{FailReadID: true})

	if _, err := ProbeGeometry(c); err == nil {
		t.Error("ProbeGeometry() = nil error, want failure for an 80-track disk in a 40-track drive")
	}
}

func TestProbeGeometryFailsWhenBothSidesUnreadable(t *testing.T) {
	c := fake.New()
	c.Script(geometryProbeCyl, 0, &fake.TrackScript{FailReadID: true})
	c.Script(geometryProbeCyl, 1, &fake.TrackScript{FailReadID: true})

	if _, err := ProbeGeometry(c); err == nil {
		t.Error("ProbeGeometry() = nil error, want failure when cylinder is unreadable on both sides")
	}
}
