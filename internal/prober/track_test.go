package prober

import (
	"testing"

	"github.com/sergev/imdisk/internal/diskimage"
	"github.com/sergev/imdisk/internal/fdc/fake"
)

func nineSectorIDSequence(mode diskimage.DataMode) []fake.SectorScript {
	var ids []fake.SectorScript
	order := []byte{1, 3, 5, 7, 9, 2, 4, 6, 8}
	for _, sec := range order {
		ids = append(ids, fake.SectorScript{LogCyl: 0, LogHead: 0, LogSector: sec, SizeCode: 2})
	}
	_ = mode
	return ids
}

func TestProbeTrackDiscoversLayout(t *testing.T) {
	mode := diskimage.DataModes[0]
	c := fake.New()
	c.Script(0, 0, &fake.TrackScript{
		Mode:       mode,
		IDSequence: nineSectorIDSequence(mode),
	})

	tr := &diskimage.Track{PhysCyl: 0, PhysHead: 0}
	if err := ProbeTrack(c, tr); err != nil {
		t.Fatalf("ProbeTrack() error: %v", err)
	}

	if tr.Status != diskimage.TrackProbed {
		t.Errorf("Status = %v, want TrackProbed", tr.Status)
	}
	if tr.NumSectors != 9 {
		t.Fatalf("NumSectors = %d, want 9", tr.NumSectors)
	}
	if tr.DataMode.ImdMode != mode.ImdMode {
		t.Errorf("DataMode = %+v, want %+v", tr.DataMode, mode)
	}
	if tr.Sectors[0].LogSector != 1 {
		t.Errorf("Sectors[0].LogSector = %d, want 1 (index order, not logical order)", tr.Sectors[0].LogSector)
	}
	if tr.Sectors[1].LogSector != 3 {
		t.Errorf("Sectors[1].LogSector = %d, want 3", tr.Sectors[1].LogSector)
	}
}

func TestProbeTrackFailsWhenNoModeSucceeds(t *testing.T) {
	c := fake.New()
	c.Script(0, 0, &fake.TrackScript{FailReadID: true})

	tr := &diskimage.Track{PhysCyl: 0, PhysHead: 0}
	if err := ProbeTrack(c, tr); err == nil {
		t.Fatal("ProbeTrack() = nil error, want failure when every mode's READ-ID fails")
	}
}

func TestExtractCycleFindsRepetition(t *testing.T) {
	ids := []seenID{
		{logSector: 1}, {logSector: 2}, {logSector: 3},
		{logSector: 1}, {logSector: 2}, {logSector: 3},
		{logSector: 1},
	}
	length, err := extractCycle(ids)
	if err != nil {
		t.Fatalf("extractCycle() error: %v", err)
	}
	if length != 3 {
		t.Errorf("extractCycle() = %d, want 3", length)
	}
}

func TestExtractCycleRejectsInconsistentRepetition(t *testing.T) {
	ids := []seenID{
		{logSector: 1}, {logSector: 2},
		{logSector: 1}, {logSector: 9}, // breaks the cycle
	}
	if _, err := extractCycle(ids); err == nil {
		t.Error("extractCycle() = nil error, want failure on inconsistent repetition")
	}
}

func TestExtractCycleRejectsNoRepetition(t *testing.T) {
	ids := []seenID{{logSector: 1}, {logSector: 2}, {logSector: 3}}
	if _, err := extractCycle(ids); err == nil {
		t.Error("extractCycle() = nil error, want failure when sector 0 never repeats")
	}
}
