package reader

import (
	"testing"

	"github.com/sergev/imdisk/internal/diskimage"
	"github.com/sergev/imdisk/internal/fdc/fake"
)

func scriptedTrack(numSectors int) (*diskimage.Track, []fake.SectorScript) {
	mode := diskimage.DataModes[0]
	tr := &diskimage.Track{
		PhysCyl: 0, PhysHead: 0,
		DataMode: mode, SectorSizeCode: 2, NumSectors: numSectors,
		Status: diskimage.TrackProbed,
	}
	var ids []fake.SectorScript
	for i := 0; i < numSectors; i++ {
		sec := byte(i + 1)
		tr.Sectors[i] = diskimage.Sector{LogCyl: 0, LogHead: 0, LogSector: sec}
		ids = append(ids, fake.SectorScript{LogCyl: 0, LogHead: 0, LogSector: sec, SizeCode: 2})
	}
	return tr, ids
}

func TestReadTrackWholeTrackFastPath(t *testing.T) {
	tr, ids := scriptedTrack(3)
	for i := range ids {
		ids[i].Reads = []fake.ReadOutcome{{Data: fillData(128, byte(i+1))}}
	}
	c := fake.New()
	c.Script(0, 0, &fake.TrackScript{Mode: tr.DataMode, IDSequence: ids, WholeTrackOK: true})

	ok, err := ReadTrack(c, tr, false)
	if err != nil {
		t.Fatalf("ReadTrack() error: %v", err)
	}
	if !ok {
		t.Fatal("ReadTrack() = false, want true on a clean whole-track read")
	}
	for i := 0; i < 3; i++ {
		if tr.Sectors[i].Status != diskimage.SectorGood {
			t.Errorf("Sectors[%d].Status = %v, want Good", i, tr.Sectors[i].Status)
		}
	}
}

func TestReadTrackFallsBackToPerSector(t *testing.T) {
	tr, ids := scriptedTrack(2)
	ids[0].Reads = []fake.ReadOutcome{{Data: fillData(128, 1)}}
	ids[1].Reads = []fake.ReadOutcome{{Data: fillData(128, 2)}}
	c := fake.New()
	c.Script(0, 0, &fake.TrackScript{Mode: tr.DataMode, IDSequence: ids, WholeTrackOK: false})

	ok, err := ReadTrack(c, tr, false)
	if err != nil {
		t.Fatalf("ReadTrack() error: %v", err)
	}
	if !ok {
		t.Fatal("ReadTrack() = false, want true once every sector is read individually")
	}
	if tr.Sectors[0].Status != diskimage.SectorGood || tr.Sectors[1].Status != diskimage.SectorGood {
		t.Error("expected both sectors Good after per-sector fallback")
	}
}

func TestReadTrackFoldsCRCBadEvidence(t *testing.T) {
	tr, ids := scriptedTrack(1)
	ids[0].Reads = []fake.ReadOutcome{
		{Data: fillData(128, 0xAA), CRCBad: true},
		{Data: fillData(128, 0xAA), CRCBad: true},
	}
	c := fake.New()
	c.Script(0, 0, &fake.TrackScript{Mode: tr.DataMode, IDSequence: ids})

	ok, err := ReadTrack(c, tr, false)
	if err != nil {
		t.Fatalf("ReadTrack() error: %v", err)
	}
	if ok {
		t.Fatal("ReadTrack() = true, want false while the sector keeps failing CRC")
	}
	if tr.Sectors[0].Status != diskimage.SectorBad {
		t.Fatalf("Status = %v, want Bad", tr.Sectors[0].Status)
	}
	if tr.Sectors[0].Datas.Len() != 1 {
		t.Fatalf("Datas.Len() = %d, want 1 (identical bad reads fold together)", tr.Sectors[0].Datas.Len())
	}
	if got := tr.Sectors[0].Datas.At(0).Count; got != 1 {
		t.Errorf("Datas.At(0).Count = %d, want 1 after a single CRC-bad read", got)
	}

	ok2, err := ReadTrack(c, tr, true)
	if err != nil {
		t.Fatalf("ReadTrack() (retry) error: %v", err)
	}
	if ok2 {
		t.Fatal("ReadTrack() retry = true, want false, still CRC bad")
	}
	if tr.Sectors[0].Datas.At(0).Count != 2 {
		t.Errorf("Datas.At(0).Count = %d, want 2 after two identical CRC-bad reads", tr.Sectors[0].Datas.At(0).Count)
	}
}

func TestReadTrackDominantReadingReplacesOnRecovery(t *testing.T) {
	tr, ids := scriptedTrack(1)
	// The first pass issues the whole-track read (a single sector here) and
	// then the per-sector read, each consuming one outcome; the retry pass
	// consumes the third.
	ids[0].Reads = []fake.ReadOutcome{
		{Data: fillData(128, 0xAA), CRCBad: true},
		{Data: fillData(128, 0xAA), CRCBad: true},
		{Data: fillData(128, 0xBB)},
	}
	c := fake.New()
	c.Script(0, 0, &fake.TrackScript{Mode: tr.DataMode, IDSequence: ids})

	if _, err := ReadTrack(c, tr, false); err != nil {
		t.Fatalf("ReadTrack() error: %v", err)
	}
	if tr.Sectors[0].Status != diskimage.SectorBad {
		t.Fatalf("Status after first attempt = %v, want Bad", tr.Sectors[0].Status)
	}

	ok, err := ReadTrack(c, tr, true)
	if err != nil {
		t.Fatalf("ReadTrack() retry error: %v", err)
	}
	if !ok {
		t.Fatal("ReadTrack() retry = false, want true once the sector comes back clean")
	}
	if tr.Sectors[0].Status != diskimage.SectorGood {
		t.Fatalf("Status = %v, want Good", tr.Sectors[0].Status)
	}
	if tr.Sectors[0].Datas.Len() != 1 {
		t.Fatalf("Datas.Len() = %d, want 1 after Replace discards prior evidence", tr.Sectors[0].Datas.Len())
	}
	if got := tr.Sectors[0].Datas.At(0).Data[0]; got != 0xBB {
		t.Errorf("surviving reading = 0x%02x, want 0xBB (the successful read)", got)
	}
}

func fillData(n int, b byte) []byte {
	d := make([]byte, n)
	for i := range d {
		d[i] = b
	}
	return d
}
