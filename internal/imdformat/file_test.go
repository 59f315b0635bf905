package imdformat

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sergev/imdisk/internal/diskimage"
)

func TestWriteFileThenReadFileRoundTrips(t *testing.T) {
	disk := diskimage.NewDisk()
	disk.Comment = []byte("round trip\r\n")
	disk.NumPhysCyls, disk.NumPhysHeads = 1, 1
	tr := disk.Track(0, 0)
	tr.Status = diskimage.TrackProbed
	tr.DataMode = diskimage.DataModes[0]
	tr.SectorSizeCode = 2
	tr.NumSectors = 1
	tr.Sectors[0] = diskimage.Sector{Status: diskimage.SectorGood, LogSector: 1}
	tr.Sectors[0].Datas.Add(make([]byte, 512), 1)

	path := filepath.Join(t.TempDir(), "test.imd")
	require.False(t, Exists(path))
	require.NoError(t, WriteFile(path, disk))
	require.True(t, Exists(path))

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, disk.Comment, got.Comment)
	require.Equal(t, 1, got.Track(0, 0).NumSectors)
}

func TestExistsFalseForMissingPath(t *testing.T) {
	if Exists(filepath.Join(t.TempDir(), "nope.imd")) {
		t.Error("Exists() = true for a path that was never created")
	}
}
