package imdformat

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergev/imdisk/internal/diskimage"
)

func singleSectorDisk(t *testing.T, status diskimage.SectorStatus, deleted bool, data []byte) *diskimage.Disk {
	t.Helper()
	disk := diskimage.NewDisk()
	disk.Comment = []byte("imdcat test: 01/01/2026 00:00:00\r\n")
	disk.NumPhysCyls = 1
	disk.NumPhysHeads = 1

	tr := disk.Track(0, 0)
	tr.Status = diskimage.TrackProbed
	tr.DataMode = diskimage.DataModes[0]
	tr.SectorSizeCode = 2
	tr.NumSectors = 1
	tr.Sectors[0] = diskimage.Sector{
		Status:    status,
		LogCyl:    0,
		LogHead:   0,
		LogSector: 1,
		Deleted:   deleted,
	}
	tr.Sectors[0].Datas.Add(data, 1)
	return disk
}

func TestEncodeDecodeRoundTripGoodSector(t *testing.T) {
	data := bytes.Repeat([]byte{0x42}, 512)
	disk := singleSectorDisk(t, diskimage.SectorGood, false, data)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, disk))

	got, err := Decode(&buf)
	require.NoError(t, err)

	require.Equal(t, disk.Comment, got.Comment)
	require.Equal(t, 1, got.NumPhysCyls)
	require.Equal(t, 1, got.NumPhysHeads)

	gotTrack := got.Track(0, 0)
	assert.Equal(t, diskimage.TrackProbed, gotTrack.Status)
	assert.Equal(t, byte(2), gotTrack.SectorSizeCode)
	assert.Equal(t, 1, gotTrack.NumSectors)

	s := gotTrack.Sectors[0]
	assert.Equal(t, diskimage.SectorGood, s.Status)
	assert.False(t, s.Deleted)
	require.Equal(t, 1, s.Datas.Len())
	assert.Equal(t, data, s.Datas.At(0).Data)
}

func TestEncodeDecodeCompressedSector(t *testing.T) {
	// A uniform fill is encoded as a single byte rather than the full
	// sector payload, per the IS-COMPRESSED component.
	data := bytes.Repeat([]byte{0xE5}, 512)
	disk := singleSectorDisk(t, diskimage.SectorGood, false, data)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, disk))

	// The encoded track's sector data record should be far shorter than
	// the uncompressed 512-byte payload: header + map + 1 type byte + 1
	// fill byte.
	assert.Less(t, buf.Len(), 512)

	got, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	s := got.Track(0, 0).Sectors[0]
	require.Equal(t, 1, s.Datas.Len())
	assert.Equal(t, data, s.Datas.At(0).Data)
}

func TestEncodeDecodeDeletedAndBadSector(t *testing.T) {
	data := []byte("garbled read, crc failed, one two three four\x00\x00\x00")
	data = append(data, bytes.Repeat([]byte{0}, 512-len(data))...)
	disk := singleSectorDisk(t, diskimage.SectorBad, true, data)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, disk))

	got, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	s := got.Track(0, 0).Sectors[0]
	assert.Equal(t, diskimage.SectorBad, s.Status)
	assert.True(t, s.Deleted)
}

func TestEncodeDecodeMultipleReadingsWithCount(t *testing.T) {
	disk := diskimage.NewDisk()
	disk.NumPhysCyls, disk.NumPhysHeads = 1, 1
	tr := disk.Track(0, 0)
	tr.Status = diskimage.TrackProbed
	tr.DataMode = diskimage.DataModes[0]
	tr.SectorSizeCode = 2
	tr.NumSectors = 1
	tr.Sectors[0] = diskimage.Sector{Status: diskimage.SectorBad, LogSector: 1}
	readingA := bytes.Repeat([]byte{0xAA}, 512)
	readingB := bytes.Repeat([]byte{0xBB}, 512)
	tr.Sectors[0].Datas.Add(readingA, 3)
	tr.Sectors[0].Datas.Add(readingB, 1)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, disk))

	got, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	s := got.Track(0, 0).Sectors[0]
	require.Equal(t, 2, s.Datas.Len())
	assert.Equal(t, uint32(3), s.Datas.At(0).Count)
	assert.Equal(t, readingA, s.Datas.At(0).Data)
	assert.Equal(t, uint32(1), s.Datas.At(1).Count)
	assert.Equal(t, readingB, s.Datas.At(1).Data)
}

func TestEncodeDecodeMissingSector(t *testing.T) {
	disk := diskimage.NewDisk()
	disk.NumPhysCyls, disk.NumPhysHeads = 1, 1
	tr := disk.Track(0, 0)
	tr.Status = diskimage.TrackProbed
	tr.DataMode = diskimage.DataModes[0]
	tr.SectorSizeCode = 2
	tr.NumSectors = 1
	tr.Sectors[0] = diskimage.Sector{Status: diskimage.SectorMissing, LogSector: 1}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, disk))

	got, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	s := got.Track(0, 0).Sectors[0]
	assert.Equal(t, diskimage.SectorMissing, s.Status)
	assert.Equal(t, 0, s.Datas.Len())
}

func TestDecodeRejectsVariableSectorSize(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("comment\x1a")
	buf.Write([]byte{0, 0, 0, 1, VariableSizeCode})

	_, err := Decode(&buf)
	require.ErrorIs(t, err, ErrUnsupportedVariableSize)
}

func TestDecodeRejectsUnknownDataMode(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("comment\x1a")
	buf.Write([]byte{99, 0, 0, 1, 2})

	_, err := Decode(&buf)
	require.Error(t, err)
}

func TestDecodeRejectsBadHeadFlagBits(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("comment\x1a")
	buf.Write([]byte{5, 0, 0x20, 1, 2}) // 0x20 is outside the 0xC3 mask

	_, err := Decode(&buf)
	require.Error(t, err)
}
