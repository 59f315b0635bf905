package imdformat

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/sergev/imdisk/internal/diskimage"
)

// Writer streams an IMD container to an underlying io.Writer one track at
// a time, so the acquisition driver can force a flush after every
// completed track and leave a valid prefix on disk if the process aborts.
type Writer struct {
	buf *bufio.Writer
	raw io.Writer
}

// NewWriter wraps w for incremental IMD output. The comment must be
// written first, via WriteComment.
func NewWriter(w io.Writer) (*Writer, error) {
	return &Writer{buf: bufio.NewWriter(w), raw: w}, nil
}

// WriteComment writes the comment block and its 0x1A terminator. It must
// be called exactly once, before any call to WriteTrack.
func (w *Writer) WriteComment(comment []byte) error {
	if _, err := w.buf.Write(comment); err != nil {
		return err
	}
	return w.buf.WriteByte(CommentTerminator)
}

// WriteTrack encodes one track record: header, sector-ID map, optional
// cylinder/head maps, and one Sector Data Record per sector.
func (w *Writer) WriteTrack(t *diskimage.Track) error {
	return encodeTrack(w.buf, t)
}

// Flush forces buffered output to the underlying writer and, if it is an
// *os.File, to stable storage, so a killed process leaves a usable prefix.
func (w *Writer) Flush() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if f, ok := w.raw.(*os.File); ok {
		return f.Sync()
	}
	return nil
}

// Encode writes a complete IMD container for disk in one pass: comment,
// then every track from (0,0) up to (NumPhysCyls-1, NumPhysHeads-1) in
// row-major order.
func Encode(w io.Writer, disk *diskimage.Disk) error {
	iw, err := NewWriter(w)
	if err != nil {
		return err
	}
	if err := iw.WriteComment(disk.Comment); err != nil {
		return errors.Wrap(err, "writing comment")
	}
	for c := 0; c < disk.NumPhysCyls; c++ {
		for h := 0; h < disk.NumPhysHeads; h++ {
			if err := iw.WriteTrack(disk.Track(c, h)); err != nil {
				return errors.Wrapf(err, "writing track %d/%d", c, h)
			}
		}
	}
	return iw.Flush()
}

func encodeTrack(w *bufio.Writer, t *diskimage.Track) error {
	needCylMap := false
	needHeadMap := false
	for i := 0; i < t.NumSectors; i++ {
		s := &t.Sectors[i]
		if int(s.LogCyl) != t.PhysCyl {
			needCylMap = true
		}
		if int(s.LogHead) != t.PhysHead {
			needHeadMap = true
		}
	}

	headByte := byte(t.PhysHead & flagHeadMask)
	if needCylMap {
		headByte |= FlagNeedCylMap
	}
	if needHeadMap {
		headByte |= FlagNeedHeadMap
	}

	header := []byte{t.DataMode.ImdMode, byte(t.PhysCyl), headByte, byte(t.NumSectors), t.SectorSizeCode}
	if _, err := w.Write(header); err != nil {
		return err
	}

	if t.NumSectors == 0 {
		return nil
	}

	sectorMap := make([]byte, t.NumSectors)
	for i := 0; i < t.NumSectors; i++ {
		sectorMap[i] = t.Sectors[i].LogSector
	}
	if _, err := w.Write(sectorMap); err != nil {
		return err
	}

	if needCylMap {
		cylMap := make([]byte, t.NumSectors)
		for i := 0; i < t.NumSectors; i++ {
			cylMap[i] = t.Sectors[i].LogCyl
		}
		if _, err := w.Write(cylMap); err != nil {
			return err
		}
	}

	if needHeadMap {
		headMap := make([]byte, t.NumSectors)
		for i := 0; i < t.NumSectors; i++ {
			headMap[i] = t.Sectors[i].LogHead
		}
		if _, err := w.Write(headMap); err != nil {
			return err
		}
	}

	for i := 0; i < t.NumSectors; i++ {
		if err := encodeSector(w, &t.Sectors[i]); err != nil {
			return errors.Wrapf(err, "sector %d", i)
		}
	}
	return nil
}

func encodeSector(w *bufio.Writer, s *diskimage.Sector) error {
	if s.Datas.Len() == 0 {
		return w.WriteByte(sdrAbsent)
	}

	readings := s.Datas.All()
	for i, r := range readings {
		t := byte(sdrDataBase)
		hasCount := r.Count > 1
		another := i < len(readings)-1
		isError := i == 0 && s.Status == diskimage.SectorBad
		isDeleted := i == 0 && s.Deleted
		compressed := isUniform(r.Data)

		if hasCount {
			t += sdrHasCount
		}
		if another {
			t += sdrAnotherFollows
		}
		if isError {
			t += sdrIsError
		}
		if isDeleted {
			t += sdrIsDeleted
		}
		if compressed {
			t += sdrIsCompressed
		}

		if err := w.WriteByte(t); err != nil {
			return err
		}
		if hasCount {
			var countBytes [4]byte
			binary.BigEndian.PutUint32(countBytes[:], r.Count)
			if _, err := w.Write(countBytes[:]); err != nil {
				return err
			}
		}
		if compressed {
			if err := w.WriteByte(r.Data[0]); err != nil {
				return err
			}
		} else {
			if _, err := w.Write(r.Data); err != nil {
				return err
			}
		}
	}
	return nil
}

func isUniform(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for _, b := range data[1:] {
		if b != data[0] {
			return false
		}
	}
	return true
}
