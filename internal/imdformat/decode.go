package imdformat

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/sergev/imdisk/internal/diskimage"
)

// Decode reads a complete IMD container from r and returns the disk model
// it describes, per §4.6. Any malformed input — a short track header, an
// unknown data mode, a head-flag byte outside 0xC3, or the unsupported
// variable-size extension — is a fatal error.
func Decode(r io.Reader) (*diskimage.Disk, error) {
	br := bufio.NewReader(r)

	comment, err := br.ReadBytes(CommentTerminator)
	if err != nil {
		return nil, errors.Wrap(err, "reading comment block")
	}
	disk := diskimage.NewDisk()
	disk.Comment = comment[:len(comment)-1]

	for {
		header := make([]byte, 5)
		n, err := io.ReadFull(br, header)
		if err == io.EOF && n == 0 {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading track header")
		}

		if err := decodeTrack(br, header, disk); err != nil {
			return nil, err
		}
	}
	return disk, nil
}

func decodeTrack(br *bufio.Reader, header []byte, disk *diskimage.Disk) error {
	mode, physCylByte, headByte, numSectors, sizeCode := header[0], header[1], header[2], int(header[3]), header[4]

	physCyl := int(physCylByte)
	if physCyl >= diskimage.MaxCyls {
		return fmt.Errorf("imdformat: physical cylinder %d out of range", physCyl)
	}
	if headByte&^flagValidMask != 0 {
		return fmt.Errorf("imdformat: head/flags byte 0x%02x has bits outside 0xC3", headByte)
	}
	physHead := int(headByte & flagHeadMask)
	if physHead >= diskimage.MaxHeads {
		return fmt.Errorf("imdformat: physical head %d out of range", physHead)
	}
	needCylMap := headByte&FlagNeedCylMap != 0
	needHeadMap := headByte&FlagNeedHeadMap != 0

	dataMode, ok := diskimage.DataModeByImdMode(mode)
	if !ok {
		return fmt.Errorf("imdformat: unknown data mode byte %d", mode)
	}

	if sizeCode == VariableSizeCode {
		return ErrUnsupportedVariableSize
	}

	if physCyl+1 > disk.NumPhysCyls {
		disk.NumPhysCyls = physCyl + 1
	}
	if physHead+1 > disk.NumPhysHeads {
		disk.NumPhysHeads = physHead + 1
	}

	t := disk.Track(physCyl, physHead)
	t.DataMode = dataMode
	t.SectorSizeCode = sizeCode
	t.NumSectors = numSectors
	t.Status = diskimage.TrackProbed

	if numSectors == 0 {
		return nil
	}
	if numSectors > diskimage.MaxSectors {
		return fmt.Errorf("imdformat: track %d/%d declares %d sectors, exceeds max %d", physCyl, physHead, numSectors, diskimage.MaxSectors)
	}

	sectorMap := make([]byte, numSectors)
	if _, err := io.ReadFull(br, sectorMap); err != nil {
		return errors.Wrapf(err, "track %d/%d: reading sector-ID map", physCyl, physHead)
	}

	cylMap := make([]byte, numSectors)
	if needCylMap {
		if _, err := io.ReadFull(br, cylMap); err != nil {
			return errors.Wrapf(err, "track %d/%d: reading cylinder map", physCyl, physHead)
		}
	} else {
		for i := range cylMap {
			cylMap[i] = byte(physCyl)
		}
	}

	headMap := make([]byte, numSectors)
	if needHeadMap {
		if _, err := io.ReadFull(br, headMap); err != nil {
			return errors.Wrapf(err, "track %d/%d: reading head map", physCyl, physHead)
		}
	} else {
		for i := range headMap {
			headMap[i] = byte(physHead)
		}
	}

	sectorSize := diskimage.SectorSize(sizeCode)
	for i := 0; i < numSectors; i++ {
		s := &t.Sectors[i]
		s.LogCyl = cylMap[i]
		s.LogHead = headMap[i]
		s.LogSector = sectorMap[i]
		if err := decodeSector(br, s, sectorSize); err != nil {
			return errors.Wrapf(err, "track %d/%d sector %d", physCyl, physHead, i)
		}
	}
	return nil
}

func decodeSector(br *bufio.Reader, s *diskimage.Sector, sectorSize int) error {
	typeByte, err := br.ReadByte()
	if err != nil {
		return errors.Wrap(err, "reading SDR type byte")
	}
	if typeByte == sdrAbsent {
		s.Status = diskimage.SectorMissing
		return nil
	}

	v := int(typeByte) - sdrDataBase
	isBad := false
	deleted := false
	first := true

	for {
		hasCount := v&sdrHasCount != 0
		if hasCount {
			v -= sdrHasCount
		}
		another := v&sdrAnotherFollows != 0
		if another {
			v -= sdrAnotherFollows
		}
		isError := v&sdrIsError != 0
		if isError {
			v -= sdrIsError
		}
		isDeleted := v&sdrIsDeleted != 0
		if isDeleted {
			v -= sdrIsDeleted
		}
		compressed := v&sdrIsCompressed != 0
		if compressed {
			v -= sdrIsCompressed
		}
		if v != 0 {
			return fmt.Errorf("unsupported SDR type byte residual %d", v)
		}

		if first {
			isBad = isError
			deleted = isDeleted
		}

		count := uint32(1)
		if hasCount {
			countBytes := make([]byte, 4)
			if _, err := io.ReadFull(br, countBytes); err != nil {
				return errors.Wrap(err, "reading SDR read count")
			}
			count = binary.BigEndian.Uint32(countBytes)
		}

		var data []byte
		if compressed {
			fill, err := br.ReadByte()
			if err != nil {
				return errors.Wrap(err, "reading compressed fill byte")
			}
			data = make([]byte, sectorSize)
			for i := range data {
				data[i] = fill
			}
		} else {
			data = make([]byte, sectorSize)
			if _, err := io.ReadFull(br, data); err != nil {
				return errors.Wrap(err, "reading sector payload")
			}
		}
		s.Datas.Add(data, count)

		if !another {
			break
		}

		typeByte, err = br.ReadByte()
		if err != nil {
			return errors.Wrap(err, "reading chained SDR type byte")
		}
		if typeByte == sdrAbsent {
			return fmt.Errorf("chained SDR cannot be absent")
		}
		v = int(typeByte) - sdrDataBase
		first = false
	}

	if isBad {
		s.Status = diskimage.SectorBad
	} else {
		s.Status = diskimage.SectorGood
	}
	s.Deleted = deleted
	return nil
}

// ReadFile opens path and decodes it as an IMD container.
func ReadFile(path string) (*diskimage.Disk, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}
