// Package imdformat implements the ImageDisk (IMD) container codec (§4.6,
// §6.2): a comment, a sequence of per-track headers and optional maps, and
// one Sector Data Record per physical sector, including the local
// multi-read-evidence extension.
package imdformat

import "github.com/pkg/errors"

// CommentTerminator ends the free-form comment block; it is consumed on
// read, not stored in Disk.Comment.
const CommentTerminator = 0x1A

// Track header flag bits (§6.2).
const (
	FlagNeedCylMap  = 0x80
	FlagNeedHeadMap = 0x40
	flagHeadMask    = 0x03
	flagValidMask   = FlagNeedCylMap | FlagNeedHeadMap | flagHeadMask
)

// VariableSizeCode marks a track as using the unsupported "variable sector
// size per track" IMD extension.
const VariableSizeCode = 0xFF

// Sector Data Record type-byte components. The type byte is a SUM, not a
// bitfield: decoding must subtract components in this exact order, because
// the encoding is additive rather than bitwise (§6.2, §9).
const (
	sdrAbsent       = 0x00
	sdrDataBase     = 0x01
	sdrHasCount     = 0x10
	sdrAnotherFollows = 0x08
	sdrIsError      = 0x04
	sdrIsDeleted    = 0x02
	sdrIsCompressed = 0x01
)

// ErrUnsupportedVariableSize is returned when a track header declares the
// variable-sector-size extension, which this codec does not implement.
var ErrUnsupportedVariableSize = errors.New("imdformat: variable sector size per track is not supported")
