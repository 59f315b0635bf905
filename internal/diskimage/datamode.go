// Package diskimage holds the in-memory representation of a floppy disk
// acquired through the FDC primitive layer: data modes, sectors, tracks and
// the disk itself, along with the invariants that every mutator must
// preserve.
package diskimage

// DataMode describes one FM/MFM encoding and bit-rate combination that the
// controller can be asked to use for a track. Instances are immutable and
// only ever referenced from the fixed DataModes table below.
type DataMode struct {
	// ImdMode is the byte stored in an IMD track header for this mode.
	ImdMode byte
	// Name is a human-readable label, e.g. "MFM 250 kbps".
	Name string
	// Rate is the controller's bit-rate selector, 0..3.
	Rate byte
	// IsFM is true for FM encoding, false for MFM.
	IsFM bool
}

// DataModes is the fixed table of recognized data modes, in probe order.
// The controller refuses to run 1000 kbps in FM, so there is no
// "FM-1000k" entry; MFM-1000k itself is a local extension to the IMD 1.18
// format (imd_mode 6 is not part of Dave Dunfield's original spec).
var DataModes = []DataMode{
	{ImdMode: 5, Name: "MFM 250 kbps", Rate: 2, IsFM: false},
	{ImdMode: 2, Name: "FM 250 kbps", Rate: 2, IsFM: true},
	{ImdMode: 4, Name: "MFM 300 kbps", Rate: 1, IsFM: false},
	{ImdMode: 1, Name: "FM 300 kbps", Rate: 1, IsFM: true},
	{ImdMode: 3, Name: "MFM 500 kbps", Rate: 0, IsFM: false},
	{ImdMode: 0, Name: "FM 500 kbps", Rate: 0, IsFM: true},
	{ImdMode: 6, Name: "MFM 1000 kbps", Rate: 3, IsFM: false},
}

// DataModeByImdMode looks up a DataMode by its IMD header byte.
func DataModeByImdMode(imdMode byte) (DataMode, bool) {
	for _, m := range DataModes {
		if m.ImdMode == imdMode {
			return m, true
		}
	}
	return DataMode{}, false
}

// SectorSize returns the byte size encoded by an FDC size code: 128 << code.
func SectorSize(sizeCode byte) int {
	return 128 << uint(sizeCode)
}
