package fdc

import (
	"testing"

	"github.com/sergev/imdisk/internal/diskimage"
)

func TestIDResultSuccessful(t *testing.T) {
	if !(IDResult{ST0: 0x00}).Successful() {
		t.Error("ST0=0x00 should be successful")
	}
	if (IDResult{ST0: 0x40}).Successful() {
		t.Error("ST0=0x40 (interrupt code 1) should not be successful")
	}
}

func TestReadResultCRCBad(t *testing.T) {
	r := ReadResult{OK: false, ST1: ST1CRCError, ST2: ST2CRCError}
	if !r.CRCBad() {
		t.Error("CRCBad() = false, want true for a clean CRC-error shape")
	}
	r2 := ReadResult{OK: false, ST1: ST1CRCError, ST2: ST2CRCError | ST2DeletedAddressMark}
	if r2.CRCBad() {
		t.Error("CRCBad() = true, want false when other ST2 bits are set")
	}
}

func TestReadResultDeleted(t *testing.T) {
	r := ReadResult{OK: true, ST2: ST2DeletedAddressMark}
	if !r.Deleted() {
		t.Error("Deleted() = false, want true")
	}
}

func TestDriveSelectorPacksHeadAndDrive(t *testing.T) {
	if got := DriveSelector(1, 0); got != 0x04 {
		t.Errorf("DriveSelector(1, 0) = 0x%02x, want 0x04", got)
	}
	if got := DriveSelector(0, 3); got != 0x03 {
		t.Errorf("DriveSelector(0, 3) = 0x%02x, want 0x03", got)
	}
}

func TestCommandByteTogglesMFMBit(t *testing.T) {
	fm := diskimage.DataMode{IsFM: true}
	mfm := diskimage.DataMode{IsFM: false}
	if got := CommandByte(0x06, fm); got&0x40 != 0 {
		t.Errorf("CommandByte FM = 0x%02x, want bit 0x40 clear", got)
	}
	if got := CommandByte(0x06, mfm); got&0x40 == 0 {
		t.Errorf("CommandByte MFM = 0x%02x, want bit 0x40 set", got)
	}
}
