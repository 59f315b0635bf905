// Package usbfdc implements fdc.Controller for FDC-passthrough adapters
// that present themselves as raw USB bulk endpoints rather than a serial
// TTY, using github.com/google/gousb. The teacher's go.mod already carried
// gousb as a dependency with no importer anywhere in the tree; this
// package gives it the home it never got.
package usbfdc

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gousb"

	"github.com/sergev/imdisk/internal/diskimage"
	"github.com/sergev/imdisk/internal/fdc"
)

// VendorID/ProductID identify the reference direct-USB FDC dongle.
const (
	VendorID  = 0x1209
	ProductID = 0x0002
)

const (
	outEndpoint = 0x01
	inEndpoint  = 0x81
)

// Client wraps a gousb device handle and implements fdc.Controller.
type Client struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	intf   *gousb.Interface
	done   func()
	out    *gousb.OutEndpoint
	in     *gousb.InEndpoint
	drive  int
}

// Open claims the first matching device and its default interface.
func Open(drive int) (*Client, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(VendorID), gousb.ID(ProductID))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("usbfdc: failed to open device: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("usbfdc: no FDC dongle found (VID=0x%04X PID=0x%04X)", VendorID, ProductID)
	}

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usbfdc: failed to claim interface: %w", err)
	}

	outEp, err := intf.OutEndpoint(outEndpoint)
	if err != nil {
		done()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usbfdc: failed to open OUT endpoint: %w", err)
	}
	inEp, err := intf.InEndpoint(inEndpoint)
	if err != nil {
		done()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("usbfdc: failed to open IN endpoint: %w", err)
	}

	return &Client{ctx: ctx, dev: dev, intf: intf, done: done, out: outEp, in: inEp, drive: drive}, nil
}

// Close releases the USB interface, device and context.
func (c *Client) Close() error {
	c.done()
	err := c.dev.Close()
	c.ctx.Close()
	return err
}

func init() {
	fdc.Register("usb", func(drive int) (fdc.Controller, error) {
		return Open(drive)
	})
}

func (c *Client) submitRaw(cmdBytes []byte, flags byte, rate byte, dataBuf []byte) ([]byte, error) {
	frame := make([]byte, 0, len(cmdBytes)+2)
	frame = append(frame, byte(len(cmdBytes)))
	frame = append(frame, cmdBytes...)
	frame = append(frame, flags, rate)

	if _, err := c.out.Write(frame); err != nil {
		return nil, fmt.Errorf("usbfdc: fatal transport error writing command: %w", err)
	}

	header := make([]byte, 2)
	if _, err := c.in.Read(header); err != nil {
		return nil, fmt.Errorf("usbfdc: fatal transport error reading reply header: %w", err)
	}
	status, replyLen := header[0], int(header[1])
	if status != 0 {
		return nil, fmt.Errorf("usbfdc: fatal: dongle returned status 0x%02x", status)
	}

	reply := make([]byte, replyLen)
	if replyLen > 0 {
		if _, err := c.in.Read(reply); err != nil {
			return nil, fmt.Errorf("usbfdc: fatal transport error reading reply: %w", err)
		}
	}

	if dataBuf != nil {
		if _, err := c.in.Read(dataBuf); err != nil {
			return nil, fmt.Errorf("usbfdc: fatal transport error reading data buffer: %w", err)
		}
	}
	return reply, nil
}

func (c *Client) Recalibrate() error {
	_, err := c.submitRaw([]byte{fdc.CmdRecalibrate, byte(c.drive)}, 1, 0, nil)
	return err
}

func (c *Client) ReadID(physCyl, physHead int, mode diskimage.DataMode) (fdc.IDResult, bool, error) {
	opcode := fdc.CommandByte(fdc.CmdReadID, mode)
	cmd := []byte{opcode, fdc.DriveSelector(physHead, c.drive)}
	reply, err := c.submitRaw(cmd, 1, mode.Rate, nil)
	if err != nil {
		return fdc.IDResult{}, false, err
	}
	if len(reply) < 7 {
		return fdc.IDResult{}, false, nil
	}
	res := fdc.IDResult{
		ST0: reply[0], ST1: reply[1], ST2: reply[2],
		LogCyl: reply[3], LogHead: reply[4], LogSector: reply[5], SizeCode: reply[6],
	}
	return res, res.Successful(), nil
}

func (c *Client) Read(physCyl, physHead int, mode diskimage.DataMode, logCyl, logHead, firstLogSector byte, sizeCode byte, buf []byte) (fdc.ReadResult, error) {
	opcode := fdc.CommandByte(fdc.CmdReadData, mode)
	sz := diskimage.SectorSize(sizeCode)
	numSectors := byte(0)
	if sz > 0 {
		numSectors = byte(len(buf) / sz)
	}

	cmd := make([]byte, 9)
	cmd[0] = opcode
	cmd[1] = fdc.DriveSelector(physHead, c.drive)
	cmd[2] = logCyl
	cmd[3] = logHead
	cmd[4] = firstLogSector
	cmd[5] = sizeCode
	cmd[6] = firstLogSector + numSectors - 1
	cmd[7] = fdc.IntersectorGap
	if sizeCode == 0 {
		var szBuf [2]byte
		binary.LittleEndian.PutUint16(szBuf[:], uint16(sz))
		cmd[8] = szBuf[0]
	} else {
		cmd[8] = 0xFF
	}

	reply, err := c.submitRaw(cmd, 1, mode.Rate, buf)
	if err != nil {
		return fdc.ReadResult{}, err
	}
	if len(reply) < 3 {
		return fdc.ReadResult{}, fmt.Errorf("usbfdc: short status reply from READ-DATA")
	}
	res := fdc.ReadResult{ST0: reply[0], ST1: reply[1], ST2: reply[2]}
	// A deleted-data address mark only fails a read spanning more than one
	// sector (§4.1); a single-sector read reports it as Deleted() on an
	// otherwise clean transfer.
	st2 := res.ST2
	if numSectors <= 1 {
		st2 &^= fdc.ST2DeletedAddressMark
	}
	res.OK = res.ST0 == 0 && res.ST1 == 0 && st2 == 0
	return res, nil
}
