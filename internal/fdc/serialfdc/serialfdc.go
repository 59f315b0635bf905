// Package serialfdc implements fdc.Controller against a USB-attached
// FDC-passthrough dongle reachable as a serial port, in the same style the
// teacher's Greaseweazle client talks to its device: a small command/ACK
// framing over go.bug.st/serial, with each reply preceded by its length
// byte.
package serialfdc

import (
	"encoding/binary"
	"fmt"
	"io"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/sergev/imdisk/internal/diskimage"
	"github.com/sergev/imdisk/internal/fdc"
)

// VendorID/ProductID identify the reference FDC-passthrough dongle this
// client targets. Real deployments with a different dongle can still use
// this package by calling Open with the port name directly.
const (
	VendorID  = 0x1209
	ProductID = 0x0001
)

const baudRate = 115200

// Frame flags, matching the submit_raw capability in §6.1.
const (
	FlagInterrupt   = 1 << 0
	FlagImpliedSeek = 1 << 1
	FlagReadData    = 1 << 2
)

// ackStatus codes returned by the dongle's framing layer itself (distinct
// from the FDC's own ST0/ST1/ST2, which travel inside the reply payload).
const (
	ackOK      = 0
	ackBadCmd  = 1
	ackTimeout = 2
)

// Client wraps a serial port connection to the FDC dongle and implements
// fdc.Controller.
type Client struct {
	port  serial.Port
	drive int
}

// Open opens portName and returns a Client for the given drive number.
func Open(portName string, drive int) (*Client, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("serialfdc: failed to open serial port %s: %w", portName, err)
	}
	return &Client{port: port, drive: drive}, nil
}

// Find locates a connected dongle by VID/PID among the system's serial
// ports and opens it for the given drive number.
func Find(drive int) (*Client, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("serialfdc: failed to list serial ports: %w", err)
	}
	for _, p := range ports {
		if p.IsUSB && p.VID == fmt.Sprintf("%04X", VendorID) && p.PID == fmt.Sprintf("%04X", ProductID) {
			return Open(p.Name, drive)
		}
	}
	return nil, fmt.Errorf("serialfdc: no FDC dongle found (VID=0x%04X PID=0x%04X)", VendorID, ProductID)
}

// Close releases the underlying serial port.
func (c *Client) Close() error {
	return c.port.Close()
}

func init() {
	fdc.Register("serial", func(drive int) (fdc.Controller, error) {
		return Find(drive)
	})
}

// submitRaw is the concrete realization of the §6.1 capability: it frames
// cmdBytes plus flags and rate, reads the dongle's ACK (a framing-level
// failure here is fatal transport error, not a logical one), then reads
// the reply bytes and, if requested, the sector data buffer.
func (c *Client) submitRaw(cmdBytes []byte, flags byte, rate byte, dataBuf []byte) ([]byte, error) {
	frame := make([]byte, 0, len(cmdBytes)+2)
	frame = append(frame, byte(len(cmdBytes)))
	frame = append(frame, cmdBytes...)
	frame = append(frame, flags, rate)

	if _, err := c.port.Write(frame); err != nil {
		return nil, fmt.Errorf("serialfdc: fatal transport error writing command: %w", err)
	}

	ack := make([]byte, 2)
	if _, err := io.ReadFull(c.port, ack); err != nil {
		return nil, fmt.Errorf("serialfdc: fatal transport error reading ACK: %w", err)
	}
	switch ack[1] {
	case ackOK:
	case ackBadCmd:
		return nil, fmt.Errorf("serialfdc: fatal: dongle rejected command 0x%02x", cmdBytes[0])
	case ackTimeout:
		return nil, fmt.Errorf("serialfdc: fatal: dongle reported command timeout")
	default:
		return nil, fmt.Errorf("serialfdc: fatal: dongle returned unknown ack status 0x%02x", ack[1])
	}

	replyLen := make([]byte, 1)
	if _, err := io.ReadFull(c.port, replyLen); err != nil {
		return nil, fmt.Errorf("serialfdc: fatal transport error reading reply length: %w", err)
	}
	reply := make([]byte, replyLen[0])
	if len(reply) > 0 {
		if _, err := io.ReadFull(c.port, reply); err != nil {
			return nil, fmt.Errorf("serialfdc: fatal transport error reading reply: %w", err)
		}
	}

	if flags&FlagReadData != 0 && dataBuf != nil {
		if _, err := io.ReadFull(c.port, dataBuf); err != nil {
			return nil, fmt.Errorf("serialfdc: fatal transport error reading data buffer: %w", err)
		}
	}

	return reply, nil
}

func (c *Client) Recalibrate() error {
	cmd := []byte{fdc.CmdRecalibrate, byte(c.drive)}
	_, err := c.submitRaw(cmd, FlagInterrupt, 0, nil)
	return err
}

func (c *Client) ReadID(physCyl, physHead int, mode diskimage.DataMode) (fdc.IDResult, bool, error) {
	opcode := fdc.CommandByte(fdc.CmdReadID, mode)
	unitSelect := fdc.DriveSelector(physHead, c.drive)
	cmd := []byte{opcode, unitSelect}

	reply, err := c.submitRaw(cmd, FlagInterrupt|FlagImpliedSeek, mode.Rate, nil)
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
	unitSelect := fdc.DriveSelector(physHead, c.drive)

	numSectors := byte(0)
	if sz := diskimage.SectorSize(sizeCode); sz > 0 {
		numSectors = byte(len(buf) / sz)
	}

	cmd := make([]byte, 9)
	cmd[0] = opcode
	cmd[1] = unitSelect
	cmd[2] = logCyl
	cmd[3] = logHead
	cmd[4] = firstLogSector
	cmd[5] = sizeCode
	cmd[6] = firstLogSector + numSectors - 1
	cmd[7] = fdc.IntersectorGap
	if sizeCode == 0 {
		var szBuf [2]byte
		binary.LittleEndian.PutUint16(szBuf[:], uint16(diskimage.SectorSize(sizeCode)))
		cmd[8] = szBuf[0]
	} else {
		cmd[8] = 0xFF
	}

	reply, err := c.submitRaw(cmd, FlagInterrupt|FlagImpliedSeek|FlagReadData, mode.Rate, buf)
	if err != nil {
		return fdc.ReadResult{}, err
	}
	if len(reply) < 3 {
		return fdc.ReadResult{}, fmt.Errorf("serialfdc: short status reply from READ-DATA")
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
