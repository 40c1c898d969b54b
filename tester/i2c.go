// Package tester provides an in-memory I2C bus for testing drivers without hardware.
//
// Devices on the bus are plain register files: a register pointer is set by the first byte written, reads and
// writes advance it, and it wraps around at the end of the register file the way most small I2C chips do.
// Every transfer is recorded so tests can check how a driver talks to the chip, not just the end result.
package tester

import (
	"fmt"

	errgo "gopkg.in/errgo.v1"
)

// Op records a single register transfer on the bus.
type Op struct {
	Addr  uint8
	Reg   uint8
	Write bool
	// Data holds the bytes written, or the bytes returned by a read.
	Data []byte
}

func (o Op) String() string {
	dir := "read"
	if o.Write {
		dir = "write"
	}
	return fmt.Sprintf("%s 0x%02X@0x%02X % X", dir, o.Addr, o.Reg, o.Data)
}

// I2CBus implements drivers.I2C on top of a set of emulated devices.
type I2CBus struct {
	devices map[uint8]*I2CDevice8
	ops     []Op
}

func NewI2CBus() *I2CBus {
	return &I2CBus{
		devices: make(map[uint8]*I2CDevice8),
	}
}

// AddDevice attaches d to the bus at d.Addr, replacing any device already there.
func (b *I2CBus) AddDevice(d *I2CDevice8) {
	b.devices[d.Addr] = d
}

// Ops returns every transfer made since the bus was created or ResetOps was last called.
func (b *I2CBus) Ops() []Op {
	return b.ops
}

// Writes returns only the write transfers from Ops.
func (b *I2CBus) Writes() []Op {
	var w []Op
	for _, op := range b.ops {
		if op.Write {
			w = append(w, op)
		}
	}
	return w
}

func (b *I2CBus) ResetOps() {
	b.ops = nil
}

func (b *I2CBus) ReadRegister(addr uint8, r uint8, buf []byte) error {
	d, err := b.device(addr)
	if err != nil {
		return err
	}
	if err := d.read(r, buf); err != nil {
		return err
	}
	b.record(addr, r, false, buf)
	return nil
}

func (b *I2CBus) WriteRegister(addr uint8, r uint8, buf []byte) error {
	d, err := b.device(addr)
	if err != nil {
		return err
	}
	if err := d.write(r, buf); err != nil {
		return err
	}
	b.record(addr, r, true, buf)
	return nil
}

// Tx treats the first byte of w as the register pointer and the rest as data, then reads r from the pointer.
// An empty w reads from wherever the previous transfer left the pointer.
func (b *I2CBus) Tx(addr uint16, w, r []byte) error {
	d, err := b.device(uint8(addr))
	if err != nil {
		return err
	}
	if len(w) > 0 {
		if err := b.WriteRegister(uint8(addr), w[0], w[1:]); err != nil {
			return err
		}
	}
	if len(r) > 0 {
		if err := b.ReadRegister(uint8(addr), d.ptr, r); err != nil {
			return err
		}
	}
	return nil
}

func (b *I2CBus) device(addr uint8) (*I2CDevice8, error) {
	d, ok := b.devices[addr]
	if !ok {
		return nil, errgo.Newf("no device at address 0x%02X", addr)
	}
	return d, nil
}

func (b *I2CBus) record(addr, r uint8, write bool, data []byte) {
	b.ops = append(b.ops, Op{
		Addr:  addr,
		Reg:   r,
		Write: write,
		Data:  append([]byte(nil), data...),
	})
}

// I2CDevice8 is an emulated device with 8-bit register addresses.
type I2CDevice8 struct {
	Addr uint8
	// Registers holds the device's register file. Its length sets where the register pointer wraps.
	Registers []byte
	// Err, if not nil, is returned by every transfer to the device.
	Err error

	ptr uint8
}

// NewI2CDevice8 returns a device at addr with size zeroed registers.
func NewI2CDevice8(addr uint8, size int) *I2CDevice8 {
	return &I2CDevice8{
		Addr:      addr,
		Registers: make([]byte, size),
	}
}

func (d *I2CDevice8) read(r uint8, buf []byte) error {
	if err := d.seek(r); err != nil {
		return err
	}
	for i := range buf {
		buf[i] = d.Registers[d.ptr]
		d.advance()
	}
	return nil
}

func (d *I2CDevice8) write(r uint8, buf []byte) error {
	if err := d.seek(r); err != nil {
		return err
	}
	for _, v := range buf {
		d.Registers[d.ptr] = v
		d.advance()
	}
	return nil
}

func (d *I2CDevice8) seek(r uint8) error {
	if d.Err != nil {
		return d.Err
	}
	if int(r) >= len(d.Registers) {
		return errgo.Newf("register 0x%02X out of range on device 0x%02X", r, d.Addr)
	}
	d.ptr = r
	return nil
}

func (d *I2CDevice8) advance() {
	d.ptr++
	if int(d.ptr) >= len(d.Registers) {
		d.ptr = 0
	}
}
