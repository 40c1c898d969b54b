// Package hosti2c implements drivers.I2C on top of golang.org/x/exp/io/i2c, so the drivers in this repository can
// be used from a Linux host such as a Raspberry Pi:
//
//	bus := hosti2c.Open(&i2c.Devfs{Dev: "/dev/i2c-1"})
//	defer bus.Close()
//	rtc := ds1307.New(bus)
package hosti2c

import (
	"golang.org/x/exp/io/i2c"
	"golang.org/x/exp/io/i2c/driver"
	errgo "gopkg.in/errgo.v1"
)

// Bus is an I2C bus on the host. Devices are opened the first time they are addressed and stay open until Close.
type Bus struct {
	opener  driver.Opener
	devices map[uint16]*i2c.Device
}

// Open returns a bus using o to reach devices. Nothing is opened until the first transfer.
func Open(o driver.Opener) *Bus {
	return &Bus{
		opener:  o,
		devices: make(map[uint16]*i2c.Device),
	}
}

func (b *Bus) ReadRegister(addr uint8, r uint8, buf []byte) error {
	d, err := b.device(uint16(addr))
	if err != nil {
		return errgo.Mask(err)
	}
	return d.ReadReg(r, buf)
}

func (b *Bus) WriteRegister(addr uint8, r uint8, buf []byte) error {
	d, err := b.device(uint16(addr))
	if err != nil {
		return errgo.Mask(err)
	}
	return d.WriteReg(r, buf)
}

// Tx writes w and then reads into r as two separate transfers.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	d, err := b.device(addr)
	if err != nil {
		return errgo.Mask(err)
	}
	if len(w) > 0 {
		if err := d.Write(w); err != nil {
			return err
		}
	}
	if len(r) > 0 {
		if err := d.Read(r); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every device opened on the bus.
func (b *Bus) Close() error {
	var first error
	for addr, d := range b.devices {
		if err := d.Close(); err != nil && first == nil {
			first = errgo.Notef(err, "cannot close device 0x%02X", addr)
		}
		delete(b.devices, addr)
	}
	return first
}

func (b *Bus) device(addr uint16) (*i2c.Device, error) {
	if d, ok := b.devices[addr]; ok {
		return d, nil
	}
	d, err := i2c.Open(b.opener, int(addr))
	if err != nil {
		return nil, errgo.Notef(err, "cannot open device 0x%02X", addr)
	}
	b.devices[addr] = d
	return d, nil
}
