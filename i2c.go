// Package drivers holds the bus abstractions shared by the device drivers in this repository.
//
// Drivers never configure the bus themselves: the caller configures it (clock speed, pins) and hands it to the
// driver's New function. On tinygo targets machine.I2C satisfies I2C directly; on Linux hosts see package hosti2c.
package drivers

// I2C represents an I2C bus. It is notably implemented by the machine.I2C type on tinygo targets.
type I2C interface {
	// ReadRegister reads len(buf) bytes starting at register r of the device at addr.
	ReadRegister(addr uint8, r uint8, buf []byte) error
	// WriteRegister writes buf starting at register r of the device at addr.
	WriteRegister(addr uint8, r uint8, buf []byte) error
	// Tx writes w and then reads len(r) bytes from the device at addr. Either may be empty.
	Tx(addr uint16, w, r []byte) error
}
