// Package ds1307 implements a driver for the DS1307 Real-Time Clock (RTC).
//
// Besides reading and writing the time registers, the driver uses the chip's 56 bytes of battery-backed RAM to
// remember whether the clock has been initialized (so Initialize can be called on every boot without wiping the
// time) and to hold a single saved copy of the time registers. The rest of that RAM is available to applications
// through ReadRAM and WriteRAM.
//
// All values passed to and returned from the driver are plain binary numbers; the BCD encoding used by the chip is
// handled internally. The driver always writes hours in 24-hour mode.
//
// A Device does no locking. Several operations read a register, change some bits and write it back, so concurrent
// users must serialize access themselves.
//
// Datasheet: https://datasheets.maximintegrated.com/en/ds/DS1307.pdf
package ds1307

import (
	"fmt"
	"time"

	"github.com/juju/loggo"

	"github.com/ajanata/drivers"
)

var logger = loggo.GetLogger("drivers.ds1307")

// century is added to the two-digit year register by Now and removed by SetTime.
const century = 2000

type Device struct {
	bus     drivers.I2C
	Address uint8
}

type Config struct {
	// Address defaults to Address (0x68), the only address the DS1307 answers on.
	Address uint8
}

// Field selects the register or group of registers an operation applies to. Each operation accepts a subset of
// fields and fails with ErrInvalidArgument for the rest.
type Field uint8

const (
	Second Field = iota
	Minute
	Hour
	DayOfWeek
	Date
	Month
	Year
	Control
	// Time covers the seven timekeeping registers, Second through Year.
	Time
	// All covers Time plus Control.
	All
	// Snapshot is the saved copy of the time registers. Only valid for Read.
	Snapshot
	// RAM is the whole general-purpose memory, including the initialization and snapshot markers. Only valid for
	// Reset.
	RAM
)

var fieldNames = [...]string{
	Second:    "second",
	Minute:    "minute",
	Hour:      "hour",
	DayOfWeek: "day of week",
	Date:      "date",
	Month:     "month",
	Year:      "year",
	Control:   "control",
	Time:      "time",
	All:       "all",
	Snapshot:  "snapshot",
	RAM:       "ram",
}

func (f Field) String() string {
	if int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

// Len returns the number of values Read returns and Set expects for f, or 0 if f has no fixed size.
func (f Field) Len() int {
	switch {
	case f <= Control:
		return 1
	case f == Time, f == Snapshot:
		return timeLen
	case f == All:
		return allLen
	}
	return 0
}

// RunState is the state of the clock oscillator.
type RunState uint8

const (
	Halted RunState = iota
	Running
)

func (s RunState) String() string {
	switch s {
	case Halted:
		return "halted"
	case Running:
		return "running"
	}
	return fmt.Sprintf("runstate(%d)", uint8(s))
}

// SquareWave selects the signal on the SQW/OUT pin.
type SquareWave uint8

const (
	SquareWaveOff SquareWave = iota
	SquareWave1Hz
	SquareWave4kHz  // 4.096 kHz
	SquareWave8kHz  // 8.192 kHz
	SquareWave32kHz // 32.768 kHz
)

var squareWavePatterns = [...]uint8{
	SquareWaveOff:   0,
	SquareWave1Hz:   1 << bitSQWE,
	SquareWave4kHz:  1<<bitSQWE | 1<<bitRS0,
	SquareWave8kHz:  1<<bitSQWE | 1<<bitRS1,
	SquareWave32kHz: 1<<bitSQWE | 1<<bitRS1 | 1<<bitRS0,
}

// New creates a new DS1307 driver on the provided I2C bus. The bus must already be configured; the DS1307 supports
// up to 100 kHz.
//
// This function only creates the Device object, it does not touch the device.
func New(bus drivers.I2C) *Device {
	return &Device{
		bus:     bus,
		Address: Address,
	}
}

func (d *Device) Configure(c Config) {
	if c.Address == 0 {
		c.Address = Address
	}
	d.Address = c.Address
}

// Initialize prepares the clock on first use and reports whether it did so.
//
// If the initialization marker in RAM is missing, or force is set, the clock is halted, every timekeeping and
// control register is reset, RAM is cleared, values (seconds through year, see Set) are written, the clock is set
// to state and the marker is stored. Initialize then returns true.
//
// Otherwise only state is applied and Initialize returns false: the stored time and RAM are left alone. Since the
// marker lives in battery-backed RAM, it is safe to call Initialize on every boot.
func (d *Device) Initialize(values []uint8, state RunState, force bool) (bool, error) {
	if state != Halted && state != Running {
		return false, invalidf("cannot initialize with run state %v", state)
	}
	if err := checkTime(Time, values); err != nil {
		return false, err
	}
	ok, err := d.Initialized()
	if err != nil {
		return false, err
	}
	if ok && !force {
		logger.Debugf("clock already initialized, setting run state %v", state)
		return false, d.Run(state)
	}
	logger.Debugf("initializing clock (marker present: %v, forced: %v)", ok, force)
	if err := d.Run(Halted); err != nil {
		return false, err
	}
	if err := d.Reset(All); err != nil {
		return false, err
	}
	if err := d.Reset(RAM); err != nil {
		return false, err
	}
	if err := d.Set(Time, values); err != nil {
		return false, err
	}
	if err := d.Run(state); err != nil {
		return false, err
	}
	if err := d.writeByte(RegInitStatus, initialized); err != nil {
		return false, err
	}
	return true, nil
}

// Initialized reports whether the initialization marker written by Initialize is present in RAM.
func (d *Device) Initialized() (bool, error) {
	v, err := d.readByte(RegInitStatus)
	if err != nil {
		return false, err
	}
	return v == initialized, nil
}

// Run starts (Running) or stops (Halted) the oscillator. Only the clock halt bit is changed.
func (d *Device) Run(state RunState) error {
	var bit uint8
	switch state {
	case Running:
		bit = 0
	case Halted:
		bit = haltMask
	default:
		return invalidf("cannot set run state %v", state)
	}
	return d.modifyRegister(RegSeconds, ^uint8(haltMask), bit)
}

// State reads the clock halt bit.
func (d *Device) State() (RunState, error) {
	v, err := d.readByte(RegSeconds)
	if err != nil {
		return Halted, err
	}
	if v&haltMask != 0 {
		return Halted, nil
	}
	return Running, nil
}

// Reset writes the power-on default to the selected registers: 00:00:00, day 1, 1 January, year 00, square wave
// off. Valid targets are Second through Control, Time, All and RAM. The run state is never changed.
//
// Resetting RAM also erases the initialization marker and the snapshot.
func (d *Device) Reset(target Field) error {
	switch {
	case target <= Control:
		return d.Set(target, defaults[target:target+1])
	case target == Time:
		return d.Set(Time, defaults[:timeLen])
	case target == All:
		return d.Set(All, defaults[:])
	case target == RAM:
		logger.Debugf("clearing RAM")
		for r := uint8(RAMStart); r <= RAMEnd; r++ {
			if err := d.writeByte(r, ramFillByte); err != nil {
				return err
			}
		}
		return nil
	}
	return invalidf("cannot reset %v", target)
}

// Read reads the selected registers into buf, which must hold at least field.Len() values. Valid fields are Second
// through Control, Time, All and Snapshot.
//
// Time values are returned in binary with the clock halt and 12-hour mode bits removed. Control is returned as is.
// Time yields seconds, minutes, hours, day of week, date, month and year; All appends the control register.
//
// Reading Snapshot returns ErrSnapshotAbsent, and leaves buf alone, if no snapshot is saved.
func (d *Device) Read(field Field, buf []byte) error {
	n := field.Len()
	if n == 0 {
		return invalidf("cannot read %v", field)
	}
	if len(buf) < n {
		return invalidf("buffer too short to read %v: got %d want %d", field, len(buf), n)
	}
	switch field {
	case Control:
		v, err := d.readByte(RegControl)
		if err != nil {
			return err
		}
		buf[0] = v
		return nil
	case Snapshot:
		v, err := d.readByte(RegSnapshotFlag)
		if err != nil {
			return err
		}
		if v != occupied {
			return ErrSnapshotAbsent
		}
		var raw [timeLen]byte
		if err := d.readBlock(RegSnapshot, raw[:]); err != nil {
			return err
		}
		decodeTime(raw[:], RegSeconds, timeLen)
		copy(buf, raw[:])
		return nil
	}
	// Single time fields, Time and All share the register map, so the field doubles as the first register.
	first := uint8(RegSeconds)
	if field < Time {
		first = uint8(field)
	}
	if err := d.readBlock(first, buf[:n]); err != nil {
		return err
	}
	decodeTime(buf, first, min(n, timeLen))
	return nil
}

// Set writes values, in binary, to the selected registers. Valid fields are Second through Control, Time and All,
// with len(values) at least field.Len(). values is not modified.
//
// Each time value must be in range for its register (hours 0-23). The clock halt bit is preserved, so setting the
// time never starts or stops the clock, and hours are always written in 24-hour mode.
func (d *Device) Set(field Field, values []byte) error {
	if err := checkTime(field, values); err != nil {
		return err
	}
	switch field {
	case Second:
		return d.modifyRegister(RegSeconds, haltMask, EncodeBCD(values[0]))
	case Control:
		return d.writeByte(RegControl, values[0])
	case Time, All:
		n := field.Len()
		var buf [allLen]byte
		copy(buf[:], values[:n])
		encodeTime(buf[:], RegSeconds, min(n, timeLen))
		if err := d.modifyRegister(RegSeconds, haltMask, buf[RegSeconds]); err != nil {
			return err
		}
		return d.writeBlock(RegMinutes, buf[RegMinutes:n])
	}
	v := [1]byte{values[0]}
	encodeTime(v[:], uint8(field), 1)
	return d.writeByte(uint8(field), v[0])
}

// SetSquareWave configures the SQW/OUT pin. The control register is overwritten.
func (d *Device) SetSquareWave(mode SquareWave) error {
	if int(mode) >= len(squareWavePatterns) {
		return invalidf("unknown square wave mode %d", uint8(mode))
	}
	return d.writeByte(RegControl, squareWavePatterns[mode])
}

// SaveSnapshot copies the current time registers into RAM, replacing any previous snapshot.
func (d *Device) SaveSnapshot() error {
	var raw [timeLen]byte
	if err := d.readBlock(RegSeconds, raw[:]); err != nil {
		return err
	}
	if err := d.writeBlock(RegSnapshot, raw[:]); err != nil {
		return err
	}
	return d.writeByte(RegSnapshotFlag, occupied)
}

// ClearSnapshot marks the snapshot as absent. The saved bytes stay in RAM until the next SaveSnapshot.
func (d *Device) ClearSnapshot() error {
	return d.writeByte(RegSnapshotFlag, notOccupied)
}

// Now reads the time registers as a time.Time in UTC. The DS1307 stores a two-digit year, which is taken to be in
// the 21st century.
func (d *Device) Now() (time.Time, error) {
	var buf [timeLen]byte
	if err := d.Read(Time, buf[:]); err != nil {
		return time.Time{}, err
	}
	return time.Date(
		int(buf[RegYear])+century,
		time.Month(buf[RegMonth]),
		int(buf[RegDate]),
		int(buf[RegHours]),
		int(buf[RegMinutes]),
		int(buf[RegSeconds]),
		0, time.UTC), nil
}

// SetTime sets the time registers from t, converted to UTC and truncated to the second. The year must be between
// 2000 and 2099. The run state is not changed.
func (d *Device) SetTime(t time.Time) error {
	values, err := TimeValues(t)
	if err != nil {
		return err
	}
	return d.Set(Time, values)
}

// TimeValues returns the Time field values for t in UTC, as accepted by Set and Initialize. The day of week is
// counted from Sunday = 1.
func TimeValues(t time.Time) ([]byte, error) {
	t = t.UTC()
	if t.Year() < century || t.Year() >= century+100 {
		return nil, invalidf("year %d out of range", t.Year())
	}
	return []byte{
		RegSeconds:   uint8(t.Second()),
		RegMinutes:   uint8(t.Minute()),
		RegHours:     uint8(t.Hour()),
		RegDayOfWeek: uint8(t.Weekday()) + 1,
		RegDate:      uint8(t.Day()),
		RegMonth:     uint8(t.Month()),
		RegYear:      uint8(t.Year() - century),
	}, nil
}

// ReadRAM reads len(buf) bytes of application RAM starting at offset. The application area is the 47 bytes not
// used by the initialization marker and the snapshot.
func (d *Device) ReadRAM(offset uint8, buf []byte) error {
	if err := checkRAM(offset, len(buf)); err != nil {
		return err
	}
	return d.readBlock(UserRAM+offset, buf)
}

// WriteRAM writes data to application RAM starting at offset. See ReadRAM.
func (d *Device) WriteRAM(offset uint8, data []byte) error {
	if err := checkRAM(offset, len(data)); err != nil {
		return err
	}
	return d.writeBlock(UserRAM+offset, data)
}

// RAMSize returns the number of bytes of application RAM.
func RAMSize() int {
	return userRAMLen
}

func checkRAM(offset uint8, n int) error {
	if int(offset)+n > userRAMLen {
		return invalidf("RAM access of %d bytes at offset %d exceeds %d bytes", n, offset, userRAMLen)
	}
	return nil
}

// checkTime verifies that values holds enough in-range values for field.
func checkTime(field Field, values []byte) error {
	n := field.Len()
	if n == 0 || field == Snapshot {
		return invalidf("cannot set %v", field)
	}
	if len(values) < n {
		return invalidf("not enough values to set %v: got %d want %d", field, len(values), n)
	}
	first := uint8(RegSeconds)
	if field < Time {
		first = uint8(field)
	}
	for i := 0; i < min(n, timeLen) && int(first)+i < timeLen; i++ {
		r := int(first) + i
		if v := values[i]; v < limits[r][0] || v > limits[r][1] {
			return invalidf("%v value %d out of range [%d, %d]", Field(r), v, limits[r][0], limits[r][1])
		}
	}
	return nil
}

// decodeTime converts n time register values, the first of which came from register first, from their wire form
// to binary.
func decodeTime(buf []byte, first uint8, n int) {
	for i := 0; i < n && int(first)+i < timeLen; i++ {
		switch first + uint8(i) {
		case RegSeconds:
			buf[i] &^= haltMask
		case RegHours:
			buf[i] &^= ampmMask
		}
	}
	DecodeBCDs(buf, timeRegs(first, n))
}

// encodeTime is the inverse of decodeTime. Hours always come out in 24-hour mode.
func encodeTime(buf []byte, first uint8, n int) {
	n = timeRegs(first, n)
	EncodeBCDs(buf, n)
	if first <= RegHours && int(first)+n > RegHours {
		buf[RegHours-first] &^= ampmMask
	}
}

// timeRegs returns how many of the n registers starting at first are BCD time registers.
func timeRegs(first uint8, n int) int {
	if int(first)+n > timeLen {
		n = timeLen - int(first)
	}
	if n < 0 {
		n = 0
	}
	return n
}

// modifyRegister replaces the bits of register r outside keep with value, leaving the bits in keep as they are.
// All writes that must preserve the clock halt bit go through here.
func (d *Device) modifyRegister(r, keep, value uint8) error {
	cur, err := d.readByte(r)
	if err != nil {
		return err
	}
	return d.writeByte(r, cur&keep|value&^keep)
}

func (d *Device) readByte(r uint8) (uint8, error) {
	buf := [1]byte{}
	err := d.readBlock(r, buf[:])
	return buf[0], err
}

func (d *Device) writeByte(r, v uint8) error {
	buf := [1]byte{v}
	return d.writeBlock(r, buf[:])
}

func (d *Device) readBlock(r uint8, buf []byte) error {
	logger.Tracef("read %d bytes at 0x%02X", len(buf), r)
	if err := d.bus.ReadRegister(d.Address, r, buf); err != nil {
		return transportf(err, "cannot read register 0x%02X", r)
	}
	return nil
}

func (d *Device) writeBlock(r uint8, buf []byte) error {
	logger.Tracef("write % X at 0x%02X", buf, r)
	if err := d.bus.WriteRegister(d.Address, r, buf); err != nil {
		return transportf(err, "cannot write register 0x%02X", r)
	}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
