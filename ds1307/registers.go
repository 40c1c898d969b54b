package ds1307

const (
	Address = 0x68 // I2C address for DS1307

	RegSeconds   = 0x00 // Seconds register, also holds the clock halt bit
	RegMinutes   = 0x01 // Minutes register
	RegHours     = 0x02 // Hours register, also holds the 12/24 hour mode bit
	RegDayOfWeek = 0x03 // Day of week register, 1-7
	RegDate      = 0x04 // Day of month register, 1-31
	RegMonth     = 0x05 // Month register, 1-12
	RegYear      = 0x06 // Year register, 0-99
	RegControl   = 0x07 // Square wave output control register

	RAMStart        = 0x08 // First byte of battery-backed general-purpose memory
	RAMEnd          = 0x3F // Last byte of battery-backed general-purpose memory
	RegInitStatus   = 0x08 // RAM byte holding the initialization marker
	RegSnapshotFlag = 0x09 // RAM byte holding the snapshot occupancy flag
	UserRAM         = 0x0A // First RAM byte free for application use
	RegSnapshot     = 0x39 // First byte of the saved time snapshot
)

// bit positions
const (
	bitCH   = 7 // clock halt, in RegSeconds
	bitAMPM = 6 // 12 hour mode select, in RegHours
	bitRS0  = 0 // rate select 0, in RegControl
	bitRS1  = 1 // rate select 1, in RegControl
	bitSQWE = 4 // square wave enable, in RegControl
)

const (
	haltMask = 1 << bitCH
	ampmMask = 1 << bitAMPM
)

// marker values kept in RAM
const (
	initialized    = 0x2C
	notInitialized = 0x00
	occupied       = 0x01
	notOccupied    = 0x00
)

const (
	timeLen     = 7           // seconds through year
	allLen      = timeLen + 1 // seconds through control
	userRAMLen  = RegSnapshot - UserRAM
	ramFillByte = 0x00
)

// defaults holds the power-on values written by Reset, indexed by register, in binary.
var defaults = [allLen]uint8{
	RegSeconds:   0,
	RegMinutes:   0,
	RegHours:     0,
	RegDayOfWeek: 1,
	RegDate:      1,
	RegMonth:     1,
	RegYear:      0,
	RegControl:   0,
}

// limits holds the inclusive range accepted by Set for each time register.
var limits = [timeLen][2]uint8{
	RegSeconds:   {0, 59},
	RegMinutes:   {0, 59},
	RegHours:     {0, 23},
	RegDayOfWeek: {1, 7},
	RegDate:      {1, 31},
	RegMonth:     {1, 12},
	RegYear:      {0, 99},
}
