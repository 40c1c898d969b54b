package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	errgo "gopkg.in/errgo.v1"

	"github.com/ajanata/drivers/ds1307"
)

var errUsage = errgo.New("usage error")

// env holds everything a command needs. Tests replace the clock, sleep and MQTT hooks.
type env struct {
	rtc *ds1307.Device
	out io.Writer

	now        func() time.Time
	sleep      func(time.Duration)
	setSysTime func(time.Time) error
	dial       func(broker, clientID string) (publisher, error)

	broker   string
	topic    string
	clientID string
	interval time.Duration
	count    int
}

type command struct {
	args    string
	help    string
	minArgs int
	maxArgs int // -1 for no limit
	run     func(e *env, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"now": {
			help: "print the RTC time",
			run:  cmdNow,
		},
		"settime": {
			args:    "[time]",
			help:    "set the RTC from an RFC3339 time, or from the system clock",
			maxArgs: 1,
			run:     cmdSetTime,
		},
		"hctosys": {
			help: "set the system clock from the RTC",
			run:  cmdHCToSys,
		},
		"init": {
			args:    "time [force] [halt]",
			help:    "initialize the RTC unless it already is (or force is given)",
			minArgs: 1,
			maxArgs: 3,
			run:     cmdInit,
		},
		"run": {
			help: "start the oscillator",
			run: func(e *env, _ []string) error {
				return e.rtc.Run(ds1307.Running)
			},
		},
		"halt": {
			help: "stop the oscillator",
			run: func(e *env, _ []string) error {
				return e.rtc.Run(ds1307.Halted)
			},
		},
		"state": {
			help: "print whether the oscillator is running",
			run:  cmdState,
		},
		"read": {
			args:    "field",
			help:    "print the values of a field",
			minArgs: 1,
			maxArgs: 1,
			run:     cmdRead,
		},
		"set": {
			args:    "field value...",
			help:    "set the values of a field",
			minArgs: 2,
			maxArgs: -1,
			run:     cmdSet,
		},
		"reset": {
			args:    "field",
			help:    "reset a field (or ram) to its power-on default",
			minArgs: 1,
			maxArgs: 1,
			run:     cmdReset,
		},
		"sqw": {
			args:    "off|1hz|4khz|8khz|32khz",
			help:    "configure the square wave output",
			minArgs: 1,
			maxArgs: 1,
			run:     cmdSquareWave,
		},
		"snapshot": {
			args:    "save|clear|read",
			help:    "manage the time snapshot kept in RTC memory",
			minArgs: 1,
			maxArgs: 1,
			run:     cmdSnapshot,
		},
		"ram": {
			args:    "read offset n | write offset byte...",
			help:    "access the application area of RTC memory",
			minArgs: 2,
			maxArgs: -1,
			run:     cmdRAM,
		},
		"publish": {
			help: "publish the RTC time to an MQTT broker",
			run:  cmdPublish,
		},
	}
}

var fields = map[string]ds1307.Field{
	"second":   ds1307.Second,
	"minute":   ds1307.Minute,
	"hour":     ds1307.Hour,
	"dow":      ds1307.DayOfWeek,
	"date":     ds1307.Date,
	"month":    ds1307.Month,
	"year":     ds1307.Year,
	"control":  ds1307.Control,
	"time":     ds1307.Time,
	"all":      ds1307.All,
	"snapshot": ds1307.Snapshot,
	"ram":      ds1307.RAM,
}

var squareWaves = map[string]ds1307.SquareWave{
	"off":   ds1307.SquareWaveOff,
	"1hz":   ds1307.SquareWave1Hz,
	"4khz":  ds1307.SquareWave4kHz,
	"8khz":  ds1307.SquareWave8kHz,
	"32khz": ds1307.SquareWave32kHz,
}

// runCommand runs the command named by args[0].
func runCommand(e *env, args []string) error {
	if len(args) == 0 {
		return errgo.WithCausef(nil, errUsage, "no command given")
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return errgo.WithCausef(nil, errUsage, "unknown command %q", args[0])
	}
	n := len(args) - 1
	if n < cmd.minArgs || (cmd.maxArgs >= 0 && n > cmd.maxArgs) {
		return errgo.WithCausef(nil, errUsage, "usage: %s %s", args[0], cmd.args)
	}
	logger.Debugf("running %q", args)
	return errgo.Mask(cmd.run(e, args[1:]), errgo.Any)
}

func printCommands(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cmd := commands[name]
		fmt.Fprintf(w, "  %-10s %-28s %s\n", name, cmd.args, cmd.help)
	}
	fmt.Fprintf(w, "\nFields: second minute hour dow date month year control time all snapshot ram\n")
}

func cmdNow(e *env, _ []string) error {
	t, err := e.rtc.Now()
	if err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	fmt.Fprintln(e.out, t.Format(time.RFC3339))
	return nil
}

func cmdSetTime(e *env, args []string) error {
	t := e.now()
	if len(args) > 0 {
		var err error
		if t, err = parseTime(args[0]); err != nil {
			return errgo.Mask(err, errgo.Any)
		}
	}
	return errgo.Mask(e.rtc.SetTime(t), errgo.Any)
}

func cmdHCToSys(e *env, _ []string) error {
	t, err := e.rtc.Now()
	if err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	logger.Infof("setting system clock to %v", t)
	if err := e.setSysTime(t); err != nil {
		return errgo.Notef(err, "cannot set system time")
	}
	return nil
}

func cmdInit(e *env, args []string) error {
	t, err := parseTime(args[0])
	if err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	values, err := ds1307.TimeValues(t)
	if err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	state, force := ds1307.Running, false
	for _, arg := range args[1:] {
		switch arg {
		case "force":
			force = true
		case "halt":
			state = ds1307.Halted
		default:
			return errgo.WithCausef(nil, errUsage, "unknown init option %q", arg)
		}
	}
	done, err := e.rtc.Initialize(values, state, force)
	if err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	if done {
		fmt.Fprintln(e.out, "initialized")
	} else {
		fmt.Fprintln(e.out, "already initialized")
	}
	return nil
}

func cmdState(e *env, _ []string) error {
	state, err := e.rtc.State()
	if err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	fmt.Fprintln(e.out, state)
	return nil
}

func cmdRead(e *env, args []string) error {
	f, err := parseField(args[0])
	if err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	buf := make([]byte, f.Len())
	if err := e.rtc.Read(f, buf); err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	fmt.Fprintln(e.out, formatValues(f, buf))
	return nil
}

func cmdSet(e *env, args []string) error {
	f, err := parseField(args[0])
	if err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	values, err := parseBytes(args[1:])
	if err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	return errgo.Mask(e.rtc.Set(f, values), errgo.Any)
}

func cmdReset(e *env, args []string) error {
	f, err := parseField(args[0])
	if err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	return errgo.Mask(e.rtc.Reset(f), errgo.Any)
}

func cmdSquareWave(e *env, args []string) error {
	mode, ok := squareWaves[strings.ToLower(args[0])]
	if !ok {
		return errgo.WithCausef(nil, errUsage, "unknown square wave mode %q", args[0])
	}
	return errgo.Mask(e.rtc.SetSquareWave(mode), errgo.Any)
}

func cmdSnapshot(e *env, args []string) error {
	switch args[0] {
	case "save":
		return errgo.Mask(e.rtc.SaveSnapshot(), errgo.Any)
	case "clear":
		return errgo.Mask(e.rtc.ClearSnapshot(), errgo.Any)
	case "read":
		return cmdRead(e, []string{"snapshot"})
	}
	return errgo.WithCausef(nil, errUsage, "unknown snapshot operation %q", args[0])
}

func cmdRAM(e *env, args []string) error {
	offset, err := parseByte(args[1])
	if err != nil {
		return errgo.Mask(err, errgo.Any)
	}
	switch args[0] {
	case "read":
		if len(args) != 3 {
			return errgo.WithCausef(nil, errUsage, "usage: ram read offset n")
		}
		n, err := parseByte(args[2])
		if err != nil {
			return errgo.Mask(err, errgo.Any)
		}
		buf := make([]byte, n)
		if err := e.rtc.ReadRAM(offset, buf); err != nil {
			return errgo.Mask(err, errgo.Any)
		}
		fmt.Fprintf(e.out, "% X\n", buf)
		return nil
	case "write":
		data, err := parseBytes(args[2:])
		if err != nil {
			return errgo.Mask(err, errgo.Any)
		}
		return errgo.Mask(e.rtc.WriteRAM(offset, data), errgo.Any)
	}
	return errgo.WithCausef(nil, errUsage, "unknown ram operation %q", args[0])
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errgo.WithCausef(err, errUsage, "invalid time %q", s)
	}
	return t, nil
}

func parseField(s string) (ds1307.Field, error) {
	f, ok := fields[strings.ToLower(s)]
	if !ok {
		return 0, errgo.WithCausef(nil, errUsage, "unknown field %q", s)
	}
	return f, nil
}

func parseByte(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, errgo.WithCausef(nil, errUsage, "invalid byte value %q", s)
	}
	return uint8(v), nil
}

func parseBytes(args []string) ([]byte, error) {
	values := make([]byte, len(args))
	for i, arg := range args {
		v, err := parseByte(arg)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// formatValues prints time values in decimal and the control register in hex.
func formatValues(f ds1307.Field, values []byte) string {
	parts := make([]string, len(values))
	for i, v := range values {
		if f == ds1307.Control || (f == ds1307.All && i == len(values)-1) {
			parts[i] = fmt.Sprintf("0x%02X", v)
		} else {
			parts[i] = strconv.Itoa(int(v))
		}
	}
	return strings.Join(parts, " ")
}
