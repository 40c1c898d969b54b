package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	errgo "gopkg.in/errgo.v1"

	"github.com/ajanata/drivers/ds1307"
	"github.com/ajanata/drivers/tester"
)

var epoch = time.Date(2021, time.October, 10, 8, 15, 0, 0, time.UTC)

type fakePublisher struct {
	broker   string
	clientID string
	topics   []string
	messages []string
	closed   bool
}

func (p *fakePublisher) Publish(topic string, payload []byte) error {
	p.topics = append(p.topics, topic)
	p.messages = append(p.messages, string(payload))
	return nil
}

func (p *fakePublisher) Close() {
	p.closed = true
}

type testEnv struct {
	*env
	chip   *tester.I2CDevice8
	out    *bytes.Buffer
	pub    *fakePublisher
	sleeps []time.Duration
	system []time.Time
}

func newTestEnv() *testEnv {
	bus := tester.NewI2CBus()
	chip := tester.NewI2CDevice8(ds1307.Address, 64)
	bus.AddDevice(chip)
	te := &testEnv{
		chip: chip,
		out:  new(bytes.Buffer),
		pub:  new(fakePublisher),
	}
	te.env = &env{
		rtc: ds1307.New(bus),
		out: te.out,
		now: func() time.Time {
			return epoch
		},
		sleep: func(d time.Duration) {
			te.sleeps = append(te.sleeps, d)
		},
		setSysTime: func(t time.Time) error {
			te.system = append(te.system, t)
			return nil
		},
		dial: func(broker, clientID string) (publisher, error) {
			te.pub.broker = broker
			te.pub.clientID = clientID
			return te.pub, nil
		},
		topic:    "rtc",
		clientID: "test",
		interval: time.Minute,
	}
	return te
}

func (te *testEnv) run(c *qt.C, args ...string) string {
	te.out.Reset()
	err := runCommand(te.env, args)
	c.Assert(err, qt.IsNil, qt.Commentf("command %q", args))
	return te.out.String()
}

func TestSetTimeAndNow(t *testing.T) {
	c := qt.New(t)
	te := newTestEnv()
	te.run(c, "settime", "2022-01-27T13:17:11Z")
	c.Assert(te.run(c, "now"), qt.Equals, "2022-01-27T13:17:11Z\n")

	te.run(c, "settime")
	c.Assert(te.run(c, "now"), qt.Equals, "2021-10-10T08:15:00Z\n")
}

func TestHCToSys(t *testing.T) {
	c := qt.New(t)
	te := newTestEnv()
	te.run(c, "settime", "2030-05-06T07:08:09+02:00")
	te.run(c, "hctosys")
	c.Assert(te.system, qt.DeepEquals, []time.Time{time.Date(2030, time.May, 6, 5, 8, 9, 0, time.UTC)})
}

func TestInit(t *testing.T) {
	c := qt.New(t)
	te := newTestEnv()
	c.Assert(te.run(c, "init", "2024-02-29T12:00:00Z", "halt"), qt.Equals, "initialized\n")
	c.Assert(te.run(c, "state"), qt.Equals, "halted\n")
	c.Assert(te.run(c, "init", "2025-01-01T00:00:00Z"), qt.Equals, "already initialized\n")
	c.Assert(te.run(c, "state"), qt.Equals, "running\n")
	c.Assert(te.run(c, "read", "time"), qt.Equals, "0 0 12 5 29 2 24\n")

	c.Assert(te.run(c, "init", "2025-01-01T00:00:00Z", "force"), qt.Equals, "initialized\n")
	c.Assert(te.run(c, "read", "date"), qt.Equals, "1\n")
}

func TestRunHaltState(t *testing.T) {
	c := qt.New(t)
	te := newTestEnv()
	te.run(c, "halt")
	c.Assert(te.run(c, "state"), qt.Equals, "halted\n")
	te.run(c, "run")
	c.Assert(te.run(c, "state"), qt.Equals, "running\n")
}

func TestSetReadReset(t *testing.T) {
	c := qt.New(t)
	te := newTestEnv()
	te.run(c, "set", "minute", "59")
	c.Assert(te.run(c, "read", "minute"), qt.Equals, "59\n")
	te.run(c, "set", "all", "1", "2", "3", "4", "5", "6", "7", "0x10")
	c.Assert(te.run(c, "read", "all"), qt.Equals, "1 2 3 4 5 6 7 0x10\n")
	c.Assert(te.run(c, "read", "control"), qt.Equals, "0x10\n")
	te.run(c, "reset", "time")
	c.Assert(te.run(c, "read", "all"), qt.Equals, "0 0 0 1 1 1 0 0x10\n")
}

func TestSquareWaveCommand(t *testing.T) {
	c := qt.New(t)
	te := newTestEnv()
	te.run(c, "sqw", "32kHz")
	c.Assert(te.chip.Registers[ds1307.RegControl], qt.Equals, byte(0x13))
	te.run(c, "sqw", "off")
	c.Assert(te.chip.Registers[ds1307.RegControl], qt.Equals, byte(0))
}

func TestSnapshotCommand(t *testing.T) {
	c := qt.New(t)
	te := newTestEnv()
	te.run(c, "set", "time", "10", "20", "8", "2", "3", "4", "25")
	te.run(c, "snapshot", "save")
	te.run(c, "reset", "time")
	c.Assert(te.run(c, "snapshot", "read"), qt.Equals, "10 20 8 2 3 4 25\n")
	te.run(c, "snapshot", "clear")

	err := runCommand(te.env, []string{"snapshot", "read"})
	c.Assert(errgo.Cause(err), qt.Equals, ds1307.ErrSnapshotAbsent)
}

func TestRAMCommand(t *testing.T) {
	c := qt.New(t)
	te := newTestEnv()
	te.run(c, "ram", "write", "4", "0xDE", "0xAD", "190", "239")
	c.Assert(te.run(c, "ram", "read", "4", "4"), qt.Equals, "DE AD BE EF\n")
	c.Assert(te.chip.Registers[ds1307.UserRAM+4], qt.Equals, byte(0xDE))
}

func TestPublish(t *testing.T) {
	c := qt.New(t)
	te := newTestEnv()
	te.broker = "tcp://broker:1883"
	te.count = 3
	te.run(c, "settime", "2022-01-27T13:17:11Z")
	te.run(c, "publish")

	c.Assert(te.pub.broker, qt.Equals, "tcp://broker:1883")
	c.Assert(te.pub.clientID, qt.Equals, "test")
	c.Assert(te.pub.topics, qt.DeepEquals, []string{"rtc", "rtc", "rtc"})
	c.Assert(te.pub.messages[0], qt.Equals, "2022-01-27T13:17:11Z running")
	c.Assert(te.sleeps, qt.DeepEquals, []time.Duration{time.Minute, time.Minute})
	c.Assert(te.pub.closed, qt.IsTrue)
}

func TestPublishDialError(t *testing.T) {
	c := qt.New(t)
	te := newTestEnv()
	te.broker = "tcp://nowhere:1883"
	te.dial = func(broker, clientID string) (publisher, error) {
		return nil, errors.New("connection refused")
	}
	err := runCommand(te.env, []string{"publish"})
	c.Assert(err, qt.ErrorMatches, "connection refused")
}

var commandErrorTests = []struct {
	args   []string
	expect string
	cause  error
}{{
	args:   nil,
	expect: "no command given",
	cause:  errUsage,
}, {
	args:   []string{"frobnicate"},
	expect: `unknown command "frobnicate"`,
	cause:  errUsage,
}, {
	args:   []string{"read"},
	expect: "usage: read field",
	cause:  errUsage,
}, {
	args:   []string{"now", "extra"},
	expect: "usage: now ",
	cause:  errUsage,
}, {
	args:   []string{"read", "fortnight"},
	expect: `unknown field "fortnight"`,
	cause:  errUsage,
}, {
	args:   []string{"set", "hour", "300"},
	expect: `invalid byte value "300"`,
	cause:  errUsage,
}, {
	args:   []string{"set", "hour", "24"},
	expect: `hour value 24 out of range \[0, 23\]: invalid argument`,
	cause:  ds1307.ErrInvalidArgument,
}, {
	args:   []string{"reset", "snapshot"},
	expect: "cannot reset snapshot: invalid argument",
	cause:  ds1307.ErrInvalidArgument,
}, {
	args:   []string{"sqw", "2hz"},
	expect: `unknown square wave mode "2hz"`,
	cause:  errUsage,
}, {
	args:   []string{"init", "yesterday"},
	expect: `invalid time "yesterday": .*`,
	cause:  errUsage,
}, {
	args:   []string{"init", "1990-01-01T00:00:00Z"},
	expect: "year 1990 out of range: invalid argument",
	cause:  ds1307.ErrInvalidArgument,
}, {
	args:   []string{"init", "2020-01-01T00:00:00Z", "gently"},
	expect: `unknown init option "gently"`,
	cause:  errUsage,
}, {
	args:   []string{"ram", "read", "40", "10"},
	expect: "RAM access of 10 bytes at offset 40 exceeds 47 bytes: invalid argument",
	cause:  ds1307.ErrInvalidArgument,
}, {
	args:   []string{"publish"},
	expect: `no broker given \(use -broker\)`,
	cause:  errUsage,
}}

func TestCommandErrors(t *testing.T) {
	c := qt.New(t)
	for _, test := range commandErrorTests {
		c.Run(strings.Join(test.args, " "), func(c *qt.C) {
			te := newTestEnv()
			err := runCommand(te.env, test.args)
			c.Assert(err, qt.ErrorMatches, test.expect)
			c.Assert(errgo.Cause(err), qt.Equals, test.cause)
		})
	}
}

func TestTransportErrorCause(t *testing.T) {
	c := qt.New(t)
	te := newTestEnv()
	te.chip.Err = errors.New("nack")
	err := runCommand(te.env, []string{"state"})
	c.Assert(errgo.Cause(err), qt.Equals, ds1307.ErrTransport)
	c.Assert(err, qt.ErrorMatches, "cannot read register 0x00: nack")
}

func TestPrintCommands(t *testing.T) {
	c := qt.New(t)
	var buf bytes.Buffer
	printCommands(&buf)
	for name := range commands {
		c.Assert(buf.String(), qt.Contains, "  "+name+" ")
	}
}
