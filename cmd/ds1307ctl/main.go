// The ds1307ctl command drives a DS1307 real-time clock attached to a Linux I2C bus, such as the RTC Pi boards.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	flag "github.com/juju/gnuflag"
	"github.com/juju/loggo"
	"golang.org/x/exp/io/i2c"
	errgo "gopkg.in/errgo.v1"

	"github.com/ajanata/drivers/ds1307"
	"github.com/ajanata/drivers/hosti2c"
)

var logger = loggo.GetLogger("ds1307ctl")

var (
	dev      = flag.String("dev", "/dev/i2c-1", "I2C bus device")
	addr     = flag.Int("addr", ds1307.Address, "I2C address of the RTC")
	debug    = flag.Bool("debug", false, "print debug messages")
	logSpec  = flag.String("log", "", "logging configuration, for example \"<root>=INFO;drivers.ds1307=TRACE\"")
	script   = flag.String("f", "", "run commands from this file, one per line (- for standard input)")
	broker   = flag.String("broker", "", "MQTT broker URL for publish, for example tcp://localhost:1883")
	topic    = flag.String("topic", "ds1307/time", "MQTT topic for publish")
	clientID = flag.String("client-id", "ds1307ctl", "MQTT client ID for publish")
	interval = flag.Duration("interval", time.Second, "time between published messages")
	count    = flag.Int("count", 0, "number of messages to publish (0 for no limit)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: ds1307ctl [flags] command [arg...]\n")
		fmt.Fprintf(os.Stderr, "       ds1307ctl [flags] -f script\n\nCommands:\n")
		printCommands(os.Stderr)
		fmt.Fprintf(os.Stderr, "\nFlags:\n")
		flag.PrintDefaults()
		os.Exit(2)
	}
	flag.Parse(true)
	if (flag.NArg() == 0) == (*script == "") {
		flag.Usage()
	}
	if *debug {
		loggo.ConfigureLoggers("<root>=DEBUG")
	}
	if *logSpec != "" {
		if err := loggo.ConfigureLoggers(*logSpec); err != nil {
			fmt.Fprintf(os.Stderr, "ds1307ctl: invalid -log: %v\n", err)
			os.Exit(2)
		}
	}
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ds1307ctl: %v\n", err)
		if errgo.Cause(err) == errUsage {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run() error {
	bus := hosti2c.Open(&i2c.Devfs{Dev: *dev})
	defer bus.Close()
	rtc := ds1307.New(bus)
	rtc.Configure(ds1307.Config{Address: uint8(*addr)})

	e := &env{
		rtc:        rtc,
		out:        os.Stdout,
		now:        time.Now,
		sleep:      time.Sleep,
		setSysTime: setSysTime,
		dial:       dialMQTT,
		broker:     *broker,
		topic:      *topic,
		clientID:   *clientID,
		interval:   *interval,
		count:      *count,
	}
	if *script == "" {
		return runCommand(e, flag.Args())
	}
	var r io.Reader = os.Stdin
	if *script != "-" {
		f, err := os.Open(*script)
		if err != nil {
			return errgo.Mask(err)
		}
		defer f.Close()
		r = f
	}
	return runScript(e, r)
}
