// mastheadctl talks to the masthead as a bus master: it reads every register
// or sets the masthead clock from the host clock.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gr-butler/masthead/bridge"
	"github.com/gr-butler/masthead/env"
	"github.com/gr-butler/masthead/protocol"
	"github.com/gr-butler/masthead/rtc"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

func main() {
	busName := flag.String("bus", "", "i2c bus name, empty for the first one")
	addr := flag.Uint("addr", uint(env.MastHead), "masthead i2c address")
	serialDev := flag.String("serial", "", "use the serial bridge on this device instead of i2c")
	baud := flag.Int("baud", env.BridgeBaud, "serial bridge baud rate")
	setClock := flag.Bool("setclock", false, "set the masthead clock from the host clock (UTC)")
	verbose := flag.Bool("verbose", false, "debug logging")
	flag.Parse()

	if *verbose {
		logger.SetLevel(logger.DebugLevel)
	}

	c, closer, err := open(*busName, uint16(*addr), *serialDev, *baud)
	if err != nil {
		logger.Fatalf("Failed to open masthead [%v]", err)
	}
	defer closer.Close()

	client := protocol.NewClient(c)
	if *setClock {
		now := rtc.FromTime(time.Now().UTC())
		if err := client.SetClock(now); err != nil {
			logger.Fatalf("Failed to set clock [%v]", err)
		}
		logger.Infof("Clock set to [%v] on [%v]", now, client)
	}

	if err := readAll(os.Stdout, client); err != nil {
		logger.Errorf("Read failed [%v]", err)
		os.Exit(1)
	}
}

func open(busName string, addr uint16, serialDev string, baud int) (conn.Conn, io.Closer, error) {
	if serialDev != "" {
		rwc, err := bridge.Open(serialDev, baud)
		if err != nil {
			return nil, nil, err
		}
		return bridge.NewConn(serialDev, rwc), rwc, nil
	}
	if _, err := host.Init(); err != nil {
		return nil, nil, err
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, nil, err
	}
	return &i2c.Dev{Bus: bus, Addr: addr}, bus, nil
}

// readAll prints every register. Unsupported registers are reported and
// skipped, transport failures stop the read.
func readAll(w io.Writer, c *protocol.Client) error {
	now, err := c.ReadClock()
	if err := report(w, "clock", now, err); err != nil {
		return err
	}
	speed, err := c.ReadWindSpeed()
	if err := report(w, "wind speed km/h", fmt.Sprintf("%.2f", speed), err); err != nil {
		return err
	}
	dir, err := c.ReadWindDirection()
	if err := report(w, "wind direction", dir, err); err != nil {
		return err
	}
	rate, err := c.ReadRainRate()
	if err := report(w, "rain rate mm/h", fmt.Sprintf("%.2f", rate), err); err != nil {
		return err
	}
	daily, err := c.ReadRainDaily()
	if err := report(w, "rain today mm", fmt.Sprintf("%.2f", daily), err); err != nil {
		return err
	}
	pulses, err := c.ReadRainPulses()
	return report(w, "rain pulses", pulses, err)
}

func report(w io.Writer, name string, v interface{}, err error) error {
	switch {
	case err == nil:
		fmt.Fprintf(w, "%-16s %v\n", name, v)
	case errors.Is(err, protocol.ErrUnsupported):
		fmt.Fprintf(w, "%-16s unsupported\n", name)
	default:
		return fmt.Errorf("%v: %w", name, err)
	}
	return nil
}
