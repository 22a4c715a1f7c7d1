package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gr-butler/masthead/alarm"
	"github.com/gr-butler/masthead/bridge"
	"github.com/gr-butler/masthead/data"
	"github.com/gr-butler/masthead/env"
	"github.com/gr-butler/masthead/led"
	"github.com/gr-butler/masthead/protocol"
	"github.com/gr-butler/masthead/rtc"
	"github.com/gr-butler/masthead/scheduler"
	"github.com/gr-butler/masthead/sensors"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const version = "GRB-Masthead-1.0.0"

type masthead struct {
	args      env.Args
	rep       env.Reporting
	clock     *rtc.RTC
	debouncer *sensors.Debouncer
	wind      *sensors.Anemometer
	rain      *sensors.Rainmeter
	station   *data.Station
	slave     *protocol.Slave
	heartbeat *led.LED
	rainLed   *led.LED
	reporter  *reporter
}

func main() {
	logger.Infof("Starting masthead [%v]", version)

	args, err := env.ParseArgs(flag.CommandLine, os.Args[1:])
	if err != nil {
		logger.Fatalf("Bad arguments [%v]", err)
	}
	if *args.Verbose {
		logger.SetLevel(logger.DebugLevel)
	}
	if *args.Test {
		logger.Info("TEST MODE")
	}

	if _, err := host.Init(); err != nil {
		logger.Fatalf("Failed to initialise periph host [%v]", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, err := newMasthead(ctx, args, env.LoadReporting(), env.DefaultCalibration())
	if err != nil {
		logger.Errorf("Failed to initialise masthead!! [%v]", err)
		logger.Exit(1)
	}

	http.HandleFunc("/", m.handler)
	if m.rep.SendProm && !*args.Test {
		logger.Info("Serving prometheus metrics")
		http.Handle("/metrics", promhttp.Handler())
	}
	srv := &http.Server{Addr: *args.Metrics}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()
	logger.Infof("Starting webservice on [%v]...", *args.Metrics)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Errorf("Webservice failed [%v]", err)
	}
	m.reporter.close()
	logger.Info("Exiting...")
}

func newMasthead(ctx context.Context, args env.Args, rep env.Reporting, cal env.Calibration) (*masthead, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	wall := clockwork.NewRealClock()
	clock, err := rtc.New(wall, rtc.FromTime(time.Now().UTC()))
	if err != nil {
		return nil, err
	}
	go clock.Run(ctx, env.RTCPoll)

	m := &masthead{args: args, rep: rep, clock: clock}
	m.debouncer = sensors.NewDebouncer(cal.RainDebounce, cal.WindDebounce, env.EventQueueLength)

	var vane sensors.AnalogReader
	if !*args.VaneDisabled {
		vane = openVane()
	}

	alarms := alarm.NewPool(wall, env.AlarmPoolSize)
	go func() {
		<-ctx.Done()
		alarms.Close()
	}()

	m.wind, m.rain = newGauges(m.debouncer, alarms, wall, vane, cal)
	m.wind.LogSpeed = *args.Speedon
	m.wind.LogDirection = *args.Diron
	if err := m.wind.Start(alarms); err != nil {
		// wind readings stay at zero, everything else carries on
		logger.Errorf("Wind sampler failed to start [%v]", err)
	}

	// the rain hook is in place, edges may arrive from here on
	if err := startWatchers(ctx, m.debouncer, wall); err != nil {
		return nil, err
	}

	m.station = data.NewStation(m.wind, m.rain, clock)
	m.slave = protocol.NewSlave(m.station.Registers())
	events := make(chan protocol.Event)
	go func() {
		_ = m.slave.Serve(ctx, events)
	}()
	bus := protocol.NewEventBus(ctx, events)
	if *args.Bridge != "" {
		go bridge.Serve(ctx, *args.Bridge, *args.BridgeBaud, 30*time.Second, bus)
	}
	if *args.Test {
		selfCheck(protocol.NewClient(protocol.NewLoopback(bus)))
	}

	m.heartbeat = led.Open("Heartbeat", env.HeartbeatLed, env.LEDFlashDuration)
	m.rainLed = led.Open("Rain Tip", env.RainTipLed, env.LEDFlashDuration)
	// flicker to show it's working
	m.heartbeat.Flicker(3)
	go followTicks(ctx, m.debouncer.Events(), m.rainLed, *args.Rainon)

	m.reporter = newReporter(args, rep, m.station)

	sched, err := scheduler.New(clock, env.HeartbeatSeconds)
	if err != nil {
		return nil, err
	}
	sched.Register("heartbeat", m.beat)
	sched.RegisterMinutely("midnight", m.rain.OnMinute)
	sched.RegisterMinutely("reporting", m.reporter.onMinute)
	if err := sched.Start(); err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		sched.Stop()
	}()
	return m, nil
}

// newGauges builds the wind and rain gauges on the debouncer's counters and
// installs the rain tip hook. Call it before any edge watcher starts. The
// wind sampler is left for the caller to start.
func newGauges(d *sensors.Debouncer, alarms alarm.Scheduler, clock clockwork.Clock, vane sensors.AnalogReader, cal env.Calibration) (*sensors.Anemometer, *sensors.Rainmeter) {
	wind := sensors.NewAnemometer(d.Counter(sensors.WindChannel), vane, cal)
	rain := sensors.NewRainmeter(d.Counter(sensors.RainChannel), alarms, clock, cal)
	d.OnTick(sensors.RainChannel, rain.Tip)
	return wind, rain
}

func startWatchers(ctx context.Context, d *sensors.Debouncer, clock clockwork.Clock) error {
	for _, w := range []struct {
		pin string
		ch  sensors.Channel
	}{
		{env.RainSensorIn, sensors.RainChannel},
		{env.WindSensorIn, sensors.WindChannel},
	} {
		watcher, err := sensors.NewEdgeWatcher(w.pin, w.ch, d, clock)
		if err != nil {
			return err
		}
		go watcher.Run(ctx)
	}
	return nil
}

func openVane() sensors.AnalogReader {
	bus, err := i2creg.Open("")
	if err != nil {
		logger.Errorf("Failed to open i2c bus, no wind direction [%v]", err)
		return nil
	}
	v, err := sensors.NewVane(bus)
	if err != nil {
		logger.Errorf("Failed to open wind vane [%v]", err)
		_ = bus.Close()
		return nil
	}
	return v
}

func (m *masthead) beat(now rtc.ClockTime) {
	logger.Debugf("Heartbeat [%v]", now)
	m.heartbeat.Flash()
}

// selfCheck reads every register back through the protocol as a bus
// master would.
func selfCheck(c *protocol.Client) {
	now, err := c.ReadClock()
	logger.Infof("Self check: clock [%v] err [%v]", now, err)
	speed, err := c.ReadWindSpeed()
	logger.Infof("Self check: wind speed [%.2f] err [%v]", speed, err)
	dir, err := c.ReadWindDirection()
	logger.Infof("Self check: wind direction [%v] err [%v]", dir, err)
	rate, err := c.ReadRainRate()
	logger.Infof("Self check: rain rate [%.2f] err [%v]", rate, err)
	daily, err := c.ReadRainDaily()
	logger.Infof("Self check: rain daily [%.2f] err [%v]", daily, err)
	pulses, err := c.ReadRainPulses()
	logger.Infof("Self check: rain pulses [%v] err [%v]", pulses, err)
}

func (m *masthead) handler(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	js, err := json.Marshal(m.station.Snapshot())
	if err != nil {
		logger.Errorf("JSON error [%v]", err)
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}

	logger.Debugf("Web read: \n[%v]", string(js))
	_, _ = rw.Write(js) // not much we can do if this fails
}
