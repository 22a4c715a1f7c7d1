package env

import (
	"errors"
	"flag"
	"os"
	"time"
)

var (
	ErrInvalidPeriod = errors.New("sampling period must be positive")
	ErrInvalidVolume = errors.New("tip volume must be positive")
	ErrInvalidWindow = errors.New("debounce window must not be negative")
)

type Args struct {
	Test         *bool
	NoWow        *bool
	NoMqtt       *bool
	Verbose      *bool
	Speedon      *bool
	Diron        *bool
	Rainon       *bool
	VaneDisabled *bool
	Bridge       *string
	BridgeBaud   *int
	Metrics      *string
}

// ParseArgs registers the station flags on fs and parses args.
func ParseArgs(fs *flag.FlagSet, args []string) (Args, error) {
	a := Args{
		Test:         fs.Bool("test", false, "test mode, does not send met office or mqtt data"),
		NoWow:        fs.Bool("nowow", false, "do not send data to the met office"),
		NoMqtt:       fs.Bool("nomqtt", false, "do not publish readings over mqtt"),
		Verbose:      fs.Bool("verbose", false, "debug logging"),
		Speedon:      fs.Bool("speed", false, "log every wind speed sample"),
		Diron:        fs.Bool("dir", false, "log every wind direction sample"),
		Rainon:       fs.Bool("rain", false, "log every rain rate change"),
		VaneDisabled: fs.Bool("novane", false, "no wind vane fitted, direction register unsupported"),
		Bridge:       fs.String("bridge", BridgeDevice, "serial device for the bus bridge, empty to disable"),
		BridgeBaud:   fs.Int("baud", BridgeBaud, "serial bridge baud rate"),
		Metrics:      fs.String("metrics", MetricsPort, "prometheus and json listen address"),
	}
	return a, fs.Parse(args)
}

// Calibration holds the constants the samplers are initialised with.
type Calibration struct {
	TipVolumeMM     float64
	SpeedPeriod     time.Duration
	DirectionPeriod time.Duration
	EventWindow     time.Duration
	RainDebounce    time.Duration
	WindDebounce    time.Duration
}

func DefaultCalibration() Calibration {
	return Calibration{
		TipVolumeMM:     MmPerTip,
		SpeedPeriod:     WindSpeedPeriod,
		DirectionPeriod: WindDirectionPeriod,
		EventWindow:     RainEventWindow,
		RainDebounce:    RainDebounce,
		WindDebounce:    WindDebounce,
	}
}

func (c Calibration) Validate() error {
	if c.TipVolumeMM <= 0 {
		return ErrInvalidVolume
	}
	if c.SpeedPeriod <= 0 || c.DirectionPeriod <= 0 || c.EventWindow <= 0 {
		return ErrInvalidPeriod
	}
	if c.RainDebounce < 0 || c.WindDebounce < 0 {
		return ErrInvalidWindow
	}
	return nil
}

// Reporting is read from the environment, never from flags, so the
// credentials stay out of the process list.
type Reporting struct {
	WowSiteID    string
	WowPin       string
	MqttBroker   string
	MqttClientID string
	SendProm     bool
}

func LoadReporting() Reporting {
	r := Reporting{
		MqttBroker:   "tcp://localhost:1883",
		MqttClientID: "masthead",
	}
	r.WowSiteID, _ = os.LookupEnv("WOWSITEID")
	r.WowPin, _ = os.LookupEnv("WOWPIN")
	if b, ok := os.LookupEnv("MQTTBROKER"); ok && b != "" {
		r.MqttBroker = b
	}
	if id, ok := os.LookupEnv("MQTTCLIENTID"); ok && id != "" {
		r.MqttClientID = id
	}
	sendData, ok := os.LookupEnv("SENDPROMDATA")
	r.SendProm = ok && sendData == "true"
	return r
}

func (r Reporting) WowEnabled() bool {
	return r.WowSiteID != "" && r.WowPin != ""
}
