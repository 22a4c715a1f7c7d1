package env

import "time"

const (
	GPIO19 = "GPIO19" // rain tip LED
	GPIO20 = "GPIO20" // heartbeat LED
	GPIO26 = "GPIO26" // rain pin
	GPIO27 = "GPIO27" // wind pin

	RainSensorIn = GPIO26
	WindSensorIn = GPIO27

	HeartbeatLed = GPIO20
	RainTipLed   = GPIO19

	// bus address the master expects the masthead on
	MastHead uint16 = 0x17

	BridgeDevice = "/dev/ttyAMA0"
	BridgeBaud   = 115200

	// Debounce windows. The bucket is a mechanical switch, the anemometer a reed.
	RainDebounce = 100 * time.Millisecond
	WindDebounce = 20 * time.Millisecond

	// https://www.davisinstruments.com/ 6410 anemometer: 1600 rev/hr = 1 mph
	// V = P(2.25/T), T in seconds
	DavisSpeedFactor = 2.25
	MphToKmh         = 1.60934

	WindSpeedPeriod     = 3 * time.Second
	WindDirectionPeriod = 1 * time.Second
	// gust and average are kept over the last ten minutes
	WindHistory = 10 * time.Minute

	// 12 bit vane reading
	VaneFullScale = 4095
	VaneDegrees   = 360

	MmPerTip = 0.2

	// NWS: 15 minutes without a tip separates two rain events
	RainEventWindow = 15 * time.Minute

	HeartbeatSeconds = 5

	// pending alarm slots, same as the pico default alarm pool
	AlarmPoolSize = 16

	// RTC alarm poll interval
	RTCPoll = 250 * time.Millisecond

	MmToInch      = 25.4
	ReportFreqMin = 15

	LEDFlashDuration = time.Millisecond * 25

	// bounded queue between the edge handlers and the status LED
	EventQueueLength = 32

	MetricsPort = ":80"
)
