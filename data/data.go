package data

import (
	"time"

	"github.com/gr-butler/masthead/protocol"
	"github.com/gr-butler/masthead/sensors"
)

// holder for everything the masthead measures, read by the bus slave and
// the reporting side

type Wind interface {
	Sample() sensors.WindSample
	Speed() float64
	Direction() int
	HasVane() bool
}

type Rain interface {
	State() sensors.RainState
	Rate() float64
	Daily() float64
	Pulses() int64
}

type Snapshot struct {
	TimeNow       string  `json:"time"`
	WindSpeed     float64 `json:"wind_speed_kmh"`
	WindSpeedAvg  float64 `json:"wind_speed_avg_kmh"`
	WindGust      float64 `json:"wind_gust_kmh"`
	WindDir       int     `json:"wind_dir"`
	RainRate      float64 `json:"rain_rate_mm_hr"`
	RainDay       float64 `json:"rain_day_mm"`
	RainPulses    int64   `json:"rain_pulses"`
	LastTip       string  `json:"last_tip,omitempty"`
	EventDeadline string  `json:"rain_event_end,omitempty"`
}

type Station struct {
	wind  Wind
	rain  Rain
	clock protocol.Clock
}

func NewStation(wind Wind, rain Rain, clock protocol.Clock) *Station {
	return &Station{wind: wind, rain: rain, clock: clock}
}

func (s *Station) Snapshot() Snapshot {
	w := s.wind.Sample()
	r := s.rain.State()
	snap := Snapshot{
		TimeNow:      s.clock.Now().String(),
		WindSpeed:    w.Speed,
		WindSpeedAvg: w.Average,
		WindGust:     w.Gust,
		WindDir:      w.Direction,
		RainRate:     r.RateMMPerHour,
		RainDay:      r.DailyTotalMM,
		RainPulses:   r.TotalPulses,
	}
	if !r.LastTip.IsZero() {
		snap.LastTip = r.LastTip.Format(time.RFC3339)
	}
	if !r.EventDeadline.IsZero() {
		snap.EventDeadline = r.EventDeadline.Format(time.RFC3339)
	}
	return snap
}

// Registers is the table served to the bus master. Direction is only
// offered when a vane is fitted.
func (s *Station) Registers() protocol.Registers {
	regs := protocol.Registers{
		Clock:      s.clock,
		WindSpeed:  s.wind.Speed,
		RainRate:   s.rain.Rate,
		RainDaily:  s.rain.Daily,
		RainPulses: s.rain.Pulses,
	}
	if s.wind.HasVane() {
		regs.WindDirection = s.wind.Direction
	}
	return regs
}
