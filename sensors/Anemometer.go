package sensors

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gr-butler/masthead/alarm"
	"github.com/gr-butler/masthead/buffer"
	"github.com/gr-butler/masthead/env"
	logger "github.com/sirupsen/logrus"
)

/*
Davis 6410 anemometer

The cups close a reed switch once per revolution and Davis quote 1600
revolutions per hour as 1 mph, so over a sample period of T seconds with P
pulses

	V = P(2.25/T) mph

which we report in km/h. Speed is recomputed every T from the pulses counted
since the previous sample, direction is read from the vane pot on its own,
shorter, period. The two never wait on each other.

The last ten minutes of speed samples are kept for the gust (the highest
three second sample) and the mean.
*/

var ErrAlreadyStarted = errors.New("sampler already started")

// AnalogReader returns a raw 12 bit reading, 0-4095.
type AnalogReader interface {
	ReadRaw() (int, error)
}

type WindSample struct {
	Speed     float64 // km/h
	Direction int     // degrees, 0-360
	Gust      float64
	Average   float64
}

type Anemometer struct {
	counter         *TickCounter
	vane            AnalogReader
	speedPeriod     time.Duration
	directionPeriod time.Duration

	speedLock sync.Mutex
	speed     float64

	dirLock   sync.Mutex
	direction int

	history *buffer.SampleBuffer

	jobLock sync.Mutex
	jobs    []alarm.Handle

	LogSpeed     bool
	LogDirection bool
}

// NewAnemometer takes ownership of reading and resetting counter. vane may
// be nil when no vane is fitted.
func NewAnemometer(counter *TickCounter, vane AnalogReader, cal env.Calibration) *Anemometer {
	samples := int(env.WindHistory / cal.SpeedPeriod)
	return &Anemometer{
		counter:         counter,
		vane:            vane,
		speedPeriod:     cal.SpeedPeriod,
		directionPeriod: cal.DirectionPeriod,
		history:         buffer.NewBuffer(samples),
	}
}

// Start registers the periodic jobs. If either cannot be registered nothing
// is left running and the error is returned.
func (a *Anemometer) Start(s alarm.Scheduler) error {
	a.jobLock.Lock()
	defer a.jobLock.Unlock()
	if len(a.jobs) > 0 {
		return ErrAlreadyStarted
	}
	h, err := s.Every(a.speedPeriod, a.sampleSpeed)
	if err != nil {
		return fmt.Errorf("wind speed job: %w", err)
	}
	jobs := []alarm.Handle{h}
	if a.vane != nil {
		h, err = s.Every(a.directionPeriod, a.sampleDirection)
		if err != nil {
			jobs[0].Cancel()
			return fmt.Errorf("wind direction job: %w", err)
		}
		jobs = append(jobs, h)
	}
	a.jobs = jobs
	logger.Infof("Wind sampler started, speed every [%v], direction every [%v]", a.speedPeriod, a.directionPeriod)
	return nil
}

func (a *Anemometer) Stop() {
	a.jobLock.Lock()
	defer a.jobLock.Unlock()
	for _, h := range a.jobs {
		h.Cancel()
	}
	a.jobs = nil
}

// SpeedFromPulses converts P pulses counted over period into km/h.
func SpeedFromPulses(pulses int64, period time.Duration) float64 {
	return float64(pulses) * (env.DavisSpeedFactor / period.Seconds()) * env.MphToKmh
}

// RawToDegrees maps the 12 bit vane reading onto 0-360 with integer
// truncation. Full scale gives 360, it is not wrapped to 0.
func RawToDegrees(raw int) int {
	if raw < 0 {
		raw = 0
	}
	if raw > env.VaneFullScale {
		raw = env.VaneFullScale
	}
	return raw * env.VaneDegrees / env.VaneFullScale
}

func (a *Anemometer) sampleSpeed() {
	pulses := a.counter.Take()
	speed := SpeedFromPulses(pulses, a.speedPeriod)

	a.speedLock.Lock()
	a.speed = speed
	a.speedLock.Unlock()

	a.history.AddItem(speed)
	if a.LogSpeed {
		logger.Infof("Wind pulses [%v] speed [%.2f] km/h", pulses, speed)
	}
}

func (a *Anemometer) sampleDirection() {
	raw, err := a.vane.ReadRaw()
	if err != nil {
		// keep the previous direction
		logger.Debugf("Error reading wind direction value [%v]", err)
		return
	}
	deg := RawToDegrees(raw)

	a.dirLock.Lock()
	a.direction = deg
	a.dirLock.Unlock()

	if a.LogDirection {
		logger.Infof("Vane raw [%v], Deg [%v]", raw, deg)
	}
}

func (a *Anemometer) Speed() float64 {
	a.speedLock.Lock()
	defer a.speedLock.Unlock()
	return a.speed
}

func (a *Anemometer) Direction() int {
	a.dirLock.Lock()
	defer a.dirLock.Unlock()
	return a.direction
}

// Gust is the highest speed sample of the last ten minutes.
func (a *Anemometer) Gust() float64 {
	_, _, max := a.history.GetAverageMinMax()
	return float64(max)
}

func (a *Anemometer) Average() float64 {
	avg, _, _ := a.history.GetAverageMinMax()
	return float64(avg)
}

func (a *Anemometer) HasVane() bool {
	return a.vane != nil
}

func (a *Anemometer) Sample() WindSample {
	return WindSample{
		Speed:     a.Speed(),
		Direction: a.Direction(),
		Gust:      a.Gust(),
		Average:   a.Average(),
	}
}
