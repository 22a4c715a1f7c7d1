package sensors

import (
	"fmt"

	logger "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
)

// vane pot is fed from the 3v3 rail
const vaneSupply = 3300 * physic.MilliVolt

type adcPin interface {
	Read() (analog.Sample, error)
	Halt() error
}

// Vane reads the wind vane potentiometer through an ADS1115 and scales it to
// the 12 bit range the rest of the station works in.
type Vane struct {
	pin adcPin
}

func NewVane(bus i2c.Bus) (*Vane, error) {
	adc, err := ads1x15.NewADS1115(bus, &ads1x15.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ADS1115: %w", err)
	}
	pin, err := adc.PinForChannel(ads1x15.Channel0, 5*physic.Volt, 1*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		return nil, fmt.Errorf("failed to open vane channel: %w", err)
	}
	logger.Infof("Wind vane on [%v]", pin)
	return &Vane{pin: pin}, nil
}

func (v *Vane) ReadRaw() (int, error) {
	sample, err := v.pin.Read()
	if err != nil {
		return 0, err
	}
	return voltsToRaw(sample.V), nil
}

func (v *Vane) Halt() error {
	return v.pin.Halt()
}

func voltsToRaw(v physic.ElectricPotential) int {
	if v <= 0 {
		return 0
	}
	if v >= vaneSupply {
		return 4095
	}
	return int(int64(v) * 4095 / int64(vaneSupply))
}
