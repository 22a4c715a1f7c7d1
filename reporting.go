package main

import (
	"encoding/json"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gr-butler/masthead/data"
	"github.com/gr-butler/masthead/env"
	"github.com/gr-butler/masthead/rtc"
	"github.com/prometheus/client_golang/prometheus"
	logger "github.com/sirupsen/logrus"
)

const mqttTopic = "masthead/readings"

var Prom_rainRatePerHour = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "rain_hour_rate",
		Help: "Rain rate mm/h from the last tip interval",
	},
)

var Prom_rainDayTotal = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "rain_day",
		Help: "The rain total today (since midnight) mm",
	},
)

var Prom_rainPulses = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "rain_pulses",
		Help: "Bucket tips today",
	},
)

var Prom_windspeed = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "windspeed",
		Help: "Wind speed km/h over the last sample period",
	},
)

var Prom_windgust = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "windgust",
		Help: "Highest wind speed km/h in the last ten minutes",
	},
)

var Prom_windDirection = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "winddirection",
		Help: "Wind Direction Deg",
	},
)

// called by prometheus
func init() {
	prometheus.MustRegister(
		Prom_rainRatePerHour,
		Prom_rainDayTotal,
		Prom_rainPulses,
		Prom_windspeed,
		Prom_windgust,
		Prom_windDirection)
}

// publisher is the part of the mqtt client the reporter uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type reporter struct {
	station *data.Station
	test    bool
	mqtt    publisher
	client  mqtt.Client
	wow     *wowUploader
}

func newReporter(args env.Args, rep env.Reporting, station *data.Station) *reporter {
	r := &reporter{station: station, test: *args.Test}
	if !*args.NoMqtt && !*args.Test {
		r.client = connectMqtt(rep)
		if r.client != nil {
			r.mqtt = r.client
		}
	}
	if !*args.NoWow && !*args.Test {
		if rep.WowEnabled() {
			r.wow = newWowUploader(rep, baseUrl, &http.Client{Timeout: time.Second * 30})
		} else {
			logger.Error("SiteId and or pin not set! WOWSITEID and WOWPIN must be set.")
		}
	}
	return r
}

func connectMqtt(rep env.Reporting) mqtt.Client {
	opts := mqtt.NewClientOptions().
		AddBroker(rep.MqttBroker).
		SetClientID(rep.MqttClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		// ConnectRetry keeps trying in the background
		logger.Warnf("MQTT broker [%v] not connected yet [%v]", rep.MqttBroker, token.Error())
	} else {
		logger.Infof("Connected to MQTT broker at [%v]", rep.MqttBroker)
	}
	return client
}

func (r *reporter) close() {
	if r.client != nil {
		r.client.Disconnect(250)
	}
}

// onMinute runs from the scheduler once a minute.
func (r *reporter) onMinute(now rtc.ClockTime) {
	snap := r.station.Snapshot()
	recordMetrics(snap)
	if r.mqtt != nil {
		r.publish(snap)
	}
	if r.wow != nil && int(now.Minute)%env.ReportFreqMin == 0 {
		// upload off the scheduler goroutine, the request can take a while
		go r.wow.send(snap, now.Time())
	}
}

func recordMetrics(snap data.Snapshot) {
	Prom_rainRatePerHour.Set(snap.RainRate)
	Prom_rainDayTotal.Set(snap.RainDay)
	Prom_rainPulses.Set(float64(snap.RainPulses))
	Prom_windspeed.Set(snap.WindSpeed)
	Prom_windgust.Set(snap.WindGust)
	Prom_windDirection.Set(float64(snap.WindDir))
}

func (r *reporter) publish(snap data.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		logger.Errorf("Error marshalling readings [%v]", err)
		return
	}
	token := r.mqtt.Publish(mqttTopic, 0, false, payload)
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		logger.Errorf("Failed to publish readings [%v]", token.Error())
	}
}
