package main

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/gr-butler/masthead/data"
	"github.com/gr-butler/masthead/env"
	logger "github.com/sirupsen/logrus"
)

/*

https://wow.metoffice.gov.uk/support/dataformats

WOW expects a GET or POST to http://wow.metoffice.gov.uk/automaticreading?
followed by key/value pairs. Every upload carries the site id, the
authentication pin, the date and the software type plus at least one
reading.

The date is YYYY-mm-DD HH:mm:ss in UTC, with ':' encoded as %3A and the
space as '+' or %20.

KEY				Description															UNIT

dailyrainin 	Accumulated rainfall so far today 									Inches
rainin 			Accumulated rainfall since the previous observation 				Inches
winddir 		Instantaneous Wind Direction 										Degrees (0-360)
windspeedmph 	Instantaneous Wind Speed 											Miles per Hour
windgustmph 	Current Wind Gust (using software specific time period) 			Miles per Hour

The masthead only measures wind and rain, the rest of the keys are sent by
the ground station.
*/

const baseUrl = "http://wow.metoffice.gov.uk/automaticreading?"

type weatherData struct {
	SiteId       string  `url:"siteid,omitempty"`
	AuthKey      string  `url:"siteAuthenticationKey,omitempty"`
	DateString   string  `url:"dateutc,omitempty"`
	SoftwareType string  `url:"softwaretype,omitempty"`
	RainIn       float64 `url:"rainin"`
	DailyRainIn  float64 `url:"dailyrainin"`
	WindDir      int     `url:"winddir"`
	WindSpeedMph float64 `url:"windspeedmph"`
	WindGustMph  float64 `url:"windgustmph"`
}

type wowUploader struct {
	siteID string
	pin    string
	url    string
	client *http.Client

	lock      sync.Mutex
	lastDaily float64
}

func newWowUploader(rep env.Reporting, url string, client *http.Client) *wowUploader {
	return &wowUploader{siteID: rep.WowSiteID, pin: rep.WowPin, url: url, client: client}
}

// prepData builds the upload. rainin is the rain since the previous upload,
// worked out from the daily total so a midnight reset never goes negative.
func (u *wowUploader) prepData(snap data.Snapshot, now time.Time) *weatherData {
	u.lock.Lock()
	defer u.lock.Unlock()
	since := snap.RainDay - u.lastDaily
	if since < 0 {
		since = snap.RainDay
	}
	u.lastDaily = snap.RainDay

	return &weatherData{
		SiteId:  u.siteID,
		AuthKey: u.pin,
		// go magic date is Mon Jan 2 15:04:05 MST 2006
		DateString:   now.UTC().Format("2006-01-02 15:04:05"),
		SoftwareType: version,
		RainIn:       mmToIn(since),
		DailyRainIn:  mmToIn(snap.RainDay),
		WindDir:      snap.WindDir,
		WindSpeedMph: kmhToMph(snap.WindSpeed),
		WindGustMph:  kmhToMph(snap.WindGust),
	}
}

func (u *wowUploader) send(snap data.Snapshot, now time.Time) {
	if err := u.upload(u.prepData(snap, now)); err != nil {
		logger.Errorf("Failed to send data to met office [%v]", err)
	}
}

func (u *wowUploader) upload(wd *weatherData) error {
	vals, err := query.Values(wd)
	if err != nil {
		return err
	}
	logger.Infof("Sending data to met office [%v]", vals.Encode())

	// Metoffice accepts a GET... which is easier
	resp, err := u.client.Get(u.url + vals.Encode())
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP [%v]", resp.Status)
	}
	return nil
}

func mmToIn(mm float64) float64 {
	return mm / env.MmToInch
}

func kmhToMph(kmh float64) float64 {
	return kmh / env.MphToKmh
}
