package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gr-butler/masthead/data"
	"github.com/gr-butler/masthead/env"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_wowUploader_prepData(t *testing.T) {
	u := newWowUploader(env.Reporting{WowSiteID: "1234", WowPin: "9999"}, baseUrl, http.DefaultClient)
	now := time.Date(2021, 2, 28, 10, 32, 55, 0, time.UTC)

	wd := u.prepData(data.Snapshot{RainDay: 2.54, WindSpeed: 16.0934, WindGust: 32.1868, WindDir: 180}, now)
	assert.Equal(t, "1234", wd.SiteId)
	assert.Equal(t, "9999", wd.AuthKey)
	assert.Equal(t, "2021-02-28 10:32:55", wd.DateString)
	assert.InDelta(t, 0.1, wd.RainIn, 1e-9)
	assert.InDelta(t, 0.1, wd.DailyRainIn, 1e-9)
	assert.InDelta(t, 10, wd.WindSpeedMph, 1e-9)
	assert.InDelta(t, 20, wd.WindGustMph, 1e-9)

	// only the rain since the last upload
	wd = u.prepData(data.Snapshot{RainDay: 5.08}, now)
	assert.InDelta(t, 0.1, wd.RainIn, 1e-9)
	assert.InDelta(t, 0.2, wd.DailyRainIn, 1e-9)

	// after midnight the daily total starts again
	wd = u.prepData(data.Snapshot{RainDay: 0.254}, now)
	assert.InDelta(t, 0.01, wd.RainIn, 1e-9)
}

func Test_wowUploader_upload(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		got = r
		rw.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	u := newWowUploader(env.Reporting{WowSiteID: "1234", WowPin: "9999"}, srv.URL+"/automaticreading?", srv.Client())
	now := time.Date(2011, 2, 2, 10, 32, 55, 0, time.UTC)
	require.NoError(t, u.upload(u.prepData(data.Snapshot{WindDir: 90}, now)))

	require.NotNil(t, got)
	assert.Equal(t, "/automaticreading", got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "1234", q.Get("siteid"))
	assert.Equal(t, "9999", q.Get("siteAuthenticationKey"))
	assert.Equal(t, "2011-02-02 10:32:55", q.Get("dateutc"))
	assert.Equal(t, version, q.Get("softwaretype"))
	assert.Equal(t, "90", q.Get("winddir"))
	assert.Equal(t, "0", q.Get("rainin"))
}

func Test_wowUploader_rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	u := newWowUploader(env.Reporting{}, srv.URL+"/?", srv.Client())
	assert.Error(t, u.upload(u.prepData(data.Snapshot{}, time.Now())))
}
