package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	for _, tc := range []struct {
		name string
		iso  string
		exp  string
	}{
		{name: "empty", iso: "", exp: ""},
		{name: "garbage", iso: "1h2m", exp: ""},
		{name: "bare designator", iso: "PT", exp: ""},
		{name: "seconds", iso: "PT45S", exp: "0:45"},
		{name: "minutes and seconds", iso: "PT4M5S", exp: "4:05"},
		{name: "hours", iso: "PT1H2M3S", exp: "1:02:03"},
		{name: "hours only", iso: "PT2H", exp: "2:00:00"},
		{name: "days", iso: "P1DT1M", exp: "24:01:00"},
		{name: "live", iso: "P0D", exp: "0:00"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.exp, FormatDuration(tc.iso))
		})
	}
}
