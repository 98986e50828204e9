package models

import (
	"time"

	"heatmap.tricitytransit.org/internal/gtfstime"
)

type CurrentTimeData struct {
	ReadableTime string `json:"readableTime"`
	Time         int64  `json:"time"`
	// ServiceTime is the time of day used as the default query departure.
	ServiceTime string `json:"serviceTime"`
	TimeZone    string `json:"timeZone"`
}

func NewCurrentTimeData(now time.Time, loc *time.Location, service gtfstime.TimeOfDay) CurrentTimeData {
	if loc == nil {
		loc = time.UTC
	}
	return CurrentTimeData{
		ReadableTime: now.In(loc).Format(time.RFC3339),
		Time:         now.UnixMilli(),
		ServiceTime:  service.String(),
		TimeZone:     loc.String(),
	}
}
