// Package fitexport is a collaborator that renders a SimulationResult's
// TrackSample sequence into a .fit activity file (spec §1: result
// export is an external collaborator concern, not core kernel scope).
package fitexport

import (
	"fmt"
	"os"
	"time"

	"github.com/muktihari/fit/encoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/muktihari/fit/proto"

	"github.com/nick-riduck/bike-course-simulator/internal/aggregate"
)

// Save renders result's samples as a synthetic .fit activity starting
// at startTime, one Record per TrackSample, the way the teacher's
// fit.Service.Save assembles FileId/Record/Lap/Session messages — here
// built from a finished simulation instead of a live telemetry session.
func Save(filepath string, result aggregate.Result, startTime time.Time) error {
	f, err := os.Create(filepath)
	if err != nil {
		return fmt.Errorf("fitexport: create %s: %w", filepath, err)
	}
	defer f.Close()

	enc := encoder.New(f)
	fit := proto.FIT{}

	fileID := mesgdef.FileId{
		Type:         typedef.FileActivity,
		Manufacturer: typedef.ManufacturerDevelopment,
		Product:      0,
		SerialNumber: 1,
		TimeCreated:  startTime,
	}
	fit.Messages = append(fit.Messages, fileID.ToMesg(nil))

	t := startTime
	for _, s := range result.Samples {
		t = startTime.Add(time.Duration(s.TimeSec * float64(time.Second)))
		rec := mesgdef.Record{
			Timestamp:        t,
			Distance:         uint32(s.DistKm * 1000 * 100), // m -> cm
			EnhancedSpeed:    uint32(s.SpeedKmh / 3.6 * 1000),
			Power:            uint16(s.PowerW),
			EnhancedAltitude: uint32((s.EleM + 500.0) * 5.0),
		}
		fit.Messages = append(fit.Messages, rec.ToMesg(nil))
	}

	endTime := t
	fit.Messages = append(fit.Messages, mesgdef.Event{
		Timestamp: endTime,
		Event:     typedef.EventTimer,
		EventType: typedef.EventTypeStopAll,
	}.ToMesg(nil))

	totalElapsedMs := uint32(result.TotalTimeSec * 1000)
	totalDistCm := uint32(result.DistanceKm * 1000 * 100)
	avgPower := uint16(result.AvgPowerW)

	fit.Messages = append(fit.Messages, mesgdef.Lap{
		Timestamp:        endTime,
		StartTime:        startTime,
		TotalElapsedTime: totalElapsedMs,
		TotalTimerTime:   totalElapsedMs,
		TotalDistance:    totalDistCm,
		AvgPower:         avgPower,
		Event:            typedef.EventLap,
		EventType:        typedef.EventTypeStop,
	}.ToMesg(nil))

	fit.Messages = append(fit.Messages, mesgdef.Session{
		Timestamp:        endTime,
		StartTime:        startTime,
		TotalElapsedTime: totalElapsedMs,
		TotalTimerTime:   totalElapsedMs,
		TotalDistance:    totalDistCm,
		AvgPower:         avgPower,
		Sport:            typedef.SportCycling,
		SubSport:         typedef.SubSportVirtualActivity,
		Event:            typedef.EventSession,
		EventType:        typedef.EventTypeStop,
		Trigger:          typedef.SessionTriggerActivityEnd,
	}.ToMesg(nil))

	if err := enc.Encode(&fit); err != nil {
		return fmt.Errorf("fitexport: encode: %w", err)
	}
	return nil
}
