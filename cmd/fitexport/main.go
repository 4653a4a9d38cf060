// Command fitexport reads a simulate result JSON (spec §6 output shape)
// from a file argument (or stdin) and writes a .fit activity file.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nick-riduck/bike-course-simulator/internal/aggregate"
	"github.com/nick-riduck/bike-course-simulator/internal/fitexport"
)

type resultJSON struct {
	Samples []struct {
		DistKm   float64 `json:"dist_km"`
		EleM     float64 `json:"ele_m"`
		SpeedKmh float64 `json:"speed_kmh"`
		PowerW   float64 `json:"power_w"`
		TimeSec  float64 `json:"time_sec"`
		WPrimeJ  float64 `json:"w_prime_j"`
		Walking  bool    `json:"walking"`
	} `json:"samples"`
	Aggregates struct {
		TotalTimeSec     float64 `json:"total_time_sec"`
		AvgPowerW        float64 `json:"avg_power_w"`
		NormalizedPowerW float64 `json:"normalized_power_w"`
		WorkKJ           float64 `json:"work_kj"`
		DistanceKm       float64 `json:"distance_km"`
		ElevationGainM   float64 `json:"elevation_gain_m"`
	} `json:"aggregates"`
}

func main() {
	out := flag.String("out", "activity.fit", "output .fit path")
	flag.Parse()

	var (
		data []byte
		err  error
	)
	if args := flag.Args(); len(args) > 0 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading input: %v\n", err)
		os.Exit(64)
	}

	var r resultJSON
	if err := json.Unmarshal(data, &r); err != nil {
		fmt.Fprintf(os.Stderr, "fitexport: invalid result JSON: %v\n", err)
		os.Exit(64)
	}

	result := aggregate.Result{
		TotalTimeSec:     r.Aggregates.TotalTimeSec,
		AvgPowerW:        r.Aggregates.AvgPowerW,
		NormalizedPowerW: r.Aggregates.NormalizedPowerW,
		WorkKJ:           r.Aggregates.WorkKJ,
		DistanceKm:       r.Aggregates.DistanceKm,
		ElevationGainM:   r.Aggregates.ElevationGainM,
		Samples:          make([]aggregate.TrackSample, len(r.Samples)),
	}
	for i, s := range r.Samples {
		result.Samples[i] = aggregate.TrackSample{
			DistKm:   s.DistKm,
			EleM:     s.EleM,
			SpeedKmh: s.SpeedKmh,
			PowerW:   s.PowerW,
			TimeSec:  s.TimeSec,
			WPrimeJ:  s.WPrimeJ,
			Walking:  s.Walking,
		}
	}

	if err := fitexport.Save(*out, result, time.Now()); err != nil {
		fmt.Fprintf(os.Stderr, "fitexport: %v\n", err)
		os.Exit(70)
	}
}
