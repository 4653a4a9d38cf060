// Command gpxconvert reads a .gpx file and writes the equivalent raw
// course JSON (spec §6's course input shape) to stdout, for piping into
// the simulate command.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nick-riduck/bike-course-simulator/internal/gpxfile"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gpxconvert <path.gpx>")
		os.Exit(64)
	}

	points, err := gpxfile.Load(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "gpxconvert: %v\n", err)
		os.Exit(64)
	}

	type wirePoint struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
		Ele float64 `json:"ele"`
	}
	out := make([]wirePoint, len(points))
	for i, p := range points {
		out[i] = wirePoint{Lat: p.Lat, Lon: p.Lon, Ele: p.Ele}
	}

	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(map[string]any{"points": out}); err != nil {
		fmt.Fprintf(os.Stderr, "gpxconvert: encode: %v\n", err)
		os.Exit(70)
	}
}
