// Bike Course Simulator - predicts finish time and pacing for a given
// cyclist and course.
// Copyright (C) 2026  Paulo Sérgio
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package gpxfile is a collaborator that ingests a .gpx file into the
// kernel's raw trackpoint input (spec §1: "file I/O for GPX ... treated
// as external collaborators providing/consuming data via documented
// interfaces only").
package gpxfile

import (
	"fmt"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/nick-riduck/bike-course-simulator/internal/course"
)

// Load parses path and flattens every track (falling back to routes if
// a file has none) into the kernel's RawPoint input, the way the
// teacher's gpx.Service.LoadAndProcess does before handing off to
// smoothing — except all cleaning here is left to course.Load, the
// kernel's own loader.
func Load(path string) ([]course.RawPoint, error) {
	gpxFile, err := gpx.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("gpxfile: parse %s: %w", path, err)
	}

	var points []course.RawPoint
	for _, track := range gpxFile.Tracks {
		for _, seg := range track.Segments {
			for i := range seg.Points {
				points = append(points, fromGPXPoint(&seg.Points[i]))
			}
		}
	}

	if len(points) == 0 {
		for _, route := range gpxFile.Routes {
			for i := range route.Points {
				points = append(points, fromGPXPoint(&route.Points[i]))
			}
		}
	}

	if len(points) < 2 {
		return nil, fmt.Errorf("gpxfile: %s does not contain at least 2 GPS points", path)
	}
	return points, nil
}

func fromGPXPoint(p *gpx.GPXPoint) course.RawPoint {
	return course.RawPoint{
		Lat: p.Point.Latitude,
		Lon: p.Point.Longitude,
		Ele: p.Elevation.Value(),
	}
}
