// Package segmentplan loads the optional JSON UserSegment list (spec §6)
// a collaborator supplies to override the pacing strategy's output for
// specific spans of the course. It mirrors the teacher's
// workout.ParseJSON load-then-flatten shape, adapted from workout steps
// to course-distance spans.
package segmentplan

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nick-riduck/bike-course-simulator/internal/usersegment"
)

// entry is the wire shape of one UserSegment (spec §6:
// `[{id, start_dist_m, end_dist_m, target_power_w?}, ...]`).
type entry struct {
	ID           string   `json:"id"`
	StartDistM   float64  `json:"start_dist_m"`
	EndDistM     float64  `json:"end_dist_m"`
	Type         string   `json:"type,omitempty"`
	AvgGrade     float64  `json:"avg_grade,omitempty"`
	TargetPowerW *float64 `json:"target_power_w,omitempty"`
}

// Load reads a JSON array of UserSegment entries from path.
func Load(path string) ([]usersegment.Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("segmentplan: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a JSON UserSegment array (spec §3's
// invariant: end > start).
func Parse(data []byte) ([]usersegment.Segment, error) {
	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("segmentplan: decode: %w", err)
	}

	segments := make([]usersegment.Segment, 0, len(entries))
	for i, e := range entries {
		if e.EndDistM <= e.StartDistM {
			return nil, fmt.Errorf("segmentplan: entry %d (%q): end_dist_m must be > start_dist_m", i, e.ID)
		}
		segments = append(segments, usersegment.Segment{
			ID:           e.ID,
			StartDistM:   e.StartDistM,
			EndDistM:     e.EndDistM,
			Type:         usersegment.Type(e.Type),
			AvgGrade:     e.AvgGrade,
			TargetPowerW: e.TargetPowerW,
		})
	}
	return segments, nil
}
