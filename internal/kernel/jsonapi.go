package kernel

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nick-riduck/bike-course-simulator/internal/course"
	"github.com/nick-riduck/bike-course-simulator/internal/drivetrain"
	"github.com/nick-riduck/bike-course-simulator/internal/usersegment"
)

// The wire* types mirror spec §6's external interfaces verbatim, the
// way the teacher's engine package keeps a JSON-friendly input/output
// shape distinct from its internal types (RunJSON is this module's
// equivalent of engine.RunJSON).

type wirePoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Ele float64 `json:"ele"`
}

type wireCourse struct {
	Points       []wirePoint        `json:"points"`
	BaselineCrr  float64            `json:"baseline_crr"`
	CrrBySurface map[string]float64 `json:"crr_by_surface,omitempty"`
}

type wireRider struct {
	MassKg        float64            `json:"mass_kg"`
	CPW           float64            `json:"cp_w"`
	WPrimeJ       float64            `json:"w_prime_j"`
	PDC           map[string]float64 `json:"pdc"`
	CdAM2         float64            `json:"cda_m2"`
	Crr           float64            `json:"crr"`
	BikeMassKg    float64            `json:"bike_mass_kg"`
	DrivetrainKey string             `json:"drivetrain_key"`
}

type wireEnvironment struct {
	TempC          float64 `json:"temp_c"`
	AltitudeM      float64 `json:"altitude_m"`
	WindSpeedMps   float64 `json:"wind_speed_mps"`
	WindBearingDeg float64 `json:"wind_bearing_deg"`
}

type wireUserSegment struct {
	ID           string   `json:"id"`
	StartDistM   float64  `json:"start_dist_m"`
	EndDistM     float64  `json:"end_dist_m"`
	TargetPowerW *float64 `json:"target_power_w,omitempty"`
}

type wireRequest struct {
	Course       wireCourse        `json:"course"`
	Rider        wireRider         `json:"rider"`
	Environment  *wireEnvironment  `json:"environment,omitempty"`
	UserSegments []wireUserSegment `json:"user_segments,omitempty"`
}

type wireTrackSample struct {
	DistKm   float64 `json:"dist_km"`
	EleM     float64 `json:"ele_m"`
	SpeedKmh float64 `json:"speed_kmh"`
	PowerW   float64 `json:"power_w"`
	TimeSec  float64 `json:"time_sec"`
	WPrimeJ  float64 `json:"w_prime_j"`
	Walking  bool    `json:"walking"`
}

type wireUserSegmentRollup struct {
	ID          string  `json:"id"`
	DurationS   float64 `json:"duration_s"`
	AvgPowerW   float64 `json:"avg_power_w"`
	AvgSpeedKmh float64 `json:"avg_speed_kmh"`
}

type wireAggregates struct {
	TotalTimeSec     float64                 `json:"total_time_sec"`
	AvgSpeedKmh      float64                 `json:"avg_speed_kmh"`
	AvgPowerW        float64                 `json:"avg_power_w"`
	NormalizedPowerW float64                 `json:"normalized_power_w"`
	WorkKJ           float64                 `json:"work_kj"`
	DistanceKm       float64                 `json:"distance_km"`
	ElevationGainM   float64                 `json:"elevation_gain_m"`
	PerUserSegment   []wireUserSegmentRollup `json:"per_user_segment"`
}

type wireDiagnostics struct {
	SolverIterations int     `json:"solver_iterations"`
	Converged        bool    `json:"converged"`
	Feasible         bool    `json:"feasible"`
	WalkingDistanceM float64 `json:"walking_distance_m"`
	BrakingDistanceM float64 `json:"braking_distance_m"`
}

type wireResult struct {
	RunID            string            `json:"run_id"`
	BasePowerW       float64           `json:"base_power_w"`
	DeadlineExceeded bool              `json:"deadline_exceeded"`
	Samples          []wireTrackSample `json:"samples"`
	Aggregates       wireAggregates    `json:"aggregates"`
	Diagnostics      wireDiagnostics   `json:"diagnostics"`
}

// RunJSON is the JSON-in/JSON-out entry point CLI and HTTP collaborators
// call: decode a wireRequest, run Simulate, encode a wireResult.
func RunJSON(ctx context.Context, input []byte) ([]byte, error) {
	var req wireRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, fmt.Errorf("kernel: invalid input JSON: %w", err)
	}

	pdc := make(map[int]float64, len(req.Rider.PDC))
	for k, v := range req.Rider.PDC {
		d, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("kernel: pdc key %q is not an integer duration: %w", k, err)
		}
		pdc[d] = v
	}

	points := make([]course.RawPoint, len(req.Course.Points))
	for i, p := range req.Course.Points {
		points[i] = course.RawPoint{Lat: p.Lat, Lon: p.Lon, Ele: p.Ele}
	}

	userSegs := make([]usersegment.Segment, len(req.UserSegments))
	for i, u := range req.UserSegments {
		userSegs[i] = usersegment.Segment{
			ID:           u.ID,
			StartDistM:   u.StartDistM,
			EndDistM:     u.EndDistM,
			TargetPowerW: u.TargetPowerW,
		}
	}

	var env *EnvironmentInput
	if req.Environment != nil {
		env = &EnvironmentInput{
			TemperatureC:   req.Environment.TempC,
			AltitudeM:      req.Environment.AltitudeM,
			WindSpeedMps:   req.Environment.WindSpeedMps,
			WindBearingDeg: req.Environment.WindBearingDeg,
		}
	}

	result, simErr := Simulate(ctx, Request{
		Course: CourseInput{
			Points:       points,
			BaselineCrr:  req.Course.BaselineCrr,
			CrrBySurface: req.Course.CrrBySurface,
		},
		Rider: RiderInput{
			MassKg:     req.Rider.MassKg,
			CPW:        req.Rider.CPW,
			WPrimeJ:    req.Rider.WPrimeJ,
			PDC:        pdc,
			CdAM2:      req.Rider.CdAM2,
			Crr:        req.Rider.Crr,
			BikeMassKg: req.Rider.BikeMassKg,
			Drivetrain: drivetrain.Key(req.Rider.DrivetrainKey),
		},
		Environment:  env,
		UserSegments: userSegs,
	})

	// Marshal result even when Simulate errored: on InfeasibleCourse or
	// DeadlineExceeded, result still carries the closest-to-feasible
	// trial (spec §7) and is worth surfacing alongside the error rather
	// than discarding.
	out, err := json.Marshal(toWireResult(result))
	if err != nil {
		return nil, fmt.Errorf("kernel: marshaling output: %w", err)
	}
	if simErr != nil {
		return out, simErr
	}
	return out, nil
}

func toWireResult(result Result) wireResult {
	wire := wireResult{
		RunID:            result.RunID,
		BasePowerW:       result.BasePowerW,
		DeadlineExceeded: result.DeadlineExceeded,
		Samples:          make([]wireTrackSample, len(result.Samples)),
		Aggregates: wireAggregates{
			TotalTimeSec:     result.TotalTimeSec,
			AvgSpeedKmh:      result.AvgSpeedKmh,
			AvgPowerW:        result.AvgPowerW,
			NormalizedPowerW: result.NormalizedPowerW,
			WorkKJ:           result.WorkKJ,
			DistanceKm:       result.DistanceKm,
			ElevationGainM:   result.ElevationGainM,
			PerUserSegment:   make([]wireUserSegmentRollup, len(result.PerUserSegment)),
		},
		Diagnostics: wireDiagnostics{
			SolverIterations: result.Diagnostics.SolverIterations,
			Converged:        result.Diagnostics.Converged,
			Feasible:         result.Diagnostics.Feasible,
			WalkingDistanceM: result.Diagnostics.WalkingDistanceM,
			BrakingDistanceM: result.Diagnostics.BrakingDistanceM,
		},
	}
	for i, s := range result.Samples {
		wire.Samples[i] = wireTrackSample{
			DistKm:   s.DistKm,
			EleM:     s.EleM,
			SpeedKmh: s.SpeedKmh,
			PowerW:   s.PowerW,
			TimeSec:  s.TimeSec,
			WPrimeJ:  s.WPrimeJ,
			Walking:  s.Walking,
		}
	}
	for i, r := range result.PerUserSegment {
		wire.Aggregates.PerUserSegment[i] = wireUserSegmentRollup{
			ID:          r.ID,
			DurationS:   r.DurationS,
			AvgPowerW:   r.AvgPowerW,
			AvgSpeedKmh: r.AvgSpeedKmh,
		}
	}
	return wire
}
