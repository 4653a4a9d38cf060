// Command simulate reads a simulation request JSON from a file argument
// (or stdin), runs the kernel, and writes the result JSON to stdout.
// Exit codes follow spec §6: 0 success, 64 malformed input, 65
// infeasible course, 70 numerical failure, 75 deadline exceeded.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/nick-riduck/bike-course-simulator/internal/kernel"
	"github.com/nick-riduck/bike-course-simulator/internal/kerr"
	"github.com/nick-riduck/bike-course-simulator/internal/presets"
	"github.com/nick-riduck/bike-course-simulator/internal/segmentplan"
)

func main() {
	deadline := flag.Duration("deadline", 0, "solver deadline (0 means no deadline)")
	presetsDB := flag.String("presets-db", "", "sqlite preset store (enables -rider-preset/-env-preset)")
	riderPreset := flag.String("rider-preset", "", "load the rider block from a saved preset instead of the input JSON")
	envPreset := flag.String("env-preset", "", "load the environment block from a saved preset instead of the input JSON")
	userSegmentsFile := flag.String("user-segments", "", "JSON file of UserSegment overrides (spec §6)")
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

	if *riderPreset != "" || *envPreset != "" {
		data, err = applyPresets(data, *presetsDB, *riderPreset, *envPreset)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error applying presets: %v\n", err)
			os.Exit(64)
		}
	}

	if *userSegmentsFile != "" {
		data, err = applyUserSegments(data, *userSegmentsFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error applying user segments: %v\n", err)
			os.Exit(64)
		}
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if *deadline > 0 {
		ctx, cancel = context.WithTimeout(ctx, *deadline)
		defer cancel()
	}

	out, err := kernel.RunJSON(ctx, data)
	if err != nil {
		// On InfeasibleCourse/DeadlineExceeded, out still carries the
		// closest-to-feasible trial (spec §7) rather than being empty.
		if len(out) > 0 {
			fmt.Println(string(out))
		}
		fmt.Fprintf(os.Stderr, "simulation error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}

	fmt.Println(string(out))
}

// applyPresets overrides the request's rider/environment blocks with
// named entries from the preset store, so a caller only has to supply
// the course in its input JSON.
func applyPresets(data []byte, dbPath, riderName, envName string) ([]byte, error) {
	dbFile := dbPath
	if dbFile == "" {
		dbFile = "presets.db"
	}
	store, err := presets.Open(dbFile)
	if err != nil {
		return nil, err
	}

	var req map[string]json.RawMessage
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid request JSON: %w", err)
	}

	if riderName != "" {
		p, err := store.RiderByName(riderName)
		if err != nil {
			return nil, fmt.Errorf("rider preset %q: %w", riderName, err)
		}
		riderJSON, err := json.Marshal(map[string]any{
			"mass_kg":        p.MassKg,
			"cp_w":           p.CPW,
			"w_prime_j":      p.WPrimeJ,
			"pdc":            json.RawMessage([]byte(p.PDCJSON)),
			"cda_m2":         p.CdAM2,
			"crr":            p.Crr,
			"bike_mass_kg":   p.BikeMassKg,
			"drivetrain_key": p.Drivetrain,
		})
		if err != nil {
			return nil, err
		}
		req["rider"] = riderJSON
	}

	if envName != "" {
		p, err := store.EnvironmentByName(envName)
		if err != nil {
			return nil, fmt.Errorf("environment preset %q: %w", envName, err)
		}
		envJSON, err := json.Marshal(map[string]any{
			"temp_c":           p.TemperatureC,
			"altitude_m":       p.AltitudeM,
			"wind_speed_mps":   p.WindSpeedMps,
			"wind_bearing_deg": p.WindBearingDeg,
		})
		if err != nil {
			return nil, err
		}
		req["environment"] = envJSON
	}

	return json.Marshal(req)
}

// applyUserSegments loads UserSegment overrides from path and injects
// them into the request's user_segments block.
func applyUserSegments(data []byte, path string) ([]byte, error) {
	segs, err := segmentplan.Load(path)
	if err != nil {
		return nil, err
	}

	var req map[string]json.RawMessage
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid request JSON: %w", err)
	}

	wire := make([]map[string]any, len(segs))
	for i, s := range segs {
		entry := map[string]any{
			"id":           s.ID,
			"start_dist_m": s.StartDistM,
			"end_dist_m":   s.EndDistM,
		}
		if s.TargetPowerW != nil {
			entry["target_power_w"] = *s.TargetPowerW
		}
		wire[i] = entry
	}
	segJSON, err := json.Marshal(wire)
	if err != nil {
		return nil, err
	}
	req["user_segments"] = segJSON

	return json.Marshal(req)
}

func exitCodeFor(err error) int {
	var kernelErr *kerr.Error
	if errors.As(err, &kernelErr) {
		return kernelErr.Code.ExitCode()
	}
	return 64
}
