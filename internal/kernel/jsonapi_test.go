package kernel

import (
	"context"
	"encoding/json"
	"testing"
)

func TestRunJSON_FlatCourseRoundTrip(t *testing.T) {
	req := wireRequest{
		Course: wireCourse{
			Points:      syntheticFlatWirePoints(10000, 10),
			BaselineCrr: 0.004,
		},
		Rider: wireRider{
			MassKg:        70,
			CPW:           281,
			WPrimeJ:       20000,
			PDC:           map[string]float64{"60": 600, "300": 350, "1200": 280, "3600": 258},
			CdAM2:         0.32,
			Crr:           0.004,
			BikeMassKg:    8,
			DrivetrainKey: "ultegra",
		},
	}
	input, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	out, err := RunJSON(context.Background(), input)
	if err != nil {
		t.Fatalf("RunJSON: %v", err)
	}

	var result wireResult
	if err := json.Unmarshal(out, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.RunID == "" {
		t.Error("expected a non-empty run_id")
	}
	if !result.Diagnostics.Feasible {
		t.Error("expected a feasible run")
	}
	if len(result.Samples) == 0 {
		t.Error("expected a non-empty sample sequence")
	}
}

func TestRunJSON_InvalidJSONErrors(t *testing.T) {
	if _, err := RunJSON(context.Background(), []byte("not json")); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

// A kernel-level error (as opposed to a decode error before Simulate
// ever runs) must still come back with a marshalable wireResult body,
// not a nil byte slice, so a caller always gets valid JSON to inspect.
func TestRunJSON_KernelErrorStillReturnsMarshaledBody(t *testing.T) {
	req := wireRequest{
		Course: wireCourse{
			Points:      syntheticFlatWirePoints(1000, 10),
			BaselineCrr: 0.004,
		},
		Rider: wireRider{
			MassKg:        70,
			CPW:           0, // invalid: rider.NewProfile rejects CP <= 0
			WPrimeJ:       20000,
			PDC:           map[string]float64{"60": 600},
			CdAM2:         0.32,
			Crr:           0.004,
			BikeMassKg:    8,
			DrivetrainKey: "ultegra",
		},
	}
	input, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	out, err := RunJSON(context.Background(), input)
	if err == nil {
		t.Fatal("expected an error for CP <= 0")
	}
	if out == nil {
		t.Fatal("expected a non-nil body alongside the error")
	}
	var result wireResult
	if jsonErr := json.Unmarshal(out, &result); jsonErr != nil {
		t.Fatalf("unmarshal result: %v", jsonErr)
	}
}

func syntheticFlatWirePoints(totalM, stepM float64) []wirePoint {
	n := int(totalM/stepM) + 1
	points := make([]wirePoint, n)
	metersPerDegLat := 111320.0
	for i := 0; i < n; i++ {
		points[i] = wirePoint{Lat: float64(i) * stepM / metersPerDegLat, Lon: 0, Ele: 100}
	}
	return points
}
