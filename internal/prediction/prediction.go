// Package prediction defines the Prediction Consumer port: a thin contract
// for consulting a demand/allocation predictor. The orchestrator is
// constructed with a Consumer, but none of its strategies (including
// "balanced" and "resource-efficient") call it. The predictor itself is external and may
// be degraded or unreachable at any time, so every method here is allowed to
// return an empty/default answer rather than fail the booking.
package prediction

import (
	"context"
	"time"
)

// Consumer is the port the Scheduling Orchestrator consults.
type Consumer interface {
	// PredictDailyDemand returns an expected booking count per date; an
	// implementation may return an empty map when it has no opinion.
	PredictDailyDemand(ctx context.Context, shopID string, dates []time.Time) (map[time.Time]int, error)
	// SpecialistAllocationRatio returns the specialist's expected
	// fraction-of-shop share in [0,1]; default 0.2 on insufficient history.
	SpecialistAllocationRatio(ctx context.Context, specialistID, shopID string) (float64, error)
}

// DefaultAllocationRatio is returned by Null and is the documented fallback
// for "insufficient history".
const DefaultAllocationRatio = 0.2

// Null is a predictor with no opinion, used when no prediction service is
// configured; strategies must treat its answers as "no signal", not "zero
// demand".
type Null struct{}

func (Null) PredictDailyDemand(ctx context.Context, shopID string, dates []time.Time) (map[time.Time]int, error) {
	return map[time.Time]int{}, nil
}

func (Null) SpecialistAllocationRatio(ctx context.Context, specialistID, shopID string) (float64, error) {
	return DefaultAllocationRatio, nil
}
