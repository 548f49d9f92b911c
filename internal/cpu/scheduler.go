package cpu

import (
	"fmt"
	"sort"

	"hyperbalance/internal/logx"
	"hyperbalance/internal/pipeline"
	"hyperbalance/internal/statx"
)

// Dispersion gate bounds (spec §4.4 Phase C).
const (
	DispersionUpperBound = 0.115
	DispersionLowerBound = 0.075
)

// PinFunc commits one vCPU's pin decision through the gateway.
type PinFunc func(d VCPUDatum, pcpuTotal int) error

// Result reports what the scheduler decided and did.
type Result struct {
	Committed         bool
	PinsIssued        int
	CurrentDispersion float64
	PredictedDisp     float64
}

// Schedule runs the four-phase dispersion-gated greedy repinning algorithm
// (spec §4.4) over datums and the current pCPU aggregation, and commits via
// pin if the dispersion gate opens.
func Schedule(datums []VCPUDatum, current []PCPUDatum, pcpuTotal int, pin PinFunc, logger *logx.Logger) (Result, error) {
	if len(datums) == 0 || len(current) == 0 {
		return Result{}, pipeline.FatalTick(fmt.Errorf("empty vcpu or pcpu input"))
	}

	// Phase A: sort descending by delta_usage_ns, stable so ties keep
	// their encounter order.
	ordered := make([]int, len(datums))
	for i := range ordered {
		ordered[i] = i
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return datums[ordered[i]].DeltaUsageNs > datums[ordered[j]].DeltaUsageNs
	})

	// Phase B: greedy assignment against a zeroed predicted table.
	predicted := make([]PCPUDatum, pcpuTotal)
	for i := range predicted {
		predicted[i].PCPUIndex = i
	}
	selector := newSelector(predicted)

	for _, idx := range ordered {
		best := selector.Best()
		datums[idx].ChosenPCPUIndex = best
		selector.Assign(best, datums[idx].DeltaUsageNs)
	}

	// Phase C: dispersion gate.
	currentDisp := statx.Dispersion(usages(current))
	predictedDisp := statx.Dispersion(usages(predicted))

	result := Result{CurrentDispersion: currentDisp, PredictedDisp: predictedDisp}
	if !(currentDisp > DispersionUpperBound && predictedDisp <= DispersionLowerBound) {
		return result, nil
	}

	// Phase D: commit every vCPU whose chosen pcpu differs from its
	// current one. A single pin failure is logged and does not abort the
	// sweep.
	for _, d := range datums {
		if d.ChosenPCPUIndex == d.CurrentPCPUIndex {
			continue
		}
		if err := pin(d, pcpuTotal); err != nil {
			logger.Flag("pin commit failed", "uuid", d.UUID, "vcpu_index", d.VCPUIndex, "error", err)
			continue
		}
		result.PinsIssued++
	}
	result.Committed = true
	return result, nil
}

func usages(pcpus []PCPUDatum) []float64 {
	out := make([]float64, len(pcpus))
	for i, p := range pcpus {
		out[i] = float64(p.SummedDeltaUsageNs)
	}
	return out
}
