package memory

import (
	"fmt"
	"math"
	"sort"

	units "github.com/docker/go-units"

	"hyperbalance/internal/logx"
	"hyperbalance/internal/pipeline"
)

// Result reports how many domains were reclaimed from and provisioned to.
type Result struct {
	Reclaimed   int
	Provisioned int
}

// Schedule runs the four-phase supplier/demander redistribution algorithm
// (spec §4.6) and commits through setMemory.
func Schedule(datums []Datum, systemMemoryLimit uint64, setMemory func(d Datum, targetBytes uint64) error, logger *logx.Logger) (Result, error) {
	available := float64(systemMemoryLimit) - MinimumSystemMemory

	var suppliers, demanders []Datum
	for i := range datums {
		d := &datums[i]
		available -= float64(d.BalloonAllocatedBytes)
		if available < 0 {
			return Result{}, pipeline.FatalTick(fmt.Errorf("available memory went negative classifying %s", d.UUID))
		}

		limit := float64(d.MemoryLimitBytes)
		switch {
		case float64(d.UnusedBytes) > SupplyCoefficient*limit:
			d.ProposedDeltaBytes = -Step
			suppliers = append(suppliers, *d)
		case float64(d.UnusedBytes) < DemandCoefficient*limit:
			d.ProposedDeltaBytes = Step
			demanders = append(demanders, *d)
		}
	}

	var result Result

	// Phase B: reclaim from suppliers, encounter order.
	for _, s := range suppliers {
		target := math.Max(MinimumDomainMemory, float64(s.BalloonAllocatedBytes)+s.ProposedDeltaBytes)
		resultant := available - target + float64(s.BalloonAllocatedBytes)
		if resultant < 0 {
			return result, pipeline.FatalTick(fmt.Errorf("reclaim from %s would drive available negative", s.UUID))
		}
		if err := setMemory(s, uint64(target)); err != nil {
			logger.Flag("supplier reclaim commit failed", "uuid", s.UUID, "error", err)
			continue
		}
		logger.Status("reclaimed from supplier", "uuid", s.UUID, "target", units.BytesSize(target))
		available = resultant
		result.Reclaimed++
	}

	// Phase C: prioritise demanders by proposed_delta_bytes/vcpu_count
	// descending, a stable sort (testable property 9).
	sort.SliceStable(demanders, func(i, j int) bool {
		return perVCPU(demanders[i]) > perVCPU(demanders[j])
	})
	requestersRemaining := len(demanders)

	// Phase D: provision demanders in priority order.
	for _, dem := range demanders {
		maxTarget := float64(dem.MemoryLimitBytes)

		if math.Abs(dem.ProposedDeltaBytes) < available {
			target := math.Min(maxTarget, float64(dem.BalloonAllocatedBytes)+dem.ProposedDeltaBytes)
			resultant := available - target + float64(dem.BalloonAllocatedBytes)
			if resultant < 0 || target < 0 {
				return result, pipeline.FatalTick(fmt.Errorf("provisioning %s (full step) would be infeasible", dem.UUID))
			}
			if err := setMemory(dem, uint64(target)); err != nil {
				logger.Flag("demander full-step commit failed", "uuid", dem.UUID, "error", err)
				continue
			}
			logger.Status("provisioned demander (full step)", "uuid", dem.UUID, "target", units.BytesSize(target))
			available = resultant
			if requestersRemaining > 1 {
				requestersRemaining--
			}
			result.Provisioned++
			continue
		}

		partition := math.Ceil(available / float64(requestersRemaining))
		if requestersRemaining > 0 && partition < available {
			target := math.Min(maxTarget, float64(dem.BalloonAllocatedBytes)+dem.ProposedDeltaBytes/float64(requestersRemaining))
			resultant := available - target + float64(dem.BalloonAllocatedBytes)
			if resultant < 0 || target < 0 {
				return result, pipeline.FatalTick(fmt.Errorf("provisioning %s (partition) would be infeasible", dem.UUID))
			}
			if err := setMemory(dem, uint64(target)); err != nil {
				return result, pipeline.FatalTick(fmt.Errorf("provisioning %s (partition) commit failed: %w", dem.UUID, err))
			}
			logger.Status("provisioned demander (partition)", "uuid", dem.UUID, "target", units.BytesSize(target))
			available = resultant
			if requestersRemaining > 1 {
				requestersRemaining--
			}
			result.Provisioned++
			continue
		}

		logger.Flag("demander skipped, no budget remaining", "uuid", dem.UUID)
	}

	return result, nil
}

func perVCPU(d Datum) float64 {
	if d.VCPUCount <= 0 {
		return d.ProposedDeltaBytes
	}
	return d.ProposedDeltaBytes / float64(d.VCPUCount)
}
