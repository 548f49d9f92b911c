package cpu

import "hyperbalance/internal/logx"

// BuildDatums turns the current snapshot into scheduler input records,
// skipping any domain in skipSet. Each vCPU's delta_usage_ns is the
// cumulative-usage difference from the previous tick, clamped to >= 0
// (spec §3); a negative raw delta is logged and treated as zero rather
// than propagated, since cumulative counters are assumed monotonic and a
// decrease indicates a corrupted sample, not real work.
//
// Ownership of each included domain's handle moves from snap.Handles into
// the returned datums; snap.Handles is left holding only the handles for
// skipped domains, which the caller should release via ReleaseUnused.
func BuildDatums(snap *Snapshot, previous VCPUTable, skipSet map[string]struct{}, logger *logx.Logger) []VCPUDatum {
	var datums []VCPUDatum

	for uuid, curList := range snap.Table {
		if _, skipped := skipSet[uuid]; skipped {
			continue
		}
		prevList := previous[uuid]
		h := snap.Handles[uuid]
		delete(snap.Handles, uuid)

		for i, info := range curList {
			var prevUsage uint64
			if i < len(prevList) {
				prevUsage = prevList[i].CumulativeUsageNs
			}

			var delta uint64
			if info.CumulativeUsageNs >= prevUsage {
				delta = info.CumulativeUsageNs - prevUsage
			} else {
				logger.Flag("usage time went backwards, using zero", "uuid", uuid, "vcpu_index", info.VCPUIndex)
			}

			datums = append(datums, VCPUDatum{
				VCPUIndex:        info.VCPUIndex,
				CurrentPCPUIndex: info.PinnedPCPUIndex,
				UUID:             uuid,
				Handle:           h,
				DeltaUsageNs:     delta,
				ChosenPCPUIndex:  info.PinnedPCPUIndex,
			})
		}
	}

	return datums
}

// AggregatePCPUs builds the pCPU datums by summing delta_usage_ns and
// counting vCPU datums per current pcpu_index (spec §3 invariant, testable
// property 2). pcpuTotal fixes the length of the result so every physical
// CPU appears even with zero vCPUs pinned to it.
func AggregatePCPUs(datums []VCPUDatum, pcpuTotal int) []PCPUDatum {
	pcpus := make([]PCPUDatum, pcpuTotal)
	for i := range pcpus {
		pcpus[i].PCPUIndex = i
	}
	for _, d := range datums {
		if d.CurrentPCPUIndex < 0 || d.CurrentPCPUIndex >= pcpuTotal {
			continue
		}
		pcpus[d.CurrentPCPUIndex].SummedDeltaUsageNs += d.DeltaUsageNs
		pcpus[d.CurrentPCPUIndex].VCPUCount++
	}
	return pcpus
}
