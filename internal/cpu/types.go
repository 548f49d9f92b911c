// Package cpu implements the CPU balancer's pipeline: snapshot collection,
// cross-tick delta computation, and the dispersion-gated greedy pCPU
// repinning scheduler (spec §4.2-§4.4).
package cpu

import "hyperbalance/internal/gateway"

// VCPUTable maps a domain UUID to its ordered vCPU info records for one
// tick (spec §3, "vCPU table").
type VCPUTable map[string][]gateway.VCPUInfo

// VCPUDatum is the scheduler's input record for one vCPU (spec §3, "vCPU
// datum"). ChosenPCPUIndex is filled in by Phase B and starts equal to
// CurrentPCPUIndex.
type VCPUDatum struct {
	VCPUIndex        int
	CurrentPCPUIndex int
	UUID             string
	Handle           *gateway.DomainHandle
	DeltaUsageNs     uint64
	ChosenPCPUIndex  int
}

// PCPUDatum is the aggregate per-pCPU record (spec §3, "pCPU datum").
type PCPUDatum struct {
	PCPUIndex          int
	SummedDeltaUsageNs uint64
	VCPUCount          int
}
