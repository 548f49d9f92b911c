// Package memory implements the memory balancer's pipeline: snapshot
// collection with memory-stats-period bookkeeping, and the
// supplier/demander redistribution scheduler (spec §4.5-§4.6).
package memory

import "hyperbalance/internal/gateway"

// Constants from spec §4.6.
const (
	MinimumSystemMemory = 200 * 1024
	MinimumDomainMemory = 100 * 1024
	SupplyCoefficient   = 0.115
	DemandCoefficient   = 0.085
	ChangeCoefficient   = 0.200
)

// Step is the quantum of adjustment per tick.
const Step = float64(MinimumDomainMemory) * ChangeCoefficient

// Datum is the domain memory datum of spec §3.
type Datum struct {
	UUID                  string
	Handle                *gateway.DomainHandle
	VCPUCount             int
	BalloonAllocatedBytes uint64
	UnusedBytes           uint64
	MemoryLimitBytes      uint64
	ProposedDeltaBytes    float64
}

// Class is the Phase A classification of a Datum.
type Class int

const (
	Neither Class = iota
	Supplier
	Demander
)
