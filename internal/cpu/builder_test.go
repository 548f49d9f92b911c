package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hyperbalance/internal/gateway"
)

func TestBuildDatumsClampsNegativeDelta(t *testing.T) {
	snap := &Snapshot{
		Table: VCPUTable{
			"a": {{VCPUIndex: 0, PinnedPCPUIndex: 1, CumulativeUsageNs: 50}},
		},
		Handles: map[string]*gateway.DomainHandle{"a": nil},
	}
	previous := VCPUTable{
		"a": {{VCPUIndex: 0, PinnedPCPUIndex: 1, CumulativeUsageNs: 500}},
	}

	datums := BuildDatums(snap, previous, map[string]struct{}{}, testLogger())
	assert.Len(t, datums, 1)
	assert.Zero(t, datums[0].DeltaUsageNs)
}

func TestBuildDatumsSkipsSkipSet(t *testing.T) {
	snap := &Snapshot{
		Table: VCPUTable{
			"a": {{VCPUIndex: 0, CumulativeUsageNs: 100}},
			"b": {{VCPUIndex: 0, CumulativeUsageNs: 100}},
		},
		Handles: map[string]*gateway.DomainHandle{"a": nil, "b": nil},
	}
	previous := VCPUTable{
		"a": {{VCPUIndex: 0, CumulativeUsageNs: 0}},
		"b": {{VCPUIndex: 0, CumulativeUsageNs: 0}},
	}

	datums := BuildDatums(snap, previous, map[string]struct{}{"b": {}}, testLogger())
	assert.Len(t, datums, 1)
	assert.Equal(t, "a", datums[0].UUID)
	_, stillPresent := snap.Handles["b"]
	assert.True(t, stillPresent, "skipped domain's handle must remain for the caller to release")
	_, consumed := snap.Handles["a"]
	assert.False(t, consumed, "included domain's handle ownership moves into the datum")
}

// Testable property 2: summed_delta_usage_ns per pCPU equals the sum of its
// vCPU datums' delta_usage_ns.
func TestAggregatePCPUsInvariant(t *testing.T) {
	datums := []VCPUDatum{
		{CurrentPCPUIndex: 0, DeltaUsageNs: 10},
		{CurrentPCPUIndex: 0, DeltaUsageNs: 20},
		{CurrentPCPUIndex: 1, DeltaUsageNs: 5},
	}
	pcpus := AggregatePCPUs(datums, 3)

	assert.Equal(t, uint64(30), pcpus[0].SummedDeltaUsageNs)
	assert.Equal(t, 2, pcpus[0].VCPUCount)
	assert.Equal(t, uint64(5), pcpus[1].SummedDeltaUsageNs)
	assert.Equal(t, 1, pcpus[1].VCPUCount)
	assert.Zero(t, pcpus[2].SummedDeltaUsageNs)
	assert.Zero(t, pcpus[2].VCPUCount)
}
