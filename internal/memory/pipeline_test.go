package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hyperbalance/internal/gateway"
	"hyperbalance/internal/logx"
)

// balloonBytes/unusedBytes are the desired Datum-level byte amounts; the
// fake converts to the KiB units domain_memory_stats actually reports
// (extractTags in snapshot.go multiplies raw stat values by 1024 to get bytes).
type fakeMemDomain struct {
	uuid                       string
	memoryLimitBytes           uint64
	vcpuCount                  int
	balloonBytes, unusedBytes uint64
}

type fakeMemGateway struct {
	domains        []fakeMemDomain
	systemMemory   uint64
	handleUUID     map[*gateway.DomainHandle]string
	periodsSet     map[string]int
	memoryCommits  map[string]uint64
}

func newFakeMemGateway(systemMemory uint64, domains ...fakeMemDomain) *fakeMemGateway {
	return &fakeMemGateway{
		domains:       domains,
		systemMemory:  systemMemory,
		handleUUID:    map[*gateway.DomainHandle]string{},
		periodsSet:    map[string]int{},
		memoryCommits: map[string]uint64{},
	}
}

func (g *fakeMemGateway) Open(ctx context.Context) error { return nil }
func (g *fakeMemGateway) Close() error                     { return nil }

func (g *fakeMemGateway) ListActiveRunningDomains(ctx context.Context) ([]*gateway.DomainHandle, error) {
	out := make([]*gateway.DomainHandle, 0, len(g.domains))
	for _, d := range g.domains {
		h := new(gateway.DomainHandle)
		g.handleUUID[h] = d.uuid
		out = append(out, h)
	}
	return out, nil
}

func (g *fakeMemGateway) DomainUUID(h *gateway.DomainHandle) (string, error) { return g.handleUUID[h], nil }

func (g *fakeMemGateway) domainByHandle(h *gateway.DomainHandle) fakeMemDomain {
	uuid := g.handleUUID[h]
	for _, d := range g.domains {
		if d.uuid == uuid {
			return d
		}
	}
	return fakeMemDomain{}
}

func (g *fakeMemGateway) DomainVCPUMax(h *gateway.DomainHandle) (int, error) { return 1, nil }
func (g *fakeMemGateway) DomainVCPUInfo(h *gateway.DomainHandle, n int) ([]gateway.VCPUInfo, error) {
	return nil, nil
}
func (g *fakeMemGateway) DomainPinVCPU(h *gateway.DomainHandle, vcpuIndex, pcpuIndex, pcpuTotal int) error {
	return nil
}

func (g *fakeMemGateway) NodePCPUCount(ctx context.Context) (int, error)      { return 1, nil }
func (g *fakeMemGateway) NodeTotalMemory(ctx context.Context) (uint64, error) { return g.systemMemory, nil }

func (g *fakeMemGateway) DomainInfo(h *gateway.DomainHandle) (uint64, int, error) {
	d := g.domainByHandle(h)
	return d.memoryLimitBytes, d.vcpuCount, nil
}

func (g *fakeMemGateway) DomainMemoryStats(h *gateway.DomainHandle) ([]gateway.MemoryStat, error) {
	d := g.domainByHandle(h)
	return []gateway.MemoryStat{
		{Tag: gateway.MemoryStatActualBalloon, Value: d.balloonBytes / 1024},
		{Tag: gateway.MemoryStatUnused, Value: d.unusedBytes / 1024},
	}, nil
}

func (g *fakeMemGateway) DomainSetMemoryStatsPeriod(h *gateway.DomainHandle, seconds int) error {
	g.periodsSet[g.handleUUID[h]] = seconds
	return nil
}

func (g *fakeMemGateway) DomainSetMemory(h *gateway.DomainHandle, bytes uint64) error {
	g.memoryCommits[g.handleUUID[h]] = bytes
	return nil
}

func pipelineTestLogger() *logx.Logger {
	return logx.New(&bytes.Buffer{}, &bytes.Buffer{})
}

// MEM-1 driven end to end through RunTick: a supplier is reclaimed from, a
// demander provisioned, and the domain between thresholds left alone. The
// first tick also programs the memory-stats period for every domain since
// none have been seen before.
func TestRunTickClassifiesAndProgramsPeriodOnFirstSight(t *testing.T) {
	const mib = 1024 * 1024
	const gib = 1024 * mib
	gw := newFakeMemGateway(10*gib,
		fakeMemDomain{uuid: "x", memoryLimitBytes: gib, vcpuCount: 1, balloonBytes: 100 * mib, unusedBytes: 200 * mib},
		fakeMemDomain{uuid: "y", memoryLimitBytes: gib, vcpuCount: 1, balloonBytes: 100 * mib, unusedBytes: 50 * mib},
		fakeMemDomain{uuid: "z", memoryLimitBytes: gib, vcpuCount: 1, balloonBytes: 100 * mib, unusedBytes: 100 * mib},
	)
	state := &PipelineState{}

	err := RunTick(context.Background(), gw, state, 5, pipelineTestLogger())
	require.NoError(t, err)

	_, committedX := gw.memoryCommits["x"]
	_, committedY := gw.memoryCommits["y"]
	_, committedZ := gw.memoryCommits["z"]
	assert.True(t, committedX)
	assert.True(t, committedY)
	assert.False(t, committedZ)

	assert.Equal(t, 5, gw.periodsSet["x"])
	assert.Equal(t, 5, gw.periodsSet["y"])
	require.Contains(t, state.SeenUUIDs, "x")
}

// Domains already in SeenUUIDs are not reprogrammed on a later tick.
func TestRunTickDoesNotReprogramAlreadySeenDomain(t *testing.T) {
	gw := newFakeMemGateway(10*1024*1024*1024,
		fakeMemDomain{uuid: "x", memoryLimitBytes: 1024 * 1024 * 1024, vcpuCount: 1, balloonBytes: 100 * 1024 * 1024, unusedBytes: 100 * 1024 * 1024},
	)
	state := &PipelineState{SeenUUIDs: map[string]struct{}{"x": {}}}

	require.NoError(t, RunTick(context.Background(), gw, state, 5, pipelineTestLogger()))
	assert.Zero(t, gw.periodsSet["x"])
}
