package gateway

import (
	"context"
	"fmt"

	golibvirt "github.com/digitalocean/go-libvirt"
	"github.com/google/uuid"

	"hyperbalance/internal/logx"
)

// domainsActiveRunningFlag filters ConnectListAllDomains to domains that
// are both active and running, per spec §6.2.
const domainsActiveRunningFlag = golibvirt.ConnectListDomainsActive | golibvirt.ConnectListDomainsRunning

// libvirtGateway is the real Gateway implementation, talking to the
// hypervisor over the go-libvirt RPC client.
type libvirtGateway struct {
	conn     *connManager
	logger   *logx.Logger
	registry *handleRegistry
}

// NewLibvirtGateway builds a Gateway connecting to uri (spec §6.2: normally
// "qemu:///system").
func NewLibvirtGateway(uri string, logger *logx.Logger) Gateway {
	return &libvirtGateway{
		conn:     newConnManager(uri, logger),
		logger:   logger,
		registry: newHandleRegistry(),
	}
}

func (g *libvirtGateway) Open(ctx context.Context) error {
	return wrap("open", g.conn.connect(ctx))
}

func (g *libvirtGateway) Close() error {
	return wrap("close", g.conn.close())
}

func (g *libvirtGateway) ListActiveRunningDomains(ctx context.Context) ([]*DomainHandle, error) {
	client, err := g.conn.getClient(ctx)
	if err != nil {
		return nil, wrap("list_active_running_domains", err)
	}
	doms, _, err := client.ConnectListAllDomains(0, domainsActiveRunningFlag)
	if err != nil {
		return nil, wrap("list_active_running_domains", err)
	}
	handles := make([]*DomainHandle, 0, len(doms))
	for _, d := range doms {
		h := &DomainHandle{dom: d, registry: g.registry}
		if u, uerr := uuidString(d.UUID); uerr == nil {
			h.uuid = u
			if err := g.registry.track(u); err != nil {
				g.logger.Flag("duplicate live domain handle", "uuid", u, "error", err)
			}
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func (g *libvirtGateway) DomainUUID(h *DomainHandle) (string, error) {
	if h.uuid != "" {
		return h.uuid, nil
	}
	u, err := uuidString(h.dom.UUID)
	if err != nil {
		return "", wrap("domain_uuid", err)
	}
	h.uuid = u
	return u, nil
}

func (g *libvirtGateway) DomainVCPUMax(h *DomainHandle) (int, error) {
	client, err := g.conn.getClient(context.Background())
	if err != nil {
		return 0, wrap("domain_vcpu_max", err)
	}
	max, err := client.DomainGetMaxVcpus(h.dom)
	if err != nil {
		return 0, wrap("domain_vcpu_max", err)
	}
	if max < 1 {
		return 0, wrap("domain_vcpu_max", fmt.Errorf("domain reports %d vcpus", max))
	}
	return int(max), nil
}

func (g *libvirtGateway) DomainVCPUInfo(h *DomainHandle, n int) ([]VCPUInfo, error) {
	client, err := g.conn.getClient(context.Background())
	if err != nil {
		return nil, wrap("domain_vcpu_info", err)
	}
	pcpuTotal, err := g.NodePCPUCount(context.Background())
	if err != nil {
		return nil, wrap("domain_vcpu_info", err)
	}
	maplen := (pcpuTotal + 7) / 8
	infos, _, err := client.DomainGetVcpus(h.dom, int32(n), int32(maplen))
	if err != nil {
		return nil, wrap("domain_vcpu_info", err)
	}
	records := make([]VCPUInfo, 0, len(infos))
	for _, info := range infos {
		records = append(records, VCPUInfo{
			VCPUIndex:         int(info.Number),
			PinnedPCPUIndex:   int(info.CPU),
			CumulativeUsageNs: info.CPUTime,
		})
	}
	return records, nil
}

func (g *libvirtGateway) DomainPinVCPU(h *DomainHandle, vcpuIndex, pcpuIndex, pcpuTotal int) error {
	client, err := g.conn.getClient(context.Background())
	if err != nil {
		return wrap("domain_pin_vcpu", err)
	}
	bitmap, err := EncodePin(pcpuIndex, pcpuTotal)
	if err != nil {
		return wrap("domain_pin_vcpu", err)
	}
	if err := client.DomainPinVcpu(h.dom, uint32(vcpuIndex), bitmap); err != nil {
		return wrap("domain_pin_vcpu", err)
	}
	return nil
}

func (g *libvirtGateway) NodePCPUCount(ctx context.Context) (int, error) {
	client, err := g.conn.getClient(ctx)
	if err != nil {
		return 0, wrap("node_pcpu_count", err)
	}
	_, _, cpus, _, _, _, _, _, err := client.NodeGetInfo()
	if err != nil {
		return 0, wrap("node_pcpu_count", err)
	}
	if cpus < 1 {
		return 0, wrap("node_pcpu_count", fmt.Errorf("node reports %d cpus", cpus))
	}
	return int(cpus), nil
}

// nodeMemoryStatsTotalTag is the field identifier for total node memory in
// the NodeGetMemoryStats reply (KiB), per original_source's memory-balancer
// hardware read — SPEC_FULL.md §C.
const nodeMemoryStatsTotalTag = "total"

func (g *libvirtGateway) NodeTotalMemory(ctx context.Context) (uint64, error) {
	client, err := g.conn.getClient(ctx)
	if err != nil {
		return 0, wrap("node_total_memory", err)
	}
	stats, _, err := client.NodeGetMemoryStats(0, -1, 0)
	if err != nil {
		return 0, wrap("node_total_memory", err)
	}
	for _, s := range stats {
		if s.Field == nodeMemoryStatsTotalTag {
			return s.Value * 1024, nil
		}
	}
	return 0, wrap("node_total_memory", fmt.Errorf("%q field not present in node memory stats", nodeMemoryStatsTotalTag))
}

func (g *libvirtGateway) DomainInfo(h *DomainHandle) (uint64, int, error) {
	client, err := g.conn.getClient(context.Background())
	if err != nil {
		return 0, 0, wrap("domain_info", err)
	}
	_, maxMem, _, nrVirtCpu, _, err := client.DomainGetInfo(h.dom)
	if err != nil {
		return 0, 0, wrap("domain_info", err)
	}
	return maxMem * 1024, int(nrVirtCpu), nil
}

func (g *libvirtGateway) DomainMemoryStats(h *DomainHandle) ([]MemoryStat, error) {
	client, err := g.conn.getClient(context.Background())
	if err != nil {
		return nil, wrap("domain_memory_stats", err)
	}
	const maxStats = 8
	raw, err := client.DomainMemoryStats(h.dom, maxStats, 0)
	if err != nil {
		return nil, wrap("domain_memory_stats", err)
	}
	stats := make([]MemoryStat, 0, len(raw))
	for _, s := range raw {
		stats = append(stats, MemoryStat{Tag: memoryStatTagName(s.Tag), Value: s.Val})
	}
	return stats, nil
}

func (g *libvirtGateway) DomainSetMemoryStatsPeriod(h *DomainHandle, seconds int) error {
	if seconds < 1 {
		return wrap("domain_set_memory_stats_period", fmt.Errorf("seconds must be >= 1, got %d", seconds))
	}
	client, err := g.conn.getClient(context.Background())
	if err != nil {
		return wrap("domain_set_memory_stats_period", err)
	}
	if err := client.DomainSetMemoryStatsPeriod(h.dom, int32(seconds), golibvirt.DomainMemoryModFlags(golibvirt.DomainAffectCurrent)); err != nil {
		return wrap("domain_set_memory_stats_period", err)
	}
	return nil
}

func (g *libvirtGateway) DomainSetMemory(h *DomainHandle, bytes uint64) error {
	client, err := g.conn.getClient(context.Background())
	if err != nil {
		return wrap("domain_set_memory", err)
	}
	if err := client.DomainSetMemoryFlags(h.dom, bytes/1024, uint32(golibvirt.DomainAffectCurrent)); err != nil {
		return wrap("domain_set_memory", err)
	}
	return nil
}

func uuidString(raw golibvirt.UUID) (string, error) {
	id, err := uuid.FromBytes(raw[:])
	if err != nil {
		return "", fmt.Errorf("parse domain uuid: %w", err)
	}
	return id.String(), nil
}

// memoryStatTagName maps the libvirt numeric memory-stat tag to the names
// spec §6.2 cares about; any other tag is returned as its numeric string
// and ignored by callers.
func memoryStatTagName(tag int32) string {
	switch tag {
	case int32(golibvirt.DomainMemoryStatActualBalloon):
		return MemoryStatActualBalloon
	case int32(golibvirt.DomainMemoryStatUnused):
		return MemoryStatUnused
	default:
		return fmt.Sprintf("TAG_%d", tag)
	}
}
