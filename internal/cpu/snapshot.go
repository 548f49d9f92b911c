package cpu

import (
	"context"

	"hyperbalance/internal/gateway"
	"hyperbalance/internal/logx"
)

// Snapshot is one tick's collected vCPU state: the table handed to the
// Delta Computer, plus the live handles the scheduler's commit phase will
// need, keyed the same way.
type Snapshot struct {
	Table   VCPUTable
	Handles map[string]*gateway.DomainHandle
}

// Collect builds a Snapshot over every active, running domain (spec §4.2).
// Domains with vcpu_max < 1 are logged and skipped, not an error. Domains
// whose vCPU info read fails still get a (possibly empty) table entry so
// the Delta Computer can see the inconsistency; their handle is still kept
// so the rest of the pipeline has something to release.
func Collect(ctx context.Context, gw gateway.Gateway, logger *logx.Logger) (*Snapshot, error) {
	handles, err := gw.ListActiveRunningDomains(ctx)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Table:   make(VCPUTable, len(handles)),
		Handles: make(map[string]*gateway.DomainHandle, len(handles)),
	}

	for _, h := range handles {
		uuid, err := gw.DomainUUID(h)
		if err != nil {
			logger.Flag("domain uuid unavailable, skipping", "error", err)
			h.Release()
			continue
		}

		vcpuMax, err := gw.DomainVCPUMax(h)
		if err != nil || vcpuMax < 1 {
			logger.Flag("domain has fewer than one vcpu, skipping", "uuid", uuid, "error", err)
			h.Release()
			continue
		}

		infos, err := gw.DomainVCPUInfo(h, vcpuMax)
		if err != nil {
			logger.Flag("vcpu info read failed, keeping best-effort entry", "uuid", uuid, "error", err)
		}

		snap.Table[uuid] = infos
		snap.Handles[uuid] = h
	}

	return snap, nil
}

// ReleaseUnused releases any handle in snap that was not consumed by a
// VCPUDatum (e.g. a domain excluded by the Delta Computer's skip set).
func (s *Snapshot) ReleaseUnused() {
	for _, h := range s.Handles {
		h.Release()
	}
	s.Handles = nil
}
