package memory

import (
	"context"

	"hyperbalance/internal/gateway"
	"hyperbalance/internal/logx"
)

// PipelineState is the memory daemon's cross-tick state (spec §9): the set
// of UUIDs already seen, used to decide which domains need their
// memory-stats collection period (re)programmed. The caller owns this
// value, not the Balancer Loop.
type PipelineState struct {
	SeenUUIDs map[string]struct{}
}

// RunTick drives one memory-daemon tick end to end (spec §4.5-§4.6):
// collect domain memory datums, run the supplier/demander scheduler, and
// commit through the gateway.
func RunTick(ctx context.Context, gw gateway.Gateway, state *PipelineState, intervalSeconds int, logger *logx.Logger) error {
	datums, nextSeen, err := Collect(ctx, gw, state.SeenUUIDs, intervalSeconds, logger)
	if err != nil {
		return err
	}
	state.SeenUUIDs = nextSeen

	systemMemoryLimit, err := gw.NodeTotalMemory(ctx)
	if err != nil {
		releaseDatumHandles(datums)
		return err
	}

	setMemory := func(d Datum, target uint64) error {
		return gw.DomainSetMemory(d.Handle, target)
	}

	result, err := Schedule(datums, systemMemoryLimit, setMemory, logger)
	releaseDatumHandles(datums)
	if err != nil {
		return err
	}

	if result.Reclaimed > 0 || result.Provisioned > 0 {
		logger.Status("memory schedule committed", "reclaimed", result.Reclaimed, "provisioned", result.Provisioned)
	}
	return nil
}

func releaseDatumHandles(datums []Datum) {
	for _, d := range datums {
		if d.Handle != nil {
			d.Handle.Release()
		}
	}
}
