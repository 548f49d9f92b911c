package cpu

import (
	"context"

	"hyperbalance/internal/gateway"
	"hyperbalance/internal/logx"
)

// PipelineState is the CPU daemon's cross-tick state (spec §9): the
// previous tick's vCPU table. nil means no previous tick has completed yet.
// The caller owns this value — typically a local variable in the daemon's
// main, passed by pointer into RunTick — rather than the Balancer Loop.
type PipelineState struct {
	Previous VCPUTable
}

// RunTick drives one CPU-daemon tick end to end (spec §4.2-§4.4, §4.7 step
// 3): collect the current snapshot, compute the delta against
// state.Previous, build and schedule over the comparable domains, commit
// pins, and advance state.Previous for the next tick. It is shaped to be
// passed as a daemon.TickFunc once its ctx/tickNum arguments are bound in a
// closure by the caller.
func RunTick(ctx context.Context, gw gateway.Gateway, state *PipelineState, logger *logx.Logger) error {
	snap, err := Collect(ctx, gw, logger)
	if err != nil {
		return err
	}

	pcpuTotal, err := gw.NodePCPUCount(ctx)
	if err != nil {
		snap.ReleaseUnused()
		return err
	}

	if state.Previous == nil {
		logger.Status("first tick, storing baseline snapshot", "domains", len(snap.Table))
		snap.ReleaseUnused()
		state.Previous = snap.Table
		return nil
	}

	comparable, skipSet := ComputeDelta(snap.Table, state.Previous, logger)
	if !comparable && len(skipSet) == 0 {
		logger.Flag("tick not comparable to previous, skipping scheduler", "domains", len(snap.Table))
		snap.ReleaseUnused()
		state.Previous = snap.Table
		return nil
	}

	previous := state.Previous
	datums := BuildDatums(snap, previous, skipSet, logger)
	snap.ReleaseUnused()
	state.Previous = snap.Table

	if len(datums) == 0 {
		logger.Flag("no comparable vcpu datums this tick", "skipped", len(skipSet))
		return nil
	}

	pcpus := AggregatePCPUs(datums, pcpuTotal)

	pin := func(d VCPUDatum, total int) error {
		return gw.DomainPinVCPU(d.Handle, d.VCPUIndex, d.ChosenPCPUIndex, total)
	}

	result, err := Schedule(datums, pcpus, pcpuTotal, pin, logger)
	releaseDatumHandles(datums)
	if err != nil {
		return err
	}
	if result.Committed {
		logger.Status("cpu schedule committed", "pins_issued", result.PinsIssued, "predicted_dispersion", result.PredictedDisp)
	}
	return nil
}

// releaseDatumHandles returns ownership of every datum's handle at the end
// of the tick, once the scheduler's commit phase no longer needs it.
func releaseDatumHandles(datums []VCPUDatum) {
	for _, d := range datums {
		if d.Handle != nil {
			d.Handle.Release()
		}
	}
}
