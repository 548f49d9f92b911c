package cpu

import "hyperbalance/internal/logx"

// ComputeDelta compares the current and previous vCPU tables and decides
// whether (and how much of) the current tick is comparable to the last one
// (spec §4.3). It is pure: same inputs yield the same outputs (testable
// property 6).
func ComputeDelta(current, previous VCPUTable, logger *logx.Logger) (comparable bool, skipSet map[string]struct{}) {
	skipSet = make(map[string]struct{})

	if len(current) == 0 || len(previous) == 0 {
		return false, skipSet
	}
	if len(current) != len(previous) {
		return false, skipSet
	}

	for uuid, curList := range current {
		prevList, ok := previous[uuid]
		if !ok {
			logger.Flag("new domain since previous tick, forcing whole-tick skip", "uuid", uuid)
			return false, make(map[string]struct{})
		}
		if len(curList) != len(prevList) {
			logger.Flag("vcpu count changed since previous tick", "uuid", uuid)
			skipSet[uuid] = struct{}{}
		}
	}

	if len(skipSet) > 0 {
		return false, skipSet
	}
	return true, skipSet
}
