package cpu

import "container/heap"

// pcpuSelector picks the "best" predicted pCPU for the next vCPU in Phase
// B's greedy assignment (spec §4.4) and records the assignment. Two
// implementations exist — linear scan and min-heap — and spec §9 requires
// them to produce identical assignments given identical tie-break rules;
// TestSelectorsAgree in selector_test.go pins this down.
type pcpuSelector interface {
	// Best returns the pcpu_index of the current best candidate.
	Best() int
	// Assign records that a vCPU with deltaUsageNs was just pinned to
	// pcpuIndex, updating that pCPU's predicted totals.
	Assign(pcpuIndex int, deltaUsageNs uint64)
}

// CPUHeapThreshold is the pcpu_count above which the min-heap selector is
// used instead of linear scan (spec §4.4).
const CPUHeapThreshold = 1024

// newSelector picks the linear or heap implementation per spec §4.4's
// "Data structure choice", operating in place on predicted.
func newSelector(predicted []PCPUDatum) pcpuSelector {
	if len(predicted) > CPUHeapThreshold {
		return newHeapSelector(predicted)
	}
	return &linearSelector{predicted: predicted}
}

// less implements the Phase B tie-break: smallest summed_delta_usage_ns,
// then smallest vcpu_count, then lowest pcpu_index.
func less(a, b PCPUDatum) bool {
	if a.SummedDeltaUsageNs != b.SummedDeltaUsageNs {
		return a.SummedDeltaUsageNs < b.SummedDeltaUsageNs
	}
	if a.VCPUCount != b.VCPUCount {
		return a.VCPUCount < b.VCPUCount
	}
	return a.PCPUIndex < b.PCPUIndex
}

type linearSelector struct {
	predicted []PCPUDatum
}

func (s *linearSelector) Best() int {
	best := 0
	for i := 1; i < len(s.predicted); i++ {
		if less(s.predicted[i], s.predicted[best]) {
			best = i
		}
	}
	return s.predicted[best].PCPUIndex
}

func (s *linearSelector) Assign(pcpuIndex int, deltaUsageNs uint64) {
	for i := range s.predicted {
		if s.predicted[i].PCPUIndex == pcpuIndex {
			s.predicted[i].SummedDeltaUsageNs += deltaUsageNs
			s.predicted[i].VCPUCount++
			return
		}
	}
}

// heapSelector maintains predicted as a min-heap ordered by less(), with a
// pcpuIndex -> heap slot map so Assign can find and fix the right element
// in O(log n) instead of O(n).
type heapSelector struct {
	h *pcpuMinHeap
}

func newHeapSelector(predicted []PCPUDatum) *heapSelector {
	h := &pcpuMinHeap{items: predicted, slot: make(map[int]int, len(predicted))}
	for i, p := range h.items {
		h.slot[p.PCPUIndex] = i
	}
	heap.Init(h)
	return &heapSelector{h: h}
}

func (s *heapSelector) Best() int {
	return s.h.items[0].PCPUIndex
}

func (s *heapSelector) Assign(pcpuIndex int, deltaUsageNs uint64) {
	i := s.h.slot[pcpuIndex]
	s.h.items[i].SummedDeltaUsageNs += deltaUsageNs
	s.h.items[i].VCPUCount++
	heap.Fix(s.h, i)
}

type pcpuMinHeap struct {
	items []PCPUDatum
	slot  map[int]int
}

func (h *pcpuMinHeap) Len() int            { return len(h.items) }
func (h *pcpuMinHeap) Less(i, j int) bool  { return less(h.items[i], h.items[j]) }
func (h *pcpuMinHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.slot[h.items[i].PCPUIndex] = i
	h.slot[h.items[j].PCPUIndex] = j
}
func (h *pcpuMinHeap) Push(x any) { panic("pcpuMinHeap is fixed-size, Push unsupported") }
func (h *pcpuMinHeap) Pop() any   { panic("pcpuMinHeap is fixed-size, Pop unsupported") }
