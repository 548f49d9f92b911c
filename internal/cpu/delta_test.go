package cpu

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"hyperbalance/internal/gateway"
	"hyperbalance/internal/logx"
)

func testLogger() *logx.Logger {
	return logx.New(&bytes.Buffer{}, &bytes.Buffer{})
}

func vcpus(n int) []gateway.VCPUInfo {
	out := make([]gateway.VCPUInfo, n)
	for i := range out {
		out[i] = gateway.VCPUInfo{VCPUIndex: i}
	}
	return out
}

func TestComputeDeltaEmptyTable(t *testing.T) {
	comparable, skip := ComputeDelta(VCPUTable{}, VCPUTable{"a": vcpus(2)}, testLogger())
	assert.False(t, comparable)
	assert.Empty(t, skip)
}

func TestComputeDeltaCardinalityMismatch(t *testing.T) {
	current := VCPUTable{"a": vcpus(2)}
	previous := VCPUTable{"a": vcpus(2), "b": vcpus(2)}
	comparable, skip := ComputeDelta(current, previous, testLogger())
	assert.False(t, comparable)
	assert.Empty(t, skip)
}

func TestComputeDeltaNewDomainForcesWholeSkip(t *testing.T) {
	current := VCPUTable{"a": vcpus(2), "b": vcpus(2)}
	previous := VCPUTable{"a": vcpus(2), "c": vcpus(2)}
	comparable, skip := ComputeDelta(current, previous, testLogger())
	assert.False(t, comparable)
	assert.Empty(t, skip)
}

func TestComputeDeltaLengthMismatchAddsToSkipSet(t *testing.T) {
	current := VCPUTable{"a": vcpus(2), "b": vcpus(3)}
	previous := VCPUTable{"a": vcpus(2), "b": vcpus(2)}
	comparable, skip := ComputeDelta(current, previous, testLogger())
	assert.False(t, comparable)
	assert.Equal(t, map[string]struct{}{"b": {}}, skip)
}

func TestComputeDeltaAllComparable(t *testing.T) {
	current := VCPUTable{"a": vcpus(2), "b": vcpus(3)}
	previous := VCPUTable{"a": vcpus(2), "b": vcpus(3)}
	comparable, skip := ComputeDelta(current, previous, testLogger())
	assert.True(t, comparable)
	assert.Empty(t, skip)
}

func TestComputeDeltaIsPure(t *testing.T) {
	current := VCPUTable{"a": vcpus(2), "b": vcpus(3)}
	previous := VCPUTable{"a": vcpus(2), "b": vcpus(2)}
	c1, s1 := ComputeDelta(current, previous, testLogger())
	c2, s2 := ComputeDelta(current, previous, testLogger())
	assert.Equal(t, c1, c2)
	assert.Equal(t, s1, s2)
}
