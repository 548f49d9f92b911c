package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	base := errors.New("boom")
	assert.Equal(t, SeverityFlag, Classify(Flag(base)))
	assert.Equal(t, SeverityRecoverable, Classify(Recoverable(base)))
	assert.Equal(t, SeverityFatalTick, Classify(FatalTick(base)))
	assert.Equal(t, SeverityFatalProcess, Classify(FatalProcess(base)))
	assert.Equal(t, SeverityRecoverable, Classify(base))
}

func TestTerminating(t *testing.T) {
	base := errors.New("boom")
	assert.False(t, Terminating(nil))
	assert.False(t, Terminating(Flag(base)))
	assert.True(t, Terminating(Recoverable(base)))
	assert.True(t, Terminating(FatalTick(base)))
	assert.True(t, Terminating(FatalProcess(base)))
}
