// Package pipeline defines the error-severity taxonomy shared by both
// balancer pipelines (spec §7): Flag, Recoverable, Fatal-for-tick, and
// Fatal-for-process.
package pipeline

import "errors"

// FlagErr wraps a per-item anomaly: logged, the item is skipped, the tick
// continues.
type FlagErr struct{ err error }

func Flag(err error) *FlagErr { return &FlagErr{err: err} }
func (e *FlagErr) Error() string { return e.err.Error() }
func (e *FlagErr) Unwrap() error { return e.err }

// RecoverableErr invalidates the current tick but not the process; the
// caller increments consecutive_failures and retries next tick.
type RecoverableErr struct{ err error }

func Recoverable(err error) *RecoverableErr { return &RecoverableErr{err: err} }
func (e *RecoverableErr) Error() string { return e.err.Error() }
func (e *RecoverableErr) Unwrap() error { return e.err }

// FatalTickErr signals a data-corruption indicator. From the Balancer
// Loop's perspective it is accounted the same as RecoverableErr, but it
// aborts the tick immediately rather than letting later phases run.
type FatalTickErr struct{ err error }

func FatalTick(err error) *FatalTickErr { return &FatalTickErr{err: err} }
func (e *FatalTickErr) Error() string { return e.err.Error() }
func (e *FatalTickErr) Unwrap() error { return e.err }

// FatalProcessErr cannot be recovered from: invalid CLI, failure to open
// the hypervisor connection, or failure-budget exhaustion.
type FatalProcessErr struct{ err error }

func FatalProcess(err error) *FatalProcessErr { return &FatalProcessErr{err: err} }
func (e *FatalProcessErr) Error() string { return e.err.Error() }
func (e *FatalProcessErr) Unwrap() error { return e.err }

// Severity classifies err into one of the four kinds above. A plain error
// not wrapped in any of the sentinel types is treated as Recoverable, the
// default a pipeline stage falls back to when it hasn't opted into a more
// specific classification.
type Severity int

const (
	SeverityRecoverable Severity = iota
	SeverityFlag
	SeverityFatalTick
	SeverityFatalProcess
)

func Classify(err error) Severity {
	var flagErr *FlagErr
	var fatalTick *FatalTickErr
	var fatalProcess *FatalProcessErr
	switch {
	case errors.As(err, &flagErr):
		return SeverityFlag
	case errors.As(err, &fatalProcess):
		return SeverityFatalProcess
	case errors.As(err, &fatalTick):
		return SeverityFatalTick
	default:
		return SeverityRecoverable
	}
}

// Terminating reports whether err ends the current tick outright (spec §7's
// Recoverable, Fatal-for-tick, and Fatal-for-process all terminate the tick;
// only Flag does not).
func Terminating(err error) bool {
	return err != nil && Classify(err) != SeverityFlag
}
