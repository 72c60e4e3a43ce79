/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: state.go
Description: State machine vocabulary for the stateful execution engine. Defines
the per-step, per-scenario, and per-suite statuses plus the typed suite outcome
that drives the retry loop, replacing exception-based control flow.
*/

package interfaces

// StepStatus is the terminal state of one executed step.
type StepStatus int

const (
	// StepSucceeded means the call completed and every check passed.
	StepSucceeded StepStatus = iota
	// StepFailed means at least one check failed.
	StepFailed
	// StepErrored means a recoverable transport error occurred; the
	// scenario may continue exploring.
	StepErrored
	// StepInterrupted means a stop signal unwound the step.
	StepInterrupted
)

// String returns a stable name for logs and events.
func (s StepStatus) String() string {
	switch s {
	case StepSucceeded:
		return "succeeded"
	case StepFailed:
		return "failed"
	case StepErrored:
		return "errored"
	case StepInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// ScenarioStatus is the terminal state of one scenario.
type ScenarioStatus int

const (
	ScenarioSucceeded ScenarioStatus = iota
	ScenarioFailed
	ScenarioErrored
	ScenarioInterrupted
)

// String returns a stable name for logs and events.
func (s ScenarioStatus) String() string {
	switch s {
	case ScenarioSucceeded:
		return "succeeded"
	case ScenarioFailed:
		return "failed"
	case ScenarioErrored:
		return "errored"
	case ScenarioInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// SuiteOutcome is the typed result of one full scenario-generation run.
// The engine's outer loop branches on this enum instead of catching
// generator-specific error types.
type SuiteOutcome int

const (
	// SuiteSucceeded means the suite completed with no new failures;
	// exploration of this schema is done.
	SuiteSucceeded SuiteOutcome = iota
	// SuiteFailuresFound means new failures surfaced; the suite is
	// retried with an incremented seed and those failures suppressed.
	SuiteFailuresFound
	// SuiteFlaky means a deterministic case alternated between success
	// and failure across re-executions. Treated as a discovered but
	// unreliable failure; exploration continues.
	SuiteFlaky
	// SuiteTransientUnsatisfiable means the generator reported
	// unsatisfiable constraints while at least one scenario completed;
	// retried within the example budget.
	SuiteTransientUnsatisfiable
	// SuiteFatalError means an unhandled error ended the suite; fatal
	// for this schema's exploration, not for the process.
	SuiteFatalError
	// SuiteInterrupted means a stop signal ended the suite.
	SuiteInterrupted
)

// String returns a stable name for logs and events.
func (o SuiteOutcome) String() string {
	switch o {
	case SuiteSucceeded:
		return "succeeded"
	case SuiteFailuresFound:
		return "failures-found"
	case SuiteFlaky:
		return "flaky"
	case SuiteTransientUnsatisfiable:
		return "transient-unsatisfiable"
	case SuiteFatalError:
		return "fatal-error"
	case SuiteInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}
