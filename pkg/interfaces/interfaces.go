/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: interfaces.go
Description: Shared interfaces for the Akaylee Explorer. Defines the collaborator
contracts (transport, checks, case generation, variant sourcing, reporting) used
across all packages to break import cycles and enable proper modular design.
*/

package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
)

// ErrUnsatisfiable is reported by a CaseGenerator when it cannot construct
// a scenario under the current constraints. The engine treats it as
// transient when at least one scenario already completed.
var ErrUnsatisfiable = errors.New("generator could not satisfy scenario constraints")

// ErrInterrupted is returned when a stop signal aborts execution. It must
// propagate unchanged through every layer; deduplication never swallows it.
var ErrInterrupted = errors.New("exploration interrupted")

// TransportOptions carries the per-operation transport configuration.
// Computed once per operation per scenario run, not per step.
type TransportOptions struct {
	BaseURL         string
	Timeout         time.Duration
	FollowRedirects bool
	VerifySSL       bool
	Headers         map[string]string
}

// Transport executes one concrete case against the live service.
// Implementations classify their own errors via IsRetryable-style wrapping
// so the engine can distinguish recoverable from unrecoverable transport
// failures.
type Transport interface {
	Call(ctx context.Context, c *Case, opts *TransportOptions) (*Response, error)
}

// ValidationContext is the per-operation state shared by every check run
// against that operation within one scenario: the resolved schema
// operation, transport options, and the active check set. Invariant
// across steps targeting the same operation.
type ValidationContext struct {
	Operation *APIOperation
	Options   *TransportOptions
	Checks    []Check
}

// Check is one pure response assertion. Run returns nil on success or a
// Failure describing the violated expectation.
type Check interface {
	Name() string
	Run(c *Case, r *Response, vctx *ValidationContext) *Failure
}

// CaseGenerator is the randomized generation engine driving scenarios.
// It supplies one StepInput per step-hook invocation, controls how many
// steps a scenario contains, and owns re-randomization between attempts.
type CaseGenerator interface {
	// BeginSuite re-seeds the generator for a fresh suite attempt.
	BeginSuite(seed int64)
	// NextScenario prepares a new scenario; it returns false once the
	// suite's example budget is exhausted.
	NextScenario() bool
	// NextStep produces the next step of the current scenario given the
	// previous step's output (nil at scenario start). A nil StepInput
	// ends the scenario. ErrUnsatisfiable signals the generator could
	// not build a step.
	NextStep(prev *StepOutput) (*StepInput, error)
}

// VariantSource offers previously observed concrete values as alternative
// inputs for an operation's parameters.
type VariantSource interface {
	GetCapturedVariants(operation string, location ParameterLocation, schema *openapi3.Schema) []map[string]interface{}
}

// Reporter receives structured engine events for telemetry and live
// reporting. Implementations must be safe for sequential invocation from
// the scenario executing goroutine.
type Reporter interface {
	OnSuiteStarted(seed int64, attempt int)
	OnSuiteFinished(outcome SuiteOutcome, newFailures int)
	OnScenarioStarted(scenarioID string)
	OnScenarioFinished(scenarioID string, status ScenarioStatus)
	OnStepStarted(scenarioID string, input *StepInput)
	OnStepFinished(scenarioID string, output *StepOutput)
	OnFailure(f *Failure)
}

// ExplorerConfig is the engine-wide configuration, assembled by the CLI
// from flags and the viper config file.
type ExplorerConfig struct {
	SchemaLocation string
	BaseURL        string

	Workers         int
	StepCount       int
	MaxExamples     int
	Deadline        time.Duration
	Seed            int64
	MaxSuiteRetries int

	RequestTimeout  time.Duration
	FollowRedirects bool
	VerifySSL       bool
	Headers         map[string]string

	MaxVariants  int
	VariantDecay float64

	SuppressedChecks []string

	LogLevel string
	LogFile  string
	JSONLogs bool
}
