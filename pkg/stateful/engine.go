/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: engine.go
Description: Stateful execution engine. Drives scenarios produced by the generation
engine: evaluates transition expressions against parent responses, executes cases
through the transport, runs checks, deduplicates failures at suite/run granularity,
and retries whole suites with incremented seeds until one completes clean.
*/

package stateful

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
	"github.com/sirupsen/logrus"
)

// ResponseSink receives every successful response so observed resource
// instances can be offered as variants later.
type ResponseSink interface {
	CaptureResponse(operation string, c *interfaces.Case, r *interfaces.Response)
}

// retryableError is the classification contract transport errors satisfy.
type retryableError interface {
	error
	Retryable() bool
}

// EngineStats aggregates run-level counters for reporting.
type EngineStats struct {
	StartTime          time.Time
	SuitesRun          int
	ScenariosRun       int
	StepsExecuted      int
	StepErrors         int
	NewFailures        int
	ExtractionFailures int
	FlakySuites        int
}

// Engine implements the stateful exploration loop over one dependency
// graph. Collaborators are injected with the Set* methods before
// Initialize().
type Engine struct {
	config *interfaces.ExplorerConfig
	logger *logrus.Logger
	stats  *EngineStats

	graph      *interfaces.DependencyGraph
	operations map[string]*interfaces.APIOperation

	transport interfaces.Transport
	generator interfaces.CaseGenerator
	checks    []interfaces.Check
	sink      ResponseSink
	reporters []interfaces.Reporter

	failures    *FailureRegistry
	extractions *ExtractionFailureLog

	// Flaky detection: fingerprint of a deterministic case mapped to the
	// step status it produced the first time.
	outcomeMu sync.Mutex
	outcomes  map[string]interfaces.StepStatus

	stopOnce sync.Once
	stopCh   chan struct{}

	mu      sync.RWMutex
	running bool
}

// NewEngine creates an engine over a built dependency graph and the
// schema operations it was built from, keyed by "METHOD path" label.
func NewEngine(graph *interfaces.DependencyGraph, operations map[string]*interfaces.APIOperation) *Engine {
	return &Engine{
		logger:      logrus.New(),
		stats:       &EngineStats{},
		graph:       graph,
		operations:  operations,
		failures:    NewFailureRegistry(),
		extractions: NewExtractionFailureLog(),
		outcomes:    make(map[string]interfaces.StepStatus),
		stopCh:      make(chan struct{}),
	}
}

// SetLogger replaces the default logger.
func (e *Engine) SetLogger(logger *logrus.Logger) { e.logger = logger }

// SetTransport injects the HTTP transport collaborator.
func (e *Engine) SetTransport(t interfaces.Transport) { e.transport = t }

// SetGenerator injects the randomized case generation engine.
func (e *Engine) SetGenerator(g interfaces.CaseGenerator) { e.generator = g }

// SetChecks installs the configured response checks.
func (e *Engine) SetChecks(checks []interfaces.Check) { e.checks = checks }

// SetResponseSink installs the variant capture sink. Optional.
func (e *Engine) SetResponseSink(s ResponseSink) { e.sink = s }

// AddReporter registers a reporter for structured engine events.
func (e *Engine) AddReporter(r interfaces.Reporter) { e.reporters = append(e.reporters, r) }

// Initialize validates the injected collaborators against the
// configuration. Must be called after the Set* methods and before
// Explore.
func (e *Engine) Initialize(config *interfaces.ExplorerConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.transport == nil {
		return fmt.Errorf("transport not set - use SetTransport() before Initialize()")
	}
	if e.generator == nil {
		return fmt.Errorf("generator not set - use SetGenerator() before Initialize()")
	}
	e.config = config
	e.stats.StartTime = time.Now()
	return nil
}

// Stop signals the exploration loop to halt. Safe to call from any
// goroutine, any number of times.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

// Stats returns a snapshot of the run counters.
func (e *Engine) Stats() EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	stats := *e.stats
	stats.NewFailures = e.failures.RunFailureCount()
	stats.ExtractionFailures = len(e.extractions.All())
	return stats
}

// ExtractionFailures returns the deduplicated extraction diagnostics.
func (e *Engine) ExtractionFailures() []*interfaces.ExtractionFailure {
	return e.extractions.All()
}

// Explore runs suites until one completes with no new failures, the retry
// budget runs out, a fatal error occurs, or a stop arrives. The final
// suite outcome is returned alongside any fatal error.
func (e *Engine) Explore(ctx context.Context) (interfaces.SuiteOutcome, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return interfaces.SuiteFatalError, fmt.Errorf("engine already running")
	}
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	if e.config.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Deadline)
		defer cancel()
	}

	seed := e.config.Seed
	maxRetries := e.config.MaxSuiteRetries
	outcome := interfaces.SuiteSucceeded

	for attempt := 0; ; attempt++ {
		if e.stopped(ctx) {
			return interfaces.SuiteInterrupted, interfaces.ErrInterrupted
		}

		e.failures.BeginSuite()
		e.generator.BeginSuite(seed)
		for _, r := range e.reporters {
			r.OnSuiteStarted(seed, attempt)
		}

		var err error
		outcome, err = e.runSuite(ctx)
		e.mu.Lock()
		e.stats.SuitesRun++
		e.mu.Unlock()

		newFailures := e.failures.PromoteSuiteToRun()
		for _, r := range e.reporters {
			r.OnSuiteFinished(outcome, newFailures)
		}

		switch outcome {
		case interfaces.SuiteSucceeded:
			e.logger.WithFields(logrus.Fields{
				"seed":     seed,
				"attempts": attempt + 1,
			}).Info("exploration complete, no new failures")
			return outcome, nil
		case interfaces.SuiteInterrupted:
			return outcome, interfaces.ErrInterrupted
		case interfaces.SuiteFatalError:
			return outcome, err
		case interfaces.SuiteFlaky:
			e.mu.Lock()
			e.stats.FlakySuites++
			e.mu.Unlock()
		}

		if attempt >= maxRetries {
			e.logger.WithField("retries", attempt).Warn("suite retry budget exhausted")
			return outcome, nil
		}
		// Deterministic reseed so the retry suppresses known failures while
		// exploring a different path.
		seed++
		e.logger.WithFields(logrus.Fields{
			"outcome":      outcome.String(),
			"new_failures": newFailures,
			"next_seed":    seed,
		}).Info("retrying suite")
	}
}

// runSuite drives every scenario of one suite attempt and classifies the
// result.
func (e *Engine) runSuite(ctx context.Context) (interfaces.SuiteOutcome, error) {
	suiteFailed := false
	suiteFlaky := false
	completedScenarios := 0

	for e.generator.NextScenario() {
		if e.stopped(ctx) {
			return interfaces.SuiteInterrupted, interfaces.ErrInterrupted
		}

		status, err := e.runScenario(ctx)
		e.mu.Lock()
		e.stats.ScenariosRun++
		e.mu.Unlock()

		switch status {
		case interfaces.ScenarioInterrupted:
			return interfaces.SuiteInterrupted, interfaces.ErrInterrupted
		case interfaces.ScenarioErrored:
			if errors.Is(err, interfaces.ErrUnsatisfiable) {
				if completedScenarios > 0 {
					return interfaces.SuiteTransientUnsatisfiable, nil
				}
				return interfaces.SuiteFatalError, err
			}
			var flaky *flakyCaseError
			if errors.As(err, &flaky) {
				suiteFlaky = true
				completedScenarios++
				continue
			}
			return interfaces.SuiteFatalError, err
		case interfaces.ScenarioFailed:
			suiteFailed = true
		}
		completedScenarios++
	}

	switch {
	case suiteFlaky:
		return interfaces.SuiteFlaky, nil
	case suiteFailed:
		return interfaces.SuiteFailuresFound, nil
	default:
		return interfaces.SuiteSucceeded, nil
	}
}

// runScenario executes one scenario's steps strictly in sequence,
// feeding each step's output back to the generator.
func (e *Engine) runScenario(ctx context.Context) (interfaces.ScenarioStatus, error) {
	scenario := &scenarioState{
		recorder: NewScenarioRecorder(),
		contexts: make(map[string]*interfaces.ValidationContext),
	}
	e.mu.RLock()
	scenarioID := fmt.Sprintf("scenario-%d", e.stats.ScenariosRun)
	e.mu.RUnlock()
	for _, r := range e.reporters {
		r.OnScenarioStarted(scenarioID)
	}

	status := interfaces.ScenarioSucceeded
	var scenarioErr error
	var prev *interfaces.StepOutput
	for {
		input, err := e.generator.NextStep(prev)
		if err != nil {
			status, scenarioErr = interfaces.ScenarioErrored, err
			break
		}
		if input == nil {
			break
		}

		for _, r := range e.reporters {
			r.OnStepStarted(scenarioID, input)
		}
		output, err := e.step(ctx, scenario, input)
		if output != nil {
			for _, r := range e.reporters {
				r.OnStepFinished(scenarioID, output)
			}
		}
		if err != nil {
			if errors.Is(err, interfaces.ErrInterrupted) {
				status = interfaces.ScenarioInterrupted
				break
			}
			var group *interfaces.FailureGroup
			if errors.As(err, &group) {
				// New check failures: the scenario is failed but keeps
				// running so downstream bugs can still surface.
				status = interfaces.ScenarioFailed
				prev = output
				continue
			}
			status, scenarioErr = interfaces.ScenarioErrored, err
			break
		}
		prev = output
	}

	for _, r := range e.reporters {
		r.OnScenarioFinished(scenarioID, status)
	}
	return status, scenarioErr
}

// scenarioState bundles the per-scenario recorder with the per-operation
// validation context cache. Both live exactly as long as one scenario.
type scenarioState struct {
	recorder *ScenarioRecorder
	contexts map[string]*interfaces.ValidationContext
}

// step executes one case: evaluate its transition, call the transport, run
// checks, deduplicate. Returns a *FailureGroup error when new check
// failures surfaced, a flakyCaseError on nondeterministic behavior, or a
// fatal error.
func (e *Engine) step(ctx context.Context, scenario *scenarioState, input *interfaces.StepInput) (*interfaces.StepOutput, error) {
	if e.stopped(ctx) {
		return &interfaces.StepOutput{Case: input.Case, Status: interfaces.StepInterrupted}, interfaces.ErrInterrupted
	}

	c := input.Case
	parentID := ""
	if input.Transition != nil {
		parentID = input.Transition.ParentID
		e.applyTransition(scenario, c, input.Transition)
	}
	scenario.recorder.RecordCase(c, parentID)

	vctx := e.validationContext(scenario, c.Operation)
	response, err := e.transport.Call(ctx, c, vctx.Options)
	e.mu.Lock()
	e.stats.StepsExecuted++
	e.mu.Unlock()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, interfaces.ErrInterrupted) {
			return &interfaces.StepOutput{Case: c, Status: interfaces.StepInterrupted}, interfaces.ErrInterrupted
		}
		var classified retryableError
		if errors.As(err, &classified) && classified.Retryable() {
			e.mu.Lock()
			e.stats.StepErrors++
			e.mu.Unlock()
			e.logger.WithError(err).WithField("operation", c.Operation).Warn("retryable transport error")
			return &interfaces.StepOutput{Case: c, Status: interfaces.StepErrored}, nil
		}
		return nil, fmt.Errorf("unrecoverable transport error on %s (case %s): %w", c.Operation, c.ID, err)
	}
	scenario.recorder.RecordResponse(c.ID, response)

	if e.sink != nil {
		e.sink.CaptureResponse(c.Operation, c, response)
	}

	var newFailures []*interfaces.Failure
	anyFailed := false
	for _, check := range vctx.Checks {
		failure := check.Run(c, response, vctx)
		scenario.recorder.RecordCheck(c.ID, interfaces.CheckResult{
			Name:    check.Name(),
			Passed:  failure == nil,
			Failure: failure,
		})
		if failure == nil {
			continue
		}
		anyFailed = true
		if e.failures.Observe(failure) {
			newFailures = append(newFailures, failure)
			for _, r := range e.reporters {
				r.OnFailure(failure)
			}
		}
	}

	// Status reflects check outcomes whether or not the failures are new,
	// so a known bug rediscovered on a retry suite does not read as a
	// success flip in the flaky detector.
	status := interfaces.StepSucceeded
	if anyFailed {
		status = interfaces.StepFailed
	}
	output := &interfaces.StepOutput{Case: c, Response: response, Status: status}

	if flaky := e.recordOutcome(c, status); flaky != nil {
		return output, flaky
	}
	if len(newFailures) > 0 {
		return output, &interfaces.FailureGroup{Operation: c.Operation, Failures: newFailures}
	}
	return output, nil
}

// applyTransition evaluates the transition's link expressions against the
// parent step and binds the resolved values onto the case. Unresolved
// slots are omitted rather than aborting; declared links additionally file
// an extraction failure per unresolved slot.
func (e *Engine) applyTransition(scenario *scenarioState, c *interfaces.Case, t *interfaces.Transition) {
	parentCase := scenario.recorder.Case(t.ParentID)
	parentResponse := scenario.recorder.Response(t.ParentID)
	t.Parameters, t.RequestBody = EvaluateLink(t.Link, e.operations[c.Operation], parentCase, parentResponse)

	for location, slots := range t.Parameters {
		for name, param := range slots {
			if param.Kind != interfaces.Resolved {
				e.noteExtractionFailure(scenario, c, t, name, param)
				continue
			}
			value := fmt.Sprint(param.Value)
			switch location {
			case interfaces.LocationPath:
				setParam(&c.PathParams, name, value)
			case interfaces.LocationQuery:
				setParam(&c.Query, name, value)
			case interfaces.LocationHeader:
				setParam(&c.Headers, name, value)
			case interfaces.LocationCookie:
				setParam(&c.Cookies, name, value)
			}
		}
	}

	if len(t.RequestBody) == 0 {
		return
	}
	resolved := make(map[string]interface{})
	for field, param := range t.RequestBody {
		if param.Kind != interfaces.Resolved {
			e.noteExtractionFailure(scenario, c, t, field, param)
			continue
		}
		resolved[field] = param.Value
	}
	if len(resolved) == 0 {
		return
	}
	if t.Link.MergeBody {
		if existing, ok := c.Body.(map[string]interface{}); ok {
			for field, value := range resolved {
				existing[field] = value
			}
			return
		}
	}
	c.Body = resolved
}

// noteExtractionFailure files a diagnostic for an unresolved slot of a
// schema-declared link. Inferred links stay silent: their expressions are
// best-effort by construction.
func (e *Engine) noteExtractionFailure(scenario *scenarioState, c *interfaces.Case, t *interfaces.Transition, name string, param interfaces.ExtractedParam) {
	if t.Link.Inferred {
		return
	}
	failure := &interfaces.ExtractionFailure{
		ID:            t.Link.Name,
		CaseID:        c.ID,
		Source:        sourceOperation(scenario, t),
		Target:        c.Operation,
		ParameterName: name,
		Expression:    param.Definition,
		History:       scenario.recorder.History(t.ParentID),
		Response:      scenario.recorder.Response(t.ParentID),
		Err:           param.Err,
	}
	if e.extractions.Record(failure) {
		e.logger.WithFields(logrus.Fields{
			"link":      failure.ID,
			"source":    failure.Source,
			"target":    failure.Target,
			"parameter": name,
		}).Debug("extraction failure recorded")
	}
}

func sourceOperation(scenario *scenarioState, t *interfaces.Transition) string {
	if parent := scenario.recorder.Case(t.ParentID); parent != nil {
		return parent.Operation
	}
	return ""
}

// validationContext returns the per-operation context, computing it on
// first use within the scenario. Invariant across steps hitting the same
// operation.
func (e *Engine) validationContext(scenario *scenarioState, operation string) *interfaces.ValidationContext {
	if vctx, ok := scenario.contexts[operation]; ok {
		return vctx
	}
	vctx := &interfaces.ValidationContext{
		Operation: e.operations[operation],
		Options: &interfaces.TransportOptions{
			BaseURL:         e.config.BaseURL,
			Timeout:         e.config.RequestTimeout,
			FollowRedirects: e.config.FollowRedirects,
			VerifySSL:       e.config.VerifySSL,
			Headers:         e.config.Headers,
		},
		Checks: e.activeChecks(),
	}
	scenario.contexts[operation] = vctx
	return vctx
}

func (e *Engine) activeChecks() []interfaces.Check {
	if len(e.config.SuppressedChecks) == 0 {
		return e.checks
	}
	suppressed := make(map[string]bool, len(e.config.SuppressedChecks))
	for _, name := range e.config.SuppressedChecks {
		suppressed[name] = true
	}
	var active []interfaces.Check
	for _, check := range e.checks {
		if !suppressed[check.Name()] {
			active = append(active, check)
		}
	}
	return active
}

// recordOutcome tracks case fingerprints across the run; a case that
// flips between success and failure on re-execution is flaky.
func (e *Engine) recordOutcome(c *interfaces.Case, status interfaces.StepStatus) error {
	if status != interfaces.StepSucceeded && status != interfaces.StepFailed {
		return nil
	}
	fingerprint := c.Fingerprint()

	e.outcomeMu.Lock()
	defer e.outcomeMu.Unlock()
	previous, seen := e.outcomes[fingerprint]
	if !seen {
		e.outcomes[fingerprint] = status
		return nil
	}
	if previous == status {
		return nil
	}
	e.failures.MarkSeen(interfaces.FailureKey{
		Check:     "flaky_behavior",
		Operation: c.Operation,
		Message:   "identical case alternates between success and failure",
	})
	return &flakyCaseError{operation: c.Operation}
}

// flakyCaseError marks a scenario as nondeterministic rather than failed.
type flakyCaseError struct {
	operation string
}

func (f *flakyCaseError) Error() string {
	return fmt.Sprintf("nondeterministic behavior on %s", f.operation)
}

func setParam(target *map[string]string, name, value string) {
	if *target == nil {
		*target = make(map[string]string)
	}
	(*target)[name] = value
}

func (e *Engine) stopped(ctx context.Context) bool {
	select {
	case <-e.stopCh:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
