/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: reporter.go
Description: Logging-backed reporter for engine events. Translates the structured
suite/scenario/step callbacks into the explorer's log stream.
*/

package logging

import (
	"github.com/kleascm/akaylee-explorer/pkg/interfaces"
)

// LogReporter implements interfaces.Reporter on top of the explorer
// logger.
type LogReporter struct {
	logger *Logger
}

// NewLogReporter creates a reporter writing to the given logger.
func NewLogReporter(logger *Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

// OnSuiteStarted implements interfaces.Reporter.
func (r *LogReporter) OnSuiteStarted(seed int64, attempt int) {
	r.logger.Info("Suite started", map[string]interface{}{
		"seed":    seed,
		"attempt": attempt,
	})
}

// OnSuiteFinished implements interfaces.Reporter.
func (r *LogReporter) OnSuiteFinished(outcome interfaces.SuiteOutcome, newFailures int) {
	r.logger.Info("Suite finished", map[string]interface{}{
		"outcome":      outcome.String(),
		"new_failures": newFailures,
	})
}

// OnScenarioStarted implements interfaces.Reporter.
func (r *LogReporter) OnScenarioStarted(scenarioID string) {
	r.logger.Debug("Scenario started", map[string]interface{}{
		"scenario_id": scenarioID,
	})
}

// OnScenarioFinished implements interfaces.Reporter.
func (r *LogReporter) OnScenarioFinished(scenarioID string, status interfaces.ScenarioStatus) {
	r.logger.Debug("Scenario finished", map[string]interface{}{
		"scenario_id": scenarioID,
		"status":      status.String(),
	})
}

// OnStepStarted implements interfaces.Reporter.
func (r *LogReporter) OnStepStarted(scenarioID string, input *interfaces.StepInput) {
	fields := map[string]interface{}{
		"scenario_id": scenarioID,
		"case_id":     input.Case.ID,
		"operation":   input.Case.Operation,
	}
	if input.Transition != nil {
		fields["transition"] = input.Transition.ID
		fields["link"] = input.Transition.Link.Name
	}
	r.logger.Debug("Step started", fields)
}

// OnStepFinished implements interfaces.Reporter.
func (r *LogReporter) OnStepFinished(scenarioID string, output *interfaces.StepOutput) {
	var elapsed interface{}
	if output.Response != nil {
		elapsed = output.Response.Elapsed
	}
	r.logger.Debug("Step executed", map[string]interface{}{
		"scenario_id": scenarioID,
		"case_id":     output.Case.ID,
		"operation":   output.Case.Operation,
		"status":      output.Status.String(),
		"elapsed":     elapsed,
	})
}

// OnFailure implements interfaces.Reporter.
func (r *LogReporter) OnFailure(f *interfaces.Failure) {
	r.logger.LogFailure(f.Check, f.Operation, f.Message, nil)
}
