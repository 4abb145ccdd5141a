// Package drill runs self-check experiments against a library: confirm a
// steady state, apply a workload, and check the steady state after every
// step.
package drill

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrSteadyStateInvalid is returned when an experiment's probes fail before
// any action ran.
var ErrSteadyStateInvalid = errors.New("steady state invalid - aborting experiment")

// Experiment defines one drill.
type Experiment struct {
	Name        string
	Hypothesis  string
	SteadyState []Probe
	Method      []Action
	Rollback    []Action
	Validation  []Assertion
}

// Probe defines a measurable property of the library.
type Probe struct {
	Name      string
	Query     func(context.Context) (float64, error)
	Threshold Threshold
}

// Threshold bounds a probe value.
type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

// Action is one workload step. Returning an error records it against the
// result; expected domain rejections should be handled inside Execute.
type Action struct {
	Name    string
	Execute func(context.Context) error
}

// Assertion validates the final observation of a probe.
type Assertion struct {
	Probe     string
	Condition func(float64) bool
	Message   string
}

// Result captures one experiment run.
type Result struct {
	Experiment       string               `json:"experiment"`
	HypothesisHeld   bool                 `json:"hypothesis_held"`
	SteadyStateValid bool                 `json:"steady_state_valid"`
	Violations       []Violation          `json:"violations"`
	Observations     map[string][]float64 `json:"observations"`
	ActionErrors     []ActionError        `json:"action_errors"`
	FailedAssertions []string             `json:"failed_assertions,omitempty"`
}

// Violation records a probe outside its threshold. Step 0 is the steady
// state check; step n is after the nth action. Rollback actions are sampled
// once, after the last of them.
type Violation struct {
	Probe    string  `json:"probe"`
	Expected float64 `json:"expected"`
	Actual   float64 `json:"actual"`
	Step     int     `json:"step"`
}

// ActionError records an unexpected failure of a workload step.
type ActionError struct {
	Action string `json:"action"`
	Step   int    `json:"step"`
	Error  string `json:"error"`
}

// Engine runs experiments.
type Engine struct {
	tracer      trace.Tracer
	experiments []Experiment
}

// Option configures an Engine.
type Option func(*Engine)

// WithTracerProvider sets the provider used for experiment spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer("shelfkeeper/drill") }
}

// NewEngine creates an engine with no experiments.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{tracer: otel.Tracer("shelfkeeper/drill")}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds an experiment.
func (e *Engine) Register(exp ...Experiment) {
	e.experiments = append(e.experiments, exp...)
}

// Experiments returns the registered experiments.
func (e *Engine) Experiments() []Experiment {
	out := make([]Experiment, len(e.experiments))
	copy(out, e.experiments)
	return out
}

// Run executes a single experiment.
func (e *Engine) Run(ctx context.Context, exp Experiment) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "drill.run_experiment",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)),
	)
	defer span.End()

	result := &Result{
		Experiment:   exp.Name,
		Observations: make(map[string][]float64),
	}

	span.AddEvent("validating_steady_state")
	if violations := e.sample(ctx, exp.SteadyState, 0, nil); len(violations) > 0 {
		result.Violations = violations
		return result, ErrSteadyStateInvalid
	}
	result.SteadyStateValid = true

	span.AddEvent("applying_workload")
	for i, action := range exp.Method {
		step := i + 1
		if err := action.Execute(ctx); err != nil {
			result.ActionErrors = append(result.ActionErrors, ActionError{Action: action.Name, Step: step, Error: err.Error()})
			span.RecordError(err)
		}
		result.Violations = append(result.Violations, e.sample(ctx, exp.SteadyState, step, result.Observations)...)
	}

	span.AddEvent("rolling_back")
	for i, action := range exp.Rollback {
		if err := action.Execute(ctx); err != nil {
			step := len(exp.Method) + i + 1
			result.ActionErrors = append(result.ActionErrors, ActionError{Action: action.Name, Step: step, Error: err.Error()})
			span.RecordError(err)
		}
	}
	if len(exp.Rollback) > 0 {
		result.Violations = append(result.Violations, e.sample(ctx, exp.SteadyState, len(exp.Method)+len(exp.Rollback), result.Observations)...)
	}

	span.AddEvent("validating_assertions")
	result.FailedAssertions = validateAssertions(exp.Validation, result.Observations)
	result.HypothesisHeld = len(result.Violations) == 0 && len(result.ActionErrors) == 0 && len(result.FailedAssertions) == 0

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)
	return result, nil
}

// RunAll runs every registered experiment, writes a summary of each to w and
// fails if any hypothesis was violated.
func (e *Engine) RunAll(ctx context.Context, w io.Writer) ([]Result, error) {
	results := make([]Result, 0, len(e.experiments))
	failed := 0
	for i, exp := range e.experiments {
		fmt.Fprintf(w, "Experiment %d/%d: %s\n", i+1, len(e.experiments), exp.Name)
		fmt.Fprintf(w, "  Hypothesis: %s\n", exp.Hypothesis)

		result, err := e.Run(ctx, exp)
		if err != nil {
			fmt.Fprintf(w, "  Aborted: %v\n", err)
			failed++
			results = append(results, *result)
			continue
		}
		writeResult(w, result)
		if !result.HypothesisHeld {
			failed++
		}
		results = append(results, *result)
	}
	if failed > 0 {
		return results, fmt.Errorf("%d of %d experiments failed", failed, len(e.experiments))
	}
	return results, nil
}

// sample queries every probe, appending values to observations when it is
// non-nil, and returns the threshold violations.
func (e *Engine) sample(ctx context.Context, probes []Probe, step int, observations map[string][]float64) []Violation {
	var violations []Violation
	for _, p := range probes {
		value, err := p.Query(ctx)
		if err != nil {
			violations = append(violations, Violation{Probe: p.Name, Expected: p.Threshold.Value, Actual: -1, Step: step})
			continue
		}
		if observations != nil {
			observations[p.Name] = append(observations[p.Name], value)
		}
		if !p.Threshold.holds(value) {
			violations = append(violations, Violation{Probe: p.Name, Expected: p.Threshold.Value, Actual: value, Step: step})
		}
	}
	return violations
}

func (t Threshold) holds(value float64) bool {
	switch t.Operator {
	case ">":
		return value > t.Value
	case "<":
		return value < t.Value
	case ">=":
		return value >= t.Value
	case "<=":
		return value <= t.Value
	case "==":
		return value == t.Value
	default:
		return false
	}
}

func validateAssertions(assertions []Assertion, observations map[string][]float64) []string {
	var failed []string
	for _, a := range assertions {
		values := observations[a.Probe]
		if len(values) == 0 || !a.Condition(values[len(values)-1]) {
			failed = append(failed, a.Message)
		}
	}
	return failed
}

func writeResult(w io.Writer, r *Result) {
	if r.HypothesisHeld {
		fmt.Fprintln(w, "  Hypothesis held")
	} else {
		fmt.Fprintln(w, "  Hypothesis violated")
	}
	for _, v := range r.Violations {
		fmt.Fprintf(w, "  - step %d: %s expected %.2f, got %.2f\n", v.Step, v.Probe, v.Expected, v.Actual)
	}
	for _, ae := range r.ActionErrors {
		fmt.Fprintf(w, "  - step %d: %s failed: %s\n", ae.Step, ae.Action, ae.Error)
	}
	for _, msg := range r.FailedAssertions {
		fmt.Fprintf(w, "  - %s\n", msg)
	}
}
