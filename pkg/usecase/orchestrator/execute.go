package orchestrator

import (
	"context"
	"fmt"

	"github.com/m-mizutani/convene/pkg/model"
	"github.com/m-mizutani/convene/pkg/telemetry"
	"github.com/m-mizutani/convene/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// ErrCollaboratorFailure marks a plan step whose collaborator failed or panicked
var ErrCollaboratorFailure = goerr.New("collaborator failure")

// conversationRetrieveLimit bounds the records a memory step reads
const conversationRetrieveLimit = 10

type StepStatus string

const (
	StepStatusOK    StepStatus = "ok"
	StepStatusError StepStatus = "error"
)

// Result is the outcome of one plan step. A failed step keeps its typed fields
// empty so later stages can treat it like a step that found nothing.
type Result struct {
	Step   Step
	Status StepStatus
	Err    error

	Research []model.ResearchRecord
	Analysis model.Analysis
	Memories []*model.MemoryRecord
}

// Failed reports whether the step degraded
func (r *Result) Failed() bool {
	return r.Status == StepStatusError
}

// Execute runs the plan steps in order. A failing step never stops the run;
// research records found so far are handed to every later analysis step.
func (o *Orchestrator) Execute(ctx context.Context, plan *Plan) []*Result {
	results := make([]*Result, 0, len(plan.Steps))
	var researchContext []model.ResearchRecord

	for _, step := range plan.Steps {
		o.emit(ctx, telemetry.Event{
			Kind:    telemetry.KindCollaboratorInvoked,
			From:    model.AgentCoordinator,
			To:      step.Target,
			Summary: fmt.Sprintf("%s invokes %s", model.AgentCoordinator, step.Target),
			Detail:  step.Reason,
		})

		result := o.runStep(ctx, step, researchContext)
		if result.Failed() {
			logging.From(ctx).Warn("plan step degraded",
				"index", step.Index,
				"target", step.Target,
				"error", result.Err,
			)
			o.emit(ctx, telemetry.Event{
				Kind:    telemetry.KindDecision,
				From:    model.AgentCoordinator,
				Summary: fmt.Sprintf("%s error - applying fallback", step.Target),
				Detail:  fmt.Sprintf("Error: %v", result.Err),
			})
		}
		researchContext = append(researchContext, result.Research...)

		o.emit(ctx, telemetry.Event{
			Kind:       telemetry.KindCollaboratorResponded,
			From:       step.Target,
			To:         model.AgentCoordinator,
			Summary:    responseSummary(result),
			Confidence: responseConfidence(result),
			Failed:     result.Failed(),
		})
		results = append(results, result)
	}

	return results
}

// runStep calls the step's collaborator, converting errors and panics into a
// degraded result
func (o *Orchestrator) runStep(ctx context.Context, step Step, researchContext []model.ResearchRecord) (result *Result) {
	result = &Result{Step: step, Status: StepStatusOK}

	defer func() {
		if r := recover(); r != nil {
			*result = Result{
				Step:   step,
				Status: StepStatusError,
				Err: goerr.Wrap(ErrCollaboratorFailure, "collaborator panicked",
					goerr.V("target", step.Target),
					goerr.V("panic", fmt.Sprint(r))),
			}
		}
	}()

	var err error
	switch step.Action {
	case ActionResearch:
		o.send(ctx, step.Target, model.MessageTypeResearch, map[string]any{
			"query": step.Topic,
			"task":  step.Reason,
		})
		result.Research, err = o.research.Research(ctx, step.Topic)

	case ActionAnalyze:
		data := make([]model.ResearchRecord, len(researchContext))
		copy(data, researchContext)
		o.send(ctx, step.Target, model.MessageTypeAnalyze, map[string]any{
			"task":          step.Reason,
			"data":          len(data),
			"analysis_type": string(step.AnalysisType),
		})
		result.Analysis, err = o.reasoner.Analyze(ctx, step.Reason, data, step.AnalysisType)

	case ActionRetrieveConversation:
		o.send(ctx, step.Target, model.MessageTypeRetrieve, map[string]any{
			"operation":   "retrieve",
			"memory_type": string(model.CategoryConversation),
			"limit":       conversationRetrieveLimit,
		})
		result.Memories, err = o.memory.Retrieve(ctx, model.CategoryConversation, conversationRetrieveLimit)

	default:
		err = goerr.New("unknown step action", goerr.V("action", step.Action))
	}

	if err != nil {
		return &Result{
			Step:   step,
			Status: StepStatusError,
			Err: goerr.Wrap(ErrCollaboratorFailure, err.Error(),
				goerr.V("target", step.Target),
				goerr.V("action", step.Action)),
		}
	}
	if step.Action == ActionAnalyze && result.Analysis == nil {
		return &Result{
			Step:   step,
			Status: StepStatusError,
			Err:    goerr.Wrap(ErrCollaboratorFailure, "reasoner returned no analysis", goerr.V("target", step.Target)),
		}
	}
	return result
}

func responseSummary(r *Result) string {
	if r.Failed() {
		return fmt.Sprintf("step %d failed", r.Step.Index)
	}
	switch r.Step.Action {
	case ActionResearch:
		return fmt.Sprintf("Found %d results for %q", len(r.Research), r.Step.Topic)
	case ActionAnalyze:
		return fmt.Sprintf("Completed %s", r.Analysis.Kind())
	case ActionRetrieveConversation:
		return fmt.Sprintf("Retrieved %d memories", len(r.Memories))
	}
	return ""
}

func responseConfidence(r *Result) float64 {
	if r.Failed() {
		return 0
	}
	switch r.Step.Action {
	case ActionResearch:
		if len(r.Research) == 0 {
			return 0
		}
		var sum float64
		for _, rec := range r.Research {
			sum += rec.Confidence
		}
		return sum / float64(len(r.Research))
	case ActionAnalyze:
		return r.Analysis.Confidence()
	}
	return 1.0
}
