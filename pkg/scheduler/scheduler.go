// Package scheduler drives execution graphs: it asks the readiness engine what can run,
// starts those tasks, applies executor completions and persists the result.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/dukex/flowengine/pkg/conditional"
	"github.com/dukex/flowengine/pkg/dispatch"
	"github.com/dukex/flowengine/pkg/engine"
	"github.com/dukex/flowengine/pkg/eventbus"
	"github.com/dukex/flowengine/pkg/events"
	"github.com/dukex/flowengine/pkg/graph"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/otelhelper"
	"github.com/dukex/flowengine/pkg/persistence"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Config wires a Driver. Store is required; the rest have working defaults.
type Config struct {
	Store      persistence.GraphStore
	Dispatcher dispatch.Dispatcher
	Notifier   eventbus.Notifier
	Evaluator  conditional.Evaluator
	Tracer     trace.Tracer
	Options    *engine.OptionsHolder
	WorkerID   string
}

// Driver is the external scheduling loop around the readiness engine.
type Driver struct {
	store      persistence.GraphStore
	dispatcher dispatch.Dispatcher
	notifier   eventbus.Notifier
	evaluator  conditional.Evaluator
	tracer     trace.Tracer
	options    *engine.OptionsHolder
	workerID   string
	builder    *graph.Builder
	locks      lockTable
	logger     *slog.Logger
}

// NewDriver creates a driver.
func NewDriver(config Config, logger *slog.Logger) (*Driver, error) {
	if config.Store == nil {
		return nil, errors.New("scheduler requires a graph store")
	}

	if config.Notifier == nil {
		config.Notifier = eventbus.NopNotifier{}
	}

	if config.Evaluator == nil {
		config.Evaluator = conditional.SimpleEvaluator{}
	}

	if config.Tracer == nil {
		config.Tracer = otelhelper.NoopTracer()
	}

	if config.Options == nil {
		config.Options = engine.NewOptionsHolder(engine.DefaultOptions())
	}

	return &Driver{
		store:      config.Store,
		dispatcher: config.Dispatcher,
		notifier:   config.Notifier,
		evaluator:  config.Evaluator,
		tracer:     config.Tracer,
		options:    config.Options,
		workerID:   config.WorkerID,
		builder:    graph.NewBuilder(logger),
		logger:     logger.With("module", "scheduler"),
	}, nil
}

// Options returns the holder whose value every tick reads once.
func (d *Driver) Options() *engine.OptionsHolder {
	return d.options
}

// Load returns the stored graph of executionID.
func (d *Driver) Load(ctx context.Context, executionID string) (*models.ExecutionGraph, error) {
	return d.store.Load(ctx, executionID)
}

// HealthCheck reports whether the graph store is reachable.
func (d *Driver) HealthCheck(ctx context.Context) error {
	return d.store.HealthCheck(ctx)
}

// Submit builds a new execution graph from the submission, runs its first tick and saves
// it. Submitting an execution id that already exists returns the stored graph.
func (d *Driver) Submit(ctx context.Context, submission dispatch.Submission) (*models.ExecutionGraph, error) {
	executionID := submission.ExecutionID
	if executionID == "" {
		executionID = uuid.New().String()
	}

	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "scheduler.submit",
		attribute.String(otelhelper.ExecutionIDKey, executionID))
	defer span.End()

	unlock := d.locks.lock(executionID)
	defer unlock()

	logger := d.logger.With("execution_id", executionID)

	existing, err := d.store.Load(ctx, executionID)
	if err == nil {
		logger.InfoContext(ctx, "Execution already submitted")

		return existing, nil
	}

	if !persistence.IsGraphNotFound(err) {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to check execution %s: %w", executionID, err)
	}

	g, err := d.builder.BuildGraph(executionID, submission.Definition)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if submission.Definition != nil {
		span.SetAttributes(attribute.String(otelhelper.GraphNameKey, submission.Definition.Name))
	}

	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	g.Invocation = &models.InvocationInfo{StartedAt: &now}

	if submission.Input != nil {
		g.Context = maps.Clone(submission.Input)
	}

	r := d.newRun(g)

	err = r.advance(ctx)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	err = d.commit(ctx, r)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	logger.InfoContext(ctx, "Execution submitted", "status", g.Status, "tasks", len(g.Tasks))

	return g, nil
}

// Complete applies an executor's completion to its task, then advances the graph.
func (d *Driver) Complete(ctx context.Context, completion dispatch.Completion) error {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "scheduler.complete",
		attribute.String(otelhelper.ExecutionIDKey, completion.ExecutionID),
		attribute.String(otelhelper.TaskNameKey, completion.TaskName),
		attribute.String(otelhelper.TaskStatusKey, string(completion.Status)))
	defer span.End()

	err := d.complete(ctx, completion)
	if err != nil {
		otelhelper.SetError(span, err)
	}

	return err
}

func (d *Driver) complete(ctx context.Context, completion dispatch.Completion) error {
	if !reportable(completion.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidCompletion, completion.Status)
	}

	unlock := d.locks.lock(completion.ExecutionID)
	defer unlock()

	logger := d.logger.With("execution_id", completion.ExecutionID, "task", completion.TaskName)

	g, err := d.store.Load(ctx, completion.ExecutionID)
	if err != nil {
		return err
	}

	task, ok := g.Lookup(completion.TaskName)
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrTaskNotFound, completion.TaskName)
	}

	category := task.Category()
	if !category.IsDispatched() && category != models.CategorySuspense {
		return fmt.Errorf("%w: %s tasks complete inline", ErrUnexpectedCompletion, category)
	}

	// A redelivered completion, also the one that finished the graph.
	if task.Status.IsCompleted() {
		logger.WarnContext(ctx, "Ignoring completion for finished task", "status", task.Status, "graph_status", g.Status)

		return nil
	}

	if g.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrExecutionFinished, g.ExecutionID, g.Status)
	}

	switch task.Status {
	case models.StatusReady, models.StatusRunning, models.StatusKeySucceeded, models.StatusStashed:
	case models.StatusNotStarted, models.StatusSucceeded, models.StatusFailed, models.StatusSkipped:
		return fmt.Errorf("%w: %s is %s", ErrUnexpectedCompletion, task.Name, task.Status)
	default:
		return fmt.Errorf("%w: %s is %s", ErrUnexpectedCompletion, task.Name, task.Status)
	}

	r := d.newRun(g)
	r.applyCompletion(task, completion)

	logger.InfoContext(ctx, "Task completed", "status", task.Status)

	err = r.advance(ctx)
	if err != nil {
		return err
	}

	return d.commit(ctx, r)
}

// Tick advances a stored graph without a completion, e.g. after the options changed.
func (d *Driver) Tick(ctx context.Context, executionID string) (*models.ExecutionGraph, error) {
	ctx, span := otelhelper.StartSpan(ctx, d.tracer, "scheduler.tick",
		attribute.String(otelhelper.ExecutionIDKey, executionID))
	defer span.End()

	unlock := d.locks.lock(executionID)
	defer unlock()

	g, err := d.store.Load(ctx, executionID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if g.IsTerminal() {
		return g, nil
	}

	r := d.newRun(g)

	err = r.advance(ctx)
	if err == nil {
		err = d.commit(ctx, r)
	}

	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return g, nil
}

// commit saves the graph and then publishes the events the run collected.
func (d *Driver) commit(ctx context.Context, r *run) error {
	r.graph.UpdatedAt = time.Now().UTC()

	err := d.store.Save(ctx, r.graph)
	if err != nil {
		return fmt.Errorf("failed to save execution graph %s: %w", r.graph.ExecutionID, err)
	}

	for _, event := range r.events {
		d.notifier.Notify(ctx, r.graph.ExecutionID, event)
	}

	return nil
}

func (d *Driver) newBase(eventType events.EventType, executionID string) events.BaseEvent {
	base := events.NewBaseEvent(eventType, executionID)
	base.WorkerID = d.workerID

	return base
}

// reportable reports whether executors may complete a task with status.
func reportable(status models.Status) bool {
	switch status {
	case models.StatusSucceeded, models.StatusFailed, models.StatusSkipped,
		models.StatusKeySucceeded, models.StatusStashed:
		return true
	case models.StatusNotStarted, models.StatusReady, models.StatusRunning:
		return false
	default:
		return false
	}
}

var _ dispatch.Completer = (*Driver)(nil)
var _ dispatch.Submitter = (*Driver)(nil)

