package scheduler

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"time"

	"github.com/dukex/flowengine/pkg/conditional"
	"github.com/dukex/flowengine/pkg/dispatch"
	"github.com/dukex/flowengine/pkg/engine"
	"github.com/dukex/flowengine/pkg/eventbus"
	"github.com/dukex/flowengine/pkg/events"
	"github.com/dukex/flowengine/pkg/graph"
	"github.com/dukex/flowengine/pkg/models"
	"github.com/dukex/flowengine/pkg/partition"
)

// maxRounds bounds the ready/reconcile rounds of one tick.
const maxRounds = 10000

// run is the state of one read/modify/write cycle over a graph. Options are read once.
type run struct {
	d      *Driver
	graph  *models.ExecutionGraph
	opts   engine.Options
	events []eventbus.Event
}

func (d *Driver) newRun(g *models.ExecutionGraph) *run {
	if g.Context == nil {
		g.Context = make(map[string]any)
	}

	return &run{d: d, graph: g, opts: d.options.Load()}
}

// advance starts every ready task and reconciles statuses until nothing changes.
func (r *run) advance(ctx context.Context) error {
	for range maxRounds {
		ready := engine.ReadyToRun(r.graph.Flatten(), r.opts)

		r.d.logger.DebugContext(ctx, "Scheduling round", "execution_id", r.graph.ExecutionID, "ready", len(ready))

		err := r.start(ctx, ready)
		if err != nil {
			return err
		}

		transitions := engine.Reconcile(r.graph, r.opts)
		r.record(ctx, transitions)

		if len(ready) == 0 && len(transitions) == 0 {
			return nil
		}
	}

	return fmt.Errorf("%w: execution %s", ErrNoProgress, r.graph.ExecutionID)
}

func (r *run) start(ctx context.Context, ready []*models.TaskNode) error {
	var batch []*models.TaskNode

	for _, task := range ready {
		// An earlier return task of this round may have skipped it.
		if task.Status != models.StatusNotStarted {
			continue
		}

		switch category := task.Category(); category {
		case models.CategoryCompute, models.CategoryAnswer:
			task.Status = models.StatusReady
			batch = append(batch, task)
		case models.CategorySuspense:
			r.suspend(task)
		case models.CategoryPass:
			r.pass(task)
		case models.CategoryReturn:
			r.ret(ctx, task)
		case models.CategoryChoice, models.CategorySwitch:
			r.branch(ctx, task)
		case models.CategoryForeach:
			r.foreach(ctx, task)
		default:
			return fmt.Errorf("%w: task %s has category %q", graph.ErrMalformedGraph, task.Name, category)
		}
	}

	r.dispatch(ctx, batch)

	return nil
}

func (r *run) now() *time.Time {
	now := time.Now().UTC()

	return &now
}

func (r *run) begin(task *models.TaskNode) {
	task.Status = models.StatusRunning

	invocation := task.EnsureInvocation()
	if invocation.StartedAt == nil {
		invocation.StartedAt = r.now()
	}
}

// finish moves task to a final or key status and records the notification.
func (r *run) finish(task *models.TaskNode, status models.Status) {
	task.Status = status

	invocation := task.EnsureInvocation()
	if status.IsCompleted() {
		invocation.FinishedAt = r.now()
	}

	r.emit(events.TaskFinished{
		BaseEvent: r.d.newBase(events.TaskFinishedEvent, r.graph.ExecutionID),
		TaskName:  task.Name,
		Status:    status,
		Code:      invocation.Code,
		Message:   invocation.Message,
	})
}

// fail records a scheduler-side failure; tolerant tasks are skipped instead.
func (r *run) fail(ctx context.Context, task *models.TaskNode, code string, err error) {
	invocation := task.EnsureInvocation()
	invocation.Code = code
	invocation.Message = err.Error()

	r.d.logger.WarnContext(ctx, "Task failed in scheduler", "execution_id", r.graph.ExecutionID, "task", task.Name, "code", code, "error", err)

	if task.IsTolerant() {
		r.finish(task, models.StatusSkipped)

		return
	}

	r.finish(task, models.StatusFailed)
}

func (r *run) emit(event eventbus.Event) {
	r.events = append(r.events, event)
}

func (r *run) visible(task *models.TaskNode) map[string]any {
	return partition.Visible(r.graph.Context, task.RouteName)
}

func (r *run) suspend(task *models.TaskNode) {
	r.begin(task)

	r.emit(events.TaskSuspended{
		BaseEvent: r.d.newBase(events.TaskSuspendedEvent, r.graph.ExecutionID),
		TaskName:  task.Name,
	})
}

func (r *run) pass(task *models.TaskNode) {
	r.begin(task)

	output := conditional.Map(task.Definition.Output, r.visible(task))
	partition.Merge(r.graph.Context, task, output)

	r.finish(task, models.StatusSucceeded)
}

// ret ends its scope when every condition holds: not-started siblings are skipped.
func (r *run) ret(ctx context.Context, task *models.TaskNode) {
	r.begin(task)

	data := r.visible(task)

	for _, condition := range task.Definition.Conditions {
		holds, err := r.d.evaluator.Evaluate(condition, data)
		if err != nil {
			r.fail(ctx, task, CodeConditionError, err)

			return
		}

		if !holds {
			r.finish(task, models.StatusSucceeded)

			return
		}
	}

	partition.Merge(r.graph.Context, task, conditional.Map(task.Definition.Output, data))

	for _, sibling := range sortedTasks(r.graph.Scope(task)) {
		if sibling.Name != task.Name && sibling.Status == models.StatusNotStarted {
			r.finish(sibling, models.StatusSkipped)
		}
	}

	r.finish(task, models.StatusSucceeded)
}

// branch expands the taken groups of a choice or switch task and skips the others.
func (r *run) branch(ctx context.Context, task *models.TaskNode) {
	r.begin(task)

	def := task.Definition
	data := r.visible(task)

	taken := make([]bool, len(def.Choices))
	matched := false

	for i, choice := range def.Choices {
		if def.Category == models.CategorySwitch && matched {
			break
		}

		holds, err := r.d.evaluator.Evaluate(choice.Condition, data)
		if err != nil {
			r.fail(ctx, task, CodeConditionError, fmt.Errorf("branch %d: %w", i, err))

			return
		}

		taken[i] = holds
		matched = matched || holds
	}

	if len(def.Choices) == 0 {
		r.finish(task, models.StatusSucceeded)

		return
	}

	for i, choice := range def.Choices {
		index := strconv.Itoa(i)

		if !taken[i] {
			skipGroup(task, index)

			continue
		}

		if !r.expand(ctx, task, index, choice.Tasks, choice.Key, nil) {
			return
		}
	}
}

// foreach expands one group per element of the task's source list.
func (r *run) foreach(ctx context.Context, task *models.TaskNode) {
	r.begin(task)

	def := task.Definition
	if def.Foreach == nil {
		r.fail(ctx, task, CodeExpansionError, fmt.Errorf("%w: foreach task without body", graph.ErrMalformedGraph))

		return
	}

	data := r.visible(task)

	source, _ := conditional.Resolve(def.Foreach.Source, data)

	items, ok := toList(source)
	if !ok {
		r.fail(ctx, task, CodeInvalidSource, fmt.Errorf("source %q is %T, not a list", def.Foreach.Source, source))

		return
	}

	if len(items) == 0 {
		partition.Merge(r.graph.Context, task, map[string]any{task.BaseName(): []any{}})
		r.finish(task, models.StatusSucceeded)

		return
	}

	iterations := make([]map[string]any, len(items))
	keys := make([]bool, len(items))

	for i, item := range items {
		iterations[i] = map[string]any{"item": item, "index": i}

		if def.KeyExpression == "" {
			continue
		}

		scope := make(map[string]any, len(data)+2)
		for k, v := range data {
			scope[k] = v
		}

		scope["item"] = item
		scope["index"] = i

		key, err := r.d.evaluator.Evaluate(def.KeyExpression, scope)
		if err != nil {
			r.fail(ctx, task, CodeConditionError, fmt.Errorf("key expression of item %d: %w", i, err))

			return
		}

		keys[i] = key
	}

	for i := range items {
		if !r.expand(ctx, task, strconv.Itoa(i), def.Foreach.Tasks, keys[i], iterations[i]) {
			return
		}
	}
}

// expand seeds the group's context slice and builds its nodes. It reports false after
// failing the task.
func (r *run) expand(ctx context.Context, task *models.TaskNode, index string, defs []*models.TaskDefinition, key bool, extra map[string]any) bool {
	route := models.BuildRoute(task.Name, index)

	err := partition.Seed(r.graph.Context, task.RouteName, route, extra)
	if err != nil {
		r.fail(ctx, task, CodePartitionError, err)

		return false
	}

	_, err = r.d.builder.ExpandGroup(task, index, defs, key)
	if err != nil {
		r.fail(ctx, task, CodeExpansionError, err)

		return false
	}

	return true
}

func skipGroup(task *models.TaskNode, index string) {
	if task.SubGroupStatus == nil {
		task.SubGroupStatus = make(map[string]models.Status)
	}

	if task.SubGroupKeyFlag == nil {
		task.SubGroupKeyFlag = make(map[string]bool)
	}

	task.SubGroupStatus[index] = models.StatusSkipped
	task.SubGroupKeyFlag[index] = false
}

// dispatch partitions the context for the batch and hands every task to the dispatcher.
func (r *run) dispatch(ctx context.Context, batch []*models.TaskNode) {
	if len(batch) == 0 {
		return
	}

	views, err := partition.Partition(r.graph.Context, batch, partition.PolicyFor(r.opts))
	if err != nil {
		for _, task := range batch {
			r.fail(ctx, task, CodePartitionError, err)
		}

		return
	}

	for _, task := range batch {
		if r.d.dispatcher == nil {
			r.fail(ctx, task, CodeDispatchError, dispatch.ErrNoDispatcher)

			continue
		}

		view := views[task.Name]

		var input map[string]any
		if len(task.Definition.Input) > 0 {
			input = conditional.Map(task.Definition.Input, view.Snapshot())
		}

		r.begin(task)

		err := r.d.dispatcher.Dispatch(ctx, dispatch.Request{
			ExecutionID: r.graph.ExecutionID,
			TaskName:    task.Name,
			Category:    task.Category(),
			Resource:    task.Definition.Resource,
			Input:       input,
			View:        view,
		})
		if err != nil {
			r.fail(ctx, task, CodeDispatchError, err)
		}
	}
}

// applyCompletion moves a waiting task to the reported status and merges its output.
func (r *run) applyCompletion(task *models.TaskNode, completion dispatch.Completion) {
	invocation := task.EnsureInvocation()
	invocation.Code = completion.Code
	invocation.Message = completion.Message

	if completion.Extension != nil {
		invocation.Extension = completion.Extension
	}

	status := completion.Status
	if status == models.StatusFailed && task.IsTolerant() {
		status = models.StatusSkipped
	}

	if status != models.StatusFailed && completion.Output != nil {
		result := completion.Output
		if len(task.Definition.Output) > 0 {
			result = conditional.Map(task.Definition.Output, completion.Output)
		}

		partition.Merge(r.graph.Context, task, result)
	}

	r.finish(task, status)

	if status.IsCompleted() && !completion.FinishedAt.IsZero() {
		finished := completion.FinishedAt.UTC()
		invocation.FinishedAt = &finished
	}
}

// record turns reconciled transitions into notifications and collects branch results.
func (r *run) record(ctx context.Context, transitions []engine.Transition) {
	for _, transition := range transitions {
		if transition.Task == "" {
			r.graphChanged(ctx, transition)

			continue
		}

		task, ok := r.graph.Lookup(transition.Task)
		if !ok {
			continue
		}

		if transition.To == models.StatusSucceeded || transition.To == models.StatusKeySucceeded {
			r.collect(task)
		}

		if transition.To.IsCompleted() || transition.To.IsKeyPath() {
			r.finish(task, transition.To)
		}
	}
}

// collect writes the visible results of a branch task's groups into the branch's scope
// under its base name: a list for foreach, a map by group index for choice and switch.
func (r *run) collect(task *models.TaskNode) {
	indexes := make([]string, 0, len(task.SubGroupStatus))

	for index, status := range task.SubGroupStatus {
		if status != models.StatusSkipped {
			indexes = append(indexes, index)
		}
	}

	sort.Slice(indexes, func(i, j int) bool {
		a, _ := strconv.Atoi(indexes[i])
		b, _ := strconv.Atoi(indexes[j])

		return a < b
	})

	var result any

	if task.Category() == models.CategoryForeach {
		list := make([]any, 0, len(indexes))
		for _, index := range indexes {
			list = append(list, partition.Visible(r.graph.Context, models.BuildRoute(task.Name, index)))
		}

		result = list
	} else {
		groups := make(map[string]any, len(indexes))
		for _, index := range indexes {
			groups[index] = partition.Visible(r.graph.Context, models.BuildRoute(task.Name, index))
		}

		result = groups
	}

	partition.Merge(r.graph.Context, task, map[string]any{task.BaseName(): result})
}

func (r *run) graphChanged(ctx context.Context, transition engine.Transition) {
	event := events.GraphStatusChanged{
		BaseEvent: r.d.newBase(events.GraphStatusChangedEvent, r.graph.ExecutionID),
		From:      transition.From,
		To:        transition.To,
	}

	if r.graph.IsTerminal() {
		invocation := r.graph.Invocation
		if invocation == nil {
			invocation = &models.InvocationInfo{}
			r.graph.Invocation = invocation
		}

		invocation.FinishedAt = r.now()

		if r.graph.Status == models.StatusFailed {
			for _, task := range sortedTasks(r.graph.Flatten()) {
				if task.Status != models.StatusFailed {
					continue
				}

				event.FailedTasks = append(event.FailedTasks, task.Name)

				if invocation.Code == "" && task.Invocation != nil && task.Invocation.Code != "" {
					invocation.Code = task.Invocation.Code
					invocation.Message = task.Invocation.Message
				}
			}

			event.FailureCode = invocation.Code
			event.FailureMessage = invocation.Message
		}
	}

	r.d.logger.InfoContext(ctx, "Execution status changed", "execution_id", r.graph.ExecutionID, "from", transition.From, "to", transition.To)

	r.emit(event)
}

func sortedTasks(tasks map[string]*models.TaskNode) []*models.TaskNode {
	result := make([]*models.TaskNode, 0, len(tasks))
	for _, task := range tasks {
		result = append(result, task)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result
}

// toList accepts any slice value as an iteration source.
func toList(value any) ([]any, bool) {
	if list, ok := value.([]any); ok {
		return list, true
	}

	v := reflect.ValueOf(value)
	if !v.IsValid() || v.Kind() != reflect.Slice {
		return nil, false
	}

	list := make([]any, v.Len())
	for i := range list {
		list[i] = v.Index(i).Interface()
	}

	return list, true
}
