package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"callbroker/internal/hook"
	"callbroker/internal/llm"
)

type ExecutionMode string

const (
	ExecutionModeSequential ExecutionMode = "sequential"
	ExecutionModeParallel   ExecutionMode = "parallel"
)

// EmptyOutputPlaceholder is returned when a tool produces no output.
// This ensures LLM APIs (which require non-empty content) don't fail with 400 errors.
const EmptyOutputPlaceholder = "(Tool executed successfully with no output)"

// Executor runs the tool calls of one model round.
type Executor struct {
	registry    *Registry
	mode        ExecutionMode
	hookManager *hook.Manager
}

func NewExecutor(registry *Registry) *Executor {
	return &Executor{
		registry: registry,
		mode:     ExecutionModeParallel,
	}
}

func (e *Executor) SetMode(mode ExecutionMode) {
	e.mode = mode
}

// SetHookManager sets the hook manager for tool execution hooks
func (e *Executor) SetHookManager(manager *hook.Manager) {
	e.hookManager = manager
}

// WithRegistry returns a copy of e resolving tools from registry.
func (e *Executor) WithRegistry(registry *Registry) *Executor {
	clone := *e
	clone.registry = registry
	return &clone
}

type preparedCall struct {
	call *llm.ToolCall
	tool Tool
	args json.RawMessage
}

// Execute runs toolCalls and returns their results in request order.
// Every call is resolved, validated and approved before any handler runs,
// so a bad call leaves all handlers untouched. Any failure aborts the round
// and no partial results are returned.
func (e *Executor) Execute(ctx context.Context, toolCalls []*llm.ToolCall) ([]*CallResult, error) {
	if len(toolCalls) == 0 {
		return nil, nil
	}

	prepared, err := e.prepare(ctx, toolCalls)
	if err != nil {
		return nil, err
	}

	switch e.mode {
	case ExecutionModeSequential:
		return e.executeSequential(ctx, prepared)
	default:
		return e.executeParallel(ctx, prepared)
	}
}

func (e *Executor) prepare(ctx context.Context, toolCalls []*llm.ToolCall) ([]*preparedCall, error) {
	prepared := make([]*preparedCall, len(toolCalls))

	for i, tc := range toolCalls {
		name, arguments := "", ""
		if tc.Function != nil {
			name, arguments = tc.Function.Name, tc.Function.Arguments
		}

		t, err := e.registry.Get(name)
		if err != nil {
			return nil, &CallError{Kind: ErrToolNotFound, Tool: name, CallID: tc.ID}
		}

		args := json.RawMessage(arguments)
		if v, ok := t.(Validator); ok {
			if err := v.Validate(args); err != nil {
				return nil, &CallError{Kind: ErrArgumentDecode, Tool: name, CallID: tc.ID, Err: err}
			}
		}

		if e.hookManager != nil {
			hookData := hook.NewHookData(hook.BeforeToolExecution, name).
				ForCall(tc.ID).
				Set("params", arguments)

			feedback, err := e.hookManager.Trigger(ctx, hookData)
			if err != nil {
				return nil, &CallError{Kind: ErrToolExecution, Tool: name, CallID: tc.ID, Err: fmt.Errorf("hook error: %w", err)}
			}
			if !feedback.Allow {
				return nil, &CallError{Kind: ErrToolExecution, Tool: name, CallID: tc.ID, Err: fmt.Errorf("denied by %s: %s", feedback.Handler, feedback.Message)}
			}
		}

		prepared[i] = &preparedCall{call: tc, tool: t, args: args}
	}

	return prepared, nil
}

func (e *Executor) executeSequential(ctx context.Context, calls []*preparedCall) ([]*CallResult, error) {
	results := make([]*CallResult, len(calls))

	for i, pc := range calls {
		result, err := e.executeOne(ctx, pc)
		if err != nil {
			return nil, err
		}
		results[i] = result
	}

	return results, nil
}

// executeParallel runs every call concurrently and waits for all of them.
// The first failure cancels the others and is the one reported.
func (e *Executor) executeParallel(ctx context.Context, calls []*preparedCall) ([]*CallResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*CallResult, len(calls))

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for i, pc := range calls {
		wg.Add(1)
		go func(idx int, call *preparedCall) {
			defer wg.Done()

			result, err := e.executeOne(ctx, call)
			if err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
				return
			}
			results[idx] = result
		}(i, pc)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func (e *Executor) executeOne(ctx context.Context, pc *preparedCall) (*CallResult, error) {
	startTime := time.Now()
	name := pc.tool.Name()

	if e.hookManager != nil {
		// Tools may trigger their own hooks.
		ctx = hook.WithManager(ctx, e.hookManager)
	}

	result, err := invoke(ctx, pc)
	if err != nil {
		kind := ErrToolExecution
		if errors.Is(err, ErrArgumentDecode) {
			kind = ErrArgumentDecode
		}
		return nil, &CallError{Kind: kind, Tool: name, CallID: pc.call.ID, Err: err}
	}
	if result == nil {
		result = &Result{}
	}

	// Ensure non-empty output for LLM APIs that require non-empty content
	if result.Output == "" {
		result.Output = EmptyOutputPlaceholder
	}

	if e.hookManager != nil {
		hookData := hook.NewHookData(hook.AfterToolExecution, name).
			ForCall(pc.call.ID).
			Set("params", string(pc.args)).
			Set("result", result).
			Set("duration", time.Since(startTime))

		// After hooks don't block, just trigger
		_, _ = e.hookManager.Trigger(ctx, hookData)
	}

	return &CallResult{
		ToolName:  name,
		CallID:    pc.call.ID,
		Params:    pc.args,
		Result:    result,
		StartTime: startTime,
		EndTime:   time.Now(),
	}, nil
}

// invoke runs the handler, turning a panic into an error.
func invoke(ctx context.Context, pc *preparedCall) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pc.tool.Execute(ctx, pc.args)
}
