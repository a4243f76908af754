package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"callbroker/internal/hook"
	"callbroker/internal/llm"
)

type echoRequest struct {
	Text  string `json:"text"`
	Delay int    `json:"delay_ms,omitempty"`
}

type echoResponse struct {
	Echo string `json:"echo"`
}

func newEchoRegistry(t *testing.T, calls *int32) *Registry {
	t.Helper()
	registry := NewRegistry()
	echo := MustFunc("echo", "Echo text back", func(ctx context.Context, req echoRequest) (echoResponse, error) {
		atomic.AddInt32(calls, 1)
		if req.Delay > 0 {
			select {
			case <-time.After(time.Duration(req.Delay) * time.Millisecond):
			case <-ctx.Done():
				return echoResponse{}, ctx.Err()
			}
		}
		return echoResponse{Echo: req.Text}, nil
	})
	if err := registry.Register(echo); err != nil {
		t.Fatalf("Failed to register echo: %v", err)
	}
	return registry
}

func call(id, name, args string) *llm.ToolCall {
	return &llm.ToolCall{ID: id, Type: "function", Function: &llm.FunctionCall{Name: name, Arguments: args}}
}

func TestExecutor_ParallelPreservesOrder(t *testing.T) {
	var calls int32
	executor := NewExecutor(newEchoRegistry(t, &calls))

	results, err := executor.Execute(context.Background(), []*llm.ToolCall{
		call("1", "echo", `{"text":"first","delay_ms":60}`),
		call("2", "echo", `{"text":"second","delay_ms":30}`),
		call("3", "echo", `{"text":"third"}`),
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if calls != 3 {
		t.Errorf("Expected 3 invocations, got %d", calls)
	}
	for i, want := range []string{`{"echo":"first"}`, `{"echo":"second"}`, `{"echo":"third"}`} {
		if results[i].Result.Output != want {
			t.Errorf("Result %d: expected %s, got %s", i, want, results[i].Result.Output)
		}
		if results[i].CallID != []string{"1", "2", "3"}[i] {
			t.Errorf("Result %d: unexpected call id %s", i, results[i].CallID)
		}
	}
}

func TestExecutor_Sequential(t *testing.T) {
	var calls int32
	executor := NewExecutor(newEchoRegistry(t, &calls))
	executor.SetMode(ExecutionModeSequential)

	results, err := executor.Execute(context.Background(), []*llm.ToolCall{
		call("1", "echo", `{"text":"a"}`),
		call("2", "echo", `{"text":"b"}`),
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(results) != 2 || results[1].Result.Output != `{"echo":"b"}` {
		t.Errorf("Unexpected results: %+v", results)
	}
}

func TestExecutor_UnknownToolInvokesNothing(t *testing.T) {
	var calls int32
	executor := NewExecutor(newEchoRegistry(t, &calls))

	_, err := executor.Execute(context.Background(), []*llm.ToolCall{
		call("1", "echo", `{"text":"a"}`),
		call("2", "doesNotExist", `{}`),
	})
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("Expected ErrToolNotFound, got %v", err)
	}

	var callErr *CallError
	if !errors.As(err, &callErr) || callErr.Tool != "doesNotExist" || callErr.CallID != "2" {
		t.Errorf("Expected CallError for doesNotExist, got %v", err)
	}
	if calls != 0 {
		t.Errorf("Expected no invocation, got %d", calls)
	}
}

func TestExecutor_BadArgumentsInvokeNothing(t *testing.T) {
	var calls int32
	executor := NewExecutor(newEchoRegistry(t, &calls))

	_, err := executor.Execute(context.Background(), []*llm.ToolCall{
		call("1", "echo", `{"text":"a"}`),
		call("2", "echo", `{"text":7}`),
	})
	if !errors.Is(err, ErrArgumentDecode) {
		t.Fatalf("Expected ErrArgumentDecode, got %v", err)
	}
	if calls != 0 {
		t.Errorf("Expected no invocation, got %d", calls)
	}
}

type panicTool struct{ MockTool }

func (t *panicTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	panic("boom")
}

type failingTool struct{ MockTool }

func (t *failingTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	return nil, errors.New("backend unavailable")
}

func TestExecutor_HandlerFailures(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&panicTool{MockTool{name: "panics"}})
	registry.Register(&failingTool{MockTool{name: "fails"}})
	executor := NewExecutor(registry)

	for _, name := range []string{"panics", "fails"} {
		results, err := executor.Execute(context.Background(), []*llm.ToolCall{call("1", name, `{}`)})
		if !errors.Is(err, ErrToolExecution) {
			t.Errorf("%s: expected ErrToolExecution, got %v", name, err)
		}
		if results != nil {
			t.Errorf("%s: expected no partial results, got %v", name, results)
		}
	}
}

func TestExecutor_FailureAbortsRound(t *testing.T) {
	var calls int32
	registry := newEchoRegistry(t, &calls)
	registry.Register(&failingTool{MockTool{name: "fails"}})
	executor := NewExecutor(registry)

	_, err := executor.Execute(context.Background(), []*llm.ToolCall{
		call("1", "echo", `{"text":"slow","delay_ms":5000}`),
		call("2", "fails", `{}`),
	})
	if !errors.Is(err, ErrToolExecution) {
		t.Fatalf("Expected ErrToolExecution, got %v", err)
	}
	var callErr *CallError
	if !errors.As(err, &callErr) || callErr.Tool != "fails" {
		t.Errorf("Expected the failing tool to be reported, got %v", err)
	}
}

func TestExecutor_EmptyOutputPlaceholder(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&MockTool{name: "quiet"})
	executor := NewExecutor(registry)

	results, err := executor.Execute(context.Background(), []*llm.ToolCall{call("1", "quiet", `{}`)})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if results[0].Result.Output != EmptyOutputPlaceholder {
		t.Errorf("Expected placeholder, got %q", results[0].Result.Output)
	}
}

type denyHandler struct{ seen []string }

func (h *denyHandler) Name() string             { return "deny" }
func (h *denyHandler) Points() []hook.HookPoint { return []hook.HookPoint{hook.BeforeToolExecution} }
func (h *denyHandler) Priority() int            { return 1 }
func (h *denyHandler) Handle(ctx context.Context, data *hook.HookData) (*hook.Feedback, error) {
	h.seen = append(h.seen, data.ToolName)
	return hook.DenyFeedback("not today"), nil
}

func TestExecutor_HookDenial(t *testing.T) {
	var calls int32
	executor := NewExecutor(newEchoRegistry(t, &calls))

	manager := hook.NewManager()
	handler := &denyHandler{}
	manager.Register(handler)
	executor.SetHookManager(manager)

	_, err := executor.Execute(context.Background(), []*llm.ToolCall{call("1", "echo", `{"text":"a"}`)})
	if !errors.Is(err, ErrToolExecution) {
		t.Fatalf("Expected ErrToolExecution, got %v", err)
	}
	if !strings.Contains(err.Error(), "denied by deny: not today") {
		t.Errorf("Expected denying handler in error, got %v", err)
	}
	if calls != 0 {
		t.Errorf("Denied tool must not run, got %d invocations", calls)
	}
	if len(handler.seen) != 1 || handler.seen[0] != "echo" {
		t.Errorf("Hook did not see the call: %v", handler.seen)
	}
}

type contextCheck struct {
	MockTool
	found bool
}

func (t *contextCheck) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	t.found = hook.FromContext(ctx) != nil
	return &Result{Output: "ok"}, nil
}

func TestExecutor_HookManagerInContext(t *testing.T) {
	checker := &contextCheck{MockTool: MockTool{name: "ctxcheck"}}
	registry := NewRegistry()
	registry.Register(checker)

	executor := NewExecutor(registry)
	executor.SetHookManager(hook.NewManager())

	if _, err := executor.Execute(context.Background(), []*llm.ToolCall{call("1", "ctxcheck", `{}`)}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !checker.found {
		t.Error("Expected hook manager in tool context")
	}
}

func TestExecutor_WithRegistry(t *testing.T) {
	var calls int32
	full := newEchoRegistry(t, &calls)
	full.Register(&MockTool{name: "other"})

	sub, err := full.Subset("other")
	if err != nil {
		t.Fatalf("Subset failed: %v", err)
	}

	executor := NewExecutor(full)
	executor.SetMode(ExecutionModeSequential)
	scoped := executor.WithRegistry(sub)

	if _, err := scoped.Execute(context.Background(), []*llm.ToolCall{call("1", "echo", `{"text":"a"}`)}); !errors.Is(err, ErrToolNotFound) {
		t.Errorf("Expected echo to be out of scope, got %v", err)
	}
	if scoped.mode != ExecutionModeSequential {
		t.Errorf("Expected mode to be kept, got %s", scoped.mode)
	}
}
