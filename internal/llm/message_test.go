package llm

import "testing"

func TestParseStopReason(t *testing.T) {
	tests := map[string]StopReason{
		"stop":           StopReasonStop,
		"":               StopReasonStop,
		"end_turn":       StopReasonStop,
		"length":         StopReasonLength,
		"MAX_TOKENS":     StopReasonLength,
		"tool_calls":     StopReasonToolCalls,
		"tool_use":       StopReasonToolCalls,
		"function_call":  StopReasonToolCalls,
		"content_filter": StopReasonContentFilter,
	}
	for in, want := range tests {
		if got := ParseStopReason(in); got != want {
			t.Errorf("ParseStopReason(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNormalizeArguments(t *testing.T) {
	if NormalizeArguments("  ") != "{}" {
		t.Error("Expected blank arguments to become an empty object")
	}
	if NormalizeArguments(`{"location":"Paris"}`) != `{"location":"Paris"}` {
		t.Error("Expected arguments to be kept")
	}
}

func TestUsageAdd(t *testing.T) {
	u := Usage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}
	u.Add(Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30})
	if u != (Usage{PromptTokens: 11, CompletionTokens: 22, TotalTokens: 33}) {
		t.Errorf("Unexpected usage %+v", u)
	}
}

func TestToolMessage(t *testing.T) {
	m := ToolMessage("call_1", "weatherInfo", `{"temp":15}`)
	if m.Role != RoleTool || m.ToolCallID != "call_1" || m.Name != "weatherInfo" || m.Timestamp.IsZero() {
		t.Errorf("Unexpected tool message %+v", m)
	}
	if def := FunctionTool("weatherInfo", "d", nil); def.Type != ToolTypeFunction || def.Function.Name != "weatherInfo" {
		t.Errorf("Unexpected definition %+v", def)
	}
}
