package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"callbroker/internal/llm"
	"callbroker/internal/llm/mock"
	"callbroker/internal/tool/builtin"
)

var demoCities = []string{"San Francisco", "Tokyo", "Paris"}

// demoResponder stands in for a model when provider is "mock": it asks
// weatherInfo about every city named in the question, then reports the
// temperatures it got back.
func demoResponder(ctx context.Context, call int, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	last := req.Messages[len(req.Messages)-1]
	if last.Role == llm.RoleTool {
		return mock.Text(summarizeWeather(req.Messages)), nil
	}

	if !offersTool(req.Tools, builtin.WeatherToolName) {
		return mock.Text("I have no tools to answer that: " + last.Content), nil
	}

	var locations []string
	for _, city := range demoCities {
		if strings.Contains(strings.ToLower(last.Content), strings.ToLower(city)) {
			locations = append(locations, city)
		}
	}
	if len(locations) == 0 {
		locations = []string{last.Content}
	}

	calls := make([]*llm.ToolCall, len(locations))
	for i, loc := range locations {
		args, err := json.Marshal(builtin.WeatherRequest{Location: loc})
		if err != nil {
			return nil, err
		}
		calls[i] = mock.Call(fmt.Sprintf("demo_%d_%d", call, i), builtin.WeatherToolName, string(args))
	}
	return mock.ToolCalls(calls...), nil
}

func offersTool(defs []*llm.ToolDefinition, name string) bool {
	for _, d := range defs {
		if d.Function != nil && d.Function.Name == name {
			return true
		}
	}
	return false
}

// summarizeWeather pairs the last assistant turn's calls with their tool
// turns.
func summarizeWeather(messages []llm.Message) string {
	outputs := make(map[string]string)
	var calls []*llm.ToolCall
	for _, m := range messages {
		switch m.Role {
		case llm.RoleTool:
			outputs[m.ToolCallID] = m.Content
		case llm.RoleAssistant:
			if len(m.ToolCalls) > 0 {
				calls = m.ToolCalls
			}
		}
	}

	var lines []string
	for _, c := range calls {
		var req builtin.WeatherRequest
		var resp builtin.WeatherResponse
		if json.Unmarshal([]byte(c.Function.Arguments), &req) != nil ||
			json.Unmarshal([]byte(outputs[c.ID]), &resp) != nil {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %.0f°%s", req.Location, resp.Temp, resp.Unit))
	}
	if len(lines) == 0 {
		return "The weather service returned nothing useful."
	}
	return "Current temperatures:\n" + strings.Join(lines, "\n")
}
