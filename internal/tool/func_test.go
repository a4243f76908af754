package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type cityRequest struct {
	City  string `json:"city" jsonschema:"the city to look up"`
	Limit int    `json:"limit,omitempty"`
}

type cityResponse struct {
	City       string  `json:"city"`
	Population float64 `json:"population"`
}

func newCityTool(t *testing.T) *Func[cityRequest, cityResponse] {
	t.Helper()
	f, err := NewFunc("cityInfo", "Look up a city", func(ctx context.Context, req cityRequest) (cityResponse, error) {
		if req.City == "Atlantis" {
			return cityResponse{}, errors.New("city sank")
		}
		return cityResponse{City: req.City, Population: 2.1}, nil
	})
	if err != nil {
		t.Fatalf("NewFunc failed: %v", err)
	}
	return f
}

func TestFunc_Schemas(t *testing.T) {
	f := newCityTool(t)

	params := f.Parameters()
	if params["type"] != "object" {
		t.Errorf("Expected object schema, got %v", params["type"])
	}

	props, ok := params["properties"].(map[string]any)
	if !ok {
		t.Fatalf("Expected properties, got %v", params["properties"])
	}
	city, ok := props["city"].(map[string]any)
	if !ok {
		t.Fatalf("Expected city property, got %v", props)
	}
	if city["type"] != "string" {
		t.Errorf("Expected string city, got %v", city["type"])
	}
	if city["description"] != "the city to look up" {
		t.Errorf("Expected description from tag, got %v", city["description"])
	}

	required, _ := params["required"].([]any)
	if len(required) != 1 || required[0] != "city" {
		t.Errorf("Expected only city to be required, got %v", params["required"])
	}

	if _, ok := f.OutputSchema()["properties"].(map[string]any)["population"]; !ok {
		t.Errorf("Expected population in output schema, got %v", f.OutputSchema())
	}
}

func TestFunc_Execute(t *testing.T) {
	f := newCityTool(t)

	result, err := f.Execute(context.Background(), json.RawMessage(`{"city":"Paris"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	var resp cityResponse
	if err := json.Unmarshal([]byte(result.Output), &resp); err != nil {
		t.Fatalf("Output is not JSON: %v", err)
	}
	if resp.City != "Paris" || resp.Population != 2.1 {
		t.Errorf("Unexpected response: %+v", resp)
	}
}

func TestFunc_IntegerArgument(t *testing.T) {
	var got cityRequest
	f := MustFunc("cityInfo", "Look up a city", func(ctx context.Context, req cityRequest) (cityResponse, error) {
		got = req
		return cityResponse{}, nil
	})

	if _, err := f.Execute(context.Background(), json.RawMessage(`{"city":"Tokyo","limit":3}`)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got.City != "Tokyo" || got.Limit != 3 {
		t.Errorf("Unexpected decoded request: %+v", got)
	}
}

func TestFunc_DecodeFailures(t *testing.T) {
	f := newCityTool(t)

	cases := map[string]string{
		"not json":         `{"city":`,
		"not an object":    `["Paris"]`,
		"missing required": `{}`,
		"wrong type":       `{"city": 42}`,
	}
	for name, args := range cases {
		if err := f.Validate(json.RawMessage(args)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}

		_, err := f.Execute(context.Background(), json.RawMessage(args))
		if !errors.Is(err, ErrArgumentDecode) {
			t.Errorf("%s: expected ErrArgumentDecode, got %v", name, err)
		}
	}
}

func TestFunc_HandlerError(t *testing.T) {
	f := newCityTool(t)

	_, err := f.Execute(context.Background(), json.RawMessage(`{"city":"Atlantis"}`))
	if err == nil || !strings.Contains(err.Error(), "city sank") {
		t.Fatalf("Expected handler error, got %v", err)
	}
	if errors.Is(err, ErrArgumentDecode) {
		t.Error("Handler error must not be reported as a decode error")
	}
}
