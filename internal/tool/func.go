package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// Handler is the typed logic behind a Func.
type Handler[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

// Func is a Tool built from a typed handler. Req must be a struct; its
// json tags name the arguments and its jsonschema tags describe them.
// Fields without omitempty are required.
type Func[Req, Resp any] struct {
	name        string
	description string
	handler     Handler[Req, Resp]
	input       map[string]any
	output      map[string]any
	resolved    *jsonschema.Resolved
}

// NewFunc derives the input and output schemas from Req and Resp.
func NewFunc[Req, Resp any](name, description string, handler Handler[Req, Resp]) (*Func[Req, Resp], error) {
	inSchema, err := jsonschema.For[Req](nil)
	if err != nil {
		return nil, fmt.Errorf("input schema for %s: %w", name, err)
	}
	resolved, err := inSchema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve input schema for %s: %w", name, err)
	}
	outSchema, err := jsonschema.For[Resp](nil)
	if err != nil {
		return nil, fmt.Errorf("output schema for %s: %w", name, err)
	}

	input, err := schemaMap(inSchema)
	if err != nil {
		return nil, err
	}
	output, err := schemaMap(outSchema)
	if err != nil {
		return nil, err
	}

	return &Func[Req, Resp]{
		name:        name,
		description: description,
		handler:     handler,
		input:       input,
		output:      output,
		resolved:    resolved,
	}, nil
}

// MustFunc is like NewFunc but panics on a schema error.
func MustFunc[Req, Resp any](name, description string, handler Handler[Req, Resp]) *Func[Req, Resp] {
	f, err := NewFunc(name, description, handler)
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Func[Req, Resp]) Name() string {
	return f.name
}

func (f *Func[Req, Resp]) Description() string {
	return f.description
}

func (f *Func[Req, Resp]) Parameters() map[string]any {
	return f.input
}

func (f *Func[Req, Resp]) OutputSchema() map[string]any {
	return f.output
}

func (f *Func[Req, Resp]) Validate(params json.RawMessage) error {
	_, err := f.decode(params)
	return err
}

func (f *Func[Req, Resp]) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	req, err := f.decode(params)
	if err != nil {
		return nil, DecodeError(err)
	}

	resp, err := f.handler(ctx, req)
	if err != nil {
		return nil, err
	}

	out, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}

	return &Result{Output: string(out)}, nil
}

// decode checks the arguments against the input schema and maps them onto
// Req. Empty arguments are read as an empty object.
func (f *Func[Req, Resp]) decode(params json.RawMessage) (Req, error) {
	var req Req

	if len(bytes.TrimSpace(params)) == 0 {
		params = json.RawMessage("{}")
	}

	var args map[string]any
	if err := json.Unmarshal(params, &args); err != nil {
		return req, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}

	if err := f.resolved.Validate(args); err != nil {
		return req, err
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &req,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return req, err
	}
	if err := decoder.Decode(args); err != nil {
		return req, err
	}

	return req, nil
}

func schemaMap(s *jsonschema.Schema) (map[string]any, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	return m, nil
}
