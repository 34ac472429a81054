package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/felixgeelhaar/openrpc-go/discover"
	"github.com/felixgeelhaar/openrpc-go/protocol"
	"github.com/felixgeelhaar/openrpc-go/schema"
)

const (
	byPositionRequired = "Params must be passed by position."
	byNameRequired     = "Params must be passed by name."
)

// bind turns request params and dependencies into handler arguments.
//
// Param structure violations and values that cannot be decoded are
// returned as *protocol.Error. Missing required parameters, unexpected
// parameters and missing dependencies are plain errors and are reported
// like any other uncaught failure.
func (m *Method) bind(ctx context.Context, req *protocol.Request, deps map[string]any) ([]reflect.Value, error) {
	values := make(map[*param]reflect.Value, len(m.params))
	client := m.clientParams()

	switch req.ParamsKind() {
	case protocol.ParamsArray:
		if m.meta.ParamStructure == discover.ByName {
			return nil, protocol.NewInvalidParams().WithData(byNameRequired)
		}
		var items []json.RawMessage
		if err := json.Unmarshal(req.Params, &items); err != nil {
			return nil, protocol.NewInvalidParams()
		}
		if len(items) > len(client) {
			return nil, fmt.Errorf("too many positional parameters: got %d, want at most %d", len(items), len(client))
		}
		if err := m.validate(items, client); err != nil {
			return nil, err
		}
		for i, raw := range items {
			v, err := decodeParam(client[i], raw)
			if err != nil {
				return nil, err
			}
			values[client[i]] = v
		}

	case protocol.ParamsObject:
		if m.meta.ParamStructure == discover.ByPosition {
			return nil, protocol.NewInvalidParams().WithData(byPositionRequired)
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(req.Params, &obj); err != nil {
			return nil, protocol.NewInvalidParams()
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if !slices.ContainsFunc(client, func(p *param) bool { return p.name == k }) {
				return nil, fmt.Errorf("unexpected parameter %q", k)
			}
		}
		ordered := make([]json.RawMessage, len(client))
		for i, p := range client {
			ordered[i] = obj[p.name]
		}
		if err := m.validate(ordered, client); err != nil {
			return nil, err
		}
		for _, p := range client {
			raw, ok := obj[p.name]
			if !ok {
				continue
			}
			v, err := decodeParam(p, raw)
			if err != nil {
				return nil, err
			}
			values[p] = v
		}
	}

	for _, p := range m.params {
		if _, ok := values[p]; ok {
			continue
		}
		switch {
		case p.dependency != "":
			v, err := dependencyValue(deps, p)
			if err != nil {
				return nil, err
			}
			values[p] = v
		case p.def != nil:
			v, err := decodeParam(p, p.def)
			if err != nil {
				return nil, err
			}
			values[p] = v
		case p.required:
			return nil, fmt.Errorf("missing required parameter %q", p.name)
		}
	}

	var args []reflect.Value
	if m.hasCtx {
		args = append(args, reflect.ValueOf(ctx))
	}
	if m.input != nil {
		in := reflect.New(m.input).Elem()
		for p, v := range values {
			in.FieldByIndex(p.field).Set(v)
		}
		return append(args, in), nil
	}
	for _, p := range m.params {
		v, ok := values[p]
		if !ok {
			v = reflect.Zero(p.typ)
		}
		args = append(args, v)
	}
	return args, nil
}

// validate checks supplied values against parameter schemas when the
// method asks for it. raws[i] belongs to params[i]; nil entries are absent.
func (m *Method) validate(raws []json.RawMessage, params []*param) error {
	if m.validation == nil {
		return nil
	}
	var all schema.ValidationErrors
	for i, raw := range raws {
		if raw == nil {
			continue
		}
		s := m.validation.schemas[params[i].name]
		err := s.ValidateWith(raw, m.validation.components)
		var verrs schema.ValidationErrors
		if errors.As(err, &verrs) {
			for _, e := range verrs {
				path := params[i].name
				if e.Path != "" {
					path += "." + e.Path
				}
				all = append(all, &schema.ValidationError{Path: path, Message: e.Message})
			}
		} else if err != nil {
			all = append(all, &schema.ValidationError{Path: params[i].name, Message: err.Error()})
		}
	}
	if len(all) > 0 {
		return protocol.NewInvalidParams().WithData(all)
	}
	return nil
}

func decodeParam(p *param, raw json.RawMessage) (reflect.Value, error) {
	ptr := reflect.New(p.typ)
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) && !acceptsNull(p.typ) {
		return reflect.Value{}, deserializeError(p, raw)
	}
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return reflect.Value{}, deserializeError(p, raw)
	}
	return ptr.Elem(), nil
}

func acceptsNull(t reflect.Type) bool {
	return t.Kind() == reflect.Interface || schema.IsNullable(t)
}

func deserializeError(p *param, raw json.RawMessage) *protocol.Error {
	return protocol.NewInternalError().WithData(
		fmt.Sprintf("Failed to deserialize request param [%s] to type [%s]", raw, p.typ),
	)
}

func dependencyValue(deps map[string]any, p *param) (reflect.Value, error) {
	dep, ok := deps[p.dependency]
	if !ok {
		return reflect.Value{}, fmt.Errorf("missing dependency %q", p.dependency)
	}
	if dep == nil {
		return reflect.Zero(p.typ), nil
	}
	v := reflect.ValueOf(dep)
	if !v.Type().AssignableTo(p.typ) {
		return reflect.Value{}, fmt.Errorf("dependency %q has type %s, want %s", p.dependency, v.Type(), p.typ)
	}
	return v, nil
}
