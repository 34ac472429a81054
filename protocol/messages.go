package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// JSONRPCVersion is the JSON-RPC protocol version.
const JSONRPCVersion = "2.0"

// MethodDiscover is the reserved OpenRPC discovery method.
const MethodDiscover = "rpc.discover"

var nullID = json.RawMessage("null")

// Request represents a JSON-RPC 2.0 request or notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification returns true if this request has no ID (is a notification).
// An explicit null id is a request.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// ParamsKind describes the shape of a request's params member.
type ParamsKind int

const (
	ParamsNone ParamsKind = iota
	ParamsArray
	ParamsObject
)

// ParamsKind reports whether params are absent, positional or named.
func (r *Request) ParamsKind() ParamsKind {
	p := bytes.TrimSpace(r.Params)
	if len(p) == 0 || bytes.Equal(p, nullID) {
		return ParamsNone
	}
	if p[0] == '[' {
		return ParamsArray
	}
	return ParamsObject
}

// NewRequest creates a request with the given id. Params may be nil, a slice
// (by-position) or a struct/map (by-name).
func NewRequest(id any, method string, params any) (*Request, error) {
	rawID, err := json.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("marshal id: %w", err)
	}
	req, err := NewNotification(method, params)
	if err != nil {
		return nil, err
	}
	req.ID = rawID
	return req, nil
}

// NewNotification creates a request without an id.
func NewNotification(method string, params any) (*Request, error) {
	req := &Request{JSONRPC: JSONRPCVersion, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = raw
	}
	return req, nil
}

// Response is either a *ResultResponse or an *ErrorResponse.
type Response interface {
	// ResponseID returns the id of the request this response answers.
	ResponseID() json.RawMessage
	isResponse()
}

// ResultResponse is a successful response. A nil Result serialises as null.
type ResultResponse struct {
	ID     json.RawMessage
	Result any
}

// ErrorResponse is a failed response. A nil ID serialises as null.
type ErrorResponse struct {
	ID    json.RawMessage
	Error *Error
}

// NewResponse creates a successful response.
func NewResponse(id json.RawMessage, result any) *ResultResponse {
	return &ResultResponse{ID: id, Result: result}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id json.RawMessage, err *Error) *ErrorResponse {
	return &ErrorResponse{ID: id, Error: err}
}

func (r *ResultResponse) ResponseID() json.RawMessage { return r.ID }
func (r *ErrorResponse) ResponseID() json.RawMessage  { return r.ID }

func (*ResultResponse) isResponse() {}
func (*ErrorResponse) isResponse()  {}

// MarshalJSON implements json.Marshaler.
func (r *ResultResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  any             `json:"result"`
	}{JSONRPCVersion, orNull(r.ID), r.Result})
}

// MarshalJSON implements json.Marshaler.
func (r *ErrorResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Error   *Error          `json:"error"`
	}{JSONRPCVersion, orNull(r.ID), r.Error})
}

func orNull(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return nullID
	}
	return id
}

// ErrMalformedResponse is returned when a response has neither result nor error.
var ErrMalformedResponse = errors.New("jsonrpc: response has neither result nor error")

// DecodeResponse decodes a single response object.
func DecodeResponse(data []byte) (Response, error) {
	var raw struct {
		ID     json.RawMessage `json:"id"`
		Result json.RawMessage `json:"result"`
		Error  *Error          `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if raw.Error != nil {
		return &ErrorResponse{ID: raw.ID, Error: raw.Error}, nil
	}
	if len(raw.Result) == 0 {
		return nil, ErrMalformedResponse
	}
	return &ResultResponse{ID: raw.ID, Result: raw.Result}, nil
}

// DecodeBatchResponse decodes an array of responses.
func DecodeBatchResponse(data []byte) ([]Response, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode batch response: %w", err)
	}
	out := make([]Response, 0, len(items))
	for _, item := range items {
		resp, err := DecodeResponse(item)
		if err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, nil
}

// Payload is a parsed inbound payload: one message or a batch of messages.
type Payload struct {
	Batch    bool
	Messages []json.RawMessage
}

// Parse checks that data is valid JSON and splits it into messages.
// Invalid JSON yields a parse error; a top-level value that is neither an
// object nor an array yields an invalid request error.
func Parse(data []byte) (*Payload, *Error) {
	trimmed := bytes.TrimSpace(data)
	if !json.Valid(trimmed) {
		return nil, NewParseError()
	}
	switch trimmed[0] {
	case '[':
		var msgs []json.RawMessage
		if err := json.Unmarshal(trimmed, &msgs); err != nil {
			return nil, NewParseError()
		}
		return &Payload{Batch: true, Messages: msgs}, nil
	case '{':
		return &Payload{Messages: []json.RawMessage{json.RawMessage(trimmed)}}, nil
	default:
		return nil, NewInvalidRequest().WithData(json.RawMessage(trimmed))
	}
}

// DecodeRequest validates a single message and returns the request.
//
// On failure it returns an invalid request response carrying the offending
// message as data and the message id when one could be extracted. Both
// return values are nil when the malformed message was shaped like a
// notification, in which case it produces no output.
func DecodeRequest(raw json.RawMessage) (*Request, *ErrorResponse) {
	raw = bytes.TrimSpace(raw)
	invalid := func(id json.RawMessage) *ErrorResponse {
		return NewErrorResponse(id, NewInvalidRequest().WithData(raw))
	}
	if len(raw) == 0 || raw[0] != '{' {
		return nil, invalid(nil)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, invalid(nil)
	}

	id, hasID := fields["id"]
	if hasID {
		if len(id) == 0 {
			id = nullID
		}
		if !validID(id) {
			return nil, invalid(nil)
		}
	}

	var method string
	m := fields["method"]
	methodOK := len(m) > 0 && m[0] == '"' && json.Unmarshal(m, &method) == nil
	fail := func() (*Request, *ErrorResponse) {
		if !hasID && methodOK {
			return nil, nil
		}
		if hasID {
			return nil, invalid(id)
		}
		return nil, invalid(nil)
	}
	if !methodOK {
		return fail()
	}

	// An absent version member is read as 2.0; a present one must match.
	version := JSONRPCVersion
	if v, ok := fields["jsonrpc"]; ok {
		var got string
		if err := json.Unmarshal(v, &got); err != nil || got != JSONRPCVersion {
			return fail()
		}
	}

	params := bytes.TrimSpace(fields["params"])
	if len(params) > 0 && !bytes.Equal(params, nullID) && params[0] != '[' && params[0] != '{' {
		return fail()
	}
	if bytes.Equal(params, nullID) {
		params = nil
	}

	req := &Request{JSONRPC: version, Method: method, Params: params}
	if hasID {
		req.ID = id
	}
	return req, nil
}

// validID reports whether id is a string, number or null.
func validID(id json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(id, &v); err != nil {
		return false
	}
	switch v.(type) {
	case nil, string, float64:
		return true
	default:
		return false
	}
}
