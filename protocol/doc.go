// Package protocol defines the JSON-RPC 2.0 message types and error codes.
//
// This package provides the low-level protocol structures used by openrpc-go.
// Most users should use the higher-level openrpc package instead.
//
// # Requests
//
// A Request without an id is a notification:
//
//	type Request struct {
//	    JSONRPC string          `json:"jsonrpc"`
//	    ID      json.RawMessage `json:"id,omitempty"`
//	    Method  string          `json:"method"`
//	    Params  json.RawMessage `json:"params,omitempty"`
//	}
//
// # Responses
//
// Response is a closed sum type. A *ResultResponse always carries a result
// (null included) and an *ErrorResponse always carries an error:
//
//	resp := protocol.NewResponse(req.ID, 42)
//	resp := protocol.NewErrorResponse(req.ID, protocol.NewMethodNotFound(req.Method))
//
// # Decoding
//
// Parse splits an inbound payload into single messages and DecodeRequest
// validates each one:
//
//	payload, perr := protocol.Parse(data)
//	for _, raw := range payload.Messages {
//	    req, errResp := protocol.DecodeRequest(raw)
//	    ...
//	}
//
// # Error Codes
//
//	CodeParseError      = -32700  // Invalid JSON
//	CodeInvalidRequest  = -32600  // Invalid Request object
//	CodeMethodNotFound  = -32601  // Method not found
//	CodeInvalidParams   = -32602  // Invalid method parameters
//	CodeInternalError   = -32603  // Internal error
//	CodeServerError     = -32000  // Uncaught handler failure (default)
//	CodePermissionError = -32099  // Caller lacks the required scopes
package protocol
