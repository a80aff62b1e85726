package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Version is the only protocol version spoken on the wire.
const Version = "2.0"

// Request is one outbound JSON-RPC call. It is always encoded on a single line.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      uint64 `json:"id"`
}

// ErrorObject is the error member of a response.
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// DataString returns Data as text, unquoting it when it is a JSON string.
func (e *ErrorObject) DataString() string {
	if len(e.Data) == 0 || bytes.Equal(e.Data, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.Data, &s); err == nil {
		return s
	}
	return string(e.Data)
}

// Response is a validated inbound message. Exactly one of Result or Error
// is meaningful: Error is non-nil for failed calls.
type Response struct {
	// HasID is false when the peer answered with "id": null, which it does
	// for requests it could not parse. Such responses match no call.
	HasID  bool
	ID     uint64
	Result json.RawMessage
	Error  *ErrorObject
}

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *ErrorObject    `json:"error"`
}

// EncodeRequest renders req as one newline-terminated line. Nil params are
// sent as an empty object.
func EncodeRequest(req Request) ([]byte, error) {
	if req.JSONRPC == "" {
		req.JSONRPC = Version
	}
	if req.Params == nil {
		req.Params = struct{}{}
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", req.Method, err)
	}
	return append(data, '\n'), nil
}

// DecodeResponse parses and validates a single response line.
func DecodeResponse(line []byte) (*Response, error) {
	var wire wireResponse
	if err := json.Unmarshal(line, &wire); err != nil {
		return nil, err
	}
	if wire.JSONRPC != Version {
		return nil, fmt.Errorf("unsupported jsonrpc version %q", wire.JSONRPC)
	}

	resp := &Response{Result: wire.Result, Error: wire.Error}
	if hasResult := len(wire.Result) > 0; hasResult && wire.Error != nil {
		return nil, errors.New("response carries both result and error")
	}

	id := bytes.TrimSpace(wire.ID)
	if len(id) == 0 || bytes.Equal(id, []byte("null")) {
		if wire.Error == nil {
			return nil, errors.New("response without id")
		}
		return resp, nil
	}
	n, err := strconv.ParseUint(string(id), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("response id %s is not a non-negative integer", id)
	}
	resp.HasID = true
	resp.ID = n
	return resp, nil
}
