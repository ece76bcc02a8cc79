package router

import (
	"encoding/json"

	jsoniter "github.com/json-iterator/go"
	"github.com/rdkcentral/ripple-core/pkg/contracts"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcNotification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// EncodeNotification builds an id-less JSON-RPC 2.0 notification frame,
// used for pushing Firebolt app events (spec §4.4) rather than replying to
// a call.
func EncodeNotification(method string, params any) []byte {
	raw, err := jsonAPI.Marshal(params)
	if err != nil {
		return encodeError(nil, CodeInternalError, err.Error())
	}
	frame, _ := jsonAPI.Marshal(jsonrpcNotification{JSONRPC: "2.0", Method: method, Params: raw})
	return frame
}

// EncodeResult builds a successful JSON-RPC 2.0 response frame for result,
// which must already be a JSON-encodable value (not pre-encoded bytes).
// Handlers use this to write their single frame to the sink.
func EncodeResult(id any, result any) []byte {
	raw, err := jsonAPI.Marshal(result)
	if err != nil {
		return encodeError(id, CodeInternalError, err.Error())
	}
	frame, _ := jsonAPI.Marshal(jsonrpcResponse{JSONRPC: "2.0", ID: id, Result: raw})
	return frame
}

func encodeError(id any, code int, message string) []byte {
	frame, _ := jsonAPI.Marshal(jsonrpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &jsonrpcError{Code: code, Message: message},
	})
	return frame
}

// EncodeError builds a JSON-RPC 2.0 error response frame. Handlers use
// this to report a domain failure (invalid params, upstream error) rather
// than a successful result.
func EncodeError(id any, code int, message string) []byte {
	return encodeError(id, code, message)
}

// extractValue pulls the `result` or `error` member out of an already
// encoded JSON-RPC frame, for forwarding as an extn response value (spec
// §4.2.3). If neither is present this returns an InvalidOutput marker.
func extractValue(frame []byte) json.RawMessage {
	var resp jsonrpcResponse
	if err := jsonAPI.Unmarshal(frame, &resp); err != nil {
		raw, _ := jsonAPI.Marshal(contracts.ErrInvalidOutput.Error())
		return raw
	}
	if resp.Result != nil {
		return resp.Result
	}
	if resp.Error != nil {
		raw, _ := jsonAPI.Marshal(resp.Error)
		return raw
	}
	raw, _ := jsonAPI.Marshal(contracts.ErrInvalidOutput.Error())
	return raw
}

// rawValueResponse is a minimal ExtnPayloadProvider wrapping an already
// JSON-encoded value, used to deliver a router result back over the extn
// bus without re-typing it into a domain response struct.
type rawValueResponse struct {
	data json.RawMessage
}

func (r rawValueResponse) Contract() contracts.Contract { return "" }
func (r rawValueResponse) GetExtnPayload() contracts.ExtnPayload {
	return contracts.NewResponsePayload(r)
}

// Data returns the underlying JSON value.
func (r rawValueResponse) Data() json.RawMessage { return r.data }
