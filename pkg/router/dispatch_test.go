package router_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rdkcentral/ripple-core/pkg/contracts"
	"github.com/rdkcentral/ripple-core/pkg/router"
	"github.com/stretchr/testify/require"
)

func echoHandler(result string) router.HandlerFunc {
	return func(ctx context.Context, id any, params []byte, sink router.Sink) {
		sink <- router.EncodeResult(id, result)
	}
}

// Scenario 1 (spec §8): happy path RPC.
func TestDispatch_HappyPath(t *testing.T) {
	state := router.NewState(nil)
	require.NoError(t, state.Register(router.MethodEntry{
		Name:    "localization.locality",
		Kind:    router.Sync,
		Handler: echoHandler("US-CA"),
	}))

	// CallID (session-local bookkeeping) deliberately differs from RPCID
	// (the caller's actual JSON-RPC request id) so the assertion below
	// can't pass by accident if the two are ever confused again.
	req := router.RpcRequest{
		Ctx:    router.CallContext{CallID: 99, RPCID: 42, Protocol: "websocket", RequestID: "7", Method: "localization.locality"},
		Method: "localization.locality",
	}

	result := make(chan router.ApiMessage, 1)
	state.Dispatch(context.Background(), req, func(msg router.ApiMessage) { result <- msg })

	msg := <-result
	var decoded struct {
		JSONRPC string `json:"jsonrpc"`
		ID      int    `json:"id"`
		Result  string `json:"result"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
	require.Equal(t, "2.0", decoded.JSONRPC)
	require.Equal(t, 42, decoded.ID, "reply must echo the caller's JSON-RPC id, not the session-local call id")
	require.Equal(t, "US-CA", decoded.Result)
}

// Scenario 2 (spec §8): unknown method.
func TestDispatch_UnknownMethod(t *testing.T) {
	state := router.NewState(nil)
	req := router.RpcRequest{
		Ctx:    router.CallContext{CallID: 8, RPCID: 8, Protocol: "websocket", RequestID: "8"},
		Method: "bogus.op",
	}
	result := make(chan router.ApiMessage, 1)
	state.Dispatch(context.Background(), req, func(msg router.ApiMessage) { result <- msg })

	msg := <-result
	var decoded struct {
		ID    int `json:"id"`
		Error struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
	require.Equal(t, router.CodeMethodNotFound, decoded.Error.Code)
}

func TestRegister_RefusesOverweightMethod(t *testing.T) {
	state := router.NewState(map[string]int{"cpu": 1})
	err := state.Register(router.MethodEntry{
		Name:    "heavy.op",
		Kind:    router.Sync,
		Weights: map[string]int{"cpu": 2},
		Handler: echoHandler("x"),
	})
	require.Error(t, err)
}

// A refused resource claim is reported as MethodNotFound, not a distinct
// code (spec §4.2.2 step 3 / §9 Open Question).
func TestDispatch_ResourceClaimRefusedLooksLikeMethodNotFound(t *testing.T) {
	state := router.NewState(map[string]int{"cpu": 1})
	block := make(chan struct{})
	require.NoError(t, state.Register(router.MethodEntry{
		Name: "slow.op",
		Kind: router.Async,
		Weights: map[string]int{"cpu": 1},
		Handler: func(ctx context.Context, id any, params []byte, sink router.Sink) {
			<-block
			sink <- router.EncodeResult(id, "done")
		},
	}))

	req := router.RpcRequest{Ctx: router.CallContext{CallID: 1, RPCID: 1, RequestID: "1"}, Method: "slow.op"}
	firstDone := make(chan struct{})
	state.Dispatch(context.Background(), req, func(router.ApiMessage) { close(firstDone) })
	time.Sleep(20 * time.Millisecond) // let the first claim land

	req2 := router.RpcRequest{Ctx: router.CallContext{CallID: 2, RPCID: 2, RequestID: "2"}, Method: "slow.op"}
	result := make(chan router.ApiMessage, 1)
	state.Dispatch(context.Background(), req2, func(msg router.ApiMessage) { result <- msg })

	msg := <-result
	var decoded struct {
		Error struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
	require.Equal(t, router.CodeMethodNotFound, decoded.Error.Code)

	close(block)
	<-firstDone
}

func TestDispatchFromExtn_DeliversValueOnCallback(t *testing.T) {
	state := router.NewState(nil)
	require.NoError(t, state.Register(router.MethodEntry{
		Name:    "wifi.scan",
		Kind:    router.Sync,
		Handler: echoHandler("ok"),
	}))
	callback := make(contracts.Callback, 1)
	req := router.RpcRequest{Ctx: router.CallContext{RequestID: "corr-1"}, Method: "wifi.scan"}
	state.DispatchFromExtn(context.Background(), req, "extn-a", contracts.WifiContract, callback)

	select {
	case resp := <-callback:
		require.True(t, resp.Payload.IsResponse())
	case <-time.After(time.Second):
		t.Fatal("no response delivered on callback channel")
	}
}
