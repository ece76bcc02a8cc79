package bootstrap_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/rdkcentral/ripple-core/pkg/bootstrap"
	"github.com/rdkcentral/ripple-core/pkg/contracts"
	"github.com/rdkcentral/ripple-core/pkg/pluginpool"
	"github.com/rdkcentral/ripple-core/pkg/router"
	"github.com/stretchr/testify/require"
)

type stubConn struct{ index int }

func (c *stubConn) Send(ctx context.Context, method string, params []byte) ([]byte, error) {
	return []byte("{}"), nil
}
func (c *stubConn) Close() error { return nil }

func TestBoot_HappyPathRunsAllStepsInOrder(t *testing.T) {
	cfg := bootstrap.Config{
		ListenAddress: "127.0.0.1:0",
		AuthSecret:    []byte("secret"),
		Plugin: bootstrap.PluginConfig{
			Size: 2,
			Dial: func(ctx context.Context, i int) (pluginpool.Conn, error) {
				return &stubConn{index: i}, nil
			},
		},
	}
	st, code, err := bootstrap.Boot(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, bootstrap.ExitOK, code)
	require.NotNil(t, st.Bus)
	require.NotNil(t, st.Router)
	require.NotNil(t, st.Pool)
	require.NotNil(t, st.Gateway)
	require.NotNil(t, st.Storage)
	require.NotNil(t, st.Events)

	var reply []byte
	st.Router.Dispatch(context.Background(), router.RpcRequest{
		Ctx:    router.CallContext{Method: "localization.setLocality"},
		Method: "localization.setLocality",
		Params: []byte(`{"value":"US-CA"}`),
	}, func(msg router.ApiMessage) { reply = msg.Payload })
	require.Contains(t, string(reply), `"result"`)
	st.Shutdown()
}

func TestBoot_EnableBridgeConstructsBridge(t *testing.T) {
	cfg := bootstrap.Config{
		ListenAddress: "127.0.0.1:0",
		AuthSecret:    []byte("secret"),
		EnableBridge:  true,
	}
	st, code, err := bootstrap.Boot(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, bootstrap.ExitOK, code)
	require.NotNil(t, st.Bridge)
	st.Shutdown()
}

func TestBoot_PluginControllerFailureAbortsBeforeGateway(t *testing.T) {
	cfg := bootstrap.Config{
		ListenAddress: "127.0.0.1:0",
		AuthSecret:    []byte("secret"),
		Plugin: bootstrap.PluginConfig{
			Size: 2,
			Dial: func(ctx context.Context, i int) (pluginpool.Conn, error) {
				return nil, fmt.Errorf("controller unreachable")
			},
		},
	}
	st, code, err := bootstrap.Boot(context.Background(), cfg)
	require.Error(t, err)
	require.ErrorIs(t, err, contracts.ErrBootstrapError)
	require.Equal(t, bootstrap.ExitStepFailed, code)
	require.Nil(t, st.Gateway, "StartFireboltGateway must never run after StartWs fails")
}
